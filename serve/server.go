// Package serve exposes the live demo: a browser drawing pad posting 28×28
// grayscale grids to a prediction endpoint. It knows nothing about models,
// only about the PredictFunc it is handed.
package serve

import (
	_ "embed"
	"encoding/json"
	"net/http"

	"k8s.io/klog/v2"

	"github.com/Noofbiz/pictionary/sketchnet"
)

//go:embed index.html
var indexHTML []byte

// PredictFunc classifies one raw drawing. sketchnet.Predictor.Predict
// satisfies it.
type PredictFunc func(pixels [][]float32) ([]sketchnet.Prediction, error)

type predictRequest struct {
	Pixels [][]float32 `json:"pixels"`
}

type predictResponse struct {
	Predictions []sketchnet.Prediction `json:"predictions"`
}

// New returns the demo handler: GET / serves the drawing pad, POST
// /api/predict answers ranked guesses for a posted pixel grid. Clearing the
// pad never reaches the server; the page handles it client-side.
func New(predict PredictFunc) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(indexHTML)
	})
	mux.HandleFunc("/api/predict", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			httpError(w, "use POST", http.StatusMethodNotAllowed)
			return
		}
		var req predictRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
			return
		}
		preds, err := predict(req.Pixels)
		if err != nil {
			httpError(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(predictResponse{Predictions: preds}); err != nil {
			klog.Errorf("writing prediction response: %v", err)
		}
	})
	return mux
}

func httpError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

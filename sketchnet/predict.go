package sketchnet

import (
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/Noofbiz/pictionary/quickdraw"
)

// TopPredictions is how many ranked guesses Predict returns.
const TopPredictions = 3

// Prediction is one ranked guess.
type Prediction struct {
	Name        string  `json:"name"`
	Probability float32 `json:"probability"`
}

// Predictor runs the classifier over single raw drawings. It holds a
// compiled inference graph (model logits followed by a softmax), so
// constructing one is expensive and reusing it is cheap.
type Predictor struct {
	names []string
	exec  *context.Exec
}

// NewPredictor builds the inference graph for a model whose variables live in
// ctx. The ctx is typically populated from a training run or a checkpoint;
// a fresh ctx works too, with randomly initialized weights.
func NewPredictor(backend backends.Backend, ctx *context.Context, names []string) *Predictor {
	modelFn := Graph(len(names))
	exec := context.MustNewExec(backend, ctx, func(ctx *context.Context, image *graph.Node) *graph.Node {
		logits := modelFn(ctx, nil, []*graph.Node{image})[0]
		return graph.Softmax(logits)
	})
	return &Predictor{names: names, exec: exec}
}

// Predict classifies one raw drawing: a 28×28 array of byte intensities
// (0-255, any numeric range is clamped into it). The pixels are unit-scaled
// exactly like dataset samples, run through the network, and the
// TopPredictions highest-probability categories come back ordered best
// first. Probabilities are softmax outputs, so they sum to at most 1.
func (p *Predictor) Predict(pixels [][]float32) ([]Prediction, error) {
	flat, err := flattenPixels(pixels)
	if err != nil {
		return nil, err
	}
	input := tensors.FromFlatDataAndDimensions(flat, 1, quickdraw.ImageSize, quickdraw.ImageSize, 1)
	probs := p.exec.MustExec(input)[0].Value().([][]float32)[0]

	// Rank all classes, then keep the top few.
	ranked := make([]float64, len(probs))
	order := make([]int, len(probs))
	for i, v := range probs {
		ranked[i] = float64(v)
	}
	floats.Argsort(ranked, order)

	k := TopPredictions
	if k > len(probs) {
		k = len(probs)
	}
	out := make([]Prediction, 0, k)
	for i := len(order) - 1; i >= len(order)-k; i-- {
		idx := order[i]
		out = append(out, Prediction{Name: p.names[idx], Probability: probs[idx]})
	}
	return out, nil
}

// flattenPixels validates the 28×28 input grid and scales it into [0, 1].
func flattenPixels(pixels [][]float32) ([]float32, error) {
	if len(pixels) != quickdraw.ImageSize {
		return nil, errors.Errorf("want %d pixel rows, got %d", quickdraw.ImageSize, len(pixels))
	}
	flat := make([]float32, 0, quickdraw.ImageBytes)
	for i, row := range pixels {
		if len(row) != quickdraw.ImageSize {
			return nil, errors.Errorf("pixel row %d: want %d columns, got %d", i, quickdraw.ImageSize, len(row))
		}
		for _, v := range row {
			v /= 255
			if v < 0 {
				v = 0
			} else if v > 1 {
				v = 1
			}
			flat = append(flat, v)
		}
	}
	return flat, nil
}

// Package training adapts the sketch dataset and model to the GoMLX training
// loop: a thin trainer, a top-k accuracy evaluator, and a training-curve
// plot. The loop internals (batching, autodiff, the optimizer step) are all
// GoMLX; the only original algorithm here is the ranked-match accuracy in
// metrics.go.
package training

import (
	"io"
	"time"

	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/context/checkpoints"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/gomlx/gomlx/pkg/ml/train/losses"
	"github.com/gomlx/gomlx/pkg/ml/train/optimizers"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/Noofbiz/pictionary/sketchnet"
)

// Config holds the recognized training knobs. Zero values pick defaults.
type Config struct {
	// Epochs to train for (default 3).
	Epochs int

	// LearningRate for Adam (default 1e-3).
	LearningRate float64

	// CheckpointDir, when set, is loaded from before training (resuming any
	// previous run) and saved to after the last epoch.
	CheckpointDir string
}

// EpochStats records one epoch of the training run, used for logging and the
// loss plot.
type EpochStats struct {
	Epoch   int
	Loss    float64
	Elapsed time.Duration
}

// Train fits modelFn's variables (held in ctx) to ds using sparse categorical
// cross-entropy on the logits and an Adam optimizer. ds is expected to yield
// image/label batches the way quickdraw.Dataset does; it is Reset between
// epochs by the loop. Returns per-epoch stats for plotting.
func Train(backend backends.Backend, ctx *context.Context, modelFn sketchnet.ModelFn, ds train.Dataset, cfg Config) ([]EpochStats, error) {
	epochs := cfg.Epochs
	if epochs <= 0 {
		epochs = 3
	}
	lr := cfg.LearningRate
	if lr <= 0 {
		lr = 1e-3
	}

	var checkpoint *checkpoints.Handler
	if cfg.CheckpointDir != "" {
		var err error
		checkpoint, err = checkpoints.Build(ctx).Dir(cfg.CheckpointDir).Keep(3).Done()
		if err != nil {
			return nil, errors.Wrapf(err, "attaching checkpoint dir %s", cfg.CheckpointDir)
		}
	}

	trainer := train.NewTrainer(backend, ctx, modelFn,
		losses.SparseCategoricalCrossEntropyLogits,
		optimizers.Adam().LearningRate(lr).Done(),
		nil, // extra train metrics
		nil) // extra eval metrics
	loop := train.NewLoop(trainer)

	stats := make([]EpochStats, 0, epochs)
	for epoch := 0; epoch < epochs; epoch++ {
		start := time.Now()
		ds.Reset()
		metrics, err := loop.RunEpochs(ds, 1)
		if err != nil {
			return stats, errors.Wrapf(err, "training epoch %d", epoch)
		}
		s := EpochStats{Epoch: epoch, Loss: lossOf(metrics), Elapsed: time.Since(start)}
		stats = append(stats, s)
		klog.Infof("epoch %d: loss=%.4f (%s)", s.Epoch, s.Loss, s.Elapsed.Round(time.Millisecond))
	}

	if checkpoint != nil {
		if err := checkpoint.Save(); err != nil {
			return stats, errors.Wrapf(err, "saving checkpoint to %s", cfg.CheckpointDir)
		}
	}
	return stats, nil
}

// lossOf extracts the batch loss from the trainer's metric tensors. The loss
// is always the trainer's first metric.
func lossOf(metrics []*tensors.Tensor) float64 {
	if len(metrics) == 0 {
		return 0
	}
	switch v := metrics[0].Value().(type) {
	case float32:
		return float64(v)
	case float64:
		return v
	}
	return 0
}

// Evaluate runs the model over every batch of ds and reports top-1 and top-5
// ranked-match accuracy, as percentages.
func Evaluate(backend backends.Backend, ctx *context.Context, modelFn sketchnet.ModelFn, ds train.Dataset) (Accuracy, error) {
	exec := context.MustNewExec(backend, ctx, func(ctx *context.Context, images *graph.Node) *graph.Node {
		return modelFn(ctx, nil, []*graph.Node{images})[0]
	})

	var acc Accuracy
	var hits1, hits5, total int
	ds.Reset()
	for {
		_, inputs, labels, err := ds.Yield()
		if err == io.EOF {
			break
		}
		if err != nil {
			return acc, errors.Wrapf(err, "reading evaluation batch from %s", ds.Name())
		}
		logits := exec.MustExec(inputs[0])[0].Value().([][]float32)
		truth := labels[0].Value().([][]int32)
		batchLabels := make([]int32, len(truth))
		for i, row := range truth {
			batchLabels[i] = row[0]
		}
		hits1 += rankedHits(logits, batchLabels, 1)
		hits5 += rankedHits(logits, batchLabels, 5)
		total += len(logits)
	}
	if total == 0 {
		return acc, errors.Errorf("dataset %s yielded no examples to evaluate", ds.Name())
	}
	acc.Top1 = 100 * float64(hits1) / float64(total)
	acc.Top5 = 100 * float64(hits5) / float64(total)
	return acc, nil
}

// Package sketchnet defines the sketch-classifier model graph and the
// predictor used for live inference. The heavy lifting (autodiff, optimizer
// steps, device execution) is all GoMLX; this package only describes the
// network and adapts raw drawings into its input format.
package sketchnet

import (
	"github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/layers"
	"github.com/gomlx/gomlx/pkg/ml/layers/activations"
)

// ModelFn is the model-graph signature GoMLX trainers expect.
type ModelFn = func(ctx *context.Context, spec any, inputs []*graph.Node) []*graph.Node

// convBlockFilters are the channel widths of the three convolution blocks.
var convBlockFilters = []int{64, 128, 256}

// Graph returns the model function of the fixed sketch-classifier topology:
// three convolution blocks (3×3 kernels, same padding, ReLU, 2× max-pool),
// flattened into a 512-wide hidden dense layer with ReLU and a final dense
// layer producing one logit per category. The topology is deliberately not
// configurable.
//
// inputs[0] must be a [batch, 28, 28, 1] float tensor of unit-scaled pixels;
// the returned slice holds the [batch, numClasses] logits.
func Graph(numClasses int) ModelFn {
	return func(ctx *context.Context, spec any, inputs []*graph.Node) []*graph.Node {
		x := inputs[0]
		batchSize := x.Shape().Dimensions[0]

		for i, filters := range convBlockFilters {
			blockCtx := ctx.Inf("conv_%d", i)
			x = layers.Convolution(blockCtx, x).
				Filters(filters).
				KernelSize(3).
				PadSame().
				Done()
			x = activations.Relu(x)
			x = graph.MaxPool(x).Window(2).Done()
		}

		x = graph.Reshape(x, batchSize, -1)
		x = layers.DenseWithBias(ctx.In("hidden"), x, 512)
		x = activations.Relu(x)
		logits := layers.DenseWithBias(ctx.In("logits"), x, numClasses)
		return []*graph.Node{logits}
	}
}

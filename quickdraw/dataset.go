package quickdraw

import (
	"io"
	"math"
	"math/rand"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/pkg/errors"
)

var _ train.Dataset = (*Dataset)(nil)

// Dataset is an index-based view over a Snapshot that implements the gomlx
// train.Dataset interface (Name/Yield/Reset). Splitting produces two Datasets
// sharing the same backing Snapshot; no sample data is ever copied by a
// split, only row indices.
type Dataset struct {
	// BatchSize used by Yield. Defaults to 32.
	BatchSize int

	snap    *Snapshot
	name    string
	indices []int

	shuffle bool
	rng     *rand.Rand
	next    int
}

// NewDataset wraps snap in a view over all of its rows.
func NewDataset(name string, snap *Snapshot) *Dataset {
	indices := make([]int, snap.NumRows())
	for i := range indices {
		indices[i] = i
	}
	return &Dataset{
		BatchSize: 32,
		snap:      snap,
		name:      name,
		indices:   indices,
	}
}

// Len returns the number of rows in this view.
func (d *Dataset) Len() int { return len(d.indices) }

// Names returns the category names defining the label mapping.
func (d *Dataset) Names() []string { return d.snap.Names }

// At returns one sample: the raw byte row scaled into [0, 1] floats
// (ImageBytes values, a flattened ImageSize×ImageSize single-channel image)
// and its integer label.
func (d *Dataset) At(i int) ([]float32, int32) {
	row := d.snap.Row(d.indices[i])
	image := make([]float32, ImageBytes)
	for j, b := range row {
		image[j] = float32(b) / 255
	}
	return image, d.snap.Labels[d.indices[i]]
}

// Shuffle enables reshuffling of the view's row order on every Reset, seeded
// deterministically. It shuffles once immediately.
func (d *Dataset) Shuffle(seed int64) {
	d.shuffle = true
	d.rng = rand.New(rand.NewSource(seed))
	d.rng.Shuffle(len(d.indices), func(i, j int) {
		d.indices[i], d.indices[j] = d.indices[j], d.indices[i]
	})
}

// Split partitions the view's rows into disjoint training and validation
// views using one random permutation: the validation view takes the
// floor(Len*valFraction) tail positions, the training view the rest. The two
// views cover every row of d exactly once.
func (d *Dataset) Split(valFraction float64, seed int64) (trainDS, valDS *Dataset) {
	n := len(d.indices)
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	nVal := int(math.Floor(float64(n) * valFraction))

	trainIdx := make([]int, 0, n-nVal)
	valIdx := make([]int, 0, nVal)
	for _, p := range perm[:n-nVal] {
		trainIdx = append(trainIdx, d.indices[p])
	}
	for _, p := range perm[n-nVal:] {
		valIdx = append(valIdx, d.indices[p])
	}

	trainDS = &Dataset{BatchSize: d.BatchSize, snap: d.snap, name: d.name + "-train", indices: trainIdx}
	valDS = &Dataset{BatchSize: d.BatchSize, snap: d.snap, name: d.name + "-validation", indices: valIdx}
	return trainDS, valDS
}

// Batch stacks the samples at the given view positions into one image tensor
// of shape [batch, ImageSize, ImageSize, 1] and one label tensor of shape
// [batch, 1].
func (d *Dataset) Batch(positions []int) (images, labels *tensors.Tensor, err error) {
	if len(positions) == 0 {
		return nil, nil, errors.New("empty batch")
	}
	flat := make([]float32, 0, len(positions)*ImageBytes)
	lab := make([]int32, 0, len(positions))
	for _, pos := range positions {
		if pos < 0 || pos >= len(d.indices) {
			return nil, nil, errors.Errorf("batch position %d out of range [0, %d)", pos, len(d.indices))
		}
		image, label := d.At(pos)
		flat = append(flat, image...)
		lab = append(lab, label)
	}
	images = tensors.FromFlatDataAndDimensions(flat, len(positions), ImageSize, ImageSize, 1)
	labels = tensors.FromFlatDataAndDimensions(lab, len(positions), 1)
	return images, labels, nil
}

// Name implements train.Dataset.
func (d *Dataset) Name() string { return d.name }

// Yield implements train.Dataset. It returns the next BatchSize samples as
// one batch, the last batch of an epoch may be smaller, and io.EOF signals
// the end of the epoch.
func (d *Dataset) Yield() (spec any, inputs, labels []*tensors.Tensor, err error) {
	if d.next >= len(d.indices) {
		return nil, nil, nil, io.EOF
	}
	batchSize := d.BatchSize
	if batchSize <= 0 {
		batchSize = 32
	}
	end := d.next + batchSize
	if end > len(d.indices) {
		end = len(d.indices)
	}
	positions := make([]int, 0, end-d.next)
	for i := d.next; i < end; i++ {
		positions = append(positions, i)
	}
	d.next = end

	imgT, labT, err := d.Batch(positions)
	if err != nil {
		return nil, nil, nil, err
	}
	return d, []*tensors.Tensor{imgT}, []*tensors.Tensor{labT}, nil
}

// Reset implements train.Dataset, rewinding the epoch cursor and reshuffling
// when Shuffle was enabled.
func (d *Dataset) Reset() {
	d.next = 0
	if d.shuffle {
		d.rng.Shuffle(len(d.indices), func(i, j int) {
			d.indices[i], d.indices[j] = d.indices[j], d.indices[i]
		})
	}
}

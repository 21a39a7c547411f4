package quickdraw

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// This file builds the in-memory snapshot: every per-category npy file found
// in a directory, truncated to a per-class cap, concatenated into one byte
// matrix plus a label vector. The snapshot is rebuilt in full on every Load;
// there is no incremental update.

const (
	// ImageSize is the side of the square QuickDraw bitmaps.
	ImageSize = 28
	// ImageBytes is the number of pixels (and bytes) per sample row.
	ImageBytes = ImageSize * ImageSize
)

// Snapshot is one fully loaded copy of the on-disk dataset.
//
// Images holds NumRows()*ImageBytes unsigned byte intensities, row-major.
// Labels holds one entry per row, always a valid index into Names. Names is
// the alphabetical file-stem listing that defines the label mapping.
type Snapshot struct {
	Images []byte
	Labels []int32
	Names  []string
}

// NumRows returns the number of samples in the snapshot.
func (s *Snapshot) NumRows() int { return len(s.Labels) }

// Row returns the raw bytes of one sample.
func (s *Snapshot) Row(i int) []byte {
	return s.Images[i*ImageBytes : (i+1)*ImageBytes]
}

// Load reads every "*.npy" file under dir, sorted by filename so labels are
// deterministic, keeping at most maxItemsPerClass rows of each (zero or
// negative keeps everything). A category file may contribute fewer rows than
// the cap; a missing or malformed file aborts the whole load.
func Load(dir string, maxItemsPerClass int) (*Snapshot, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.npy"))
	if err != nil {
		return nil, errors.Wrapf(err, "listing %s", dir)
	}
	if len(paths) == 0 {
		return nil, errors.Errorf("no npy files found in %s", dir)
	}
	sort.Strings(paths)

	snap := &Snapshot{}
	for i, path := range paths {
		data, rows, cols, err := readNPYRows(path, maxItemsPerClass)
		if err != nil {
			return nil, err
		}
		if cols != ImageBytes {
			return nil, errors.Errorf("%s: want %d columns per row, got %d", path, ImageBytes, cols)
		}
		snap.Images = append(snap.Images, data...)
		for r := 0; r < rows; r++ {
			snap.Labels = append(snap.Labels, int32(i))
		}
		snap.Names = append(snap.Names, strings.TrimSuffix(filepath.Base(path), ".npy"))
	}
	return snap, nil
}

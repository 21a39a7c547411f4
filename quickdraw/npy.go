package quickdraw

import (
	"bytes"
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/exp/mmap"
)

// Minimal reader for the NumPy ".npy" container format, covering exactly what
// the QuickDraw bitmap files use: a 2D C-ordered array of unsigned bytes.
// Only the requested row prefix is ever touched, so a small per-class cap
// never pulls a full 100k-row file into memory.
//
// Format reference: a 6-byte magic, a 2-byte version, a little-endian header
// length (2 bytes for v1, 4 bytes for v2/v3) and a Python dict literal with
// the keys "descr", "fortran_order" and "shape", padded so the data that
// follows is 64-byte aligned.

var npyMagic = []byte("\x93NUMPY")

type npyHeader struct {
	descr      string
	fortran    bool
	shape      []int
	dataOffset int64
}

func readNPYHeader(r *mmap.ReaderAt) (npyHeader, error) {
	var h npyHeader

	var pre [10]byte
	if _, err := r.ReadAt(pre[:], 0); err != nil {
		return h, errors.Wrap(err, "reading npy preamble")
	}
	if !bytes.Equal(pre[:6], npyMagic) {
		return h, errors.New("not an npy file: bad magic")
	}

	var headerLen, dictStart int64
	switch major := pre[6]; major {
	case 1:
		headerLen = int64(binary.LittleEndian.Uint16(pre[8:10]))
		dictStart = 10
	case 2, 3:
		var ext [4]byte
		if _, err := r.ReadAt(ext[:], 8); err != nil {
			return h, errors.Wrap(err, "reading npy v2 header length")
		}
		headerLen = int64(binary.LittleEndian.Uint32(ext[:]))
		dictStart = 12
	default:
		return h, errors.Errorf("unsupported npy version %d", major)
	}

	dict := make([]byte, headerLen)
	if _, err := r.ReadAt(dict, dictStart); err != nil {
		return h, errors.Wrap(err, "reading npy header dict")
	}
	h.dataOffset = dictStart + headerLen

	var err error
	if h.descr, err = dictString(string(dict), "descr"); err != nil {
		return h, err
	}
	if h.fortran, err = dictBool(string(dict), "fortran_order"); err != nil {
		return h, err
	}
	if h.shape, err = dictShape(string(dict), "shape"); err != nil {
		return h, err
	}
	return h, nil
}

// dictValue returns the raw text following "'key':" in the header dict.
func dictValue(dict, key string) (string, error) {
	marker := "'" + key + "':"
	i := strings.Index(dict, marker)
	if i < 0 {
		return "", errors.Errorf("npy header missing key %q", key)
	}
	return strings.TrimLeft(dict[i+len(marker):], " "), nil
}

func dictString(dict, key string) (string, error) {
	v, err := dictValue(dict, key)
	if err != nil {
		return "", err
	}
	if len(v) == 0 || v[0] != '\'' {
		return "", errors.Errorf("npy header key %q is not a string", key)
	}
	end := strings.IndexByte(v[1:], '\'')
	if end < 0 {
		return "", errors.Errorf("npy header key %q has an unterminated string", key)
	}
	return v[1 : 1+end], nil
}

func dictBool(dict, key string) (bool, error) {
	v, err := dictValue(dict, key)
	if err != nil {
		return false, err
	}
	switch {
	case strings.HasPrefix(v, "True"):
		return true, nil
	case strings.HasPrefix(v, "False"):
		return false, nil
	}
	return false, errors.Errorf("npy header key %q is not a bool", key)
}

func dictShape(dict, key string) ([]int, error) {
	v, err := dictValue(dict, key)
	if err != nil {
		return nil, err
	}
	if len(v) == 0 || v[0] != '(' {
		return nil, errors.Errorf("npy header key %q is not a tuple", key)
	}
	end := strings.IndexByte(v, ')')
	if end < 0 {
		return nil, errors.Errorf("npy header key %q has an unterminated tuple", key)
	}
	var shape []int
	for _, part := range strings.Split(v[1:end], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		dim, err := strconv.Atoi(part)
		if err != nil {
			return nil, errors.Wrapf(err, "npy header shape dimension %q", part)
		}
		shape = append(shape, dim)
	}
	return shape, nil
}

// readNPYRows reads up to maxRows rows of a 2D uint8 npy file. maxRows <= 0
// means all rows. Returns the raw row-major bytes and the row/column counts.
func readNPYRows(path string, maxRows int) (data []byte, rows, cols int, err error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, 0, 0, errors.Wrapf(err, "opening %s", path)
	}
	defer r.Close()

	h, err := readNPYHeader(r)
	if err != nil {
		return nil, 0, 0, errors.Wrapf(err, "parsing %s", path)
	}
	if h.descr != "|u1" && h.descr != "u1" && h.descr != "uint8" {
		return nil, 0, 0, errors.Errorf("%s: unsupported dtype %q, want unsigned bytes", path, h.descr)
	}
	if h.fortran {
		return nil, 0, 0, errors.Errorf("%s: fortran-ordered arrays are not supported", path)
	}
	if len(h.shape) != 2 {
		return nil, 0, 0, errors.Errorf("%s: want a 2D array, got shape %v", path, h.shape)
	}

	rows, cols = h.shape[0], h.shape[1]
	if maxRows > 0 && rows > maxRows {
		rows = maxRows
	}
	data = make([]byte, rows*cols)
	if rows == 0 {
		return data, rows, cols, nil
	}
	if _, err := r.ReadAt(data, h.dataOffset); err != nil {
		return nil, 0, 0, errors.Wrapf(err, "reading %d rows from %s", rows, path)
	}
	return data, rows, cols, nil
}

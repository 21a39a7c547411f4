package quickdraw

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// npyBytes builds a v1 npy file in memory with the given header dict and raw
// data, padding the dict the way NumPy does.
func npyBytes(t *testing.T, header string, data []byte) []byte {
	t.Helper()
	pad := 64 - (10+len(header)+1)%64
	if pad == 64 {
		pad = 0
	}
	header += strings.Repeat(" ", pad) + "\n"

	var buf bytes.Buffer
	buf.WriteString("\x93NUMPY")
	buf.WriteByte(1)
	buf.WriteByte(0)
	if err := binary.Write(&buf, binary.LittleEndian, uint16(len(header))); err != nil {
		t.Fatalf("writing header length: %v", err)
	}
	buf.WriteString(header)
	buf.Write(data)
	return buf.Bytes()
}

// uint8NPY builds a 2D uint8 npy file whose every byte of row r is fill(r).
func uint8NPY(t *testing.T, rows, cols int, fill func(r int) byte) []byte {
	t.Helper()
	data := make([]byte, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			data[r*cols+c] = fill(r)
		}
	}
	header := fmt.Sprintf("{'descr': '|u1', 'fortran_order': False, 'shape': (%d, %d), }", rows, cols)
	return npyBytes(t, header, data)
}

func writeFile(t *testing.T, path string, body []byte) {
	t.Helper()
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func TestReadNPYRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.npy")
	writeFile(t, path, uint8NPY(t, 10, ImageBytes, func(r int) byte { return byte(r + 1) }))

	data, rows, cols, err := readNPYRows(path, 0)
	if err != nil {
		t.Fatalf("readNPYRows failed: %v", err)
	}
	if rows != 10 || cols != ImageBytes {
		t.Fatalf("got %dx%d, want 10x%d", rows, cols, ImageBytes)
	}
	if len(data) != rows*cols {
		t.Fatalf("got %d bytes, want %d", len(data), rows*cols)
	}
	if data[0] != 1 || data[9*cols] != 10 {
		t.Fatalf("row markers wrong: first=%d last=%d", data[0], data[9*cols])
	}
}

func TestReadNPYRowsCapped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.npy")
	writeFile(t, path, uint8NPY(t, 10, ImageBytes, func(r int) byte { return byte(r) }))

	data, rows, _, err := readNPYRows(path, 4)
	if err != nil {
		t.Fatalf("readNPYRows failed: %v", err)
	}
	if rows != 4 {
		t.Fatalf("got %d rows, want 4", rows)
	}
	if data[3*ImageBytes] != 3 {
		t.Fatalf("last capped row marker = %d, want 3", data[3*ImageBytes])
	}
}

func TestReadNPYRowsRejectsMalformed(t *testing.T) {
	dir := t.TempDir()
	cases := []struct {
		name string
		body []byte
	}{
		{"bad_magic", []byte("NOTNUMPYxxxxxxxxxxxxxxxx")},
		{"fortran", npyBytes(t, "{'descr': '|u1', 'fortran_order': True, 'shape': (2, 784), }", make([]byte, 2*784))},
		{"dtype", npyBytes(t, "{'descr': '<f4', 'fortran_order': False, 'shape': (2, 784), }", make([]byte, 2*784*4))},
		{"one_dim", npyBytes(t, "{'descr': '|u1', 'fortran_order': False, 'shape': (784,), }", make([]byte, 784))},
	}
	for _, tc := range cases {
		path := filepath.Join(dir, tc.name+".npy")
		writeFile(t, path, tc.body)
		if _, _, _, err := readNPYRows(path, 0); err == nil {
			t.Errorf("%s: expected an error, got none", tc.name)
		}
	}
}

func TestReadNPYRowsMissingFile(t *testing.T) {
	if _, _, _, err := readNPYRows(filepath.Join(t.TempDir(), "nope.npy"), 0); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

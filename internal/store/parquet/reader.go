package parquet

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/parquet-go/parquet-go"
)

// Reader reads rows back from a file written by Store.
type Reader struct {
	file   *os.File
	reader *parquet.GenericReader[Row]
	path   string
}

// NewReader opens path.
func NewReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	return &Reader{
		file:   f,
		reader: parquet.NewGenericReader[Row](f),
		path:   path,
	}, nil
}

// ReadAll reads every row of the file.
func (r *Reader) ReadAll() ([]Row, error) {
	rows := make([]Row, r.reader.NumRows())
	n, err := r.reader.Read(rows)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return rows[:n], nil
}

// NumRows returns the total number of rows in the file.
func (r *Reader) NumRows() int64 {
	return r.reader.NumRows()
}

// Close closes the reader.
func (r *Reader) Close() error {
	if err := r.reader.Close(); err != nil {
		r.file.Close()
		return err
	}
	return r.file.Close()
}

// Files lists the Parquet files in dir, oldest first.
func Files(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.parquet"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

// ReadDir reads every row of every file in dir.
func ReadDir(dir string) ([]Row, error) {
	files, err := Files(dir)
	if err != nil {
		return nil, err
	}

	var all []Row
	for _, path := range files {
		r, err := NewReader(path)
		if err != nil {
			return nil, err
		}
		rows, err := r.ReadAll()
		r.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		all = append(all, rows...)
	}
	return all, nil
}

package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// ReadMatrixCSV reads a headerless numeric CSV into a matrix, one CSV row
// per matrix row. Lines starting with '#' are skipped.
func ReadMatrixCSV(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comment = '#'
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(records) == 0 || len(records[0]) == 0 {
		return nil, fmt.Errorf("read %s: no data", path)
	}

	rows, cols := len(records), len(records[0])
	m := mat.NewDense(rows, cols, nil)
	for i, record := range records {
		for j, field := range record {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("read %s row %d col %d: %w", path, i+1, j+1, err)
			}
			m.Set(i, j, v)
		}
	}
	return m, nil
}

func WriteMatrixCSV(path string, m mat.Matrix) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	rows, cols := m.Dims()
	record := make([]string, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			record[j] = strconv.FormatFloat(m.At(i, j), 'g', -1, 64)
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

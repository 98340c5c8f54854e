package client

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Solution is an RTKLIB position line split into its epoch and numeric
// columns. The epoch is either a calendar date and time or a GPS week and
// time of week, depending on the rnx2rtkp output options.
type Solution struct {
	Date    string    `json:"date" yaml:"date"`
	Time    string    `json:"time" yaml:"time"`
	Columns []float64 `json:"columns" yaml:"columns"`
	Raw     string    `json:"raw" yaml:"raw"`
}

// ParseSolution splits a solution line. Only the first two fields are kept
// as text; every other field must be numeric.
func ParseSolution(line string) (*Solution, error) {
	line = strings.TrimSpace(line)
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return nil, errors.New("solution line has fewer than 3 fields")
	}

	cols := make([]float64, 0, len(fields)-2)
	for i, f := range fields[2:] {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("solution column %d: %w", i+1, err)
		}
		cols = append(cols, v)
	}
	return &Solution{
		Date:    fields[0],
		Time:    fields[1],
		Columns: cols,
		Raw:     line,
	}, nil
}

// Column returns the i-th numeric column (0-based) and whether it exists.
func (s *Solution) Column(i int) (float64, bool) {
	if i < 0 || i >= len(s.Columns) {
		return 0, false
	}
	return s.Columns[i], true
}

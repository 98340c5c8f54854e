// Package rinex reads the few RINEX observation header records the relay
// needs: the format version and the time of the first observation.
package rinex

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Header record labels.
const (
	LabelVersionType = "RINEX VERSION / TYPE"
	LabelFirstObs    = "TIME OF FIRST OBS"
	LabelEndOfHeader = "END OF HEADER"
)

// labelColumn is where the header label starts (columns 61-80).
const labelColumn = 60

// maxLineLen bounds a single header line.
const maxLineLen = 1024 * 1024

var (
	// ErrNotRINEX indicates the first line is not a version/type record.
	ErrNotRINEX = errors.New("file is not RINEX")
	// ErrBadVersion indicates an unparsable format version.
	ErrBadVersion = errors.New("cannot determine RINEX version")
	// ErrNoFirstObs indicates the header has no TIME OF FIRST OBS record.
	ErrNoFirstObs = errors.New("no TIME OF FIRST OBS record in header")
	// ErrBadDate indicates a TIME OF FIRST OBS record that does not parse.
	ErrBadDate = errors.New("malformed TIME OF FIRST OBS record")
)

// Header holds the decoded header fields.
type Header struct {
	// Version is the format version, e.g. 2.11 or 3.04.
	Version float64
	// FirstObs is the epoch of the first observation, in UTC.
	FirstObs time.Time
}

// ReadHeader scans r up to END OF HEADER and decodes the records of interest.
func ReadHeader(r io.Reader) (*Header, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLineLen)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("read header: %w", err)
		}
		return nil, ErrNotRINEX
	}
	first := sc.Text()
	if !hasLabel(first, LabelVersionType) {
		return nil, ErrNotRINEX
	}
	fields := strings.Fields(first)
	if len(fields) == 0 {
		return nil, ErrBadVersion
	}
	version, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrBadVersion, fields[0])
	}

	h := &Header{Version: version}
	for sc.Scan() {
		line := sc.Text()
		switch {
		case hasLabel(line, LabelFirstObs):
			t, err := parseFirstObs(line)
			if err != nil {
				return nil, err
			}
			h.FirstObs = t
			return h, nil
		case hasLabel(line, LabelEndOfHeader):
			return nil, ErrNoFirstObs
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	return nil, ErrNoFirstObs
}

// ObservationDate returns the UTC calendar date of the first observation
// recorded in the header of the file at path.
func ObservationDate(path string) (time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, err
	}
	defer func() { _ = f.Close() }()

	h, err := ReadHeader(f)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := h.FirstObs.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}

// hasLabel matches the label in the label columns, falling back to the
// whole line for files written with short, unpadded records.
func hasLabel(line, label string) bool {
	if len(line) > labelColumn && strings.Contains(line[labelColumn:], label) {
		return true
	}
	return strings.Contains(line, label)
}

func parseFirstObs(line string) (time.Time, error) {
	data := line
	if idx := strings.Index(line, LabelFirstObs); idx >= 0 {
		data = line[:idx]
	}
	fields := strings.Fields(data)
	if len(fields) < 3 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadDate, strings.TrimSpace(line))
	}

	// year, month, day are required; hour and minute default to zero.
	var nums [5]int
	for i := 0; i < len(nums) && i < len(fields); i++ {
		n, err := strconv.Atoi(fields[i])
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: field %d %q", ErrBadDate, i+1, fields[i])
		}
		nums[i] = n
	}
	var sec float64
	if len(fields) > 5 {
		s, err := strconv.ParseFloat(fields[5], 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: seconds %q", ErrBadDate, fields[5])
		}
		sec = s
	}

	year, month, day := expandYear(nums[0]), time.Month(nums[1]), nums[2]
	date := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if date.Year() != year || date.Month() != month || date.Day() != day {
		return time.Time{}, fmt.Errorf("%w: %04d-%02d-%02d", ErrBadDate, year, int(month), day)
	}
	return date.Add(time.Duration(nums[3])*time.Hour +
		time.Duration(nums[4])*time.Minute +
		time.Duration(sec*float64(time.Second))), nil
}

// expandYear maps two-digit years the way RINEX 2 does (80-99 → 19xx).
func expandYear(y int) int {
	switch {
	case y >= 100:
		return y
	case y >= 80:
		return 1900 + y
	default:
		return 2000 + y
	}
}

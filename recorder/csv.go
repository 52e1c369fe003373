// Package recorder persists classification results.
package recorder

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"

	iface "FaceStabilityServer/interface"
)

// FormatScore renders a score with the shortest digits that identify the
// float32, always with a fractional part: 0.3 is "0.3" and 1 is "1.0".
// Magnitudes below 1e-3 or from 1e7 up use the exponent form "1.0E-5".
func FormatScore(score float32) string {
	f := float64(score)
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	if abs := math.Abs(f); abs == 0 || (abs >= 1e-3 && abs < 1e7) {
		return withFraction(strconv.FormatFloat(f, 'f', -1, 32))
	}
	mantissa, exp, _ := strings.Cut(strconv.FormatFloat(f, 'E', -1, 32), "E")
	e, _ := strconv.Atoi(exp)
	return withFraction(mantissa) + "E" + strconv.Itoa(e)
}

func withFraction(s string) string {
	if strings.Contains(s, ".") {
		return s
	}
	return s + ".0"
}

// CSV appends "<label>,<score>" lines to a file. The file is opened, written,
// flushed and closed on every call, no handle is kept between records.
type CSV struct {
	mu   sync.Mutex
	path string
}

func NewCSV(path string) *CSV {
	return &CSV{path: path}
}

func (c *CSV) Path() string { return c.path }

func (c *CSV) Append(label iface.Label, score float32) (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := os.OpenFile(c.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", c.path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", c.path, cerr)
		}
	}()

	w := bufio.NewWriter(f)
	if _, err = w.WriteString(string(label) + "," + FormatScore(score) + "\n"); err != nil {
		return fmt.Errorf("write %s: %w", c.path, err)
	}
	if err = w.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", c.path, err)
	}
	return nil
}

// ReadCSV loads every record in the log at path. A missing file is an empty
// log.
func ReadCSV(path string) ([]iface.Record, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseCSV(f)
}

func parseCSV(r io.Reader) ([]iface.Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 2
	var out []iface.Record
	for {
		row, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		score, err := strconv.ParseFloat(row[1], 32)
		if err != nil {
			return out, fmt.Errorf("bad score %q: %w", row[1], err)
		}
		out = append(out, iface.Record{Label: iface.Label(row[0]), Score: float32(score)})
	}
}

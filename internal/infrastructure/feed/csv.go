package feed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/vitos/momentum_backtest/internal/frame"
)

// CSVFeed reads daily history exported as Date,Open,High,Low,Close[,...].
// The frame it returns is flat and keeps the header names as written.
type CSVFeed struct {
	path string
}

func NewCSVFeed(path string) *CSVFeed {
	return &CSVFeed{path: path}
}

func (c *CSVFeed) FetchHistory(ctx context.Context, symbol string, start, end time.Time) (*frame.Frame, error) {
	f, err := os.Open(c.path)
	if err != nil {
		return nil, fmt.Errorf("open history file: %w", err)
	}
	defer f.Close()

	return ReadCSV(ctx, f, start, end)
}

// ReadCSV parses history rows whose date falls in [start, end). Blank or
// "null" cells become NaN.
func ReadCSV(ctx context.Context, r io.Reader, start, end time.Time) (*frame.Frame, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) < 2 || !strings.EqualFold(strings.TrimSpace(header[0]), "date") {
		return nil, fmt.Errorf("first column must be Date, got %q", strings.Join(header, ","))
	}
	fields := header[1:]

	var index []time.Time
	cols := make([][]float64, len(fields))
	line := 1
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		date, err := parseDate(record[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if date.Before(start) || !date.Before(end) {
			continue
		}
		index = append(index, date)
		for i := range fields {
			v, err := parseCell(record[i+1])
			if err != nil {
				return nil, fmt.Errorf("line %d, column %s: %w", line, fields[i], err)
			}
			cols[i] = append(cols[i], v)
		}
	}

	out := frame.New(index)
	for i, field := range fields {
		if err := out.Set(frame.Key{Field: strings.TrimSpace(field)}, cols[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	// some exports carry a time part
	if len(s) > len("2006-01-02") {
		s = s[:len("2006-01-02")]
	}
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return d, nil
}

func parseCell(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "nan") {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

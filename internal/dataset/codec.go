package dataset

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
)

// header is the first line of a dataset stream.
type header struct {
	Index   []string `json:"index"`
	Columns []string `json:"columns"`
}

// Decode reads a dataset from its newline-delimited JSON form: a header
// object naming the two index levels and the data columns, followed by one
// array per row holding the time key, the unit key, then one value per
// column. A null value decodes as NaN.
func Decode(r io.Reader) (*Dataset, error) {
	dec := json.NewDecoder(bufio.NewReaderSize(r, 1<<20))

	var h header
	if err := dec.Decode(&h); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("decode dataset: empty stream")
		}
		return nil, fmt.Errorf("decode dataset header: %w", err)
	}
	if len(h.Index) != 2 {
		return nil, fmt.Errorf("decode dataset header: want 2 index levels, got %d", len(h.Index))
	}

	b, err := NewBuilder([2]string{h.Index[0], h.Index[1]}, h.Columns)
	if err != nil {
		return nil, fmt.Errorf("decode dataset header: %w", err)
	}

	width := 2 + len(h.Columns)
	values := make([]float64, len(h.Columns))
	var row []*float64
	for line := 2; ; line++ {
		row = row[:0]
		if err := dec.Decode(&row); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("decode dataset line %d: %w", line, err)
		}
		if len(row) != width {
			return nil, fmt.Errorf("decode dataset line %d: want %d fields, got %d", line, width, len(row))
		}

		t, err := key(row[0])
		if err != nil {
			return nil, fmt.Errorf("decode dataset line %d: %s: %w", line, h.Index[0], err)
		}
		u, err := key(row[1])
		if err != nil {
			return nil, fmt.Errorf("decode dataset line %d: %s: %w", line, h.Index[1], err)
		}
		for i, v := range row[2:] {
			if v == nil {
				values[i] = math.NaN()
			} else {
				values[i] = *v
			}
		}
		if err := b.Append(t, u, values); err != nil {
			return nil, fmt.Errorf("decode dataset line %d: %w", line, err)
		}
	}

	return b.Build(), nil
}

func key(v *float64) (int64, error) {
	if v == nil {
		return 0, errors.New("null key")
	}
	if *v != math.Trunc(*v) || math.IsInf(*v, 0) {
		return 0, fmt.Errorf("key %v is not an integer", *v)
	}
	return int64(*v), nil
}

// Encode writes d in the form Decode reads. NaN values are written as null.
func Encode(w io.Writer, d *Dataset) error {
	bw := bufio.NewWriterSize(w, 1<<16)

	h, err := json.Marshal(header{Index: d.indexNames[:], Columns: d.columns})
	if err != nil {
		return fmt.Errorf("encode dataset header: %w", err)
	}
	bw.Write(h)
	bw.WriteByte('\n')

	var buf []byte
	for i := 0; i < d.Len(); i++ {
		buf = append(buf[:0], '[')
		buf = strconv.AppendInt(buf, int64(d.times[i]), 10)
		buf = append(buf, ',')
		buf = strconv.AppendInt(buf, int64(d.units[i]), 10)
		for c := range d.columns {
			buf = append(buf, ',')
			v := d.values[c][i]
			switch {
			case math.IsNaN(v):
				buf = append(buf, "null"...)
			case math.IsInf(v, 0):
				return fmt.Errorf("encode dataset row %d: column %q: infinite value", i, d.columns[c])
			default:
				buf = strconv.AppendFloat(buf, v, 'g', -1, 64)
			}
		}
		buf = append(buf, ']', '\n')
		if _, err := bw.Write(buf); err != nil {
			return fmt.Errorf("encode dataset row %d: %w", i, err)
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("encode dataset: %w", err)
	}
	return nil
}

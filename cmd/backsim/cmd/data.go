package cmd

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/backsim/market"
	"github.com/rustyeddy/backsim/timeline"
)

func parseResolution(name string) (market.Resolution, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "S1":
		return market.Second, nil
	case "M1":
		return market.Minute, nil
	case "H1":
		return market.Hour, nil
	case "D1":
		return market.Day, nil
	}
	return 0, fmt.Errorf("unknown resolution %q (supported: S1, M1, H1, D1)", name)
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	t, err2 := time.Parse(time.RFC3339Nano, s)
	if err2 != nil {
		return time.Time{}, fmt.Errorf("bad time %q: %w", s, err)
	}
	return t, nil
}

// loadTickStream materializes a tick CSV (time,instrument,bid,ask with
// optional bid_size,ask_size columns) into a replayable stream.
func loadTickStream(symbol, path string) (timeline.Stream, error) {
	rows, err := readCSVRows(path)
	if err != nil {
		return nil, err
	}

	var ticks []market.Tick
	for _, row := range rows {
		if len(row) < 4 {
			return nil, fmt.Errorf("bad tick row (need time,instrument,bid,ask): %v", row)
		}
		if strings.TrimSpace(row[1]) != symbol {
			continue
		}
		ts, err := parseTime(row[0])
		if err != nil {
			return nil, err
		}
		bid, err := decimal.NewFromString(strings.TrimSpace(row[2]))
		if err != nil {
			return nil, fmt.Errorf("bad bid %q: %w", row[2], err)
		}
		ask, err := decimal.NewFromString(strings.TrimSpace(row[3]))
		if err != nil {
			return nil, fmt.Errorf("bad ask %q: %w", row[3], err)
		}
		t := market.Tick{Symbol: symbol, Bid: bid, Ask: ask, Time: ts}
		if len(row) >= 6 {
			if t.BidSize, err = decimal.NewFromString(strings.TrimSpace(row[4])); err != nil {
				return nil, fmt.Errorf("bad bid size %q: %w", row[4], err)
			}
			if t.AskSize, err = decimal.NewFromString(strings.TrimSpace(row[5])); err != nil {
				return nil, fmt.Errorf("bad ask size %q: %w", row[5], err)
			}
		}
		ticks = append(ticks, t)
	}
	if len(ticks) == 0 {
		return nil, fmt.Errorf("no ticks for %s in %s", symbol, path)
	}
	return timeline.NewTickStream(symbol, ticks), nil
}

// loadBarStream materializes a bar CSV
// (time,instrument,open,high,low,close with an optional volume column).
func loadBarStream(symbol string, res market.Resolution, path string) (timeline.Stream, error) {
	rows, err := readCSVRows(path)
	if err != nil {
		return nil, err
	}

	var bars []market.Bar
	for _, row := range rows {
		if len(row) < 6 {
			return nil, fmt.Errorf("bad bar row (need time,instrument,open,high,low,close): %v", row)
		}
		if strings.TrimSpace(row[1]) != symbol {
			continue
		}
		ts, err := parseTime(row[0])
		if err != nil {
			return nil, err
		}
		b := market.Bar{Symbol: symbol, Resolution: res, Time: ts}
		for i, dst := range []*decimal.Decimal{&b.Open, &b.High, &b.Low, &b.Close} {
			v, err := decimal.NewFromString(strings.TrimSpace(row[2+i]))
			if err != nil {
				return nil, fmt.Errorf("bad price %q: %w", row[2+i], err)
			}
			*dst = v
		}
		if len(row) >= 7 {
			if b.Volume, err = decimal.NewFromString(strings.TrimSpace(row[6])); err != nil {
				return nil, fmt.Errorf("bad volume %q: %w", row[6], err)
			}
		}
		bars = append(bars, b)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("no bars for %s in %s", symbol, path)
	}
	return timeline.NewBarStream(symbol, bars), nil
}

// readCSVRows reads every row, skipping a header whose first column is
// "time".
func readCSVRows(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var rows [][]string
	first := true
	for {
		row, err := r.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		if len(row) == 0 {
			continue
		}
		if first {
			first = false
			if strings.EqualFold(strings.TrimSpace(row[0]), "time") {
				continue
			}
		}
		rows = append(rows, row)
	}
}

package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"
)

// CSV writes orders, fills and the equity curve to three CSV files,
// flushing after every record so a crashed run still leaves usable
// output.
type CSV struct {
	orders, fills, equity *csv.Writer
	of, ff, ef            *os.File
}

func NewCSV(ordersPath, fillsPath, equityPath string) (*CSV, error) {
	of, err := os.Create(ordersPath)
	if err != nil {
		return nil, err
	}
	ff, err := os.Create(fillsPath)
	if err != nil {
		of.Close()
		return nil, err
	}
	ef, err := os.Create(equityPath)
	if err != nil {
		of.Close()
		ff.Close()
		return nil, err
	}

	j := &CSV{
		orders: csv.NewWriter(of),
		fills:  csv.NewWriter(ff),
		equity: csv.NewWriter(ef),
		of:     of, ff: ff, ef: ef,
	}

	headers := []struct {
		w   *csv.Writer
		row []string
	}{
		{j.orders, []string{"run_id", "order_id", "symbol", "side", "type", "status", "quantity", "filled_qty", "avg_fill_price", "limit_price", "trigger_price", "reason", "tag", "submitted_at", "closed_at"}},
		{j.fills, []string{"run_id", "fill_id", "order_id", "symbol", "side", "price", "quantity", "commission", "liquidity", "time"}},
		{j.equity, []string{"run_id", "time", "balance", "equity", "unrealized_pl", "margin_used", "free_margin", "margin_level"}},
	}
	for _, h := range headers {
		if err := h.w.Write(h.row); err != nil {
			j.Close()
			return nil, err
		}
		h.w.Flush()
		if err := h.w.Error(); err != nil {
			j.Close()
			return nil, err
		}
	}
	return j, nil
}

func (j *CSV) RecordOrder(r OrderRecord) error {
	err := j.orders.Write([]string{
		r.RunID, r.OrderID, r.Symbol, r.Side, r.Type, r.Status,
		f(r.Quantity), f(r.FilledQty), f(r.AvgFillPrice),
		f(r.LimitPrice), f(r.TriggerPrice),
		r.Reason, r.Tag,
		ts(r.SubmittedAt), ts(r.ClosedAt),
	})
	if err != nil {
		return err
	}
	j.orders.Flush()
	return j.orders.Error()
}

func (j *CSV) RecordFill(r FillRecord) error {
	err := j.fills.Write([]string{
		r.RunID, r.FillID, r.OrderID, r.Symbol, r.Side,
		f(r.Price), f(r.Quantity), f(r.Commission),
		r.Liquidity, ts(r.Time),
	})
	if err != nil {
		return err
	}
	j.fills.Flush()
	return j.fills.Error()
}

func (j *CSV) RecordEquity(r EquitySnapshot) error {
	err := j.equity.Write([]string{
		r.RunID, ts(r.Time),
		f(r.Balance), f(r.Equity), f(r.UnrealizedPL),
		f(r.MarginUsed), f(r.FreeMargin), f(r.MarginLevel),
	})
	if err != nil {
		return err
	}
	j.equity.Flush()
	return j.equity.Error()
}

func (j *CSV) Close() error {
	for _, w := range []*csv.Writer{j.orders, j.fills, j.equity} {
		w.Flush()
		if err := w.Error(); err != nil {
			return err
		}
	}
	for _, file := range []*os.File{j.of, j.ff, j.ef} {
		if err := file.Close(); err != nil {
			return err
		}
	}
	return nil
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}

func ts(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

package journal

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite persists run records for later querying. ULID run identifiers
// keep rows from independent runs apart and time-sortable.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordOrder(r OrderRecord) error {
	_, err := j.db.Exec(`
		INSERT OR REPLACE INTO orders
		(run_id, order_id, symbol, side, type, status, quantity, filled_qty,
		 avg_fill_price, limit_price, trigger_price, reason, tag, submitted_at, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.OrderID, r.Symbol, r.Side, r.Type, r.Status,
		r.Quantity, r.FilledQty, r.AvgFillPrice, r.LimitPrice, r.TriggerPrice,
		r.Reason, r.Tag, r.SubmittedAt, nullTime(r.ClosedAt),
	)
	return err
}

func (j *SQLite) RecordFill(r FillRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO fills
		(run_id, fill_id, order_id, symbol, side, price, quantity, commission, liquidity, time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.FillID, r.OrderID, r.Symbol, r.Side,
		r.Price, r.Quantity, r.Commission, r.Liquidity, r.Time,
	)
	return err
}

func (j *SQLite) RecordEquity(r EquitySnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO equity
		(run_id, time, balance, equity, unrealized_pl, margin_used, free_margin, margin_level)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Time, r.Balance, r.Equity, r.UnrealizedPL,
		r.MarginUsed, r.FreeMargin, r.MarginLevel,
	)
	return err
}

// ListFillsByOrder returns the fills of one order in execution order.
func (j *SQLite) ListFillsByOrder(runID, orderID string) ([]FillRecord, error) {
	rows, err := j.db.Query(`
		SELECT run_id, fill_id, order_id, symbol, side, price, quantity, commission, liquidity, time
		FROM fills WHERE run_id = ? AND order_id = ? ORDER BY fill_id`,
		runID, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FillRecord
	for rows.Next() {
		var r FillRecord
		if err := rows.Scan(&r.RunID, &r.FillID, &r.OrderID, &r.Symbol, &r.Side,
			&r.Price, &r.Quantity, &r.Commission, &r.Liquidity, &r.Time); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListOrdersByRun returns a run's orders in submission order.
func (j *SQLite) ListOrdersByRun(runID string) ([]OrderRecord, error) {
	rows, err := j.db.Query(`
		SELECT run_id, order_id, symbol, side, type, status, quantity, filled_qty,
		       avg_fill_price, limit_price, trigger_price, reason, tag, submitted_at, closed_at
		FROM orders WHERE run_id = ? ORDER BY order_id`,
		runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderRecord
	for rows.Next() {
		var r OrderRecord
		var closed sql.NullTime
		if err := rows.Scan(&r.RunID, &r.OrderID, &r.Symbol, &r.Side, &r.Type, &r.Status,
			&r.Quantity, &r.FilledQty, &r.AvgFillPrice, &r.LimitPrice, &r.TriggerPrice,
			&r.Reason, &r.Tag, &r.SubmittedAt, &closed); err != nil {
			return nil, err
		}
		if closed.Valid {
			r.ClosedAt = closed.Time
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (j *SQLite) Close() error { return j.db.Close() }

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

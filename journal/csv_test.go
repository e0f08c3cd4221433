package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	fh, err := os.Open(path)
	require.NoError(t, err)
	defer fh.Close()
	rows, err := csv.NewReader(fh).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVWritesHeadersAndRows(t *testing.T) {
	dir := t.TempDir()
	op := filepath.Join(dir, "orders.csv")
	fp := filepath.Join(dir, "fills.csv")
	ep := filepath.Join(dir, "equity.csv")

	j, err := NewCSV(op, fp, ep)
	require.NoError(t, err)

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, j.RecordOrder(OrderRecord{
		RunID: "run-1", OrderID: "O-000001", Symbol: "EUR_USD",
		Side: "BUY", Type: "MARKET", Status: "FILLED",
		Quantity: 1000, FilledQty: 1000, AvgFillPrice: 1.1001,
		SubmittedAt: now, ClosedAt: now,
	}))
	require.NoError(t, j.RecordFill(FillRecord{
		RunID: "run-1", FillID: "F-000001", OrderID: "O-000001",
		Symbol: "EUR_USD", Side: "BUY", Price: 1.1001, Quantity: 1000,
		Commission: 0.02, Liquidity: "TAKER", Time: now,
	}))
	require.NoError(t, j.RecordEquity(EquitySnapshot{
		RunID: "run-1", Time: now, Balance: 100000, Equity: 100000,
	}))
	require.NoError(t, j.Close())

	orders := readCSV(t, op)
	require.Len(t, orders, 2)
	assert.Equal(t, "run_id", orders[0][0])
	assert.Equal(t, "O-000001", orders[1][1])
	assert.Equal(t, "1000.000000", orders[1][6])

	fills := readCSV(t, fp)
	require.Len(t, fills, 2)
	assert.Equal(t, "F-000001", fills[1][1])
	assert.Equal(t, "1.100100", fills[1][5])

	equity := readCSV(t, ep)
	require.Len(t, equity, 2)
	assert.Equal(t, "100000.000000", equity[1][2])
}

func TestCSVBlankZeroTimes(t *testing.T) {
	dir := t.TempDir()
	j, err := NewCSV(
		filepath.Join(dir, "orders.csv"),
		filepath.Join(dir, "fills.csv"),
		filepath.Join(dir, "equity.csv"),
	)
	require.NoError(t, err)

	require.NoError(t, j.RecordOrder(OrderRecord{
		RunID: "run-1", OrderID: "O-000001", Symbol: "EUR_USD",
		Side: "BUY", Type: "LIMIT", Status: "ACCEPTED", Quantity: 100,
		SubmittedAt: time.Now(),
	}))
	require.NoError(t, j.Close())

	rows := readCSV(t, filepath.Join(dir, "orders.csv"))
	require.Len(t, rows, 2)
	assert.Equal(t, "", rows[1][14])
}

func TestMultiFansOut(t *testing.T) {
	a, b := NewMemory(), NewMemory()
	m := Multi{a, b}

	require.NoError(t, m.RecordFill(FillRecord{RunID: "r", FillID: "F-000001"}))
	require.NoError(t, m.Close())

	assert.Len(t, a.Fills(), 1)
	assert.Len(t, b.Fills(), 1)
}

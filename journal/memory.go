package journal

// Memory keeps records in order of arrival. The backtest engine uses it
// to expose the full order/fill history at completion.
type Memory struct {
	orders []OrderRecord
	fills  []FillRecord
	equity []EquitySnapshot
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) RecordOrder(r OrderRecord) error {
	m.orders = append(m.orders, r)
	return nil
}

func (m *Memory) RecordFill(r FillRecord) error {
	m.fills = append(m.fills, r)
	return nil
}

func (m *Memory) RecordEquity(r EquitySnapshot) error {
	m.equity = append(m.equity, r)
	return nil
}

func (m *Memory) Close() error { return nil }

func (m *Memory) Orders() []OrderRecord    { return m.orders }
func (m *Memory) Fills() []FillRecord      { return m.fills }
func (m *Memory) Equity() []EquitySnapshot { return m.equity }

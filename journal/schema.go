package journal

const schema = `
CREATE TABLE IF NOT EXISTS orders (
	run_id TEXT NOT NULL,
	order_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	type TEXT NOT NULL,
	status TEXT NOT NULL,
	quantity REAL NOT NULL,
	filled_qty REAL NOT NULL,
	avg_fill_price REAL NOT NULL,
	limit_price REAL NOT NULL,
	trigger_price REAL NOT NULL,
	reason TEXT NOT NULL,
	tag TEXT NOT NULL,
	submitted_at DATETIME NOT NULL,
	closed_at DATETIME,
	PRIMARY KEY (run_id, order_id)
);

CREATE TABLE IF NOT EXISTS fills (
	run_id TEXT NOT NULL,
	fill_id TEXT NOT NULL,
	order_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	price REAL NOT NULL,
	quantity REAL NOT NULL,
	commission REAL NOT NULL,
	liquidity TEXT NOT NULL,
	time DATETIME NOT NULL,
	PRIMARY KEY (run_id, fill_id)
);

CREATE TABLE IF NOT EXISTS equity (
	run_id TEXT NOT NULL,
	time DATETIME NOT NULL,
	balance REAL NOT NULL,
	equity REAL NOT NULL,
	unrealized_pl REAL NOT NULL,
	margin_used REAL NOT NULL,
	free_margin REAL NOT NULL,
	margin_level REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fills_order ON fills(run_id, order_id);
CREATE INDEX IF NOT EXISTS idx_equity_time ON equity(run_id, time);
`

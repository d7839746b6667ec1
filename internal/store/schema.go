// Package store keeps imported datasets in a local SQLite database. It is the
// record source the engines read from and the sink their decisions are
// written to; every write is committed on its own.
package store

// schema creates all tables if they don't exist.
const schema = `
-- One row per imported dataset.
CREATE TABLE IF NOT EXISTS datasets (
    name TEXT PRIMARY KEY,
    format TEXT NOT NULL,              -- parser that produced it
    convention TEXT NOT NULL,          -- amount sign convention
    imported_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS transactions (
    dataset TEXT NOT NULL REFERENCES datasets(name) ON DELETE CASCADE,
    key TEXT NOT NULL,                 -- native id, or row index
    position INTEGER NOT NULL,         -- order in the imported file
    native_id TEXT NOT NULL DEFAULT '',
    row_index INTEGER,                 -- NULL unless keyed by position
    date TEXT NOT NULL,                -- YYYY-MM-DD
    amount TEXT NOT NULL,              -- decimal string
    type TEXT NOT NULL DEFAULT '',
    payee TEXT NOT NULL DEFAULT '',
    account_name TEXT NOT NULL DEFAULT '',
    category TEXT NOT NULL DEFAULT '',
    tags TEXT NOT NULL DEFAULT '',     -- tab separated
    notes TEXT NOT NULL DEFAULT '',
    pending INTEGER NOT NULL DEFAULT 0,
    has_children INTEGER NOT NULL DEFAULT 0,
    parent_id TEXT NOT NULL DEFAULT '',
    classification TEXT NOT NULL DEFAULT '',
    related_key TEXT NOT NULL DEFAULT '',
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (dataset, key)
);

CREATE INDEX IF NOT EXISTS idx_transactions_date
    ON transactions(dataset, date);
`

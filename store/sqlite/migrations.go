package sqlite

// schema is applied by Migrate. Every statement is idempotent so migration
// can run on every startup.
//
// The unique indexes are load-bearing: they arbitrate concurrent writers for
// account names, transaction idempotency keys, and period locks. Drivers
// surface their violations as ledger.ErrAlreadyExists.
const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id          TEXT PRIMARY KEY,
	tenant_id   TEXT NOT NULL,
	name        TEXT NOT NULL,
	type        TEXT NOT NULL,
	currency    TEXT NOT NULL,
	system      BOOLEAN NOT NULL DEFAULT FALSE,
	code        TEXT NOT NULL DEFAULT '',
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_tenant_name
	ON accounts(tenant_id, name);
CREATE INDEX IF NOT EXISTS idx_accounts_tenant_type
	ON accounts(tenant_id, type);

-- Append-only: rows are never updated (except reversed_by, set once) and
-- never deleted.
CREATE TABLE IF NOT EXISTS transactions (
	id              TEXT PRIMARY KEY,
	tenant_id       TEXT NOT NULL,
	occurred_at     TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	vendor          TEXT NOT NULL DEFAULT '',
	idempotency_key TEXT NOT NULL,
	created_by      TEXT NOT NULL,
	reversal_of     TEXT,
	reversed_by     TEXT,
	created_at      TEXT NOT NULL,
	updated_at      TEXT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_tenant_idempotency
	ON transactions(tenant_id, idempotency_key);
CREATE INDEX IF NOT EXISTS idx_transactions_tenant_occurred
	ON transactions(tenant_id, occurred_at);
CREATE INDEX IF NOT EXISTS idx_transactions_reversal_of
	ON transactions(reversal_of) WHERE reversal_of IS NOT NULL;

CREATE TABLE IF NOT EXISTS postings (
	id             TEXT PRIMARY KEY,
	transaction_id TEXT NOT NULL REFERENCES transactions(id),
	account_id     TEXT NOT NULL REFERENCES accounts(id),
	direction      TEXT NOT NULL CHECK (direction IN ('DEBIT', 'CREDIT')),
	amount_minor   INTEGER NOT NULL,
	currency       TEXT NOT NULL,
	category       TEXT NOT NULL DEFAULT '',
	memo           TEXT NOT NULL DEFAULT '',
	created_at     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_postings_transaction
	ON postings(transaction_id);
CREATE INDEX IF NOT EXISTS idx_postings_account
	ON postings(account_id);

CREATE TABLE IF NOT EXISTS period_locks (
	id         TEXT PRIMARY KEY,
	tenant_id  TEXT NOT NULL,
	period     TEXT NOT NULL,
	locked_by  TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_period_locks_tenant_period
	ON period_locks(tenant_id, period);
`

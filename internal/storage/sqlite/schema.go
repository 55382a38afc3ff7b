package sqlite

const schema = `
-- Lifecycles table (one row per repo/issue pair)
CREATE TABLE IF NOT EXISTS lifecycles (
    repo TEXT NOT NULL,
    issue_number INTEGER NOT NULL CHECK(issue_number > 0),
    current_state TEXT NOT NULL DEFAULT 'new',
    spec_id TEXT,
    pr_number INTEGER,
    locked_by TEXT,
    locked_at DATETIME,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    version INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (repo, issue_number)
);

CREATE INDEX IF NOT EXISTS idx_lifecycles_state ON lifecycles(current_state);
CREATE INDEX IF NOT EXISTS idx_lifecycles_repo ON lifecycles(repo);

-- Transitions table (append-only audit log)
CREATE TABLE IF NOT EXISTS transitions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    repo TEXT NOT NULL,
    issue_number INTEGER NOT NULL,
    seq INTEGER NOT NULL,
    from_state TEXT NOT NULL,
    to_state TEXT NOT NULL,
    actor TEXT NOT NULL,
    reason TEXT,
    metadata TEXT,
    forced INTEGER NOT NULL DEFAULT 0,
    timestamp DATETIME NOT NULL,
    UNIQUE (repo, issue_number, seq),
    FOREIGN KEY (repo, issue_number) REFERENCES lifecycles(repo, issue_number) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_transitions_issue ON transitions(repo, issue_number);

-- Overrides table (append-only audit records)
CREATE TABLE IF NOT EXISTS overrides (
    id TEXT PRIMARY KEY,
    override_type TEXT NOT NULL,
    issue_number INTEGER NOT NULL,
    pr_number INTEGER,
    repo TEXT NOT NULL,
    actor TEXT NOT NULL,
    reason TEXT,
    original_state TEXT NOT NULL,
    new_state TEXT NOT NULL,
    metadata TEXT,
    created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_overrides_issue ON overrides(issue_number);
CREATE INDEX IF NOT EXISTS idx_overrides_repo ON overrides(repo);

-- Grace periods table (one active entry per issue number)
CREATE TABLE IF NOT EXISTS grace_periods (
    issue_number INTEGER PRIMARY KEY,
    trigger_label TEXT NOT NULL,
    triggered_by TEXT NOT NULL,
    triggered_at DATETIME NOT NULL,
    expires_at DATETIME NOT NULL,
    cancelled INTEGER NOT NULL DEFAULT 0,
    cancelled_by TEXT,
    cancelled_at DATETIME
);

-- Metadata table (internal state like store format version)
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

package postgres

// schema is idempotent and applied on every Open.
const schema = `
CREATE TABLE IF NOT EXISTS persons (
    id       BIGSERIAL PRIMARY KEY,
    name     TEXT NOT NULL,
    name_key TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS actions (
    id       BIGSERIAL PRIMARY KEY,
    kind     TEXT NOT NULL CHECK (kind IN ('reward', 'punishment')),
    name     TEXT NOT NULL,
    name_key TEXT NOT NULL,
    value    BIGINT NOT NULL,
    UNIQUE (kind, name_key),
    UNIQUE (kind, id)
);

CREATE TABLE IF NOT EXISTS assignments (
    id          BIGSERIAL PRIMARY KEY,
    person_id   BIGINT NOT NULL REFERENCES persons (id),
    item_type   TEXT NOT NULL,
    item_id     BIGINT NOT NULL,
    item_name   TEXT NOT NULL,
    item_value  BIGINT NOT NULL,
    assigned_at TIMESTAMPTZ NOT NULL,
    FOREIGN KEY (item_type, item_id) REFERENCES actions (kind, id)
);

CREATE INDEX IF NOT EXISTS idx_assignments_person ON assignments (person_id);
CREATE INDEX IF NOT EXISTS idx_assignments_assigned_at ON assignments (assigned_at);
CREATE INDEX IF NOT EXISTS idx_assignments_item ON assignments (item_type, item_id);
`

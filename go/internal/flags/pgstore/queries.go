package pgstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/sqlc-dev/pqtype"
)

// Schema creates the flag table. Applied by Store.Migrate.
const Schema = `
CREATE TABLE IF NOT EXISTS tracker_flags (
    owner_id      TEXT        NOT NULL,
    id            TEXT        NOT NULL,
    title         TEXT,
    list_position INTEGER,
    options       JSONB       NOT NULL,
    position      JSONB,
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (owner_id, id)
);
CREATE INDEX IF NOT EXISTS tracker_flags_owner_position_idx
    ON tracker_flags (owner_id, list_position);
`

// FlagRow is one tracker_flags row
type FlagRow struct {
	OwnerID      string
	ID           string
	Title        sql.NullString
	ListPosition sql.NullInt32
	Options      []byte
	Position     pqtype.NullRawMessage
	UpdatedAt    time.Time
}

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// queries is the hand-written query set for tracker_flags
type queries struct {
	db dbtx
}

func newQueries(db dbtx) *queries {
	return &queries{db: db}
}

func newTxQueries(tx *sql.Tx) *queries {
	return newQueries(tx)
}

const getFlag = `
SELECT owner_id, id, title, list_position, options, position, updated_at
FROM tracker_flags
WHERE owner_id = $1 AND id = $2
`

func (q *queries) getFlag(ctx context.Context, ownerID, id string) (FlagRow, error) {
	row := q.db.QueryRowContext(ctx, getFlag, ownerID, id)
	var r FlagRow
	err := row.Scan(&r.OwnerID, &r.ID, &r.Title, &r.ListPosition, &r.Options, &r.Position, &r.UpdatedAt)
	return r, err
}

const listFlags = `
SELECT owner_id, id, title, list_position, options, position, updated_at
FROM tracker_flags
WHERE owner_id = $1
ORDER BY list_position NULLS LAST, id
`

func (q *queries) listFlags(ctx context.Context, ownerID string) ([]FlagRow, error) {
	rows, err := q.db.QueryContext(ctx, listFlags, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []FlagRow
	for rows.Next() {
		var r FlagRow
		if err := rows.Scan(&r.OwnerID, &r.ID, &r.Title, &r.ListPosition, &r.Options, &r.Position, &r.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const listOwners = `SELECT DISTINCT owner_id FROM tracker_flags ORDER BY owner_id`

func (q *queries) listOwners(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listOwners)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var owners []string
	for rows.Next() {
		var owner string
		if err := rows.Scan(&owner); err != nil {
			return nil, err
		}
		owners = append(owners, owner)
	}
	return owners, rows.Err()
}

const upsertFlag = `
INSERT INTO tracker_flags (owner_id, id, title, list_position, options, position, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, now())
ON CONFLICT (owner_id, id) DO UPDATE SET
    title         = EXCLUDED.title,
    list_position = EXCLUDED.list_position,
    options       = EXCLUDED.options,
    position      = EXCLUDED.position,
    updated_at    = now()
`

func (q *queries) upsertFlag(ctx context.Context, r FlagRow) error {
	_, err := q.db.ExecContext(ctx, upsertFlag, r.OwnerID, r.ID, r.Title, r.ListPosition, string(r.Options), r.Position)
	return err
}

const deleteFlag = `DELETE FROM tracker_flags WHERE owner_id = $1 AND id = $2`

func (q *queries) deleteFlag(ctx context.Context, ownerID, id string) error {
	_, err := q.db.ExecContext(ctx, deleteFlag, ownerID, id)
	return err
}

const notifyChange = `SELECT pg_notify($1, $2)`

func (q *queries) notifyChange(ctx context.Context, channel, ownerID string) error {
	_, err := q.db.ExecContext(ctx, notifyChange, channel, ownerID)
	return err
}

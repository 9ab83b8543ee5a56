// Package pgstore is a Postgres flag repository. Every change is announced
// with pg_notify so other processes can refresh their views.
package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/challengetracker/go/internal/flags"
	"github.com/mcdev12/challengetracker/go/internal/models"
	"github.com/mcdev12/challengetracker/go/internal/sqlutil"
)

// Store implements flags.Repository on Postgres
type Store struct {
	db            *sql.DB
	queries       *queries
	notifyChannel string
}

var _ flags.Repository = (*Store)(nil)

// NewStore wraps an open database handle
func NewStore(db *sql.DB, notifyChannel string) *Store {
	return &Store{
		db:            db,
		queries:       newQueries(db),
		notifyChannel: notifyChannel,
	}
}

// Open connects to dsn and verifies the connection
func Open(ctx context.Context, dsn, notifyChannel string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	log.Info().Str("channel", notifyChannel).Msg("connected to flag database")
	return NewStore(db, notifyChannel), nil
}

// Migrate creates the flag table when missing
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply flag schema: %w", err)
	}
	return nil
}

// Close closes the database handle
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) GetFlag(ctx context.Context, ownerID, id string) (*models.TrackerOptions, error) {
	row, err := s.queries.getFlag(ctx, ownerID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, flags.ErrFlagNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get flag: %w", err)
	}
	return DecodeFlag(row)
}

func (s *Store) ListFlags(ctx context.Context, ownerID string) ([]models.TrackerOptions, error) {
	rows, err := s.queries.listFlags(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list flags: %w", err)
	}
	out := make([]models.TrackerOptions, 0, len(rows))
	for _, row := range rows {
		f, err := DecodeFlag(row)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	return out, nil
}

func (s *Store) ListOwners(ctx context.Context) ([]string, error) {
	owners, err := s.queries.listOwners(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list owners: %w", err)
	}
	return owners, nil
}

func (s *Store) SaveFlags(ctx context.Context, ownerID string, batch ...models.TrackerOptions) error {
	return s.ReplaceFlags(ctx, ownerID, "", batch...)
}

func (s *Store) DeleteFlag(ctx context.Context, ownerID, id string) error {
	return s.ReplaceFlags(ctx, ownerID, id)
}

// ReplaceFlags deletes deleteID, when set, upserts batch and notifies listeners in one transaction
func (s *Store) ReplaceFlags(ctx context.Context, ownerID, deleteID string, batch ...models.TrackerOptions) error {
	rows := make([]FlagRow, 0, len(batch))
	for _, f := range batch {
		row, err := EncodeFlag(ownerID, f)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	return sqlutil.Run(ctx, s.db, newTxQueries, func(q *queries) error {
		if deleteID != "" {
			if err := q.deleteFlag(ctx, ownerID, deleteID); err != nil {
				return fmt.Errorf("failed to delete flag %s: %w", deleteID, err)
			}
		}
		for _, row := range rows {
			if err := q.upsertFlag(ctx, row); err != nil {
				return fmt.Errorf("failed to upsert flag %s: %w", row.ID, err)
			}
		}
		if s.notifyChannel == "" {
			return nil
		}
		if err := q.notifyChange(ctx, s.notifyChannel, ownerID); err != nil {
			return fmt.Errorf("failed to notify flag change: %w", err)
		}
		return nil
	})
}

// EncodeFlag splits the window position into its own column so drag updates
// stay readable in the table.
func EncodeFlag(ownerID string, f models.TrackerOptions) (FlagRow, error) {
	if strings.TrimSpace(f.ID) == "" {
		return FlagRow{}, errors.New("flag id is required")
	}
	position, err := sqlutil.ToNullJSON(f.Position)
	if err != nil {
		return FlagRow{}, err
	}

	rest := f.Clone()
	rest.Position = nil
	data, err := json.Marshal(rest)
	if err != nil {
		return FlagRow{}, fmt.Errorf("failed to encode flag %s: %w", f.ID, err)
	}

	return FlagRow{
		OwnerID:      ownerID,
		ID:           f.ID,
		Title:        sqlutil.ToSqlString(f.Title),
		ListPosition: sqlutil.ToSqlInt32(f.ListPosition),
		Options:      data,
		Position:     position,
	}, nil
}

func DecodeFlag(row FlagRow) (*models.TrackerOptions, error) {
	var f models.TrackerOptions
	if err := json.Unmarshal(row.Options, &f); err != nil {
		return nil, fmt.Errorf("failed to decode flag %s: %w", row.ID, err)
	}
	position, err := sqlutil.FromNullJSON[models.Position](row.Position)
	if err != nil {
		return nil, err
	}

	f.ID = row.ID
	f.Title = sqlutil.FromSqlStringPtr(row.Title)
	f.ListPosition = sqlutil.FromSqlInt32(row.ListPosition)
	f.Position = position
	return &f, nil
}

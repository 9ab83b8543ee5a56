// Package badgerstore is an embedded flag repository backed by BadgerDB.
package badgerstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/challengetracker/go/internal/flags"
	"github.com/mcdev12/challengetracker/go/internal/models"
)

const keyPrefix = "flag/"

// Config configures the embedded database
type Config struct {
	// Path is the data directory. Required unless InMemory is set.
	Path       string
	InMemory   bool
	SyncWrites bool
	// Logger receives Badger's internal log lines. Nil disables them.
	Logger *zerolog.Logger
}

// DefaultConfig returns a durable on-disk configuration
func DefaultConfig(path string) Config {
	return Config{Path: path, SyncWrites: true}
}

// InMemoryConfig returns a configuration for tests
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// Store implements flags.Repository
type Store struct {
	db *badger.DB
}

var _ flags.Repository = (*Store)(nil)

// Open opens the database described by cfg
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent flag store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create flag store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	if cfg.Logger != nil {
		opts = opts.WithLogger(badgerLogger{logger: *cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	log.Info().Bool("in_memory", cfg.InMemory).Str("path", cfg.Path).Msg("flag store opened")
	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

func ownerPrefix(ownerID string) []byte {
	return []byte(keyPrefix + url.PathEscape(ownerID) + "/")
}

func flagKey(ownerID, id string) []byte {
	return append(ownerPrefix(ownerID), url.PathEscape(id)...)
}

func (s *Store) GetFlag(ctx context.Context, ownerID, id string) (*models.TrackerOptions, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var flag models.TrackerOptions
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(flagKey(ownerID, id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return flags.ErrFlagNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &flag)
		})
	})
	if err != nil {
		return nil, err
	}
	return &flag, nil
}

func (s *Store) ListFlags(ctx context.Context, ownerID string) ([]models.TrackerOptions, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []models.TrackerOptions
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: ownerPrefix(ownerID), PrefetchValues: true, PrefetchSize: 100})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var flag models.TrackerOptions
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &flag)
			}); err != nil {
				return fmt.Errorf("decode flag %s: %w", it.Item().Key(), err)
			}
			out = append(out, flag)
		}
		return nil
	})
	return out, err
}

func (s *Store) ListOwners(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var owners []string
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(keyPrefix)})
		defer it.Close()
		var last []byte
		for it.Rewind(); it.Valid(); it.Next() {
			rest := bytes.TrimPrefix(it.Item().Key(), []byte(keyPrefix))
			idx := bytes.IndexByte(rest, '/')
			if idx < 0 {
				continue
			}
			owner := rest[:idx]
			if bytes.Equal(owner, last) {
				continue
			}
			last = append(last[:0], owner...)
			decoded, err := url.PathUnescape(string(owner))
			if err != nil {
				return fmt.Errorf("decode owner %q: %w", owner, err)
			}
			owners = append(owners, decoded)
		}
		return nil
	})
	return owners, err
}

func (s *Store) SaveFlags(ctx context.Context, ownerID string, batch ...models.TrackerOptions) error {
	return s.ReplaceFlags(ctx, ownerID, "", batch...)
}

func (s *Store) DeleteFlag(ctx context.Context, ownerID, id string) error {
	return s.ReplaceFlags(ctx, ownerID, id)
}

// ReplaceFlags deletes deleteID, when set, and writes batch in one transaction
func (s *Store) ReplaceFlags(ctx context.Context, ownerID, deleteID string, batch ...models.TrackerOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if deleteID != "" {
			if err := txn.Delete(flagKey(ownerID, deleteID)); err != nil {
				return fmt.Errorf("delete flag %s: %w", deleteID, err)
			}
		}
		for _, f := range batch {
			if strings.TrimSpace(f.ID) == "" {
				return errors.New("flag id is required")
			}
			data, err := json.Marshal(f)
			if err != nil {
				return fmt.Errorf("encode flag %s: %w", f.ID, err)
			}
			if err := txn.Set(flagKey(ownerID, f.ID), data); err != nil {
				return fmt.Errorf("write flag %s: %w", f.ID, err)
			}
		}
		return nil
	})
}

// badgerLogger adapts zerolog to Badger's logger interface
type badgerLogger struct {
	logger zerolog.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error().Msgf(strings.TrimSpace(format), args...)
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn().Msgf(strings.TrimSpace(format), args...)
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info().Msgf(strings.TrimSpace(format), args...)
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug().Msgf(strings.TrimSpace(format), args...)
}

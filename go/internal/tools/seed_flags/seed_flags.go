package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/challengetracker/go/internal/dbconfig"
	"github.com/mcdev12/challengetracker/go/internal/flags/pgstore"
	"github.com/mcdev12/challengetracker/go/internal/models"
)

// Snapshot maps owner ids to their saved trackers
type Snapshot map[string][]models.TrackerOptions

func main() {
	path := "go/internal/assets/flags.json"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	// 1) Load the JSON snapshot
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read JSON: %v\n", err)
		os.Exit(1)
	}
	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		fmt.Fprintf(os.Stderr, "unmarshal JSON: %v\n", err)
		os.Exit(1)
	}

	// 2) Connect using shared dbconfig
	ctx := context.Background()
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, pgstore.Schema); err != nil {
		fmt.Fprintf(os.Stderr, "apply schema: %v\n", err)
		os.Exit(1)
	}

	// 3) Insert and count; existing flags are left alone
	var (
		total    int
		inserted int
		skipped  int
		errs     int
	)

	for owner, trackers := range snapshot {
		for i, t := range trackers {
			total++
			if t.ID == "" {
				t.ID = models.NewTrackerID()
			}
			if t.ListPosition == nil {
				t.ListPosition = models.Int(i + 1)
			}
			t.OwnerID = owner

			row, err := pgstore.EncodeFlag(owner, t)
			if err != nil {
				fmt.Fprintf(os.Stderr, "error encoding tracker %s: %v\n", t.ID, err)
				errs++
				continue
			}
			var position any
			if row.Position.Valid {
				position = string(row.Position.RawMessage)
			}

			cmdTag, err := pool.Exec(ctx, `
                INSERT INTO tracker_flags (
                  owner_id, id, title, list_position, options, position
                ) VALUES (
                  $1,$2,$3,$4,$5::jsonb,$6::jsonb
                )
                ON CONFLICT (owner_id, id) DO NOTHING
            `,
				row.OwnerID, row.ID, row.Title, row.ListPosition, string(row.Options), position,
			)
			if err != nil {
				fmt.Fprintf(os.Stderr, "error inserting tracker %s: %v\n", t.ID, err)
				errs++
				continue
			}
			if cmdTag.RowsAffected() == 1 {
				inserted++
			} else {
				skipped++
			}
		}

		if _, err := pool.Exec(ctx, `SELECT pg_notify($1, $2)`, cfg.NotifyChannel, owner); err != nil {
			fmt.Fprintf(os.Stderr, "error notifying owner %s: %v\n", owner, err)
		}
	}

	// 4) Print summary
	fmt.Printf(
		"Flags seed complete: %d total, %d inserted, %d skipped, %d errors\n",
		total, inserted, skipped, errs,
	)
}

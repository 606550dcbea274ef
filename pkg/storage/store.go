// Package storage persists the learned usage profile and the decision
// log, with a Firestore-backed production implementation and a
// local-file implementation for standalone/dev operation.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/levenlabs/go-lflag"

	"github.com/jameshartig/gridpilot/pkg/types"
)

// Store is the durable persistence boundary used by the engine loop and
// the read API.
type Store interface {
	// RecordDecision appends a single emitted decision to the log.
	RecordDecision(ctx context.Context, d types.Decision) error

	// DecisionHistory returns decisions whose timestamp falls in
	// [start, end).
	DecisionHistory(ctx context.Context, start, end time.Time) ([]types.Decision, error)

	// SaveProfile persists the latest learned usage profile.
	SaveProfile(ctx context.Context, p types.UsageProfile) error

	// LoadProfile returns the last persisted usage profile. Returns the
	// zero value, not an error, if none has been saved yet.
	LoadProfile(ctx context.Context) (types.UsageProfile, error)

	// SaveSettings persists the operator-adjustable runtime settings.
	SaveSettings(ctx context.Context, s types.RuntimeSettings) error

	// LoadSettings returns the last persisted runtime settings. Returns
	// the zero value (not paused), not an error, if none has been saved.
	LoadSettings(ctx context.Context) (types.RuntimeSettings, error)

	Close() error
}

// Configured sets up the storage backend based on flags, following the
// teacher's ess.Configured()/utility.Configured() shape: it owns its own
// flags independently of pkg/config, so a binary that only needs storage
// (cmd/seed) doesn't have to satisfy the engine's retailer/battery/etc.
// flag requirements to run.
func Configured() Store {
	backend := lflag.String("storage-backend", "file", "Storage backend to use: \"file\" or \"firestore\"")
	dataDir := lflag.String("data-dir", "data", "Directory for the local file storage backend")
	firestoreProject := lflag.String("firestore-project", "", "GCP project id for the Firestore storage backend")

	var s struct{ Store }

	lflag.Do(func() {
		switch *backend {
		case "file":
			s.Store = newFileStore(*dataDir)
		case "firestore":
			fs, err := newFirestoreStore(context.Background(), *firestoreProject)
			if err != nil {
				panic(fmt.Sprintf("firestore storage init failed: %v", err))
			}
			s.Store = fs
		default:
			panic(fmt.Sprintf("unknown storage backend: %s", *backend))
		}
	})

	return &s
}

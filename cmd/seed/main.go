// Command seed populates a storage backend with mock decisions covering
// today so the read API has something to show without running the full
// engine loop. Mirrors the teacher's cmd/seed, including its pattern of
// pointing at a local Firestore emulator before storage.Configured runs.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/levenlabs/go-lflag"

	"github.com/jameshartig/gridpilot/pkg/storage"
	"github.com/jameshartig/gridpilot/pkg/types"
)

func main() {
	os.Setenv("FIRESTORE_EMULATOR_HOST", "127.0.0.1:8087")
	s := storage.Configured()
	lflag.Configure()

	ctx := context.Background()

	slog.InfoContext(ctx, "seeding mock decisions")

	now := time.Now()
	start := now.Truncate(24 * time.Hour)

	for t := start; t.Before(now); t = t.Add(5 * time.Minute) {
		decision := mockDecision(t)
		if err := s.RecordDecision(ctx, decision); err != nil {
			slog.ErrorContext(ctx, "failed to seed decision", "error", err)
			os.Exit(1)
		}
		fmt.Printf("Seeded decision at %s: %s (%s)\n", t.Format(time.Kitchen), decision.Action, decision.Reason)
	}

	if err := s.SaveProfile(ctx, mockProfile()); err != nil {
		slog.ErrorContext(ctx, "failed to seed profile", "error", err)
		os.Exit(1)
	}

	slog.Info("seeded mock data successfully")
}

// mockDecision synthesizes a plausible decision for the hour of day t
// falls in, loosely following the same overnight-charge/peak-discharge
// shape as a real day's arbitrage plan.
func mockDecision(t time.Time) types.Decision {
	hour := t.Hour()
	d := types.Decision{Timestamp: t, Confidence: 0.8}

	switch {
	case hour < 6:
		d.Action = types.ActionChargeGrid
		d.PowerKW = 4
		d.Reason = "mock: overnight off-peak charging"
		d.ExpectedValueCents = 6
	case hour < 9:
		d.Action = types.ActionDischargeGrid
		d.PowerKW = 5
		d.Reason = "mock: morning peak discharge"
		d.ExpectedValueCents = 45
	case hour < 17:
		d.Action = types.ActionChargeSolar
		d.PowerKW = 2
		d.Reason = "mock: daytime solar self-consumption"
		d.ExpectedValueCents = 3
	case hour < 21:
		d.Action = types.ActionDischargeGrid
		d.PowerKW = 5
		d.Reason = "mock: evening peak discharge"
		d.ExpectedValueCents = 60
	default:
		d.Action = types.ActionIdle
		d.PowerKW = 0
		d.Reason = "mock: night idle"
		d.ExpectedValueCents = 0
	}
	return d
}

func mockProfile() types.UsageProfile {
	profile := types.UsageProfile{
		LastUpdated:  time.Now(),
		DaysAnalysed: 14,
	}
	for h := 0; h < 24; h++ {
		load := 0.4
		if h >= 6 && h < 9 || h >= 17 && h < 21 {
			load = 1.2
		}
		profile.Hours[h] = types.HourProfile{
			WeekdayImportKW: load,
			WeekendImportKW: load * 0.8,
		}
	}
	return profile
}

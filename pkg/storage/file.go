package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jameshartig/gridpilot/pkg/types"
)

const (
	decisionLogName = "decisions.log"
	profileFileName = "gridpilot-profile.json"
	settingsFileName = "gridpilot-settings.json"
	decisionLogSep  = "|"
)

// fileStore implements Store against the local filesystem: an
// append-only pipe-delimited decision log and a JSON profile cache,
// matching the format original_source/src/monitor.py appended to
// data/decisions.log.
type fileStore struct {
	mu      sync.Mutex
	dataDir string
}

func newFileStore(dataDir string) *fileStore {
	if dataDir == "" {
		dataDir = "data"
	}
	return &fileStore{dataDir: dataDir}
}

func (f *fileStore) decisionLogPath() string {
	return filepath.Join(f.dataDir, decisionLogName)
}

func (f *fileStore) profilePath() string {
	return filepath.Join(f.dataDir, profileFileName)
}

func (f *fileStore) settingsPath() string {
	return filepath.Join(f.dataDir, settingsFileName)
}

func (f *fileStore) RecordDecision(ctx context.Context, d types.Decision) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(f.dataDir, 0o755); err != nil {
		return fmt.Errorf("storage: create data dir: %w", err)
	}

	file, err := os.OpenFile(f.decisionLogPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("storage: open decision log: %w", err)
	}
	defer file.Close()

	if _, err := file.WriteString(formatDecisionLine(d) + "\n"); err != nil {
		return fmt.Errorf("storage: write decision: %w", err)
	}
	return nil
}

func (f *fileStore) DecisionHistory(ctx context.Context, start, end time.Time) ([]types.Decision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.Open(f.decisionLogPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: open decision log: %w", err)
	}
	defer file.Close()

	var decisions []types.Decision
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		d, err := parseDecisionLine(scanner.Text())
		if err != nil {
			continue
		}
		if d.Timestamp.Before(start) || !d.Timestamp.Before(end) {
			continue
		}
		decisions = append(decisions, d)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("storage: read decision log: %w", err)
	}
	return decisions, nil
}

func (f *fileStore) SaveProfile(ctx context.Context, p types.UsageProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(f.dataDir, 0o755); err != nil {
		return fmt.Errorf("storage: create data dir: %w", err)
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: marshal profile: %w", err)
	}

	tmp := f.profilePath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("storage: write profile: %w", err)
	}
	return os.Rename(tmp, f.profilePath())
}

func (f *fileStore) LoadProfile(ctx context.Context) (types.UsageProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.profilePath())
	if os.IsNotExist(err) {
		return types.UsageProfile{}, nil
	}
	if err != nil {
		return types.UsageProfile{}, fmt.Errorf("storage: read profile: %w", err)
	}

	var p types.UsageProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return types.UsageProfile{}, fmt.Errorf("storage: unmarshal profile: %w", err)
	}
	return p, nil
}

func (f *fileStore) SaveSettings(ctx context.Context, s types.RuntimeSettings) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(f.dataDir, 0o755); err != nil {
		return fmt.Errorf("storage: create data dir: %w", err)
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("storage: marshal settings: %w", err)
	}

	tmp := f.settingsPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("storage: write settings: %w", err)
	}
	return os.Rename(tmp, f.settingsPath())
}

func (f *fileStore) LoadSettings(ctx context.Context) (types.RuntimeSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.settingsPath())
	if os.IsNotExist(err) {
		return types.RuntimeSettings{}, nil
	}
	if err != nil {
		return types.RuntimeSettings{}, fmt.Errorf("storage: read settings: %w", err)
	}

	var s types.RuntimeSettings
	if err := json.Unmarshal(data, &s); err != nil {
		return types.RuntimeSettings{}, fmt.Errorf("storage: unmarshal settings: %w", err)
	}
	return s, nil
}

func (f *fileStore) Close() error {
	return nil
}

// formatDecisionLine renders
// timestamp|action|import|export|forecast_avg|forecast_max|solar|confidence|reason|expected_value_cents
// matching original_source/src/monitor.py's decisions.log line, with
// expected_value_cents appended as a 10th field so the file backend can
// round-trip GET /api/decisions/value the same as the firestore backend's
// decisionDoc.ExpectedValueCents. forecast_avg/forecast_max/solar_kw
// aren't carried as top-level Decision fields; they're read back out of
// Factors when present, defaulting to 0. Like the original format, there's
// no PowerKW column: Decision.PowerKW doesn't round-trip through the file
// backend (it does through firestoreStore's decisionDoc.PowerKW).
func formatDecisionLine(d types.Decision) string {
	fields := []string{
		d.Timestamp.Format(time.RFC3339),
		d.Action.String(),
		strconv.FormatFloat(factorFloat(d.Factors, "import_cents"), 'f', 2, 64),
		strconv.FormatFloat(factorFloat(d.Factors, "export_cents"), 'f', 2, 64),
		strconv.FormatFloat(factorFloat(d.Factors, "forecast_avg"), 'f', 1, 64),
		strconv.FormatFloat(factorFloat(d.Factors, "forecast_max"), 'f', 1, 64),
		strconv.FormatFloat(factorFloat(d.Factors, "solar_kw"), 'f', 2, 64),
		strconv.FormatFloat(d.Confidence, 'f', 2, 64),
		d.Reason,
		strconv.FormatFloat(d.ExpectedValueCents, 'f', 2, 64),
	}
	return strings.Join(fields, decisionLogSep)
}

func parseDecisionLine(line string) (types.Decision, error) {
	parts := strings.SplitN(line, decisionLogSep, 10)
	if len(parts) != 10 {
		return types.Decision{}, fmt.Errorf("storage: malformed decision line")
	}

	ts, err := time.Parse(time.RFC3339, parts[0])
	if err != nil {
		return types.Decision{}, fmt.Errorf("storage: parse timestamp: %w", err)
	}

	importCents, _ := strconv.ParseFloat(parts[2], 64)
	exportCents, _ := strconv.ParseFloat(parts[3], 64)
	forecastAvg, _ := strconv.ParseFloat(parts[4], 64)
	forecastMax, _ := strconv.ParseFloat(parts[5], 64)
	solarKW, _ := strconv.ParseFloat(parts[6], 64)
	confidence, _ := strconv.ParseFloat(parts[7], 64)
	expectedValueCents, _ := strconv.ParseFloat(parts[9], 64)

	return types.Decision{
		Timestamp:          ts,
		Action:             parseAction(parts[1]),
		Reason:             parts[8],
		Confidence:         confidence,
		ExpectedValueCents: expectedValueCents,
		Factors: map[string]interface{}{
			"import_cents": importCents,
			"export_cents": exportCents,
			"forecast_avg": forecastAvg,
			"forecast_max": forecastMax,
			"solar_kw":     solarKW,
		},
	}, nil
}

func parseAction(s string) types.BatteryAction {
	switch s {
	case "charge_grid":
		return types.ActionChargeGrid
	case "charge_solar":
		return types.ActionChargeSolar
	case "discharge_grid":
		return types.ActionDischargeGrid
	case "discharge_house":
		return types.ActionDischargeHouse
	default:
		return types.ActionIdle
	}
}

func factorFloat(factors map[string]interface{}, key string) float64 {
	v, ok := factors[key]
	if !ok {
		return 0
	}
	f, _ := v.(float64)
	return f
}

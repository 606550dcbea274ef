package httpapi

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"google.golang.org/api/idtoken"

	"github.com/jameshartig/gridpilot/pkg/health"
	"github.com/jameshartig/gridpilot/pkg/types"
)

type fakeStore struct {
	decisions []types.Decision
	profile   types.UsageProfile
	settings  types.RuntimeSettings
}

func (f *fakeStore) RecordDecision(ctx context.Context, d types.Decision) error {
	f.decisions = append(f.decisions, d)
	return nil
}

func (f *fakeStore) DecisionHistory(ctx context.Context, start, end time.Time) ([]types.Decision, error) {
	var out []types.Decision
	for _, d := range f.decisions {
		if !d.Timestamp.Before(start) && d.Timestamp.Before(end) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeStore) SaveProfile(ctx context.Context, p types.UsageProfile) error {
	f.profile = p
	return nil
}

func (f *fakeStore) LoadProfile(ctx context.Context) (types.UsageProfile, error) {
	return f.profile, nil
}

func (f *fakeStore) SaveSettings(ctx context.Context, s types.RuntimeSettings) error {
	f.settings = s
	return nil
}

func (f *fakeStore) LoadSettings(ctx context.Context) (types.RuntimeSettings, error) {
	return f.settings, nil
}

func (f *fakeStore) Close() error { return nil }

type fakeEngine struct {
	plan    types.DayPlan
	profile types.UsageProfile
	health  *health.Monitor
}

func (f *fakeEngine) CurrentPlan() types.DayPlan         { return f.plan }
func (f *fakeEngine) CurrentProfile() types.UsageProfile { return f.profile }
func (f *fakeEngine) Health() *health.Monitor            { return f.health }

func newTestServer(store *fakeStore) *Server {
	return &Server{
		store:  store,
		engine: &fakeEngine{health: health.New(nil)},
	}
}

func fakeValidator(email string, expires int64) tokenValidatorFunc {
	return func(ctx context.Context, idToken, audience string) (*idtoken.Payload, error) {
		return &idtoken.Payload{
			Claims:  map[string]interface{}{"email": email},
			Expires: expires,
		}, nil
	}
}

func TestHandleHealthReportsEngineStatus(t *testing.T) {
	srv := newTestServer(&fakeStore{})
	srv.engine.(*fakeEngine).health.RecordSuccess()

	req := httptest.NewRequest("GET", "/api/health", nil)
	w := httptest.NewRecorder()
	srv.routes().ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), "totalCycles")
}

func TestHandleDecisionsDefaultsToLast24Hours(t *testing.T) {
	store := &fakeStore{}
	now := time.Now()
	store.decisions = []types.Decision{
		{Timestamp: now.Add(-time.Hour), Action: types.ActionChargeGrid, ExpectedValueCents: 12},
		{Timestamp: now.Add(-48 * time.Hour), Action: types.ActionIdle},
	}
	srv := newTestServer(store)

	req := httptest.NewRequest("GET", "/api/decisions", nil)
	w := httptest.NewRecorder()
	srv.routes().ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)
	var got []types.Decision
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, float64(12), got[0].ExpectedValueCents)
}

func TestHandleDecisionsRejectsBadRange(t *testing.T) {
	srv := newTestServer(&fakeStore{})

	req := httptest.NewRequest("GET", "/api/decisions?start=not-a-time&end=also-not", nil)
	w := httptest.NewRecorder()
	srv.routes().ServeHTTP(w, req)

	assert.Equal(t, 400, w.Code)
}

func TestHandlePlanAndProfile(t *testing.T) {
	store := &fakeStore{}
	srv := newTestServer(store)
	srv.engine.(*fakeEngine).plan = types.DayPlan{Summary: types.DayPlanSummary{ArbitragePairs: 2}}
	srv.engine.(*fakeEngine).profile = types.UsageProfile{DaysAnalysed: 14}

	req := httptest.NewRequest("GET", "/api/plan", nil)
	w := httptest.NewRecorder()
	srv.routes().ServeHTTP(w, req)
	assert.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), `"arbitragePairs":2`)

	req = httptest.NewRequest("GET", "/api/profile", nil)
	w = httptest.NewRecorder()
	srv.routes().ServeHTTP(w, req)
	assert.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), `"daysAnalysed":14`)
}

func TestHandleValueSummary(t *testing.T) {
	store := &fakeStore{}
	now := time.Now()
	store.decisions = []types.Decision{
		{Timestamp: now.Add(-time.Hour), Action: types.ActionChargeGrid, ExpectedValueCents: -10},
		{Timestamp: now.Add(-time.Minute), Action: types.ActionDischargeGrid, ExpectedValueCents: 45},
	}
	srv := newTestServer(store)

	req := httptest.NewRequest("GET", "/api/decisions/value", nil)
	w := httptest.NewRecorder()
	srv.routes().ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), `"totalExpectedValueCents":35`)
	assert.Contains(t, w.Body.String(), `"decisionCount":2`)
}

func TestGetAndUpdateSettingsRequiresAdmin(t *testing.T) {
	store := &fakeStore{}
	srv := newTestServer(store)
	srv.adminEmails = []string{"ops@example.com"}
	srv.tokenValidator = fakeValidator("ops@example.com", time.Now().Add(time.Hour).Unix())

	// Unauthenticated update is rejected.
	body := `{"pause":true}`
	req := httptest.NewRequest("POST", "/api/settings", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.routes().ServeHTTP(w, req)
	assert.Equal(t, 401, w.Code)

	// Logging in, then updating, succeeds.
	loginReq := httptest.NewRequest("POST", "/api/auth/login", strings.NewReader(`{"token":"whatever"}`))
	loginW := httptest.NewRecorder()
	srv.routes().ServeHTTP(loginW, loginReq)
	require.Equal(t, 200, loginW.Code)
	cookies := loginW.Result().Cookies()
	require.Len(t, cookies, 1)

	updateReq := httptest.NewRequest("POST", "/api/settings", strings.NewReader(body))
	updateReq.AddCookie(cookies[0])
	updateW := httptest.NewRecorder()
	srv.routes().ServeHTTP(updateW, updateReq)
	assert.Equal(t, 200, updateW.Code)
	assert.True(t, store.settings.Pause)
}

func TestAuthStatusBypass(t *testing.T) {
	srv := newTestServer(&fakeStore{})
	srv.bypassAuth = true

	req := httptest.NewRequest("GET", "/api/auth/status", nil)
	w := httptest.NewRecorder()
	srv.routes().ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), `"isAdmin":true`)
}

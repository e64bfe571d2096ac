package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"attendly/internal/config"
	"attendly/internal/handler"
	"attendly/internal/host"
	"attendly/internal/models"
	"attendly/internal/server"
	"attendly/internal/testutil"
	"attendly/internal/util"
	"attendly/pkg/client"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testSecret = "jwt-test-secret"
	testIssuer = "attendly-test"
)

type harness struct {
	t     *testing.T
	app   *server.App
	clock *clock.Mock
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Mode:           "test",
			PublicOrigin:   "https://attend.example.org",
			AllowedOrigins: []string{"https://attend.example.org"},
		},
		JWT:      config.JWTConfig{Secret: testSecret, Issuer: testIssuer},
		Security: config.SecurityConfig{ClientIDSecret: "client-secret"},
		Attendance: config.AttendanceConfig{
			GraceSeconds:         5,
			LeaseSeconds:         30,
			HeartbeatSeconds:     10,
			SessionWindowSeconds: 300,
			ClientCookieDays:     365,
			SweepIntervalSeconds: 60,
		},
		Suggest: config.SuggestConfig{BatchSize: 50, Limit: 24},
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	s := testutil.NewStore(t)
	clk := testutil.NewClock()
	app, err := server.Wire(testConfig(), s.DB(), clk, zap.NewNop())
	require.NoError(t, err)
	return &harness{t: t, app: app, clock: clk}
}

func (h *harness) token(organizerID string) string {
	h.t.Helper()
	tok, err := util.GenerateToken(testSecret, testIssuer, organizerID, time.Hour)
	require.NoError(h.t, err)
	return tok
}

// do sends a request as organizerID ("" for anonymous) and decodes the JSON answer.
func (h *harness) do(method, path, organizerID string, body any, cookies ...*http.Cookie) (*httptest.ResponseRecorder, map[string]any) {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if organizerID != "" {
		req.Header.Set("Authorization", "Bearer "+h.token(organizerID))
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	h.app.Handler.ServeHTTP(w, req)

	var out map[string]any
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(h.t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func data(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	require.EqualValues(t, 0, body["code"], "body: %v", body)
	d, ok := body["data"].(map[string]any)
	require.True(t, ok, "body: %v", body)
	return d
}

func cookieNamed(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t)

	w, body := h.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])

	w, _ = h.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestOrganizerRoutesRequireToken(t *testing.T) {
	h := newHarness(t)

	w, body := h.do(http.MethodGet, "/api/events", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.EqualValues(t, util.CodeAuth, body["code"])

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	h.app.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestEventLifecycle(t *testing.T) {
	h := newHarness(t)

	w, body := h.do(http.MethodPost, "/api/events", "org-1", map[string]any{
		"name":                      "Tuesday lab",
		"rotation_enabled":          true,
		"rotation_interval_seconds": 1,
		"geofence_enabled":          true,
		"geofence_lat":              52.52,
		"geofence_lng":              13.405,
		"geofence_radius_meters":    0,
	})
	require.Equal(t, http.StatusOK, w.Code)
	ev := data(t, body)["event"].(map[string]any)
	id := ev["id"].(string)
	assert.EqualValues(t, 2, ev["rotation_interval_seconds"], "interval is clamped")
	assert.EqualValues(t, 1, ev["geofence_radius_meters"], "radius is clamped")
	assert.Equal(t, false, ev["active"])

	w, _ = h.do(http.MethodPost, "/api/events", "org-1", map[string]any{
		"name": "Bad fence", "geofence_enabled": true, "geofence_lat": 95.0, "geofence_lng": 0.0,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body = h.do(http.MethodPost, "/api/events/"+id+"/start", "org-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, data(t, body)["event"].(map[string]any)["active"])

	w, body = h.do(http.MethodGet, "/api/events", "org-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, data(t, body)["items"], 1)

	// other organizers see nothing
	w, _ = h.do(http.MethodGet, "/api/events/"+id, "org-2", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, body = h.do(http.MethodPost, "/api/events/"+id+"/stop", "org-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, data(t, body)["event"].(map[string]any)["active"])
}

func TestAttendanceFlow(t *testing.T) {
	h := newHarness(t)
	ev := testutil.SeedEvent(t, h.app.Store)

	w, body := h.do(http.MethodPost, "/api/attendance/session", "", map[string]any{
		"eventId": ev.ID,
		"token":   models.StaticToken,
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, true, body["authorized"], "body: %v", body)
	sessionID := body["sessionId"].(string)
	cid := cookieNamed(w, handler.ClientIDCookie)
	require.NotNil(t, cid)
	assert.Equal(t, body["clientId"], cid.Value)
	assert.True(t, cid.HttpOnly)

	submit := map[string]any{
		"sessionId":     sessionID,
		"attendeeName":  "Ada Lovelace",
		"attendeeEmail": "Ada@Example.com",
	}
	w, body = h.do(http.MethodPost, "/api/attendance/submit", "", submit, cid)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"], "body: %v", body)

	w, body = h.do(http.MethodPost, "/api/attendance/submit", "", submit, cid)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "session_used", body["reason"])

	w, body = h.do(http.MethodGet, "/api/events/"+ev.ID+"/records", "org-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	d := data(t, body)
	assert.EqualValues(t, 1, d["total"])
	rec := d["items"].([]any)[0].(map[string]any)
	assert.Equal(t, "ada@example.com", rec["attendee_email"])
	assert.Equal(t, "verified", rec["status"])
}

func TestAttendanceRejections(t *testing.T) {
	h := newHarness(t)
	ev := testutil.SeedEvent(t, h.app.Store)

	cases := []struct {
		name   string
		body   any
		status int
		reason string
	}{
		{"malformed", "not an object", http.StatusBadRequest, "invalid_request"},
		{"missing token", map[string]any{"eventId": ev.ID}, http.StatusBadRequest, "invalid_request"},
		{"unknown event", map[string]any{"eventId": "nope", "token": models.StaticToken}, http.StatusOK, "not_found"},
		{"wrong token", map[string]any{"eventId": ev.ID, "token": "abc"}, http.StatusOK, "expired"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, body := h.do(http.MethodPost, "/api/attendance/session", "", tc.body)
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, false, body["authorized"])
			assert.Equal(t, tc.reason, body["reason"])
		})
	}

	w, body := h.do(http.MethodPost, "/api/attendance/submit", "", map[string]any{
		"sessionId": "missing", "attendeeName": "Ada", "attendeeEmail": "ada@example.com",
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "session_invalid", body["reason"])
}

func TestLeaseRotationAndState(t *testing.T) {
	h := newHarness(t)
	ev := testutil.SeedEvent(t, h.app.Store, testutil.Rotating(15))
	base := "/api/events/" + ev.ID

	w, body := h.do(http.MethodPost, base+"/lease/claim", "org-1", map[string]any{"holder_id": "tab-a"})
	require.Equal(t, http.StatusOK, w.Code)
	l := data(t, body)["lease"].(map[string]any)
	assert.Equal(t, true, l["held"])
	assert.EqualValues(t, 30, l["lease_seconds"])

	w, body = h.do(http.MethodPost, base+"/lease/claim", "org-1", map[string]any{"holder_id": "tab-b"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, data(t, body)["lease"].(map[string]any)["held"])

	w, body = h.do(http.MethodPost, base+"/rotate", "org-1", map[string]any{"holder_id": "tab-b"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, data(t, body)["rotated"])

	w, body = h.do(http.MethodPost, base+"/rotate", "org-1", map[string]any{"holder_id": "tab-a"})
	require.Equal(t, http.StatusOK, w.Code)
	d := data(t, body)
	require.Equal(t, true, d["rotated"])
	token := d["token"].(string)

	w, body = h.do(http.MethodGet, base+"/state", "org-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	d = data(t, body)
	state := d["state"].(map[string]any)
	assert.Equal(t, token, state["token"])
	assert.Equal(t, "tab-a", state["host_id"])
	assert.Equal(t, handler.ScanURL("https://attend.example.org", ev.ID, token), d["scan_url"])
	assert.Equal(t, testutil.Epoch.Format(time.RFC3339Nano), d["server_time"], "server time follows the injected clock")
	assert.EqualValues(t, 30, d["lease_seconds"])

	w, body = h.do(http.MethodPost, "/api/attendance/session", "", map[string]any{"eventId": ev.ID, "token": token})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["authorized"], "body: %v", body)

	// past interval + grace the scanned token is dead
	h.clock.Add(21 * time.Second)
	w, body = h.do(http.MethodPost, "/api/attendance/session", "", map[string]any{"eventId": ev.ID, "token": token})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "expired", body["reason"])

	w, body = h.do(http.MethodPost, base+"/lease/release", "org-1", map[string]any{"holder_id": "tab-a", "stop": true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, data(t, body)["released"])

	w, _ = h.do(http.MethodPost, base+"/lease/claim", "org-1", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHostTrafficIsNotAudited(t *testing.T) {
	h := newHarness(t)
	ev := testutil.SeedEvent(t, h.app.Store, testutil.Rotating(15))
	base := "/api/events/" + ev.ID
	holder := map[string]any{"holder_id": "tab-a"}

	w, _ := h.do(http.MethodPost, base+"/lease/claim", "org-1", holder)
	require.Equal(t, http.StatusOK, w.Code)
	for range 10 {
		w, _ = h.do(http.MethodPost, base+"/lease/renew", "org-1", holder)
		require.Equal(t, http.StatusOK, w.Code)
		w, _ = h.do(http.MethodPost, base+"/rotate", "org-1", holder)
		require.Equal(t, http.StatusOK, w.Code)
	}
	// a contender's losing claim stays out of the trail as well
	w, _ = h.do(http.MethodPost, base+"/lease/claim", "org-1", map[string]any{"holder_id": "tab-b"})
	require.Equal(t, http.StatusOK, w.Code)

	var n int64
	require.NoError(t, h.app.DB.Model(&models.AuditLog{}).Count(&n).Error)
	assert.Zero(t, n)

	// stopping the event on release is an organizer action and is audited
	w, _ = h.do(http.MethodPost, base+"/lease/release", "org-1", map[string]any{"holder_id": "tab-a", "stop": true})
	require.Equal(t, http.StatusOK, w.Code)

	var logs []models.AuditLog
	require.NoError(t, h.app.DB.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, base+"/lease/release", logs[0].Path)

	w, body := h.do(http.MethodGet, "/api/logs", "org-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, data(t, body)["total"])
}

func TestModerationIsAudited(t *testing.T) {
	h := newHarness(t)
	ev := testutil.SeedEvent(t, h.app.Store)
	rec := &models.AttendanceRecord{
		EventID:       ev.ID,
		AttendeeName:  "Grace Hopper",
		AttendeeEmail: "grace@example.com",
		Status:        models.StatusSuspicious,
	}
	require.NoError(t, h.app.Store.CreateRecord(context.Background(), rec))
	path := "/api/records/" + strconv.FormatUint(uint64(rec.ID), 10)

	w, _ := h.do(http.MethodPut, path+"/status", "org-1", map[string]any{"status": "bogus"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = h.do(http.MethodPut, path+"/status", "org-2", map[string]any{"status": "cleared"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, body := h.do(http.MethodPut, path+"/status", "org-1", map[string]any{"status": "cleared"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cleared", data(t, body)["record"].(map[string]any)["status"])

	w, body = h.do(http.MethodGet, "/api/logs/moderation", "org-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	items := data(t, body)["items"].([]any)
	require.Len(t, items, 2)
	latest := items[0].(map[string]any)
	assert.Equal(t, "status changed", latest["operation"])
	assert.EqualValues(t, http.StatusOK, latest["status"])
	assert.Equal(t, "cleared", latest["details"].(map[string]any)["status"])

	w, body = h.do(http.MethodGet, "/api/logs/moderation", "org-2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, data(t, body)["items"], 1, "org-2's own failed attempt")

	w, _ = h.do(http.MethodDelete, path, "org-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = h.do(http.MethodDelete, path, "org-1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSuggestionRoutes(t *testing.T) {
	h := newHarness(t)
	season := testutil.SeedSeason(t, h.app.Store, "Spring")
	ev := testutil.SeedEvent(t, h.app.Store, testutil.InSeason(season.ID))
	for _, email := range []string{"jane.doe@example.com", "jane.doe@example.co", "bob@other.net"} {
		require.NoError(t, h.app.Store.CreateRecord(context.Background(), &models.AttendanceRecord{
			EventID: ev.ID, AttendeeName: "Someone", AttendeeEmail: email, Status: models.StatusVerified,
		}))
	}
	base := "/api/seasons/" + season.ID + "/suggestions"

	w, body := h.do(http.MethodGet, base, "org-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	items := data(t, body)["items"].([]any)
	require.Len(t, items, 1)
	s := items[0].(map[string]any)
	assert.Equal(t, "jane.doe@example.co", s["email_a"])
	assert.Equal(t, "jane.doe@example.com", s["email_b"])

	w, _ = h.do(http.MethodPost, base+"/apply", "org-1", map[string]any{
		"canonical_email": "jane.doe@example.com", "duplicate_email": "jane.doe@example.com",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body = h.do(http.MethodPost, base+"/apply", "org-1", map[string]any{
		"canonical_email": "jane.doe@example.com", "duplicate_email": "jane.doe@example.co", "name": "Jane Doe",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, data(t, body)["updated"])

	w, body = h.do(http.MethodGet, base, "org-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, data(t, body)["items"])

	w, _ = h.do(http.MethodGet, base, "org-2", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRemoteBackend(t *testing.T) {
	h := newHarness(t)
	ev := testutil.SeedEvent(t, h.app.Store, testutil.Rotating(10))
	srv := httptest.NewServer(h.app.Handler)
	t.Cleanup(srv.Close)

	remote := &host.Remote{Client: client.New(srv.URL, h.token("org-1"))}
	ctx := context.Background()

	l, err := remote.Claim(ctx, ev.ID, "cli-1")
	require.NoError(t, err)
	assert.True(t, l.Held)
	assert.Equal(t, testutil.Epoch.Add(30*time.Second), l.ExpiresAt.UTC())

	tok, ok, err := remote.Rotate(ctx, ev.ID, "cli-1")
	require.NoError(t, err)
	require.True(t, ok)

	snap, err := remote.Observe(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, tok.Value, snap.Token)
	assert.Equal(t, "cli-1", snap.HostID)
	assert.Equal(t, 10, snap.RotationIntervalSeconds)

	released, err := remote.Release(ctx, ev.ID, "cli-1", false)
	require.NoError(t, err)
	assert.True(t, released)

	_, err = remote.Observe(ctx, "missing")
	assert.ErrorIs(t, err, host.ErrEventNotFound)

	other := &host.Remote{Client: client.New(srv.URL, h.token("org-2"))}
	_, err = other.Observe(ctx, ev.ID)
	assert.ErrorIs(t, err, host.ErrEventNotFound)
}

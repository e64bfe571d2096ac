package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"attendly/internal/middleware"
	"attendly/internal/models"
	"attendly/internal/testutil"
	"attendly/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

const (
	secret = "mw-secret"
	issuer = "attendly-test"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(db *gorm.DB, encryptKey string, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(middleware.AccessLog(log))
	g := r.Group("/api", middleware.AuthMiddleware(secret, issuer), middleware.AuditMiddleware(db, encryptKey, log))
	whoami := func(c *gin.Context) {
		id, _ := middleware.CurrentOrganizer(c)
		c.String(http.StatusOK, id)
	}
	g.GET("/me", whoami)
	g.POST("/events/:id/stop", whoami)
	g.PUT("/records/:id/status", func(c *gin.Context) {
		c.String(http.StatusConflict, "nope")
	})
	return r
}

func token(t *testing.T, organizerID string) string {
	t.Helper()
	tok, err := util.GenerateToken(secret, issuer, organizerID, time.Hour)
	require.NoError(t, err)
	return tok
}

func TestAuthMiddleware(t *testing.T) {
	r := newEngine(testutil.NewStore(t).DB(), "", zap.NewNop())

	cases := []struct {
		name   string
		setup  func(*http.Request)
		status int
		body   string
	}{
		{"no credentials", func(*http.Request) {}, http.StatusUnauthorized, ""},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token(t, "org-1")) }, http.StatusOK, "org-1"},
		{"lowercase scheme", func(r *http.Request) { r.Header.Set("Authorization", "bearer "+token(t, "org-2")) }, http.StatusOK, "org-2"},
		{"cookie", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: "attendly_org", Value: token(t, "org-3")})
		}, http.StatusOK, "org-3"},
		{"garbage", func(r *http.Request) { r.Header.Set("Authorization", "Bearer x.y.z") }, http.StatusUnauthorized, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			tc.setup(req)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
			if tc.body != "" {
				assert.Equal(t, tc.body, w.Body.String())
			}
		})
	}
}

func TestAuditMiddleware_Plain(t *testing.T) {
	db := testutil.NewStore(t).DB()
	r := newEngine(db, "", zap.NewNop())

	cases := []struct {
		req  *http.Request
		auth bool
	}{
		{httptest.NewRequest(http.MethodGet, "/api/me", nil), true},
		{httptest.NewRequest(http.MethodPost, "/api/events/e1/stop", strings.NewReader(`{"reason":"done"}`)), true},
		{httptest.NewRequest(http.MethodPut, "/api/records/7/status", strings.NewReader(`{"status":"cleared"}`)), true},
		{httptest.NewRequest(http.MethodPost, "/api/events/e1/stop", nil), false},
	}
	for _, tc := range cases {
		if tc.auth {
			tc.req.Header.Set("Authorization", "Bearer "+token(t, "org-1"))
		}
		r.ServeHTTP(httptest.NewRecorder(), tc.req)
	}

	var logs []models.AuditLog
	require.NoError(t, db.Order("id").Find(&logs).Error)
	require.Len(t, logs, 2, "GETs and rejected requests are not audited")

	assert.Equal(t, "org-1", logs[0].OrganizerID)
	assert.Equal(t, "/api/events/e1/stop", logs[0].Path)
	assert.Equal(t, `POST /api/events/e1/stop {"reason":"done"}`, logs[0].Action)
	assert.Equal(t, http.StatusOK, logs[0].Status)
	assert.Empty(t, logs[0].PathEnc)

	assert.Equal(t, http.MethodPut, logs[1].Method)
	assert.Equal(t, http.StatusConflict, logs[1].Status)
}

func TestAuditMiddleware_Encrypted(t *testing.T) {
	db := testutil.NewStore(t).DB()
	r := newEngine(db, "audit-key", zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/events/e9/stop", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer "+token(t, "org-1"))
	r.ServeHTTP(httptest.NewRecorder(), req)

	var entry models.AuditLog
	require.NoError(t, db.First(&entry).Error)
	assert.Empty(t, entry.Path)
	assert.Empty(t, entry.Action)
	assert.NotContains(t, entry.PathEnc, "e9")
	assert.Equal(t, "/api/events/e9/stop", util.DecryptField("audit-key", entry.PathEnc))
	assert.Equal(t, "POST /api/events/e9/stop {}", util.DecryptField("audit-key", entry.ActionEnc))
}

func TestAccessLogLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := newEngine(testutil.NewStore(t).DB(), "", zap.New(core))

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/me", nil))
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, "org-1"))
	r.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, int64(http.StatusUnauthorized), entries[0].ContextMap()["status"])
	assert.Equal(t, zapcore.DebugLevel, entries[1].Level)
	assert.Equal(t, "/api/me", entries[1].ContextMap()["route"])
}

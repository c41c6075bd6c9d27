package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/healthoffice-api/internal/model"
	"github.com/jwalitptl/healthoffice-api/pkg/auth"
)

const secret = "test-secret"

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.GET("/whoami", func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok {
			c.Status(http.StatusNoContent)
			return
		}
		c.JSON(http.StatusOK, actor)
	})
	r.GET("/panic", func(*gin.Context) { panic("boom") })
	return r
}

func get(r http.Handler, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthenticate(t *testing.T) {
	actor := model.Actor{ID: uuid.New(), Role: model.RoleDoctor}
	valid, err := auth.SignToken(secret, "healthoffice", actor, time.Hour)
	require.NoError(t, err)
	expired, err := auth.SignToken(secret, "healthoffice", actor, -time.Minute)
	require.NoError(t, err)
	foreign, err := auth.SignToken("other-secret", "healthoffice", actor, time.Hour)
	require.NoError(t, err)

	r := newEngine(RequestID(), ErrorHandler(), NewAuthMiddleware(auth.NewJWTService(secret, "healthoffice")).Authenticate())

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid", "Bearer " + valid, http.StatusOK},
		{"lowercase scheme", "bearer " + valid, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + valid, http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong key", "Bearer " + foreign, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.header != "" {
				headers["Authorization"] = tt.header
			}
			w := get(r, "/whoami", headers)
			require.Equal(t, tt.status, w.Code)

			if tt.status == http.StatusOK {
				var got model.Actor
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
				assert.Equal(t, actor, got)
				return
			}
			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, "error", body["status"])
			assert.Equal(t, "unauthorized", body["code"])
		})
	}
}

func TestRequestIDPropagation(t *testing.T) {
	r := newEngine(RequestID())

	w := get(r, "/whoami", map[string]string{HeaderXRequestID: "req-42"})
	assert.Equal(t, "req-42", w.Header().Get(HeaderXRequestID))

	w = get(r, "/whoami", nil)
	_, err := uuid.Parse(w.Header().Get(HeaderXRequestID))
	assert.NoError(t, err)
}

func TestRecovery(t *testing.T) {
	r := newEngine(RequestID(), Recovery())

	w := get(r, "/panic", nil)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"status":"error","code":"internal","message":"internal server error"}`, w.Body.String())
}

func TestRateLimit(t *testing.T) {
	limiter := NewRateLimiter(RateLimiterConfig{Rate: 0.001, Burst: 2})
	r := newEngine(limiter.RateLimit())

	assert.Equal(t, http.StatusNoContent, get(r, "/whoami", nil).Code)
	assert.Equal(t, http.StatusNoContent, get(r, "/whoami", nil).Code)

	w := get(r, "/whoami", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestCORS(t *testing.T) {
	r := newEngine(CORS(DefaultCORSConfig([]string{"https://office.example.ph"})))

	w := get(r, "/whoami", map[string]string{"Origin": "https://office.example.ph"})
	assert.Equal(t, "https://office.example.ph", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))

	w = get(r, "/whoami", map[string]string{"Origin": "https://elsewhere.example"})
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSPreflight(t *testing.T) {
	r := newEngine(CORS(DefaultCORSConfig(nil)))

	req := httptest.NewRequest(http.MethodOptions, "/whoami", nil)
	req.Header.Set("Origin", "https://kiosk.example.ph")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://kiosk.example.ph", w.Header().Get("Access-Control-Allow-Origin"))
}

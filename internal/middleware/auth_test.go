package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xelth-com/arcasync/internal/utils"
)

const testSecret = "test-secret-key-12345"

func protected(t *testing.T, apiKeyHash string) (http.Handler, *string) {
	t.Helper()
	var caller string
	h := Auth(testSecret, apiKeyHash)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller = Caller(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))
	return h, &caller
}

func TestAuthBearerToken(t *testing.T) {
	h, caller := protected(t, "")
	token, err := utils.GenerateTriggerToken("cron-host", time.Hour, testSecret)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/brands", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "cron-host", *caller)
}

func TestAuthAPIKey(t *testing.T) {
	hash, err := utils.HashPassword("k3y")
	require.NoError(t, err)
	h, caller := protected(t, hash)

	req := httptest.NewRequest(http.MethodGet, "/brands", nil)
	req.Header.Set("X-API-Key", "k3y")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "api-key", *caller)

	req = httptest.NewRequest(http.MethodGet, "/brands", nil)
	req.Header.Set("X-API-Key", "wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRejects(t *testing.T) {
	h, _ := protected(t, "")
	wrong, err := utils.GenerateTriggerToken("x", time.Hour, "other-secret")
	require.NoError(t, err)

	cases := map[string]string{
		"missing":    "",
		"not bearer": "Basic abc",
		"bad token":  "Bearer " + wrong,
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/brands", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}

	// an API key is refused when no hash is configured
	req := httptest.NewRequest(http.MethodGet, "/brands", nil)
	req.Header.Set("X-API-Key", "anything")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

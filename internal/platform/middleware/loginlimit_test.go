package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoginLimiterLocalWindow(t *testing.T) {
	limiter := NewLoginLimiter(nil, 3, time.Minute, slog.Default())
	handler := limiter.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(remoteAddr string) int {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = remoteAddr
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, do("10.0.0.1:4321"))
	}
	require.Equal(t, http.StatusTooManyRequests, do("10.0.0.1:4321"))

	// A different client has its own window.
	require.Equal(t, http.StatusOK, do("10.0.0.2:4321"))
}

func TestLoginLimiterWindowExpires(t *testing.T) {
	limiter := NewLoginLimiter(nil, 1, 10*time.Millisecond, slog.Default())

	require.True(t, limiter.allowLocal("10.0.0.1"))
	require.False(t, limiter.allowLocal("10.0.0.1"))

	time.Sleep(20 * time.Millisecond)
	require.True(t, limiter.allowLocal("10.0.0.1"))
}

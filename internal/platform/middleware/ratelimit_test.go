package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type RateLimitSuite struct {
	suite.Suite
	logger *slog.Logger
}

func TestRateLimitSuite(t *testing.T) {
	suite.Run(t, new(RateLimitSuite))
}

func (s *RateLimitSuite) SetupTest() {
	s.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func (s *RateLimitSuite) do(h http.Handler, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = ip + ":54321"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func (s *RateLimitSuite) TestLimitsPerIP() {
	handler := RateLimit(NewMemoryCounter(), 3, time.Minute, s.logger)(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	s.Run("allows up to the limit", func() {
		for i := 0; i < 3; i++ {
			rec := s.do(handler, "10.0.0.1")
			s.Equal(http.StatusOK, rec.Code)
		}
	})

	s.Run("rejects the request past the limit", func() {
		rec := s.do(handler, "10.0.0.1")
		s.Equal(http.StatusTooManyRequests, rec.Code)
		s.NotEmpty(rec.Header().Get("Retry-After"))
		s.Equal("0", rec.Header().Get("X-RateLimit-Remaining"))
		s.Contains(rec.Body.String(), "rate_limited")
	})

	s.Run("does not penalize other clients", func() {
		rec := s.do(handler, "10.0.0.2")
		s.Equal(http.StatusOK, rec.Code)
	})
}

type failingCounter struct{}

func (failingCounter) Incr(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("backend down")
}

func (s *RateLimitSuite) TestFailsOpenOnBackendError() {
	handler := RateLimit(failingCounter{}, 1, time.Minute, s.logger)(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	for i := 0; i < 5; i++ {
		rec := s.do(handler, "10.0.0.3")
		s.Equal(http.StatusOK, rec.Code)
	}
}

func (s *RateLimitSuite) TestMemoryCounterExpiresWindows() {
	counter := NewMemoryCounter()
	ctx := context.Background()

	n, err := counter.Incr(ctx, "k", 10*time.Millisecond)
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	n, err = counter.Incr(ctx, "k", 10*time.Millisecond)
	s.Require().NoError(err)
	s.Equal(int64(2), n)

	time.Sleep(20 * time.Millisecond)
	// A fresh key after sweep restarts the count.
	n, err = counter.Incr(ctx, "k2", 10*time.Millisecond)
	s.Require().NoError(err)
	s.Equal(int64(1), n)
	counter.mu.Lock()
	_, stale := counter.entries["k"]
	counter.mu.Unlock()
	s.False(stale)
}

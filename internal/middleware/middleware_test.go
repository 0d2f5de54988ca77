package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"

	"github.com/akolanti/DocsetAgent/internal/config"
	"github.com/akolanti/DocsetAgent/pkg/logger_i"
)

func TestIsValidBearerToken(t *testing.T) {
	log := logger_i.NewLogger("test")
	auth := config.Auth{Token: "s3cret"}

	tests := []struct {
		name   string
		header string
		auth   config.Auth
		valid  bool
	}{
		{name: "Valid", header: "Bearer s3cret", auth: auth, valid: true},
		{name: "Lowercase_Scheme", header: "bearer s3cret", auth: auth, valid: true},
		{name: "Wrong_Token", header: "Bearer nope", auth: auth},
		{name: "Token_Prefix_Only", header: "Bearer s3cre", auth: auth},
		{name: "Empty", header: "", auth: auth},
		{name: "Basic_Scheme", header: "Basic s3cret", auth: auth},
		{name: "No_Token_Configured", header: "Bearer ", auth: config.Auth{}},
		{name: "Bypass", header: "", auth: config.Auth{NoAuthBypass: true}, valid: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValidBearerToken(tt.header, tt.auth, log))
		})
	}
}

func TestIPRateLimiter(t *testing.T) {
	l := NewIPRateLimiter(rate.Limit(0.001), 2)

	assert.True(t, l.GetLimiter("10.0.0.1").Allow())
	assert.True(t, l.GetLimiter("10.0.0.1").Allow())
	assert.False(t, l.GetLimiter("10.0.0.1").Allow())
	assert.True(t, l.GetLimiter("10.0.0.2").Allow(), "limits are per ip")
}

func TestRateOf_ZeroIsUnlimited(t *testing.T) {
	assert.Equal(t, rate.Inf, rateOf(config.Server{}))
	assert.Equal(t, rate.Limit(3), rateOf(config.Server{RateLimitPerSecond: 3}))
}

func TestWrap_TraceHeader(t *testing.T) {
	Init(config.Auth{NoAuthBypass: true}, config.Server{})
	var seen string
	h := Wrap(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = r.Context().Value(config.TRACE_ID_KEY).(string)
		w.WriteHeader(http.StatusNoContent)
	}, true)

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(traceHeader, "abc-123")
	rec := httptest.NewRecorder()
	h(rec, req)
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get(traceHeader))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(traceHeader, "bad trace\nid")
	rec = httptest.NewRecorder()
	h(rec, req)
	assert.NotEqual(t, "bad trace\nid", seen)
	assert.Len(t, seen, 36)
}

func TestWrap_Unauthorized(t *testing.T) {
	Init(config.Auth{Token: "s3cret"}, config.Server{})
	called := false
	h := Wrap(func(w http.ResponseWriter, r *http.Request) { called = true }, true)

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("WWW-Authenticate"), "Bearer"))
}

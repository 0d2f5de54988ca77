package middleware

import (
	"context"
	"crypto/subtle"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/akolanti/DocsetAgent/internal/adapter/utils"
	"github.com/akolanti/DocsetAgent/internal/config"
	"github.com/akolanti/DocsetAgent/internal/handlers"
	"github.com/akolanti/DocsetAgent/pkg/logger_i"
)

const (
	traceHeader   = "X-Trace-Id"
	maxTraceLen   = 64
	bearerPrefix  = "bearer "
	retryAfterSec = 1
)

// injectTrace reuses the caller's trace id when it looks sane and echoes it
// back so the client can quote it.
func injectTrace(re requestResponseStruct) requestResponseStruct {
	req := re.req
	if req == nil {
		re.badRequest = failureStruct{isBadRequest: true, httpCode: http.StatusBadRequest, errorMessage: "request is empty"}
		return re
	}
	trace := req.Header.Get(traceHeader)
	if !validTrace(trace) {
		trace = utils.GetNewUUID()
	}
	re.logger = re.logger.With("traceId", trace)
	re.writer.Header().Set(traceHeader, trace)
	re.req = req.WithContext(context.WithValue(req.Context(), config.TRACE_ID_KEY, trace))
	return re
}

func validTrace(trace string) bool {
	if trace == "" || len(trace) > maxTraceLen {
		return false
	}
	for _, r := range trace {
		if !(r == '-' || r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return true
}

func authenticate(re requestResponseStruct) requestResponseStruct {
	if !IsValidBearerToken(re.req.Header.Get("Authorization"), authConfig, re.logger) {
		re.badRequest = failureStruct{isBadRequest: true, httpCode: http.StatusUnauthorized, errorMessage: "Unauthorized"}
		re.writer.Header().Set("WWW-Authenticate", `Bearer realm="docsets"`)
		return re
	}
	re.logger.Debug("Authorized")
	return re
}

// IsValidBearerToken compares in constant time. The scheme is case-insensitive.
func IsValidBearerToken(authHeader string, auth config.Auth, log *logger_i.Logger) bool {
	if auth.NoAuthBypass {
		log.Warn("auth bypass")
		return true
	}
	if auth.Token == "" {
		log.Error("No auth token configured, every request is refused")
		return false
	}
	if len(authHeader) <= len(bearerPrefix) || !strings.EqualFold(authHeader[:len(bearerPrefix)], bearerPrefix) {
		log.Warn("Missing bearer authorization header")
		return false
	}
	if subtle.ConstantTimeCompare([]byte(authHeader[len(bearerPrefix):]), []byte(auth.Token)) != 1 {
		log.Warn("Invalid bearer token")
		return false
	}
	return true
}

func clientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func rateLimiter(re requestResponseStruct) requestResponseStruct {
	ip := clientIP(re.req)
	if !limiterInstance.GetLimiter(ip).Allow() {
		re.logger.Warn("Rate limit exceeded", "ip", ip)
		re.writer.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
		re.badRequest = failureStruct{isBadRequest: true, httpCode: http.StatusTooManyRequests, errorMessage: "Rate limit exceeded"}
	}
	return re
}

func handleBadRequest(re requestResponseStruct) {
	re.logger.Warn("Bad request", "httpCode", re.badRequest.httpCode, "errorMessage", re.badRequest.errorMessage, "ip", clientIP(re.req))
	handlers.WriteErrorResponse(re.writer, re.badRequest.httpCode, re.badRequest.id, re.badRequest.errorMessage)
}

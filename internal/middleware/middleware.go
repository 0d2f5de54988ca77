package middleware

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/akolanti/DocsetAgent/internal/config"
	"github.com/akolanti/DocsetAgent/internal/handlers"
	"github.com/akolanti/DocsetAgent/internal/metrics"
	"github.com/akolanti/DocsetAgent/pkg/logger_i"
)

type requestResponseStruct struct {
	writer     http.ResponseWriter
	req        *http.Request
	badRequest failureStruct
	logger     *logger_i.Logger
}

type failureStruct struct {
	isBadRequest bool
	httpCode     int
	errorMessage string
	id           string
}

var (
	authConfig      config.Auth
	limiterInstance = NewIPRateLimiter(rateOf(config.Server{}), 1)
)

// Init must run before the server takes requests.
func Init(auth config.Auth, server config.Server) {
	authConfig = auth
	limiterInstance = NewIPRateLimiter(rateOf(server), server.BurstRateLimit)
}

var GetHandler = Wrap(handlers.GetHandler, false)

var ListDocsetsHandler = Wrap(handlers.ListDocsetsHandler, true)
var IndexDocsetHandler = Wrap(handlers.IndexDocsetHandler, true)
var AskDocsetHandler = Wrap(handlers.AskDocsetHandler, true)
var GetStatusHandler = Wrap(handlers.GetStatusHandler, true)

// Wrap runs trace injection, then auth and the per IP limit when protected.
func Wrap(next http.HandlerFunc, protected bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &metrics.HttpStatusRecorder{ResponseWriter: w, Status: 200} //metrics
		re := processRequest(requestResponseStruct{req: r, writer: rec}, protected)

		if re.badRequest.isBadRequest {
			handleBadRequest(re)
		} else {
			next(rec, re.req)
		}

		metrics.HttpRequestsTotal.WithLabelValues(routeOf(r), strconv.Itoa(rec.Status)).Inc() //metrics
	}
}

func processRequest(re requestResponseStruct, protected bool) requestResponseStruct {
	re.logger = logger_i.NewLogger("middleware")
	re.logger.Debug("New request received", "path", re.req.URL.Path)
	re = injectTrace(re)
	if re.badRequest.isBadRequest || !protected {
		return re
	}
	re = authenticate(re)
	if re.badRequest.isBadRequest {
		return re //stop if auth fails
	}
	return rateLimiter(re)
}

// routeOf keeps the metric label bounded, /status/{id} instead of every id.
func routeOf(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/akolanti/DocsetAgent/internal/adapter/utils"
	"github.com/akolanti/DocsetAgent/internal/config"
	"github.com/akolanti/DocsetAgent/internal/middleware"
	"github.com/akolanti/DocsetAgent/pkg/logger_i"
)

var (
	server  *http.Server
	_logger = logger_i.NewLogger("Server")
)

type ShutdownParams struct {
	GracefulShutdown chan os.Signal
	StopExecution    chan bool
	WorkerStop       chan bool
	Group            *sync.WaitGroup
	CloseServices    context.CancelFunc
}

// Routes builds the router, middleware.Init and handlers.InitJobHandler must
// have run first.
func Routes() *chi.Mux {
	r := utils.NewRouter()

	r.Get("/health", middleware.GetHandler)
	r.Get("/docsets", middleware.ListDocsetsHandler)
	r.Post("/docsets/{id}/index", middleware.IndexDocsetHandler)
	r.Post("/docsets/{id}/ask", middleware.AskDocsetHandler)
	r.Get("/status/{id}", middleware.GetStatusHandler)
	return r
}

// CreateServer blocks until the server is shut down.
func CreateServer(cfg config.Server) {
	_logger = logger_i.NewLogger("Server")

	server = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      Routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	_logger.Info("Server is listening at", "address", cfg.ListenAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		_logger.Error("Server crashed", "error", err.Error(), "addr", cfg.ListenAddr)
	}
}

func ShutDownHandler(shutdownParams ShutdownParams) {
	state := <-shutdownParams.GracefulShutdown
	_logger.Info("Server is shutting down", "signal", state.String())

	ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownContextTimeout)
	defer cancel()

	done := make(chan struct{})

	go func() {
		if server != nil {
			server.SetKeepAlivesEnabled(false)
			if err := server.Shutdown(ctx); err != nil {
				_logger.Error("Could not shutdown gracefully", "error", err)
			}
		}

		//close workers
		close(shutdownParams.WorkerStop)
		shutdownParams.Group.Wait()
		shutdownParams.CloseServices()
		close(shutdownParams.StopExecution)
		close(done)
	}()

	select {
	case <-done:
		_logger.Info("Gracefully shut down")
	case <-ctx.Done():
		_logger.Info("Force Shut down")
		os.Exit(1)
	}
}

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/akolanti/DocsetAgent/internal/app"
	"github.com/akolanti/DocsetAgent/internal/config"
	"github.com/akolanti/DocsetAgent/internal/domain/jobModel"
	"github.com/akolanti/DocsetAgent/internal/handlers"
	"github.com/akolanti/DocsetAgent/internal/job"
	"github.com/akolanti/DocsetAgent/internal/middleware"
	"github.com/akolanti/DocsetAgent/internal/server"
	"github.com/akolanti/DocsetAgent/internal/worker"
	"github.com/akolanti/DocsetAgent/pkg/logger_i"
)

var (
	configPath        string
	listenAddr        string
	stopWorkerChannel chan bool
	workerWaitGroup   sync.WaitGroup
)

func main() {
	flag.StringVar(&configPath, "config", "config.yaml", "path to the YAML config")
	flag.StringVar(&listenAddr, "listen-addr", "", "server listen address, overrides the config")
	flag.Parse()

	cfg, err := config.Load(configPath)
	logger_i.Init(cfg.Logging)
	var logger = logger_i.NewLogger("main")
	if err != nil {
		logger.Error("Config failed to load", "error", err)
		os.Exit(1)
	}
	if listenAddr != "" {
		cfg.Server.ListenAddr = listenAddr
	}

	//init buffered job channel
	jobChannel := make(chan jobModel.Job, cfg.Workers.BufferLimit)
	dispatcherChannel := make(chan bool, 1)
	stopWorkerChannel = make(chan bool, 1)

	serviceContext, closeExternalServices := context.WithCancel(context.Background())
	defer closeExternalServices()

	jobStore, messageStore, err := app.NewStores(serviceContext, cfg.Redis)
	if err != nil {
		logger.Error("Redis stores are offline", "error", err)
		return
	}
	logger.Info("Starting job service")
	service := job.InitJobService(job.ServiceConfig{
		JobChannel:           jobChannel,
		DispatcherChannel:    dispatcherChannel,
		JobStore:             jobStore,
		MessageStore:         messageStore,
		RequestsPerNewWorker: cfg.Workers.RequestsPerNewWorkerCount,
	})

	a, err := app.New(serviceContext, cfg)
	if err != nil {
		logger.Error("One or more external services failed to initialize. Shutting down.", "error", err)
		return
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("Closing docset runtimes", "error", err)
		}
	}()

	handlers.InitJobHandler(service, a.Rag)
	middleware.Init(cfg.Auth, cfg.Server)

	//init worker pool
	worker.InitServices(service, a.Rag)
	worker.InitWorkerPool(cfg.Workers, stopWorkerChannel, &workerWaitGroup)

	//server handling
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	stopExecution := make(chan bool, 1)

	shutdownParams := server.ShutdownParams{
		GracefulShutdown: gracefulShutdown,
		StopExecution:    stopExecution,
		WorkerStop:       stopWorkerChannel,
		Group:            &workerWaitGroup,
		CloseServices:    closeExternalServices,
	}
	go server.ShutDownHandler(shutdownParams)
	go server.CreateServer(cfg.Server)

	<-stopExecution
	logger.Info("Server stopped")
}

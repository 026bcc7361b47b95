package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/minhokim/shareledger/params"
	"github.com/minhokim/shareledger/pkg/api"
	"github.com/minhokim/shareledger/pkg/app/rwa"
	"github.com/minhokim/shareledger/pkg/storage"
	"github.com/minhokim/shareledger/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLoggerWithFile(cfg.Node.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Node.LogFile)

	// ---- Durable store ----
	store, err := storage.NewStore(cfg.Node.DataDir)
	if err != nil {
		sugar.Fatalw("store_open_failed", "path", cfg.Node.DataDir, "err", err)
	}
	defer store.Close()

	// ---- Ledger application ----
	// The recorder sink stands in for the external settlement rail: outbound
	// payments are recorded and logged rather than wired anywhere.
	app, err := rwa.NewApp(rwa.Options{
		Store:  store,
		Sink:   rwa.NewRecorderSink(sugar),
		Logger: sugar,
	})
	if err != nil {
		sugar.Fatalw("app_init_failed", "err", err)
	}

	// ---- API ----
	server := api.NewServer(app, sugar)
	go func() {
		if err := server.Start(cfg.Node.ListenAddr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()
	sugar.Infow("node_started", "listen", cfg.Node.ListenAddr, "data_dir", cfg.Node.DataDir)

	// Block until interrupted
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	sugar.Infow("shutting_down")
}

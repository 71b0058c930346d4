package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"mozo-cocina/internal/audit"
	"mozo-cocina/internal/catalog"
	"mozo-cocina/internal/config"
	"mozo-cocina/internal/connections/database"
	"mozo-cocina/internal/connections/rabbitmq"
	"mozo-cocina/internal/hub"
	"mozo-cocina/internal/ledger"
	"mozo-cocina/internal/logger"
	"mozo-cocina/internal/notes"
	"mozo-cocina/internal/relay"
	"mozo-cocina/internal/reports"
	"mozo-cocina/internal/server"
	"mozo-cocina/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	port := flag.Int("port", 0, "override http port")
	flag.Parse()

	// .env is optional; local dev convenience only.
	_ = godotenv.Load()

	lg := logger.New("bootstrap")

	cfg, err := config.Load(*configPath)
	if err != nil {
		lg.Error("config_load_failed", err, map[string]any{"path": *configPath})
		os.Exit(1)
	}
	if *port != 0 {
		cfg.HTTP.Port = *port
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		lg.Error("db_connect_failed", err, nil)
		os.Exit(1)
	}
	defer db.Close()

	if err := ledger.InitSchema(ctx, db.Pool); err != nil {
		lg.Error("schema_init_failed", err, nil)
		os.Exit(1)
	}

	kitchenHub := hub.New(logger.New("hub"))

	if cfg.RabbitMQ.Enabled {
		mq, err := rabbitmq.Dial(cfg.RabbitMQ)
		if err != nil {
			lg.Error("rabbitmq_connect_failed", err, nil)
			os.Exit(1)
		}
		defer mq.Close()
		if err := mq.DeclareAll(); err != nil {
			lg.Error("rabbitmq_declare_failed", err, nil)
			os.Exit(1)
		}
		go relay.New(mq, kitchenHub, logger.New("relay")).Run(ctx)
	}

	catalogStore := catalog.NewStore(db.Pool)
	auditRecorder := audit.NewRecorder(db.Pool)
	ledgerSvc := ledger.NewService(
		ledger.NewPGRepository(db.Pool, logger.New("ledger-repo")),
		catalogStore,
		auditRecorder,
		kitchenHub,
		logger.New("ledger"),
	)

	srv := server.New(cfg.HTTP, server.Deps{
		Ledger:  ledgerSvc,
		Catalog: catalogStore,
		Audit:   auditRecorder,
		Notes:   notes.NewStore(db.Pool, kitchenHub),
		Reports: reports.NewStore(db.Pool),
		WS:      ws.NewHandler(kitchenHub, logger.New("ws")),
	}, logger.New("http"))

	lg.Info("service_started", map[string]any{"port": cfg.HTTP.Port})
	if err := srv.Run(ctx); err != nil {
		lg.Error("fatal", err, nil)
		os.Exit(1)
	}
	lg.Info("service_stopped", nil)
}

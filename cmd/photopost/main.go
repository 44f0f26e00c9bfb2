package main

import (
	"flag"
	"log"

	"go.uber.org/zap"

	"github.com/eringen/photopost"
	"github.com/eringen/photopost/journal"
)

func main() {
	configPath := flag.String("config", "config.yml", "path to the configuration file")
	flag.Parse()

	cfg, err := photopost.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	j, err := journal.Open(cfg.JournalPath)
	if err != nil {
		logger.Fatal("open journal", zap.Error(err))
	}
	defer j.Close()

	app, err := photopost.New(cfg, photopost.Deps{Log: logger, Journal: j})
	if err != nil {
		logger.Fatal("init app", zap.Error(err))
	}

	logger.Info("starting server",
		zap.String("addr", cfg.Addr),
		zap.String("blog", cfg.BlogPath),
		zap.Bool("dry_run", cfg.DryRun),
	)
	if err := app.Start(); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

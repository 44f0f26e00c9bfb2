// Command notify sends one digest email run: it looks for posts newer than
// the last digest and mails the configured recipients. Meant to run from
// cron.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/eringen/photopost"
	"github.com/eringen/photopost/journal"
	"github.com/eringen/photopost/notify"
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

	n := notify.New(notify.Config{
		APIURL:         cfg.Mail.APIURL,
		APIKey:         cfg.Mail.APIKey,
		From:           cfg.Mail.From,
		ReplyTo:        cfg.Mail.ReplyTo,
		Domain:         cfg.Domain,
		BlogPath:       cfg.BlogPath,
		RecipientsPath: cfg.Mail.RecipientsPath,
	}, j, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := n.Run(ctx); err != nil {
		logger.Fatal("digest failed", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// mailsync runs one IMAP pass over the configured mailbox: recent messages
// are parsed by the extractor and applied to the tracked companies through
// the same reconciliation path the HTTP API uses.
package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/monorhythm/shukatsu/internal/tracker/controller"
	"github.com/monorhythm/shukatsu/internal/tracker/db"
	"github.com/monorhythm/shukatsu/internal/tracker/events"
	"github.com/monorhythm/shukatsu/internal/tracker/ingest"
)

type Config struct {
	DBDriver   string `yaml:"DB_DRIVER"`
	DBPath     string `yaml:"DB_PATH"`
	DBHost     string `yaml:"DB_HOST"`
	DBPort     int    `yaml:"DB_PORT"`
	DBUser     string `yaml:"DB_USER"`
	DBPassword string `yaml:"DB_PASSWORD"`
	DBName     string `yaml:"DB_NAME"`
	DBSSLMode  string `yaml:"DB_SSLMODE"`

	IMAPAddr     string `yaml:"IMAP_ADDR"`
	IMAPUser     string `yaml:"IMAP_USER"`
	IMAPPassword string `yaml:"IMAP_PASSWORD"`
	IMAPFolder   string `yaml:"IMAP_FOLDER"`
	IMAPDays     int    `yaml:"IMAP_DAYS"`
	IMAPMaxMails int    `yaml:"IMAP_MAX_MAILS"`
}

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	cfg, err := loadConfig()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	if cfg.IMAPAddr == "" {
		logger.Fatal("IMAP_ADDR not configured")
	}

	repo, err := db.NewRepository(&db.Config{
		Driver:   cfg.DBDriver,
		Path:     cfg.DBPath,
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		DBName:   cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	})
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer repo.Close()

	svc := controller.NewTrackerService(repo, events.NopProducer{}, logger)
	syncer := ingest.NewSyncer(ingest.Config{
		Addr:     cfg.IMAPAddr,
		Username: cfg.IMAPUser,
		Password: cfg.IMAPPassword,
		Folder:   cfg.IMAPFolder,
		Days:     cfg.IMAPDays,
		MaxMails: cfg.IMAPMaxMails,
	}, svc, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	summary, err := syncer.Sync(ctx)
	if err != nil {
		logger.Fatal("mail sync failed", zap.Error(err))
	}

	logger.Info("mail sync finished",
		zap.Int("fetched", summary.Fetched),
		zap.Any("applied", summary.Applied),
	)
}

func loadConfig() (*Config, error) {
	configPath := os.Getenv("SHUKATSU_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("internal", "tracker", "config", "config.yaml")
	}
	file, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(file, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

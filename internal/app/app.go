package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/btranTFT/TrackingPrivacyAttacks/internal/adapters/alerts"
	"github.com/btranTFT/TrackingPrivacyAttacks/internal/adapters/httpapi"
	sqliteadapter "github.com/btranTFT/TrackingPrivacyAttacks/internal/adapters/sqlite"
	"github.com/btranTFT/TrackingPrivacyAttacks/internal/adapters/sqlite/gormsqlite"
	"github.com/btranTFT/TrackingPrivacyAttacks/internal/core/detect"
	"github.com/btranTFT/TrackingPrivacyAttacks/internal/core/ports"
	"github.com/btranTFT/TrackingPrivacyAttacks/internal/core/usecase"
	"github.com/btranTFT/TrackingPrivacyAttacks/migrations"
)

type Config struct {
	Addr               string
	DBPath             string
	CatalogFile        string
	AlertWebhookURL    string
	AlertWebhookSecret string
}

type resourceCloser struct {
	closers []io.Closer
}

func (r resourceCloser) Close() error {
	var firstErr error
	for _, c := range r.closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func NewServer(ctx context.Context, cfg Config) (*http.Server, io.Closer, error) {
	db, err := gormsqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open tracker sqlite: %w", err)
	}

	writeSQLDB, err := db.WriteSQLDB()
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("resolve writer sql db: %w", err)
	}

	migrateCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := migrations.Up(migrateCtx, writeSQLDB); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	catalog := detect.DefaultCatalog()
	if cfg.CatalogFile != "" {
		catalog, err = detect.LoadCatalogFile(cfg.CatalogFile)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
	}

	store := sqliteadapter.NewEventStore(db)
	alertRepo := sqliteadapter.NewAlertRepository(db)

	ingestService := usecase.NewIngestService(store, alertRepo, detect.NewClassifier(catalog))
	analyticsService := usecase.NewAnalyticsService(store)

	var publisher ports.AlertPublisher = alerts.NewLogPublisher()
	if cfg.AlertWebhookURL != "" {
		publisher = alerts.NewWebhookPublisher(cfg.AlertWebhookURL, cfg.AlertWebhookSecret, 0)
	}
	dispatcher := usecase.NewAlertDispatcher(alertRepo, publisher, 2*time.Second, 100)
	dispatcher.Start(context.Background())

	handler := httpapi.NewHandler(ingestService, analyticsService)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return server, resourceCloser{closers: []io.Closer{dispatcher, db}}, nil
}

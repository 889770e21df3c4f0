package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/btranTFT/TrackingPrivacyAttacks/internal/app"
	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:  "tracker",
		Usage: "Behavioral telemetry ingestion with sensitive-data leakage detection",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Value: ":8080",
				Usage: "HTTP listen address",
			},
			&cli.StringFlag{
				Name:  "db-path",
				Value: "./tracker_data.db",
				Usage: "SQLite file path",
			},
			&cli.StringFlag{
				Name:    "catalog-file",
				Sources: cli.EnvVars("TRACKER_CATALOG_FILE"),
				Usage:   "YAML file with sensitive terms (replaces the built-in catalog)",
			},
			&cli.StringFlag{
				Name:    "alert-webhook-url",
				Sources: cli.EnvVars("TRACKER_ALERT_WEBHOOK_URL"),
				Usage:   "Leak alert webhook target URL (enables push delivery to monitoring receivers)",
			},
			&cli.StringFlag{
				Name:    "alert-webhook-secret",
				Sources: cli.EnvVars("TRACKER_ALERT_WEBHOOK_SECRET"),
				Usage:   "HMAC-SHA256 signing secret for outbound alert webhooks",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg := app.Config{
				Addr:               c.String("addr"),
				DBPath:             c.String("db-path"),
				CatalogFile:        c.String("catalog-file"),
				AlertWebhookURL:    c.String("alert-webhook-url"),
				AlertWebhookSecret: c.String("alert-webhook-secret"),
			}

			server, closer, err := app.NewServer(ctx, cfg)
			if err != nil {
				return fmt.Errorf("create server: %w", err)
			}
			defer func() {
				if closeErr := closer.Close(); closeErr != nil {
					log.Printf("close resources: %v", closeErr)
				}
			}()

			errCh := make(chan error, 1)
			go func() {
				log.Printf("listening on %s", cfg.Addr)
				errCh <- server.ListenAndServe()
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			select {
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			case sig := <-sigCh:
				log.Printf("received signal %s", sig)
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			}
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

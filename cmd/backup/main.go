// cmd/backup/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"
	flag "github.com/spf13/pflag"

	"github.com/semmidev/harmony/internal/app"
	"github.com/semmidev/harmony/internal/config"
	"github.com/semmidev/harmony/internal/infrastructure/logger"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v\n", err)
	}
}

func run() error {
	configPath := flag.StringP("config", "c", "configs/config.yaml", "path to config file")
	runJob := flag.String("run", "", "run the named backup job once and exit")
	health := flag.Bool("health", false, "print the backup health report and exit")
	authorizeDrive := flag.String("authorize-gdrive", "", "serve the Google Drive consent flow for this OAuth client secret file")
	authAddr := flag.String("auth-addr", "localhost:8085", "listen address of the consent flow")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *authorizeDrive != "" {
		l, err := logger.New(&config.AppConfig{Name: "harmony", LogLevel: "info"})
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		defer l.Close()
		d, err := app.NewDriveAuthorizer(l, *authorizeDrive)
		if err != nil {
			return fmt.Errorf("initialize drive authorizer: %w", err)
		}
		return d.Serve(ctx, *authAddr)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	application, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize app: %w", err)
	}
	defer application.Shutdown()

	switch {
	case *health:
		report, err := application.Health.HealthCheck(ctx)
		if err != nil {
			return fmt.Errorf("health check: %w", err)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)

	case *runJob != "":
		if err := application.Prepare(ctx); err != nil {
			return err
		}
		exec, err := application.RunJob(ctx, *runJob)
		if err != nil {
			return fmt.Errorf("run %s: %w", *runJob, err)
		}
		if exec.ErrorMessage != "" {
			return fmt.Errorf("run %s: %s", *runJob, exec.ErrorMessage)
		}
		return nil
	}

	return application.Run(ctx)
}

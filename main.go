package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/customeros/dmarcstack/config"
	"github.com/customeros/dmarcstack/internal/database"
	"github.com/customeros/dmarcstack/internal/logger"
	"github.com/customeros/dmarcstack/internal/repository"
	"github.com/customeros/dmarcstack/internal/utils"
	"github.com/customeros/dmarcstack/server"
	"github.com/customeros/dmarcstack/services"
	"github.com/customeros/dmarcstack/services/source"
)

const defaultIngestLimit = 10

func main() {
	app := &cli.App{
		Name:  "dmarcstack",
		Usage: "DMARC aggregate report ingestion and analytics",
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "Run database migrations",
				Action: runMigrate,
			},
			{
				Name:   "server",
				Usage:  "Start the application server",
				Action: runServer,
			},
			{
				Name:      "ingest",
				Usage:     "Ingest aggregate reports from JSON files",
				ArgsUsage: "<file> [file...]",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "maximum number of reports to ingest, 0 for all",
						Value: defaultIngestLimit,
					},
				},
				Action: runIngest,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func setup() (*config.Config, logger.Logger, error) {
	cfg, err := config.InitConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("config initialization failed: %w", err)
	}

	appLogger := logger.NewAppLogger(cfg.Logger)
	appLogger.InitLogger()
	return cfg, appLogger, nil
}

func runMigrate(_ *cli.Context) error {
	cfg, appLogger, err := setup()
	if err != nil {
		return err
	}
	defer appLogger.Sync()

	db, err := database.InitDatabase(cfg.DatabaseConfig, appLogger)
	if err != nil {
		return err
	}
	if err = repository.MigrateDB(cfg.DatabaseConfig, db, appLogger); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}
	appLogger.Info("Database migration completed successfully")
	return nil
}

func runServer(c *cli.Context) error {
	cfg, appLogger, err := setup()
	if err != nil {
		return err
	}
	defer appLogger.Sync()

	db, err := database.InitDatabase(cfg.DatabaseConfig, appLogger)
	if err != nil {
		return err
	}

	appLogger.Info("dmarcstack starting up...")
	srv, err := server.NewServer(c.Context, cfg, appLogger, db)
	if err != nil {
		return fmt.Errorf("server setup failed: %w", err)
	}
	if err = srv.Run(); err != nil {
		return fmt.Errorf("server startup failed: %w", err)
	}
	appLogger.Info("Shutdown complete")
	return nil
}

func runIngest(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("ingest needs at least one report file", 2)
	}

	cfg, appLogger, err := setup()
	if err != nil {
		return err
	}
	defer appLogger.Sync()

	db, err := database.InitDatabase(cfg.DatabaseConfig, appLogger)
	if err != nil {
		return err
	}

	ctx := utils.SetAppSourceInContext(context.Background(), "dmarcstack-cli")
	// the queue source is never consumed here
	cfg.AppConfig.RabbitMQURL = ""
	svcs, err := services.InitServices(ctx, cfg, appLogger, repository.InitRepositories(db))
	if err != nil {
		return err
	}

	files := source.NewFileSource(c.Args().Slice()...)
	reports, err := files.Fetch(ctx, c.Int("limit"))
	if err != nil {
		return err
	}

	result, runErr := svcs.IngestionService.Run(ctx, reports)
	if result != nil {
		encoder := json.NewEncoder(c.App.Writer)
		encoder.SetIndent("", "  ")
		if err = encoder.Encode(result); err != nil {
			return err
		}
	}
	return runErr
}

package app

import (
	"context"
	"fmt"
	"log"

	"github.com/xelth-com/arcasync/internal/arca"
	"github.com/xelth-com/arcasync/internal/config"
	"github.com/xelth-com/arcasync/internal/database"
	"github.com/xelth-com/arcasync/internal/decoder"
	"github.com/xelth-com/arcasync/internal/importer"
	"github.com/xelth-com/arcasync/internal/jobs"
	"github.com/xelth-com/arcasync/internal/notify"
	"github.com/xelth-com/arcasync/internal/prestashop"
	"github.com/xelth-com/arcasync/internal/snapshot"
)

// App holds the long-lived connections shared by the server and the CLI
type App struct {
	Config  *config.Config
	DB      *database.DB
	Store   *arca.Store
	Shop    *prestashop.Client
	Catalog *snapshot.Builder
	Mailer  *notify.Dispatcher
	Runner  *jobs.Runner
	Ledger  *jobs.GormLedger
}

// New opens the ledger and the ERP, then registers every job on a runner.
// events may be nil.
func New(cfg *config.Config, events jobs.Publisher) (*App, error) {
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}

	store, err := arca.Connect(cfg.Arca)
	if err != nil {
		db.Close()
		return nil, err
	}

	syncCfg := config.LoadSyncConfig()
	shop := prestashop.NewClient(cfg.PrestaShop)
	catalog := snapshot.NewBuilder(store, decoder.New(syncCfg, cfg.Catalog.AvailableNowLabel), cfg.Catalog)

	mailer := notify.New(cfg.Mail)
	mailer.Start()

	ledger := jobs.NewGormLedger(db)
	runner := jobs.NewRunner(cfg.LogDir, ledger, events)
	jobs.RegisterAll(runner, jobs.Deps{
		Catalog:  catalog,
		Remote:   shop,
		Images:   store,
		Importer: importer.New(store, shop, mailer, cfg.PrestaShop, cfg.Documents),
		Config:   cfg.Catalog,
	})

	return &App{
		Config:  cfg,
		DB:      db,
		Store:   store,
		Shop:    shop,
		Catalog: catalog,
		Mailer:  mailer,
		Runner:  runner,
		Ledger:  ledger,
	}, nil
}

// PingLedger checks the ledger connection
func (a *App) PingLedger(ctx context.Context) error {
	sqlDB, err := a.DB.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close stops the runner first so that in-flight runs can still write the ledger
func (a *App) Close(ctx context.Context) {
	if err := a.Runner.Shutdown(ctx); err != nil {
		log.Printf("⚠️ Runner shutdown: %v", err)
	}
	a.Mailer.Close()

	if err := a.Store.Close(); err != nil {
		log.Printf("Arca close error: %v", err)
	}
	log.Println("🛑 Closing database connection...")
	if err := a.DB.Close(); err != nil {
		log.Printf("Database close error: %v", err)
	}
}

// Package arca reads and writes the Arca ERP database (SQL Server).
// Queries are raw SQL over the Arca schema, executed through gorm.
package arca

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/xelth-com/arcasync/internal/config"
	"gorm.io/driver/sqlserver"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store is the process-wide handle on the ERP database
type Store struct {
	db *gorm.DB
}

// Trigger identifies a table trigger that is disabled around bulk inserts
type Trigger struct {
	Name  string
	Table string
}

var (
	TriggerDocumentLine = Trigger{Name: "dbo.DORig_atrg_brd", Table: "dbo.DORig"}
	TriggerMovement     = Trigger{Name: "dbo.MGMov_atrg", Table: "dbo.MGMov"}
	TriggerShippingFee  = Trigger{Name: "dbo.DORigSpesa_atrg_brd", Table: "dbo.DORigSpesa"}
)

// Connect opens the ERP database
func Connect(cfg config.ArcaConfig) (*Store, error) {
	log.Printf("🏭 Connecting to Arca at %s:%s (%s)", cfg.Host, cfg.Port, cfg.Database)

	logLevel := logger.Silent
	if cfg.Debug {
		logLevel = logger.Info
	}

	db, err := gorm.Open(sqlserver.Open(buildDSN(cfg)), &gorm.Config{
		Logger:                 logger.Default.LogMode(logLevel),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to arca: %w", err)
	}

	sqlDB, err := db.DB()
	if err == nil {
		sqlDB.SetMaxIdleConns(2)
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	log.Println("✅ Arca connection established")
	return &Store{db: db}, nil
}

// NewStore wraps an existing gorm handle
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Close releases the connection pool
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks that the database answers
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func buildDSN(cfg config.ArcaConfig) string {
	u := &url.URL{
		Scheme: "sqlserver",
		User:   url.UserPassword(cfg.Username, cfg.Password),
		Host:   cfg.Host,
	}
	if cfg.Port != "" {
		u.Host = cfg.Host + ":" + cfg.Port
	}
	if cfg.Instance != "" {
		u.Path = "/" + cfg.Instance
	}
	q := url.Values{}
	q.Set("database", cfg.Database)
	u.RawQuery = q.Encode()
	return u.String()
}

// WithTriggerDisabled disables a trigger, runs fn and always re-enables the
// trigger, also when fn fails or panics. A failed re-enable is joined to fn's error.
func (s *Store) WithTriggerDisabled(ctx context.Context, t Trigger, fn func() error) (err error) {
	if execErr := s.db.WithContext(ctx).Exec(fmt.Sprintf("DISABLE TRIGGER %s ON %s", t.Name, t.Table)).Error; execErr != nil {
		return fmt.Errorf("disable trigger %s: %w", t.Name, execErr)
	}

	defer func() {
		// a cancelled run must still restore the trigger
		enableErr := s.db.WithContext(context.WithoutCancel(ctx)).
			Exec(fmt.Sprintf("ENABLE TRIGGER %s ON %s", t.Name, t.Table)).Error
		if enableErr != nil {
			log.Printf("❌ Failed to re-enable trigger %s: %v", t.Name, enableErr)
			err = errors.Join(err, fmt.Errorf("enable trigger %s: %w", t.Name, enableErr))
		}
	}()

	return fn()
}

// column is one (name, value) pair of an INSERT
type column struct {
	name  string
	value interface{}
}

// insertSQL renders INSERT INTO table (a, b) VALUES (?, ?)
func insertSQL(table string, cols []column) (string, []interface{}) {
	names := make([]string, len(cols))
	marks := make([]string, len(cols))
	args := make([]interface{}, len(cols))
	for i, c := range cols {
		names[i] = c.name
		marks[i] = "?"
		args[i] = c.value
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(names, ", "), strings.Join(marks, ", ")), args
}

func (s *Store) insert(ctx context.Context, table string, cols []column) error {
	query, args := insertSQL(table, cols)
	if err := s.db.WithContext(ctx).Exec(query, args...).Error; err != nil {
		return fmt.Errorf("insert into %s: %w", table, err)
	}
	return nil
}

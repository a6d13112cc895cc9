package database

import (
	"bufio"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/xelth-com/arcasync/internal/config"
	"github.com/xelth-com/arcasync/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Ledger drivers
const (
	DriverPostgres = "postgres"
	DriverEmbedded = "embedded"
	DriverSQLite   = "sqlite"
)

const embeddedPassword = "postgres"

// DB wraps gorm.DB and includes a reference to an embedded process if active
type DB struct {
	*gorm.DB
	Driver   string
	embedded *embeddedpostgres.EmbeddedPostgres
}

// ResolveDriver picks the ledger driver. An explicit driver wins; otherwise a
// local host without password means the bundled postgres.
func ResolveDriver(cfg config.DatabaseConfig) (string, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "":
		if cfg.Host == "localhost" && cfg.Password == "" {
			return DriverEmbedded, nil
		}
		return DriverPostgres, nil
	case DriverPostgres:
		return DriverPostgres, nil
	case DriverEmbedded:
		return DriverEmbedded, nil
	case DriverSQLite:
		return DriverSQLite, nil
	default:
		return "", fmt.Errorf("unknown ledger driver %q", cfg.Driver)
	}
}

// Connect opens the run ledger
func Connect(cfg config.DatabaseConfig) (*DB, error) {
	driver, err := ResolveDriver(cfg)
	if err != nil {
		return nil, err
	}

	gormCfg := &gorm.Config{
		Logger:  logger.Default.LogMode(logLevel(cfg.Debug)),
		NowFunc: func() time.Time { return time.Now().UTC() },
	}

	switch driver {
	case DriverSQLite:
		return openSQLite(cfg, gormCfg)
	case DriverEmbedded:
		embedded, err := startEmbedded(cfg)
		if err != nil {
			return nil, err
		}
		cfg.Host = "localhost"
		cfg.Port = strconv.Itoa(cfg.EmbeddedPort)
		cfg.Password = embeddedPassword
		db, err := openPostgres(cfg, gormCfg)
		if err != nil {
			_ = embedded.Stop()
			return nil, err
		}
		db.Driver = DriverEmbedded
		db.embedded = embedded
		return db, nil
	default:
		log.Printf("🌐 Ledger: [External PostgreSQL] %s:%s/%s", cfg.Host, cfg.Port, cfg.Database)
		return openPostgres(cfg, gormCfg)
	}
}

func logLevel(debug bool) logger.LogLevel {
	if debug {
		return logger.Info
	}
	return logger.Warn
}

// PostgresDSN builds the connection string of the ledger database
func PostgresDSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database,
	)
}

func openPostgres(cfg config.DatabaseConfig, gormCfg *gorm.Config) (*DB, error) {
	db, err := gorm.Open(postgres.Open(PostgresDSN(cfg)), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ledger database: %w", err)
	}

	// One run per job at a time, so a handful of connections is plenty
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxIdleConns(2)
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	log.Println("✅ Ledger connection established")
	return &DB{DB: db, Driver: DriverPostgres}, nil
}

func openSQLite(cfg config.DatabaseConfig, gormCfg *gorm.Config) (*DB, error) {
	if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}
	log.Printf("📒 Ledger: [SQLite] %s", cfg.SQLitePath)

	db, err := gorm.Open(sqlite.Open(cfg.SQLitePath+"?_busy_timeout=5000"), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger file: %w", err)
	}
	// sqlite takes one writer; runs finishing together queue on the pool
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	return &DB{DB: db, Driver: DriverSQLite}, nil
}

// startEmbedded runs the bundled postgres on the ledger data directory
func startEmbedded(cfg config.DatabaseConfig) (*embeddedpostgres.EmbeddedPostgres, error) {
	log.Printf("📦 Ledger: [Embedded PostgreSQL] %s on port %d", cfg.EmbeddedDir, cfg.EmbeddedPort)

	stopOrphan(filepath.Join(cfg.EmbeddedDir, "postmaster.pid"))
	if err := waitForPort(cfg.EmbeddedPort, 3*time.Second); err != nil {
		return nil, err
	}

	embedded := embeddedpostgres.NewDatabase(embeddedpostgres.DefaultConfig().
		DataPath(cfg.EmbeddedDir).
		Port(uint32(cfg.EmbeddedPort)).
		Database(cfg.Database).
		Username(cfg.Username).
		Password(embeddedPassword))
	if err := embedded.Start(); err != nil {
		return nil, fmt.Errorf("failed to start embedded ledger database: %w", err)
	}
	return embedded, nil
}

// stopOrphan stops a postgres left running by a crashed previous process and
// removes its pid file
func stopOrphan(pidFile string) {
	pid, err := readPID(pidFile)
	if err != nil {
		return
	}

	process, err := os.FindProcess(pid)
	if err != nil || process.Signal(syscall.Signal(0)) != nil {
		log.Printf("🧹 Removing stale ledger pid file (PID %d not running)", pid)
		os.Remove(pidFile)
		return
	}

	log.Printf("⚠️  Stopping orphaned ledger postgres (PID %d)...", pid)
	_ = process.Signal(syscall.SIGTERM)
	for i := 0; i < 10; i++ {
		time.Sleep(500 * time.Millisecond)
		if process.Signal(syscall.Signal(0)) != nil {
			os.Remove(pidFile)
			return
		}
	}
	_ = process.Kill()
	time.Sleep(500 * time.Millisecond)
	os.Remove(pidFile)
}

// readPID returns the process id on the first line of a postmaster.pid file
func readPID(pidFile string) (int, error) {
	data, err := os.ReadFile(pidFile)
	if err != nil {
		return 0, err
	}
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	if !scanner.Scan() {
		return 0, errors.New("empty pid file")
	}
	return strconv.Atoi(strings.TrimSpace(scanner.Text()))
}

// waitForPort waits until nothing listens on port
func waitForPort(port int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for portInUse(port) {
		if time.Now().After(deadline) {
			return fmt.Errorf("port %d is still in use by another process", port)
		}
		time.Sleep(500 * time.Millisecond)
	}
	return nil
}

func portInUse(port int) bool {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Close ensures the database connection and embedded process are shut down
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err == nil {
		err = sqlDB.Close()
	}
	if db.embedded != nil {
		log.Println("🛑 Stopping embedded ledger database...")
		if stopErr := db.embedded.Stop(); stopErr != nil && err == nil {
			err = stopErr
		}
	}
	return err
}

// Wrap adopts an already opened gorm connection, e.g. an in-memory sqlite ledger
func Wrap(gdb *gorm.DB) *DB {
	return &DB{DB: gdb, Driver: gdb.Dialector.Name()}
}

// AutoMigrate triggers GORM schema synchronization
func (db *DB) AutoMigrate(models ...interface{}) error {
	return db.DB.AutoMigrate(models...)
}

// Migrate creates or updates the ledger tables
func (db *DB) Migrate() error {
	if err := db.AutoMigrate(&models.SyncHistory{}); err != nil {
		return fmt.Errorf("failed to migrate ledger: %w", err)
	}
	log.Printf("✅ Ledger schema ready (%s)", db.Driver)
	return nil
}

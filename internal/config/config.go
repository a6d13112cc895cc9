package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	NodeEnv    string
	Port       string
	JWTSecret  string
	APIKeyHash string
	Database   DatabaseConfig
	Arca       ArcaConfig
	PrestaShop PrestaShopConfig
	Catalog    CatalogConfig
	Documents  DocumentsConfig
	Mail       MailConfig
	Schedules  map[string]string
	LogDir     string
}

// DatabaseConfig holds the run ledger database configuration.
// Driver is postgres, embedded or sqlite; empty picks embedded for a local
// host without password and postgres otherwise.
type DatabaseConfig struct {
	Driver       string
	Host         string
	Port         string
	Username     string
	Password     string
	Database     string
	SQLitePath   string
	EmbeddedDir  string
	EmbeddedPort int // kept off 5432 so a system postgres can coexist
	Debug        bool
}

// ArcaConfig holds the connection settings of the Arca ERP (SQL Server)
type ArcaConfig struct {
	Host     string
	Port     string
	Instance string
	Username string
	Password string
	Database string
	Debug    bool
}

// PrestaShopConfig holds webservice settings
type PrestaShopConfig struct {
	URL    string
	APIKey string
	RateLimit       float64 // requests per second, 0 = unlimited
	Timeout         int // seconds
	Debug           bool
	InsecureTLS     bool
	CancelledStates []string
}

// CatalogConfig holds the catalog mapping settings
type CatalogConfig struct {
	RootCategoryID    int
	MaxCategoryDepth  int
	RetailList        string
	WholesaleList     string
	DefaultCategoryID string
	HomeCategoryID    string
	AvailableNowLabel string
}

// DocumentsConfig holds the ERP accounting codes used for imported orders
type DocumentsConfig struct {
	ContoBanca       string
	ListinoCliente   string
	ListinoAvanzato  string
	Aliquota         string
	AliquotaDecimale string
	ContoRicavo      string
	ContoSpedizione  string
	VATRate          string
	Agent            string
	AppName          string
}

// MailConfig holds SMTP settings for discrepancy alerts
type MailConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	From      string
	AlertTo   string
	QueueSize int
}

// JobNames lists the jobs that accept a cron schedule
var JobNames = []string{
	"products",
	"products-details",
	"products-images",
	"products-stocks",
	"brands",
	"categories-upload",
	"customers-import",
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	psURL := os.Getenv("PRESTASHOP_API_URL")
	if psURL == "" {
		return nil, fmt.Errorf("PRESTASHOP_API_URL is required")
	}
	psKey := os.Getenv("PRESTASHOP_API_KEY")
	if psKey == "" {
		return nil, fmt.Errorf("PRESTASHOP_API_KEY is required")
	}

	appName := getEnv("APP_NAME", "arcasync")

	return &Config{
		NodeEnv:    getEnv("NODE_ENV", "development"),
		Port:       getEnv("PORT", "3210"),
		JWTSecret:  jwtSecret,
		APIKeyHash: os.Getenv("API_KEY_HASH"),
		Database: DatabaseConfig{
			Host:         getEnv("PG_HOST", "localhost"),
			Port:         getEnv("PG_PORT", "5432"),
			Username:     getEnv("PG_USERNAME", "postgres"),
			Password:     os.Getenv("PG_PASSWORD"),
			Database:     getEnv("PG_DATABASE", "arcasync"),
			Driver:       os.Getenv("LEDGER_DRIVER"),
			SQLitePath:   getEnv("LEDGER_SQLITE_PATH", "./storage/ledger.db"),
			EmbeddedDir:  getEnv("LEDGER_EMBEDDED_DIR", "./storage/ledger_pg"),
			EmbeddedPort: getIntEnv("LEDGER_EMBEDDED_PORT", 5433),
			Debug:        getBoolEnv("LEDGER_DEBUG", false),
		},
		Arca: ArcaConfig{
			Host:     getEnv("ARCA_HOST", "localhost"),
			Port:     getEnv("ARCA_PORT", "1433"),
			Instance: os.Getenv("ARCA_INSTANCE"),
			Username: getEnv("ARCA_USERNAME", "sa"),
			Password: os.Getenv("ARCA_PASSWORD"),
			Database: getEnv("ARCA_DATABASE", "ADB_ARCA"),
			Debug:    getBoolEnv("ARCA_DEBUG", false),
		},
		PrestaShop: PrestaShopConfig{
			URL:             strings.TrimRight(psURL, "/") + "/",
			APIKey:          psKey,
			RateLimit:       getFloatEnv("PRESTASHOP_RATE_LIMIT", 10),
			Timeout:         getIntEnv("PRESTASHOP_TIMEOUT", 60),
			Debug:           getBoolEnv("PRESTASHOP_DEBUG", false),
			InsecureTLS:     getBoolEnv("PRESTASHOP_INSECURE_TLS", false),
			CancelledStates: splitList(getEnv("PRESTASHOP_CANCELLED_STATES", "6")),
		},
		Catalog: CatalogConfig{
			RootCategoryID:    getIntEnv("ARCA_ROOT_CATEGORY", 8),
			MaxCategoryDepth:  getIntEnv("ARCA_CATEGORY_MAX_DEPTH", 10),
			RetailList:        getEnv("LISTINO_CLIENTE", "LSA0005"),
			WholesaleList:     getEnv("LISTINO_AVANZATO", "LSA0009"),
			DefaultCategoryID: getEnv("PRESTASHOP_DEFAULT_CATEGORY", "2"),
			HomeCategoryID:    getEnv("PRESTASHOP_HOME_CATEGORY", "2"),
			AvailableNowLabel: getEnv("LABEL_DISPONIBILE", "Disponibile"),
		},
		Documents: DocumentsConfig{
			ContoBanca:       os.Getenv("CONTO_BANCA"),
			ListinoCliente:   getEnv("LISTINO_CLIENTE", "LSA0005"),
			ListinoAvanzato:  getEnv("LISTINO_AVANZATO", "LSA0009"),
			Aliquota:         getEnv("ALIQUOTA", "22"),
			AliquotaDecimale: getEnv("ALIQUOTA_DECIMALE", "22.00"),
			ContoRicavo:      os.Getenv("CONTO_RICAVO"),
			ContoSpedizione:  os.Getenv("CONTO_SPEDIZIONE"),
			VATRate:          getEnv("VAT_RATE", "22"),
			Agent:            getEnv("ARCA_AGENTE", "007"),
			AppName:          appName,
		},
		Mail: MailConfig{
			Host:      os.Getenv("SMTP_HOST"),
			Port:      getIntEnv("SMTP_PORT", 587),
			Username:  os.Getenv("SMTP_USERNAME"),
			Password:  os.Getenv("SMTP_PASSWORD"),
			From:      getEnv("MAIL_FROM", appName+"@localhost"),
			AlertTo:   os.Getenv("MAIL_ROOT_ALERT"),
			QueueSize: getIntEnv("MAIL_QUEUE_SIZE", 64),
		},
		Schedules: loadSchedules(),
		LogDir:    getEnv("LOG_DIR", "./storage/logs"),
	}, nil
}

// loadSchedules reads SCHEDULE_<JOB> cron expressions, e.g. SCHEDULE_PRODUCTS_STOCKS
func loadSchedules() map[string]string {
	schedules := make(map[string]string)
	for _, name := range JobNames {
		key := "SCHEDULE_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
		if spec := os.Getenv(key); spec != "" {
			schedules[name] = spec
		}
	}
	return schedules
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var result float64
		if _, err := fmt.Sscanf(value, "%g", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

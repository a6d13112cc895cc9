package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// SyncConfig holds the attribute tables used to decode ERP item attributes
type SyncConfig struct {
	// ============ ATTRIBUTE CODES ============
	InProductionCode  int    `yaml:"in_production_code"`
	InProductionLabel string `yaml:"in_production_label"`
	InProductionDays  int    `yaml:"in_production_days"`
	HomeCode          int    `yaml:"home_code"`

	// ============ TABLES ============
	Discounts     map[int]int    `yaml:"discounts"` // attribute code -> percent
	ShippingTiers []ShippingTier `yaml:"shipping_tiers"`

	// ============ STOCK POLICY ============
	// availability -> out_of_stock wire value (0 deny, 1 allow, 2 shop default)
	OutOfStockPolicy map[string]int `yaml:"out_of_stock_policy"`
}

// ShippingTier maps an attribute code to a shipping class
type ShippingTier struct {
	Code           int     `yaml:"code"`
	Name           string  `yaml:"name"`
	AdditionalCost float64 `yaml:"additional_cost"`
}

// LoadSyncConfig loads the attribute tables from SYNC_CONFIG_PATH or defaults,
// then applies the IN_PRODUZIONE / IN_HOME / LABEL_IN_PRODUZIONE overrides.
func LoadSyncConfig() *SyncConfig {
	cfg := DefaultSyncConfig()

	if configPath := os.Getenv("SYNC_CONFIG_PATH"); configPath != "" {
		fileCfg, err := loadSyncConfigFromFile(configPath)
		if err != nil {
			log.Printf("⚠️ Sync config: %v, using defaults", err)
		} else {
			cfg = fileCfg
		}
	}

	if code := os.Getenv("IN_PRODUZIONE"); code != "" {
		if n, err := strconv.Atoi(code); err == nil {
			cfg.InProductionCode = n
		}
	}
	if code := os.Getenv("IN_HOME"); code != "" {
		if n, err := strconv.Atoi(code); err == nil {
			cfg.HomeCode = n
		}
	}
	if label := os.Getenv("LABEL_IN_PRODUZIONE"); label != "" {
		cfg.InProductionLabel = label
	}
	if spec := os.Getenv("SHIPPING_TIERS"); spec != "" {
		tiers, err := ParseShippingTiers(spec)
		if err != nil {
			log.Printf("⚠️ SHIPPING_TIERS: %v, keeping %d configured tiers", err, len(cfg.ShippingTiers))
		} else {
			cfg.ShippingTiers = tiers
		}
	}

	return cfg
}

// ParseShippingTiers reads "code:name:cost" entries separated by commas,
// e.g. "1044:small:0,1045:medium:9.90"
func ParseShippingTiers(spec string) ([]ShippingTier, error) {
	var tiers []ShippingTier
	for _, entry := range splitList(spec) {
		parts := strings.Split(entry, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("tier %q: want code:name:cost", entry)
		}
		code, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			return nil, fmt.Errorf("tier %q: bad code: %w", entry, err)
		}
		cost, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
		if err != nil || cost < 0 {
			return nil, fmt.Errorf("tier %q: bad cost", entry)
		}
		tiers = append(tiers, ShippingTier{Code: code, Name: strings.TrimSpace(parts[1]), AdditionalCost: cost})
	}
	if len(tiers) == 0 {
		return nil, fmt.Errorf("no tiers")
	}
	return tiers, nil
}

// loadSyncConfigFromFile reads a YAML file on top of the defaults
func loadSyncConfigFromFile(path string) (*SyncConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	cfg := DefaultSyncConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// DefaultSyncConfig returns the built-in attribute tables
func DefaultSyncConfig() *SyncConfig {
	return &SyncConfig{
		InProductionCode:  1047,
		InProductionLabel: "In produzione",
		InProductionDays:  15,
		HomeCode:          1034,
		Discounts: map[int]int{
			1021: 5,
			1022: 10,
			1023: 15,
			1024: 20,
			1025: 25,
			1026: 30,
			1040: 35,
			1041: 40,
			1042: 45,
			1043: 50,
		},
		// Placeholder tiers: the attribute codes and surcharges depend on the
		// ERP installation and are meant to be set through the sync config
		// file or SHIPPING_TIERS.
		ShippingTiers: []ShippingTier{
			{Code: 1044, Name: "small", AdditionalCost: 0},
			{Code: 1045, Name: "medium", AdditionalCost: 9.90},
			{Code: 1046, Name: "large", AdditionalCost: 19.90},
			{Code: 1048, Name: "pallet", AdditionalCost: 49.00},
		},
		OutOfStockPolicy: map[string]int{
			"AVAILABLE":    0,
			"BACKORDER":    0,
			"OUT_OF_STOCK": 2,
		},
	}
}

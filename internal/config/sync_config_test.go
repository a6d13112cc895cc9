package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearSyncEnv(t *testing.T) {
	for _, key := range []string{"SYNC_CONFIG_PATH", "IN_PRODUZIONE", "IN_HOME", "LABEL_IN_PRODUZIONE", "SHIPPING_TIERS"} {
		t.Setenv(key, "")
	}
}

func TestParseShippingTiers(t *testing.T) {
	tiers, err := ParseShippingTiers("2001:light:0, 2002:heavy:12.50")
	require.NoError(t, err)
	assert.Equal(t, []ShippingTier{
		{Code: 2001, Name: "light", AdditionalCost: 0},
		{Code: 2002, Name: "heavy", AdditionalCost: 12.50},
	}, tiers)

	for _, bad := range []string{"", "2001:light", "x:light:1", "2001:light:-1", "2001:light:abc"} {
		_, err := ParseShippingTiers(bad)
		assert.Error(t, err, bad)
	}
}

func TestLoadSyncConfigShippingTiersFromEnv(t *testing.T) {
	clearSyncEnv(t)
	t.Setenv("SHIPPING_TIERS", "2001:light:3.00")

	cfg := LoadSyncConfig()
	assert.Equal(t, []ShippingTier{{Code: 2001, Name: "light", AdditionalCost: 3}}, cfg.ShippingTiers)
}

func TestLoadSyncConfigKeepsTiersOnBadEnv(t *testing.T) {
	clearSyncEnv(t)
	t.Setenv("SHIPPING_TIERS", "nonsense")

	cfg := LoadSyncConfig()
	assert.Equal(t, DefaultSyncConfig().ShippingTiers, cfg.ShippingTiers)
}

func TestLoadSyncConfigFromFile(t *testing.T) {
	clearSyncEnv(t)
	path := filepath.Join(t.TempDir(), "sync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
home_code: 99
shipping_tiers:
  - code: 3001
    name: box
    additional_cost: 4.5
`), 0o600))
	t.Setenv("SYNC_CONFIG_PATH", path)
	t.Setenv("IN_PRODUZIONE", "1999")

	cfg := LoadSyncConfig()
	assert.Equal(t, 99, cfg.HomeCode)
	assert.Equal(t, 1999, cfg.InProductionCode)
	assert.Equal(t, []ShippingTier{{Code: 3001, Name: "box", AdditionalCost: 4.5}}, cfg.ShippingTiers)
	// untouched tables keep their defaults
	assert.Equal(t, DefaultSyncConfig().Discounts, cfg.Discounts)
}

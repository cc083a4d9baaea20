package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Profile is configuration to start the main server.
type Profile struct {
	// Bitrix CRM configuration.
	BitrixWebhookURL string // Webhook-style base URL, e.g. https://portal.bitrix24.ru/rest/1/xxxx
	BitrixCategoryID string // Deal category holding managed houses
	BitrixTimeout    int    // Total deadline for one CRM call in seconds (default: 35)

	// Portal-specific custom-field codes. Empty means the production
	// defaults compiled into the bitrix package.
	BitrixAddressField    string
	BitrixApartmentsField string
	BitrixEntrancesField  string
	BitrixFloorsField     string

	// Cache TTLs in seconds. Zero means package defaults.
	HousesCacheTTL  int
	ElderCacheTTL   int
	FinanceCacheTTL int

	// Circuit breaker tuning.
	BreakerThreshold int // Consecutive failures before opening (default: 3)
	BreakerOpenSecs  int // Open window in seconds (default: 30)

	Mode    string
	Addr    string
	Port    int
	Data    string
	Driver  string
	DSN     string
	Version string
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsCRMEnabled returns true if the Bitrix webhook URL is configured.
func (p *Profile) IsCRMEnabled() bool {
	return p.BitrixWebhookURL != ""
}

// BitrixDeadline returns the per-call CRM deadline as a duration.
func (p *Profile) BitrixDeadline() time.Duration {
	if p.BitrixTimeout <= 0 {
		return 35 * time.Second
	}
	return time.Duration(p.BitrixTimeout) * time.Second
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default value.
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
func (p *Profile) FromEnv() {
	p.BitrixWebhookURL = getEnvOrDefault("CLEANBRAIN_BITRIX_WEBHOOK_URL", "")
	p.BitrixCategoryID = getEnvOrDefault("CLEANBRAIN_BITRIX_CATEGORY_ID", "34")
	p.BitrixTimeout = getEnvOrDefaultInt("CLEANBRAIN_BITRIX_TIMEOUT_SECONDS", 35)

	p.BitrixAddressField = getEnvOrDefault("CLEANBRAIN_BITRIX_FIELD_ADDRESS", "")
	p.BitrixApartmentsField = getEnvOrDefault("CLEANBRAIN_BITRIX_FIELD_APARTMENTS", "")
	p.BitrixEntrancesField = getEnvOrDefault("CLEANBRAIN_BITRIX_FIELD_ENTRANCES", "")
	p.BitrixFloorsField = getEnvOrDefault("CLEANBRAIN_BITRIX_FIELD_FLOORS", "")

	p.HousesCacheTTL = getEnvOrDefaultInt("CLEANBRAIN_CACHE_HOUSES_TTL_SECONDS", 180)
	p.ElderCacheTTL = getEnvOrDefaultInt("CLEANBRAIN_CACHE_ELDER_TTL_SECONDS", 300)
	p.FinanceCacheTTL = getEnvOrDefaultInt("CLEANBRAIN_CACHE_FINANCE_TTL_SECONDS", 180)

	p.BreakerThreshold = getEnvOrDefaultInt("CLEANBRAIN_BREAKER_THRESHOLD", 3)
	p.BreakerOpenSecs = getEnvOrDefaultInt("CLEANBRAIN_BREAKER_OPEN_SECONDS", 30)
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Driver != "sqlite" && p.Driver != "postgres" {
		return errors.Errorf("unsupported database driver %q", p.Driver)
	}

	if p.Driver == "sqlite" {
		if p.Data == "" {
			p.Data = "."
		}
		dataDir, err := checkDataDir(p.Data)
		if err != nil {
			return errors.Wrap(err, "failed to check data dir")
		}
		p.Data = dataDir
		if p.DSN == "" {
			dbFile := fmt.Sprintf("cleanbrain_%s.db", p.Mode)
			p.DSN = filepath.Join(dataDir, dbFile)
		}
	} else if p.DSN == "" {
		return errors.New("dsn required for postgres driver")
	}

	return nil
}

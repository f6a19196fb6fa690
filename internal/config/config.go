package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	AppEnv   string
	DataDir  string
	Headless bool

	// Plan inputs
	CategoriesFile string
	LocationsFile  string

	// Persisted artifacts
	LeadsFile  string
	LedgerFile string

	// Search behavior
	RegionSuffix     string
	TargetLeads      int
	ResultsPerSearch int

	// Pacing and retries
	DelayMin       time.Duration
	DelayMax       time.Duration
	Cooldown       time.Duration
	MaxRetries     int
	ActionTimeout  time.Duration
	SessionLocale  string
	SessionTZ      string
	SessionLat     float64
	SessionLon     float64

	// Optional status HTTP server; disabled when empty.
	StatusAddr string

	// Verification worker (parallel re-verification passes).
	RedisAddr         string
	RedisPassword     string
	VerifyConcurrency int
	VerifyRatePerMin  int
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvSeconds(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return time.Duration(i) * time.Second
}

func Load() Config {
	dataDir := getenv("DATA_DIR", "./data")
	return Config{
		AppEnv:   getenv("APP_ENV", "development"),
		DataDir:  dataDir,
		Headless: getenvBool("HEADLESS", true),

		CategoriesFile: getenv("CATEGORIES_FILE", "./config/categories.yaml"),
		LocationsFile:  getenv("LOCATIONS_FILE", "./config/locations.yaml"),

		LeadsFile:  getenv("LEADS_FILE", dataDir+"/discovered_businesses.json"),
		LedgerFile: getenv("LEDGER_FILE", dataDir+"/search_history.json"),

		RegionSuffix:     getenv("REGION_SUFFIX", "Paraguay"),
		TargetLeads:      getenvInt("TARGET_LEADS", 1000),
		ResultsPerSearch: getenvInt("RESULTS_PER_SEARCH", 20),

		DelayMin:      getenvSeconds("DELAY_MIN_SECONDS", 5*time.Second),
		DelayMax:      getenvSeconds("DELAY_MAX_SECONDS", 15*time.Second),
		Cooldown:      getenvSeconds("COOLDOWN_SECONDS", 60*time.Second),
		MaxRetries:    getenvInt("MAX_RETRIES", 3),
		ActionTimeout: getenvSeconds("ACTION_TIMEOUT_SECONDS", 30*time.Second),
		SessionLocale: getenv("SESSION_LOCALE", "es-PY"),
		SessionTZ:     getenv("SESSION_TIMEZONE", "America/Asuncion"),
		SessionLat:    getenvFloat("SESSION_LATITUDE", -25.2637),
		SessionLon:    getenvFloat("SESSION_LONGITUDE", -57.5759),

		StatusAddr: os.Getenv("STATUS_ADDR"),

		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		VerifyConcurrency: getenvInt("VERIFY_CONCURRENCY", 4),
		VerifyRatePerMin:  getenvInt("VERIFY_RATE_PER_MIN", 30),
	}
}

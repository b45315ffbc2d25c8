package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultHTTPAddr     = ":8081"
	DefaultServicesFile = "services.yaml"
	DefaultModulesFile  = "modules.yaml"
	DefaultSQLitePath   = "agridatahub.db"
	DefaultUploadMaxMB  = 20

	// Pool sizing for the postgres row store
	DefaultMinConns       = 1
	DefaultMaxConns       = 10
	DefaultConnectTimeout = 10 * time.Second
	DefaultAcquireTimeout = 5 * time.Second
	DefaultQueryTimeout   = 30 * time.Second
)

// Storage drivers accepted in DB_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

type Database struct {
	Driver         string
	User           string
	Password       string
	Host           string
	Port           string
	Name           string
	SQLitePath     string
	MinConns       int
	MaxConns       int
	ConnectTimeout time.Duration
	AcquireTimeout time.Duration
	QueryTimeout   time.Duration
}

type Config struct {
	DB            Database
	ServicesFile  string
	ModulesFile   string
	HTTPAddr      string
	UploadMaxMB   int
	HeaderLenient bool
}

// UploadLimit is the multipart body limit in bytes.
func (c *Config) UploadLimit() int64 {
	return int64(c.UploadMaxMB) << 20
}

// Load reads the given .env files (missing files are ignored) and then the
// process environment.
func Load(envFiles ...string) *Config {
	if len(envFiles) > 0 {
		for _, f := range envFiles {
			_ = godotenv.Load(f)
		}
	} else {
		_ = godotenv.Load()
	}

	return &Config{
		DB: Database{
			Driver:         strings.ToLower(str("DB_DRIVER", DriverPostgres)),
			User:           os.Getenv("DB_USER"),
			Password:       os.Getenv("DB_PASSWORD"),
			Host:           str("DB_HOST", "localhost"),
			Port:           str("DB_PORT", "5432"),
			Name:           os.Getenv("DB_NAME"),
			SQLitePath:     str("SQLITE_PATH", DefaultSQLitePath),
			MinConns:       num("DB_MIN_CONNS", DefaultMinConns),
			MaxConns:       num("DB_MAX_CONNS", DefaultMaxConns),
			ConnectTimeout: dur("DB_CONNECT_TIMEOUT", DefaultConnectTimeout),
			AcquireTimeout: dur("DB_ACQUIRE_TIMEOUT", DefaultAcquireTimeout),
			QueryTimeout:   dur("DB_QUERY_TIMEOUT", DefaultQueryTimeout),
		},
		ServicesFile:  str("SERVICES_FILE", DefaultServicesFile),
		ModulesFile:   str("MODULES_FILE", DefaultModulesFile),
		HTTPAddr:      str("HTTP_ADDR", DefaultHTTPAddr),
		UploadMaxMB:   num("UPLOAD_MAX_MB", DefaultUploadMaxMB),
		HeaderLenient: flag("HEADER_LENIENT"),
	}
}

func str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func num(key string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// dur accepts Go durations ("45s") or a bare number of seconds.
func dur(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	return def
}

func flag(key string) bool {
	b, _ := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	return b
}

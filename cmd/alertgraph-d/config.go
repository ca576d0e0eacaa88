package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/rmax-ai/alertgraph/pkg/logging"
)

const (
	defaultAddr     = "127.0.0.1:8090"
	defaultStore    = "sqlite"
	defaultLogLevel = "info"
)

type Config struct {
	StoreKind   string
	DBPath      string
	DataPath    string
	CatalogPath string
	Addr        string
	RedisAddr   string
	LogLevel    slog.Level
	TLSCertFile string
	TLSKeyFile  string
}

func LoadConfig(args []string) (Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, fmt.Errorf("failed to get cwd: %w", err)
	}

	storeKind := envOrDefault("ALERTGRAPH_STORE", defaultStore)
	dbPath := envOrDefault("ALERTGRAPH_DB_PATH", filepath.Join(cwd, "alertgraph.db"))
	dataPath := envOrDefault("ALERTGRAPH_DATA_PATH", filepath.Join(cwd, "sistema_alertas.json"))
	catalogPath := os.Getenv("ALERTGRAPH_CATALOG_PATH")
	addr := addrFromEnv(defaultAddr)
	redisAddr := os.Getenv("ALERTGRAPH_REDIS_ADDR")
	logLevel := envOrDefault("ALERTGRAPH_LOG_LEVEL", defaultLogLevel)

	flagSet := flag.NewFlagSet("alertgraph-d", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagStore := flagSet.String("store", storeKind, "persistence backend: sqlite|json")
	flagDB := flagSet.String("db", dbPath, "path to SQLite database (store=sqlite)")
	flagData := flagSet.String("data", dataPath, "path to JSON data file (store=json)")
	flagCatalog := flagSet.String("catalog", catalogPath, "path to catalog JSON (built-in catalog when empty)")
	flagAddr := flagSet.String("addr", addr, "HTTP listen address")
	flagRedis := flagSet.String("redis", redisAddr, "Redis address for alert notifications (disabled when empty)")
	flagLogLevel := flagSet.String("log-level", logLevel, "log level: debug|info|warn|error")
	flagTLSCert := flagSet.String("tls-cert", os.Getenv("ALERTGRAPH_TLS_CERT"), "TLS certificate file")
	flagTLSKey := flagSet.String("tls-key", os.Getenv("ALERTGRAPH_TLS_KEY"), "TLS key file")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			flagSet.SetOutput(os.Stdout)
			flagSet.PrintDefaults()
			return Config{}, err
		}
		return Config{}, err
	}

	level, err := logging.ParseLevel(*flagLogLevel)
	if err != nil {
		return Config{}, fmt.Errorf("invalid log level: %w", err)
	}

	config := Config{
		StoreKind:   normalizeStoreKind(*flagStore),
		DBPath:      resolvePath(*flagDB, cwd),
		DataPath:    resolvePath(*flagData, cwd),
		CatalogPath: resolvePath(*flagCatalog, cwd),
		Addr:        strings.TrimSpace(*flagAddr),
		RedisAddr:   strings.TrimSpace(*flagRedis),
		LogLevel:    level,
		TLSCertFile: resolvePath(*flagTLSCert, cwd),
		TLSKeyFile:  resolvePath(*flagTLSKey, cwd),
	}

	if config.Addr == "" {
		return Config{}, errors.New("addr cannot be empty")
	}

	switch config.StoreKind {
	case "sqlite":
		if config.DBPath == "" {
			return Config{}, errors.New("store=sqlite requires db")
		}
	case "json":
		if config.DataPath == "" {
			return Config{}, errors.New("store=json requires data")
		}
	default:
		return Config{}, fmt.Errorf("unsupported store: %s", config.StoreKind)
	}

	if (config.TLSCertFile == "") != (config.TLSKeyFile == "") {
		return Config{}, errors.New("tls-cert and tls-key must be set together")
	}

	return config, nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func addrFromEnv(fallback string) string {
	if value := os.Getenv("ALERTGRAPH_ADDR"); value != "" {
		return value
	}
	if port := os.Getenv("ALERTGRAPH_PORT"); port != "" {
		return fmt.Sprintf("127.0.0.1:%s", port)
	}
	return fallback
}

func resolvePath(path string, cwd string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return trimmed
	}
	if filepath.IsAbs(trimmed) {
		return trimmed
	}
	return filepath.Join(cwd, trimmed)
}

func normalizeStoreKind(kind string) string {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "sqlite", "sqlite3", "db":
		return "sqlite"
	case "json", "file":
		return "json"
	default:
		return strings.ToLower(strings.TrimSpace(kind))
	}
}

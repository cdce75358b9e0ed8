package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Storage backends accepted by STORAGE_BACKEND.
const (
	StorageFile     = "file"
	StoragePostgres = "postgres"
	StorageRedis    = "redis"
	StorageMemory   = "memory"
)

// Config captures all runtime configuration derived from environment variables.
type Config struct {
	Port             string
	AuthToken        string
	ReadTimeoutSecs  int
	WriteTimeoutSecs int
	IdleTimeoutSecs  int

	TMDBBaseURL         string
	TMDBAPIKey          string
	TMDBImageBaseURL    string
	TMDBLanguage        string
	TMDBTimeoutSecs     int
	ImagePlaceholderURL string

	StorageBackend string
	StorageKey     string
	StorageFileDir string

	DBURL             string
	DBMaxConns        int
	DBMinConns        int
	DBMaxIdleSecs     int
	DBMaxLifeSecs     int
	DBConnTimeoutSecs int
	DBStatementCache  int

	RedisURL string

	SearchDebounceMS int

	LogLevel      string
	LogFormat     string
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
}

// Load reads configuration from environment variables, applying defaults and validation.
func Load() (Config, error) {
	cfg := Config{
		Port:                getEnv("PORT", "8080"),
		AuthToken:           os.Getenv("AUTH_TOKEN"),
		ReadTimeoutSecs:     getEnvInt("SERVER_READ_TIMEOUT", 15),
		WriteTimeoutSecs:    getEnvInt("SERVER_WRITE_TIMEOUT", 15),
		IdleTimeoutSecs:     getEnvInt("SERVER_IDLE_TIMEOUT", 60),
		TMDBBaseURL:         getEnv("TMDB_BASE_URL", "https://api.themoviedb.org/3"),
		TMDBAPIKey:          os.Getenv("TMDB_API_KEY"),
		TMDBImageBaseURL:    getEnv("TMDB_IMAGE_BASE_URL", "https://image.tmdb.org/t/p"),
		TMDBLanguage:        getEnv("TMDB_LANGUAGE", "en-US"),
		TMDBTimeoutSecs:     getEnvInt("TMDB_TIMEOUT_SECS", 10),
		ImagePlaceholderURL: getEnv("IMAGE_PLACEHOLDER_URL", "/static/no-image.svg"),
		StorageBackend:      strings.ToLower(getEnv("STORAGE_BACKEND", StorageFile)),
		StorageKey:          getEnv("STORAGE_KEY", "watchlist"),
		StorageFileDir:      getEnv("STORAGE_FILE_DIR", "data"),
		DBURL:               os.Getenv("DB_URL"),
		DBMaxConns:          getEnvInt("DB_MAX_CONNS", 4),
		DBMinConns:          getEnvInt("DB_MIN_CONNS", 0),
		DBMaxIdleSecs:       getEnvInt("DB_MAX_CONN_IDLE_SECS", 300),
		DBMaxLifeSecs:       getEnvInt("DB_MAX_CONN_LIFETIME_SECS", 3600),
		DBConnTimeoutSecs:   getEnvInt("DB_CONN_TIMEOUT_SECS", 10),
		DBStatementCache:    getEnvInt("DB_STATEMENT_CACHE_CAPACITY", 64),
		RedisURL:            os.Getenv("REDIS_URL"),
		SearchDebounceMS:    getEnvInt("SEARCH_DEBOUNCE_MS", 300),
		LogLevel:            strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:           strings.ToLower(getEnv("LOG_FORMAT", "text")),
		LogFile:             os.Getenv("LOG_FILE"),
		LogMaxSizeMB:        getEnvInt("LOG_MAX_SIZE_MB", 50),
		LogMaxBackups:       getEnvInt("LOG_MAX_BACKUPS", 3),
	}

	if cfg.TMDBTimeoutSecs <= 0 {
		return Config{}, fmt.Errorf("TMDB_TIMEOUT_SECS must be positive")
	}
	if cfg.SearchDebounceMS <= 0 {
		return Config{}, fmt.Errorf("SEARCH_DEBOUNCE_MS must be positive")
	}
	if strings.TrimSpace(cfg.StorageKey) == "" {
		return Config{}, fmt.Errorf("STORAGE_KEY cannot be empty")
	}

	switch cfg.StorageBackend {
	case StorageFile:
		if cfg.StorageFileDir == "" {
			return Config{}, fmt.Errorf("STORAGE_FILE_DIR is required for the file backend")
		}
	case StoragePostgres:
		if cfg.DBURL == "" {
			return Config{}, fmt.Errorf("DB_URL is required for the postgres backend")
		}
		if cfg.DBMaxConns <= 0 {
			return Config{}, fmt.Errorf("DB_MAX_CONNS must be positive")
		}
		if cfg.DBMinConns < 0 {
			return Config{}, fmt.Errorf("DB_MIN_CONNS must be non-negative")
		}
		if cfg.DBMinConns > cfg.DBMaxConns {
			return Config{}, fmt.Errorf("DB_MIN_CONNS cannot exceed DB_MAX_CONNS")
		}
		if cfg.DBStatementCache < 0 {
			return Config{}, fmt.Errorf("DB_STATEMENT_CACHE_CAPACITY must be non-negative")
		}
	case StorageRedis:
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL is required for the redis backend")
		}
	case StorageMemory:
	default:
		return Config{}, fmt.Errorf("STORAGE_BACKEND %q is not supported", cfg.StorageBackend)
	}

	switch cfg.LogFormat {
	case "text", "json":
	default:
		return Config{}, fmt.Errorf("LOG_FORMAT must be text or json")
	}

	return cfg, nil
}

// RequireTMDB reports whether the metadata API credential is present.
// Commands that only touch the watchlist can run without it.
func (c Config) RequireTMDB() error {
	if c.TMDBAPIKey == "" {
		return fmt.Errorf("TMDB_API_KEY is required")
	}
	if c.TMDBBaseURL == "" {
		return fmt.Errorf("TMDB_BASE_URL is required")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Engine tunes the reconciliation engine.
type Engine struct {
	DeltaMode   string `yaml:"delta_mode"`
	MaxParallel int    `yaml:"max_parallel"`
	MaxMachines int    `yaml:"max_machines"`
	Timezone    string `yaml:"timezone"`
}

// Config holds application configuration.
type Config struct {
	DatabaseURL    string
	HTTPAddr       string
	Store          string
	JWTSecret      string
	LogLevel       string
	CORSOrigins    []string
	MasterdataFile string
	Engine         Engine
}

// Load reads the configuration and validates it.
func Load() (Config, error) {
	cfg, err := Read()
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Read loads .env, the environment and the optional CUADRE_CONFIG yaml file
// without validating. Yaml values override the environment for the engine section.
func Read() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		DatabaseURL:    getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:       getenvDefault("HTTP_ADDR", ":8080"),
		Store:          strings.ToLower(getenvDefault("STORE", StorePostgres)),
		JWTSecret:      strings.TrimSpace(getenvDefault("AUTH_JWT_SECRET", "")),
		LogLevel:       getenvDefault("LOG_LEVEL", "info"),
		CORSOrigins:    splitCSV(getenvDefault("CORS_ORIGINS", "*")),
		MasterdataFile: os.Getenv("MASTERDATA_FILE"),
		Engine: Engine{
			DeltaMode:   getenvDefault("DELTA_MODE", "endpoints"),
			MaxParallel: getenvIntDefault("MAX_PARALLEL", 8),
			MaxMachines: getenvIntDefault("MAX_MACHINES", 0),
			Timezone:    getenvDefault("TIMEZONE", "UTC"),
		},
	}

	if path := os.Getenv("CUADRE_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		var file struct {
			Engine Engine `yaml:"engine"`
		}
		if err := yaml.Unmarshal(data, &file); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.Engine = mergeEngine(cfg.Engine, file.Engine)
	}
	return cfg, nil
}

// Location resolves the engine timezone. Period bounds are civil dates in it.
func (e Engine) Location() (*time.Location, error) {
	name := strings.TrimSpace(e.Timezone)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("config: timezone %q: %w", name, err)
	}
	return loc, nil
}

// Validate checks required settings.
func (c Config) Validate() error {
	switch c.Store {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL or PG_DSN is required")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("config: unknown store %q", c.Store)
	}
	if c.Engine.MaxParallel < 0 || c.Engine.MaxMachines < 0 {
		return errors.New("config: engine limits must not be negative")
	}
	return nil
}

func mergeEngine(base, override Engine) Engine {
	if override.DeltaMode != "" {
		base.DeltaMode = override.DeltaMode
	}
	if override.MaxParallel != 0 {
		base.MaxParallel = override.MaxParallel
	}
	if override.MaxMachines != 0 {
		base.MaxMachines = override.MaxMachines
	}
	if override.Timezone != "" {
		base.Timezone = override.Timezone
	}
	return base
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Package config carga y valida la configuración del proceso.
//
// Fuente: archivo YAML + overrides por variables de entorno para credenciales
// (TRUSTCORE_REDIS_PASSWORD, TRUSTCORE_PG_DSN, TRUSTCORE_ADMIN_KEY). Los
// errores de configuración son fatales al arranque: el proceso no debe servir
// tráfico con un core de confianza a medio configurar.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Server struct {
		Addr string `yaml:"addr"`
		// AdminAPIKey protege la superficie admin. Override: TRUSTCORE_ADMIN_KEY.
		AdminAPIKey string `yaml:"admin_api_key"`
	} `yaml:"server"`

	JWT struct {
		Issuer            string `yaml:"issuer"`
		Audience          string `yaml:"audience"`
		AccessTTL         string `yaml:"access_ttl"`  // default 15m
		RefreshTTL        string `yaml:"refresh_ttl"` // default 720h
		SigningSecretName string `yaml:"signing_secret_name"`
	} `yaml:"jwt"`

	Revocation struct {
		// Backend: "redis" (producción, multi-instancia) o "memory"
		// (single-instance/tests). Seleccionado acá, al arranque.
		Backend string `yaml:"backend"`
		// FailMode: "closed" o "open". Obligatorio explícito: qué hacer
		// cuando el backend no responde no puede ser un accidente.
		FailMode        string `yaml:"fail_mode"`
		Prefix          string `yaml:"prefix"`
		CleanupInterval string `yaml:"cleanup_interval"` // default 10m
		Redis           struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"` // override: TRUSTCORE_REDIS_PASSWORD
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"revocation"`

	Secrets struct {
		// Store: "postgres" o "memory".
		Store         string `yaml:"store"`
		DSN           string `yaml:"dsn"` // override: TRUSTCORE_PG_DSN
		Retention     int    `yaml:"retention"`
		SweepInterval string `yaml:"sweep_interval"` // default 1m
		Specs         []struct {
			Name        string `yaml:"name"`
			Kind        string `yaml:"kind"`
			RotateEvery string `yaml:"rotate_every"`
			Alg         string `yaml:"alg"`
		} `yaml:"specs"`
	} `yaml:"secrets"`

	Roles struct {
		// TablePath: YAML con la tabla rol→permisos. Vacío = tabla built-in.
		TablePath string `yaml:"table_path"`
	} `yaml:"roles"`
}

// Load lee el YAML (si path no es vacío), aplica defaults y overrides de
// entorno. No valida: eso es Validate(), separado para poder testear ambos.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.applyDefaults()
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.JWT.AccessTTL == "" {
		c.JWT.AccessTTL = "15m"
	}
	if c.JWT.RefreshTTL == "" {
		c.JWT.RefreshTTL = "720h"
	}
	if c.JWT.SigningSecretName == "" {
		c.JWT.SigningSecretName = "jwt-signing-key"
	}
	if c.Revocation.Backend == "" {
		c.Revocation.Backend = "redis"
	}
	if c.Revocation.Prefix == "" {
		c.Revocation.Prefix = "rev"
	}
	if c.Revocation.CleanupInterval == "" {
		c.Revocation.CleanupInterval = "10m"
	}
	if c.Revocation.Redis.Addr == "" {
		c.Revocation.Redis.Addr = "localhost:6379"
	}
	if c.Secrets.Store == "" {
		c.Secrets.Store = "postgres"
	}
	if c.Secrets.Retention == 0 {
		c.Secrets.Retention = 5
	}
	if c.Secrets.SweepInterval == "" {
		c.Secrets.SweepInterval = "1m"
	}
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("TRUSTCORE_REDIS_PASSWORD")); v != "" {
		c.Revocation.Redis.Password = v
	}
	if v := strings.TrimSpace(os.Getenv("TRUSTCORE_PG_DSN")); v != "" {
		c.Secrets.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv("TRUSTCORE_ADMIN_KEY")); v != "" {
		c.Server.AdminAPIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		c.Log.Level = v
	}
	if v := strings.TrimSpace(os.Getenv("APP_ENV")); v != "" {
		c.App.Env = v
	}
}

// Validate aplica las reglas fatales de arranque.
func (c *Config) Validate() error {
	var errs []string

	if strings.TrimSpace(c.JWT.Issuer) == "" {
		errs = append(errs, "jwt.issuer is required")
	}
	if strings.TrimSpace(c.JWT.Audience) == "" {
		errs = append(errs, "jwt.audience is required")
	}
	access, err := time.ParseDuration(c.JWT.AccessTTL)
	if err != nil || access <= 0 {
		errs = append(errs, fmt.Sprintf("jwt.access_ttl invalid: %q", c.JWT.AccessTTL))
	}
	refresh, err := time.ParseDuration(c.JWT.RefreshTTL)
	if err != nil || refresh <= 0 {
		errs = append(errs, fmt.Sprintf("jwt.refresh_ttl invalid: %q", c.JWT.RefreshTTL))
	}
	if access > 0 && refresh > 0 && refresh <= access {
		errs = append(errs, "jwt.refresh_ttl must exceed jwt.access_ttl")
	}

	switch c.Revocation.Backend {
	case "redis", "memory":
	default:
		errs = append(errs, fmt.Sprintf("revocation.backend must be redis or memory, got %q", c.Revocation.Backend))
	}
	switch c.Revocation.FailMode {
	case "closed", "open":
	case "":
		errs = append(errs, "revocation.fail_mode is required (closed or open): this is an explicit choice")
	default:
		errs = append(errs, fmt.Sprintf("revocation.fail_mode must be closed or open, got %q", c.Revocation.FailMode))
	}
	if c.Revocation.Backend == "redis" && strings.TrimSpace(c.Revocation.Redis.Addr) == "" {
		errs = append(errs, "revocation.redis.addr is required for the redis backend")
	}
	if _, err := time.ParseDuration(c.Revocation.CleanupInterval); err != nil {
		errs = append(errs, fmt.Sprintf("revocation.cleanup_interval invalid: %q", c.Revocation.CleanupInterval))
	}

	switch c.Secrets.Store {
	case "postgres", "memory":
	default:
		errs = append(errs, fmt.Sprintf("secrets.store must be postgres or memory, got %q", c.Secrets.Store))
	}
	if c.Secrets.Store == "postgres" && strings.TrimSpace(c.Secrets.DSN) == "" {
		errs = append(errs, "secrets.dsn is required for the postgres store (or TRUSTCORE_PG_DSN)")
	}
	if c.Secrets.Retention < 2 {
		errs = append(errs, "secrets.retention must be >= 2 (active plus previous version)")
	}
	if _, err := time.ParseDuration(c.Secrets.SweepInterval); err != nil {
		errs = append(errs, fmt.Sprintf("secrets.sweep_interval invalid: %q", c.Secrets.SweepInterval))
	}
	for _, s := range c.Secrets.Specs {
		if s.RotateEvery != "" {
			if _, err := time.ParseDuration(s.RotateEvery); err != nil {
				errs = append(errs, fmt.Sprintf("secrets.specs[%s].rotate_every invalid: %q", s.Name, s.RotateEvery))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// AccessTTL retorna la duración ya parseada (llamar después de Validate).
func (c *Config) AccessTTL() time.Duration { return mustDur(c.JWT.AccessTTL) }

// RefreshTTL retorna la duración ya parseada (llamar después de Validate).
func (c *Config) RefreshTTL() time.Duration { return mustDur(c.JWT.RefreshTTL) }

// CleanupInterval retorna la duración ya parseada (llamar después de Validate).
func (c *Config) CleanupInterval() time.Duration { return mustDur(c.Revocation.CleanupInterval) }

// SweepInterval retorna la duración ya parseada (llamar después de Validate).
func (c *Config) SweepInterval() time.Duration { return mustDur(c.Secrets.SweepInterval) }

func mustDur(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

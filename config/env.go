package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
)

// Environment variables overriding the config file. A .env file in the
// project root is read too; the process environment wins over it.
const (
	EnvLocales     = "I18NSYNC_LOCALES"
	EnvOutput      = "I18NSYNC_OUTPUT"
	EnvLogLevel    = "I18NSYNC_LOG_LEVEL"
	EnvConcurrency = "I18NSYNC_CONCURRENCY"
	EnvUILanguage  = "I18NSYNC_LANG"
)

type env map[string]string

func loadEnv(rootDir string) (env, error) {
	vars, err := godotenv.Read(filepath.Join(rootDir, ".env"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return env{}, nil
		}
		return nil, fmt.Errorf("reading .env: %w", err)
	}
	return vars, nil
}

func (e env) get(key string) (string, bool) {
	if v, ok := os.LookupEnv(key); ok {
		return v, true
	}
	v, ok := e[key]
	return v, ok
}

func (c *Config) applyEnv(rootDir string) error {
	e, err := loadEnv(rootDir)
	if err != nil {
		return err
	}

	if v, ok := e.get(EnvLocales); ok && strings.TrimSpace(v) != "" {
		parts := lo.Map(strings.Split(v, ","), func(s string, _ int) string { return strings.TrimSpace(s) })
		c.Locales = lo.Uniq(lo.Compact(parts))
	}
	if v, ok := e.get(EnvOutput); ok && v != "" {
		c.Output = v
	}
	if v, ok := e.get(EnvLogLevel); ok && v != "" {
		c.LogLevel = v
	}
	if v, ok := e.get(EnvUILanguage); ok && v != "" {
		c.UILanguage = v
	}
	if v, ok := e.get(EnvConcurrency); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %q is not a number", EnvConcurrency, v)
		}
		c.Concurrency = n
	}
	return nil
}

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/metalagman/racefix/internal/config"
	"github.com/spf13/viper"
)

var defaultConfigPath = filepath.Join(stateDirName, "config.yaml")

func resolveConfigPath(repoRoot, path string) string {
	if path == "" {
		path = defaultConfigPath
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(repoRoot, path)
	}
	return path
}

// loadDotEnv loads <root>/.env without overriding variables already set.
func loadDotEnv(repoRoot string) error {
	err := godotenv.Load(filepath.Join(repoRoot, ".env"))
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load .env: %w", err)
}

func setDefaults(v *viper.Viper) {
	d := config.Default()
	v.SetDefault("provider.type", d.Provider.Type)
	v.SetDefault("provider.model", d.Provider.Model)
	v.SetDefault("provider.base_url", d.Provider.BaseURL)
	v.SetDefault("provider.api_key_env", d.Provider.APIKeyEnv)
	v.SetDefault("provider.timeout", d.Provider.Timeout)
	v.SetDefault("provider.max_tokens", d.Provider.MaxTokens)
	v.SetDefault("agents", d.Agents)
	v.SetDefault("max_attempts", d.MaxAttempts)
	v.SetDefault("framework", d.Framework)
	v.SetDefault("temperatures", d.Temperatures)
	v.SetDefault("acceptance", d.Acceptance)
	v.SetDefault("oracle.timeout", d.Oracle.Timeout)
	v.SetDefault("retention.keep_last", d.Retention.KeepLast)
	v.SetDefault("retention.keep_days", d.Retention.KeepDays)
}

// loadConfig merges defaults, the config file, RACEFIX_* environment
// variables and bound flags, in increasing precedence.
func loadConfig(repoRoot string) (config.Config, error) {
	explicit := viper.GetString("config")
	path := resolveConfigPath(repoRoot, explicit)

	setDefaults(viper.GetViper())
	viper.SetEnvPrefix("RACEFIX")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if _, err := os.Stat(path); err == nil {
		if err := validateConfigFile(path); err != nil {
			return config.Config{}, err
		}
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return config.Config{}, fmt.Errorf("read config: %w", err)
		}
	} else if explicit != "" {
		return config.Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg config.Config
	if err := viper.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		secondsToDurationHook(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return config.Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// validateConfigFile checks the file alone, before env and flag values are merged in.
func validateConfigFile(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := config.ValidateSettings(v.AllSettings()); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// secondsToDurationHook treats bare numbers as seconds.
func secondsToDurationHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != durationType || from == durationType {
			return data, nil
		}
		switch from.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
			reflect.Float32, reflect.Float64:
			secs := reflect.ValueOf(data).Convert(reflect.TypeOf(float64(0))).Float()
			return time.Duration(secs * float64(time.Second)), nil
		default:
			return data, nil
		}
	}
}

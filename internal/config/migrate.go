package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// MigrateConfig holds configuration for the migrate command.
type MigrateConfig struct {
	Target        string
	PgDSN         string
	ClickhouseDSN string
	Down          int
	LogLevel      string
	LogFile       string
	LogMaxAgeDays int
}

// LoadMigrate merges config file, environment variables, and flags into MigrateConfig.
func LoadMigrate(cfgFile string, flags *pflag.FlagSet) (MigrateConfig, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		v.SetDefault("target", StorePostgres)
		v.SetDefault("down", 0)
		v.SetDefault("log-level", "info")
		v.SetDefault("log-max-age-days", 7)
	})
	if err != nil {
		return MigrateConfig{}, err
	}

	cfg := MigrateConfig{
		Target:        strings.ToLower(v.GetString("target")),
		PgDSN:         v.GetString("pg-dsn"),
		ClickhouseDSN: v.GetString("clickhouse-dsn"),
		Down:          v.GetInt("down"),
		LogLevel:      v.GetString("log-level"),
		LogFile:       v.GetString("log-file"),
		LogMaxAgeDays: v.GetInt("log-max-age-days"),
	}
	return cfg, nil
}

func (c MigrateConfig) Validate() error {
	switch c.Target {
	case StorePostgres:
		if c.PgDSN == "" {
			return fmt.Errorf("pg-dsn is required")
		}
		if c.Down < 0 {
			return fmt.Errorf("down must not be negative")
		}
	case StoreClickhouse:
		if c.ClickhouseDSN == "" {
			return fmt.Errorf("clickhouse-dsn is required")
		}
		if c.Down != 0 {
			return fmt.Errorf("down migrations are not supported for %s", c.Target)
		}
	default:
		return fmt.Errorf("unknown migrate target %q", c.Target)
	}
	return nil
}

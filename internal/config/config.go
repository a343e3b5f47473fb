package config

import (
	"errors"
	"fmt"
	"github.com/AndresDFlores/go-dbaccess/internal/db"
	"github.com/AndresDFlores/go-dbaccess/internal/logger"
	"github.com/spf13/viper"
	"os"
	"strings"
)

// EnvPrefix is the prefix of environment overrides, e.g. DBACCESS_DATABASE_HOST.
const EnvPrefix = "DBACCESS_"

type ExportConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	BatchSize int    `mapstructure:"batchsize"`
	Workers   int    `mapstructure:"workers"`
	OutputDir string `mapstructure:"outputdir"`
}

type Config struct {
	Database db.Config     `mapstructure:"database"`
	Export   ExportConfig  `mapstructure:"export"`
	Log      logger.Config `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", db.DriverSQLite)
	v.SetDefault("database.path", "dbaccess.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.loglevel", "warn")
	v.SetDefault("export.enabled", true)
	v.SetDefault("export.batchsize", 500)
	v.SetDefault("export.workers", 4)
	v.SetDefault("export.outputdir", ".")
	v.SetDefault("log.level", "INFO")
	v.SetDefault("log.format", "text")
}

// Load reads defaults, then the optional config file, then environment variables
// starting with prefix (PREFIX_DATABASE_HOST -> database.host).
func Load(path, prefix string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) || os.IsNotExist(err) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	prefixUpper := strings.ToUpper(prefix)
	for _, envStr := range os.Environ() {
		pair := strings.SplitN(envStr, "=", 2)
		if len(pair) != 2 || !strings.HasPrefix(pair[0], prefixUpper) {
			continue
		}
		// DBACCESS_DATABASE_HOST -> database.host
		propKey := strings.TrimPrefix(pair[0], prefixUpper)
		propKey = strings.ToLower(strings.ReplaceAll(propKey, "_", "."))
		propKey = strings.TrimPrefix(propKey, ".")
		if propKey != "" {
			v.Set(propKey, pair[1])
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

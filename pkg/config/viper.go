// Package config initializes the application's configuration. It uses the
// Viper library to read settings from a config file and environment
// variables, providing a unified configuration system.
package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// InitConfig initializes configuration defaults, search paths, and
// environment binding. Call once at startup.
func InitConfig(cfgFile string, logger *zap.Logger) {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/harvester/")
		viper.AddConfigPath("$HOME/.harvester")
	}

	const defaultUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/140.0.0.0 Safari/537.36"

	viper.SetDefault("harvest.input_file", "biopub_data.csv")
	viper.SetDefault("harvest.output_file", "llm_data_biopub.jsonl")
	viper.SetDefault("harvest.workers", 6)
	viper.SetDefault("harvest.request_delay", "500ms")
	viper.SetDefault("harvest.user_agent", defaultUA)

	viper.SetDefault("http.timeout", "30s")
	viper.SetDefault("http.max_attempts", 3)
	viper.SetDefault("http.backoff_initial", "1s")
	viper.SetDefault("http.backoff_max", "30s")

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.listen", ":9090")

	viper.SetDefault("logging.development", false)

	viper.SetEnvPrefix("HARVEST") // e.g. HARVEST_HTTP_TIMEOUT=60s
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && cfgFile == "" {
			logger.Debug("config file not found; using defaults and environment")
		} else {
			logger.Warn("error reading config file", zap.Error(err))
		}
	} else {
		logger.Info("using config file", zap.String("path", viper.ConfigFileUsed()))
	}
}

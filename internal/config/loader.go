package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// configName is the config file name without extension.
const configName = ".repograde"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for repograde settings.
const envPrefix = "REPOGRADE"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// dotenvFile is the local environment file loaded before viper reads the env.
const dotenvFile = ".env"

// LoadConfig loads configuration from file, env vars, and defaults.
// A .env file in the working directory is loaded first, without
// overriding variables already set in the process environment.
// If configPath is non-empty, it is used as the explicit config file path.
// Otherwise, the config file is searched in CWD and $HOME.
// Missing config file is not an error; defaults are used.
func LoadConfig(configPath string) (*Config, error) {
	// Best effort: a missing .env is the common case.
	_ = godotenv.Load(dotenvFile)

	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return &cfg, nil
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("server.addr", DefaultServerAddr)
	viperCfg.SetDefault("server.read_timeout", DefaultServerReadTimeout)
	viperCfg.SetDefault("server.write_timeout", DefaultServerWriteTimeout)
	viperCfg.SetDefault("server.shutdown_timeout", DefaultServerShutdownTimeout)

	viperCfg.SetDefault("pipeline.workers", DefaultPipelineWorkers)
	viperCfg.SetDefault("pipeline.work_dir", DefaultPipelineWorkDir)
	viperCfg.SetDefault("pipeline.clone_timeout", DefaultCloneTimeout)
	viperCfg.SetDefault("pipeline.node_timeout", DefaultNodeTimeout)

	viperCfg.SetDefault("analysis.max_commits", DefaultMaxCommits)
	viperCfg.SetDefault("analysis.max_file_bytes", DefaultMaxFileBytes)
	viperCfg.SetDefault("analysis.max_compare_files", DefaultMaxCompareFiles)
	viperCfg.SetDefault("analysis.security_per_leak", DefaultSecurityPerLeak)
	viperCfg.SetDefault("analysis.security_floor", DefaultSecurityFloor)
	viperCfg.SetDefault("analysis.security_max_drop", DefaultSecurityMaxDrop)
	viperCfg.SetDefault("analysis.origin_token_norm", DefaultOriginTokenNorm)
	viperCfg.SetDefault("analysis.origin_entropy_mid", DefaultOriginEntropyMid)

	viperCfg.SetDefault("judge.api_key", "")
	viperCfg.SetDefault("judge.model", DefaultJudgeModel)
	viperCfg.SetDefault("judge.timeout", DefaultJudgeTimeout)
	viperCfg.SetDefault("judge.summary_limit", DefaultJudgeSummaryLimit)

	viperCfg.SetDefault("store.path", DefaultStorePath)

	viperCfg.SetDefault("cache.enabled", true)
	viperCfg.SetDefault("cache.list_ttl", DefaultCacheListTTL)
	viperCfg.SetDefault("cache.detail_ttl", DefaultCacheDetailTTL)
	viperCfg.SetDefault("cache.chart_ttl", DefaultCacheChartTTL)
	viperCfg.SetDefault("cache.max_entries", DefaultCacheMaxEntries)

	viperCfg.SetDefault("log.level", DefaultLogLevel)
	viperCfg.SetDefault("log.format", DefaultLogFormat)
}

// Package config loads the gateway configuration from a TOML file and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables overriding config keys,
// e.g. GRAPHGW_SERVER_PORT.
const EnvPrefix = "GRAPHGW"

// RuleConfig is one [[admission.rules]] entry.
type RuleConfig struct {
	Field      string `mapstructure:"field"`
	Cost       int    `mapstructure:"cost"`
	Multiplier string `mapstructure:"multiplier"`
}

// UpstreamConfig is one [[upstreams]] entry.
type UpstreamConfig struct {
	Name       string   `mapstructure:"name"`
	URL        string   `mapstructure:"url"`
	RootFields []string `mapstructure:"root_fields"`
}

type Config struct {
	Server struct {
		Port            int    `mapstructure:"port"`
		Host            string `mapstructure:"host"`
		ShutdownTimeout int    `mapstructure:"shutdown_timeout"`
	} `mapstructure:"server"`
	Log struct {
		Level  string    `mapstructure:"level"`
		Levels LogLevels `mapstructure:"levels"`
	} `mapstructure:"log"`
	App struct {
		Environment string `mapstructure:"environment"`
		Debug       bool   `mapstructure:"debug"`
	} `mapstructure:"app"`
	Admission struct {
		MaximumCost      int          `mapstructure:"maximum_cost"`
		DefaultCost      int          `mapstructure:"default_cost"`
		MultiplierPolicy string       `mapstructure:"multiplier_policy"`
		RulesFile        string       `mapstructure:"rules_file"`
		Watch            bool         `mapstructure:"watch"`
		Rules            []RuleConfig `mapstructure:"rules"`
	} `mapstructure:"admission"`
	Upstreams []UpstreamConfig `mapstructure:"upstreams"`
	Upstream  struct {
		Timeout int `mapstructure:"timeout"`
		// MaxConcurrency bounds parallel upstream calls per request; 0 is unbounded.
		MaxConcurrency int `mapstructure:"max_concurrency"`
	} `mapstructure:"upstream"`
	Health struct {
		Schedule string `mapstructure:"schedule"`
	} `mapstructure:"health"`
	// Auth protects the /api/admission endpoints with HTTP Basic Auth when both
	// fields are set.
	Auth struct {
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
	} `mapstructure:"auth"`
	Metrics struct {
		Enabled bool   `mapstructure:"enabled"`
		Path    string `mapstructure:"path"`
	} `mapstructure:"metrics"`
}

// Load reads the configuration. An empty cfgFile looks for ./config.toml and
// tolerates its absence; an explicit path must exist.
func Load(cfgFile string) (*Config, error) {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("toml")
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || cfgFile != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		LogLevelsDecodeHook(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := viper.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	cfg.Log.Levels = flattenLogLevels(viper.Get("log.levels"))

	return &cfg, nil
}

// IsAuthEnabled reports whether admin endpoints require credentials.
func (c *Config) IsAuthEnabled() bool {
	return c.Auth.Username != "" && c.Auth.Password != ""
}

// ConfigFileUsed returns the path of the file the last Load read, if any.
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}

func setDefaults() {
	viper.SetDefault("server.port", 9080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.shutdown_timeout", 5)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("app.environment", "production")
	viper.SetDefault("app.debug", false)
	viper.SetDefault("admission.maximum_cost", 750)
	viper.SetDefault("admission.default_cost", 1)
	viper.SetDefault("admission.multiplier_policy", "permissive")
	viper.SetDefault("admission.watch", true)
	viper.SetDefault("upstream.timeout", 30)
	viper.SetDefault("upstream.max_concurrency", 0)
	viper.SetDefault("health.schedule", "@every 30s")
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")
}

// BindFlags binds the command line flags that override config keys.
func BindFlags(cmd *cobra.Command) {
	cmd.Flags().Int("port", 9080, "Port to run the gateway on")
	cmd.Flags().Int("maximum-cost", 750, "Maximum admitted query cost")
	_ = viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("admission.maximum_cost", cmd.Flags().Lookup("maximum-cost"))
}

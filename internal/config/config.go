package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Version information - set by GoReleaser during build
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// GetVersionInfo returns a formatted version string
func GetVersionInfo() string {
	return fmt.Sprintf("authkit version %s, commit %s, built at %s", version, commit, date)
}

type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	Endpoint  EndpointConfig  `mapstructure:"endpoint"`
	Pool      PoolConfig      `mapstructure:"pool"`
	Federated FederatedConfig `mapstructure:"federated"`
	Session   SessionConfig   `mapstructure:"session"`
}

// EndpointConfig describes the catalog data-access API that outbound
// requests are made against with the resolved bearer credential.
type EndpointConfig struct {
	BaseURL string            `mapstructure:"base_url"`
	Headers map[string]string `mapstructure:"headers"`
}

// PoolConfig describes the password-grant identity pool. ClientSecret is
// optional; when set, every pool request carries the derived client
// signature.
type PoolConfig struct {
	Endpoint     string `mapstructure:"endpoint"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

// FederatedConfig describes the browser-flow OAuth provider.
type FederatedConfig struct {
	Issuer       string   `mapstructure:"issuer"`
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	Scopes       []string `mapstructure:"scopes"`
	RedirectPort int      `mapstructure:"redirect_port"`
}

// SessionConfig describes where session records are persisted. An empty
// Path keeps records in process memory only.
type SessionConfig struct {
	Path string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level             string `mapstructure:"level"`
	Format            string `mapstructure:"format"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
	OutputPath        string `mapstructure:"output_path"`
	AppendToFile      bool   `mapstructure:"append_to_file"`
	DisableConsole    bool   `mapstructure:"disable_console"`
}

// InitFlags initializes command line flags (without parsing)
func InitFlags() {
	pflag.String("endpoint.base_url", "", "Base URL of the catalog API")
	pflag.String("session.path", "", "Path to the session database file")
	// Note: no pflag.Parse() here as it's called in main.go
}

func Load() (*Config, error) {
	viper.Reset() // Ensure clean state

	viper.SetEnvPrefix("AUTHKIT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.BindPFlags(pflag.CommandLine); err != nil {
		return nil, err
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/authkit")

	if err := viper.ReadInConfig(); err != nil {
		// Config file is optional; env and flags can carry everything.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if config.Pool.ClientID == "" {
		return nil, fmt.Errorf("pool.client_id is required, please adjust the config or set AUTHKIT_POOL_CLIENT_ID")
	}

	if len(config.Federated.Scopes) == 0 {
		config.Federated.Scopes = []string{"openid", "profile", "email"}
	}

	return &config, nil
}

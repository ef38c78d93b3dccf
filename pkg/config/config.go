package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type EnvVarName string // should be caps with underscore

const (
	EnvPrefix = "HFI_REGRESS"

	sentryURL  EnvVarName = "HFI_REGRESS_SENTRY_DSN"
	debug      EnvVarName = "HFI_REGRESS_DEBUG"
	configPath EnvVarName = "HFI_REGRESS_CONFIG"
	user       EnvVarName = "USER"
)

type ConstantsConfig struct{}

func NewConstants() *ConstantsConfig {
	return &ConstantsConfig{}
}

func (c ConstantsConfig) GetSentryURL() string {
	return getEnvOrDefault(sentryURL, "")
}

func (c ConstantsConfig) GetDebug() bool {
	return getEnvOrDefault(debug, "") != ""
}

func (c ConstantsConfig) GetConfigPath() string {
	return getEnvOrDefault(configPath, "")
}

func (c ConstantsConfig) GetUser() string {
	return getEnvOrDefault(user, "nobody")
}

func getEnvOrDefault(envVarName EnvVarName, defaultVal string) string {
	val := os.Getenv(string(envVarName))
	if val == "" {
		return defaultVal
	}
	return val
}

var GlobalConfig = NewConstants()

// EnvKey is the environment variable that sets key, e.g. HFI_REGRESS_LOG_DIR
// for log-dir.
func EnvKey(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(envReplacer.Replace(key))
}

var envReplacer = strings.NewReplacer(".", "_", "-", "_")

// Load builds a viper instance layered as flags over HFI_REGRESS_* env over
// the yaml config file. An explicit path must exist; the search path may not.
func Load(flags *pflag.FlagSet, path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(strings.ToLower(EnvPrefix))
	v.SetEnvKeyReplacer(envReplacer)
	v.AutomaticEnv()

	if path == "" {
		path = GlobalConfig.GetConfigPath()
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err //nolint:wrapcheck // wrapped by caller
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/hfi-regress/")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".hfi-regress"))
		}
		_ = v.ReadInConfig() // do not need to fail if can't find config file
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, err //nolint:wrapcheck // wrapped by caller
		}
	}
	return v, nil
}

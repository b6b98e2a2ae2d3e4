package config

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes the environment variables read by LoadSettings.
	EnvPrefix = "UNRUN"

	// RCFileName is the settings file name, without extension, looked up
	// in the working directory (.unrunrc.yaml, .unrunrc.json, .unrunrc.toml).
	RCFileName = ".unrunrc"
)

// Settings are the ambient defaults read once per invocation from the
// environment and the optional rc file. Explicit Options win over them.
type Settings struct {
	Debug   bool   `mapstructure:"debug"`
	Preset  string `mapstructure:"preset"`
	Node    string `mapstructure:"node"`
	Wrapper string `mapstructure:"wrapper"`
}

// LoadSettings reads UNRUN_DEBUG, UNRUN_PRESET, UNRUN_NODE and
// UNRUN_WRAPPER plus the rc file in workDir. Environment variables take
// precedence over the file. A missing rc file is not an error.
func LoadSettings(workDir string) (*Settings, error) {
	v := viper.New()

	v.SetDefault("debug", false)
	v.SetDefault("preset", "")
	v.SetDefault("node", "")
	v.SetDefault("wrapper", "")

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	v.SetConfigName(RCFileName)
	v.AddConfigPath(workDir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read %s: %w", RCFileName, err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}
	return &s, nil
}

// LoadEnvFiles parses dotenv files, relative to workDir, into one map.
// Later files override earlier ones.
func LoadEnvFiles(workDir string, files []string) (map[string]string, error) {
	env := make(map[string]string)
	for _, f := range files {
		if !filepath.IsAbs(f) {
			f = filepath.Join(workDir, f)
		}
		vars, err := godotenv.Read(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read env file %s: %w", f, err)
		}
		for k, val := range vars {
			env[k] = val
		}
	}
	return env, nil
}

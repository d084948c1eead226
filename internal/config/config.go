package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Config interface {
	EnvConfig
	CloudConfig
	PollingConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

type CloudConfig interface {
	GetEmail() string
	GetPassword() string
	GetOAuthBaseURL() string
	GetAPIBaseURL() string
}

type mainConfig struct {
	EnvVars
	Cloud
	Polling
}

// source resolves a key from, highest first: overrides (command-line flags),
// the environment, the config file, then the caller's default.
type source struct {
	overrides map[string]string
	file      map[string]string
}

func (s *source) get(key, defaultValue string) string {
	if value, ok := s.overrides[key]; ok && value != "" {
		return value
	}
	if value := GetEnv(key, ""); value != "" {
		return value
	}
	if value, ok := s.file[key]; ok && value != "" {
		return value
	}
	return defaultValue
}

type Option func(*source) error

// WithFile layers a YAML config file under the environment.
func WithFile(path string) Option {
	return func(s *source) error {
		if path == "" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrapf(err, "[config WithFile] reading %s", path)
		}
		var f fileConfig
		if err := yaml.Unmarshal(data, &f); err != nil {
			return errors.Wrapf(err, "[config WithFile] parsing %s", path)
		}
		s.file = f.values()
		return nil
	}
}

// WithOverrides layers values, typically from command-line flags, above the environment.
func WithOverrides(values map[string]string) Option {
	return func(s *source) error {
		for key, value := range values {
			s.overrides[key] = value
		}
		return nil
	}
}

func New(options ...Option) (Config, error) {
	src := &source{overrides: map[string]string{}, file: map[string]string{}}
	for _, opt := range options {
		if err := opt(src); err != nil {
			return nil, err
		}
	}
	return mainConfig{
		EnvVars: EnvVars{src: src},
		Cloud:   Cloud{src: src},
		Polling: Polling{src: src},
	}, nil
}

// Validate checks the settings the engine cannot start without.
func Validate(cfg Config) error {
	if cfg.GetEmail() == "" {
		return errors.Errorf("[config Validate] %s is required", EmailVar)
	}
	if cfg.GetPassword() == "" {
		return errors.Errorf("[config Validate] %s is required", PasswordVar)
	}
	if _, err := cfg.GetUpdateInterval(); err != nil {
		return err
	}
	return nil
}

package config

import (
	"strconv"

	"github.com/jrsteele09/go-fermax-cloud/internal/utils"
)

// fileConfig is the YAML layout of the config file.
type fileConfig struct {
	Port     string `yaml:"port"`
	AppName  string `yaml:"app_name"`
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`

	Fermax struct {
		Email        string `yaml:"email"`
		Password     string `yaml:"password"`
		OAuthBaseURL string `yaml:"oauth_base_url"`
		APIBaseURL   string `yaml:"api_base_url"`
	} `yaml:"fermax"`

	Polling struct {
		UpdateInterval     *int  `yaml:"update_interval"`
		MaxParallelFetches *int  `yaml:"max_parallel_fetches"`
		RetryEnabled       *bool `yaml:"retry_enabled"`
	} `yaml:"polling"`
}

// values flattens the file onto the environment variable names.
func (f fileConfig) values() map[string]string {
	values := map[string]string{
		PortVar:         f.Port,
		AppNameVar:      f.AppName,
		EnvVar:          f.Env,
		LogLevelVar:     f.LogLevel,
		EmailVar:        f.Fermax.Email,
		PasswordVar:     f.Fermax.Password,
		OAuthBaseURLVar: f.Fermax.OAuthBaseURL,
		APIBaseURLVar:   f.Fermax.APIBaseURL,
	}
	if f.Polling.UpdateInterval != nil {
		values[UpdateIntervalVar] = strconv.Itoa(utils.Value(f.Polling.UpdateInterval))
	}
	if f.Polling.MaxParallelFetches != nil {
		values[MaxParallelFetchesVar] = strconv.Itoa(utils.Value(f.Polling.MaxParallelFetches))
	}
	if f.Polling.RetryEnabled != nil {
		values[RetryEnabledVar] = strconv.FormatBool(utils.Value(f.Polling.RetryEnabled))
	}
	return values
}

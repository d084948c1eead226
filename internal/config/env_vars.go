package config

import (
	"fmt"
	"os"
	"strings"
)

const (
	PortVar     = "PORT"
	AppNameVar  = "APP_NAME"
	EnvVar      = "ENV"
	LogLevelVar = "LOG_LEVEL"
)

type EnvVars struct {
	src *source
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	port := e.src.get(PortVar, "8080")
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return e.src.get(AppNameVar, "Fermax Cloud")
}

func (e EnvVars) GetEnv() string {
	return e.src.get(EnvVar, "DEV")
}

func (e EnvVars) GetLogLevel() string {
	return strings.ToLower(e.src.get(LogLevelVar, "info"))
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

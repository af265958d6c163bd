package stacks

import (
	"github.com/pkg/errors"

	"github.com/devopsrepohq/rds/internal/settings"
)

// Engine describes a cluster engine and the port it listens on by default.
type Engine struct {
	Name           string
	DefaultVersion string
	DefaultPort    int
}

var engines = map[string]Engine{
	settings.EngineAuroraMySQL: {
		Name:           settings.EngineAuroraMySQL,
		DefaultVersion: "8.0.mysql_aurora.3.04.0",
		DefaultPort:    3306,
	},
	settings.EngineAuroraPostgreSQL: {
		Name:           settings.EngineAuroraPostgreSQL,
		DefaultVersion: "15.4",
		DefaultPort:    5432,
	},
}

// LookupEngine returns the engine registered under name.
func LookupEngine(name string) (Engine, error) {
	e, ok := engines[name]
	if !ok {
		return Engine{}, errors.Errorf("unsupported engine %q", name)
	}
	return e, nil
}

// Version returns override if set, else the engine's default version.
func (e Engine) Version(override string) string {
	if override != "" {
		return override
	}
	return e.DefaultVersion
}

package config

import (
	"path/filepath"
	"strings"
	"time"

	pxerrors "git.home.luguber.info/inful/pxbuild/internal/errors"
)

var entryExtensions = map[string]bool{".ts": true, ".tsx": true, ".js": true, ".jsx": true, ".mts": true, ".mjs": true}

// Validate checks a configuration after defaults have been applied.
func Validate(cfg *Config) error {
	if !cfg.Build.Mode.Valid() {
		return pxerrors.ValidationFailed("build.mode", "must be development or production")
	}
	if !entryExtensions[strings.ToLower(filepath.Ext(cfg.Project.Entry))] {
		return pxerrors.ValidationFailed("project.entry", "must be a .ts, .tsx, .js or .jsx file")
	}
	if filepath.Ext(cfg.Project.Output) != ".js" {
		return pxerrors.ValidationFailed("project.output", "must end in .js")
	}
	for spec, target := range cfg.Project.Aliases {
		if spec == "" || target == "" {
			return pxerrors.ValidationFailed("project.aliases", "alias keys and targets must be non-empty")
		}
		if strings.HasPrefix(spec, ".") || strings.HasPrefix(spec, "/") {
			return pxerrors.ValidationFailed("project.aliases", "alias keys must be bare import specifiers: "+spec)
		}
	}
	if _, err := time.ParseDuration(cfg.Preview.Debounce); err != nil {
		return pxerrors.ValidationFailed("preview.debounce", err.Error())
	}
	if _, err := time.ParseDuration(cfg.History.Retention); err != nil {
		return pxerrors.ValidationFailed("history.retention", err.Error())
	}
	if _, err := cfg.Redis.Retry.Policy(); err != nil {
		return pxerrors.ValidationFailed("redis.retry", err.Error())
	}
	if !cfg.Build.TypeCheck.Disabled && len(cfg.Build.TypeCheck.Command) == 0 {
		return pxerrors.ValidationFailed("build.typecheck.command", "must not be empty unless disabled")
	}
	return nil
}

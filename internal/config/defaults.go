package config

import "time"

const (
	defaultRoot      = "."
	defaultEntry     = "codes/index.ts"
	defaultOutput    = "output/index.js"
	defaultAddr      = "127.0.0.1:5173"
	defaultDebounce  = 300 * time.Millisecond
	defaultRetention = 7 * 24 * time.Hour
	defaultKeyPrefix = "pxbuild"
	defaultSubject   = "pxbuild.build"
)

// defaultTypeCheckCommand runs the TypeScript compiler without emitting output.
// The checker adds the project or entry file and the JSX and target flags.
var defaultTypeCheckCommand = []string{"tsc", "--noEmit", "--pretty", "false"}

func applyDefaults(cfg *Config) {
	if cfg.Project.Root == "" {
		cfg.Project.Root = defaultRoot
	}
	if cfg.Project.Entry == "" {
		cfg.Project.Entry = defaultEntry
	}
	if cfg.Project.Output == "" {
		cfg.Project.Output = defaultOutput
	}
	if cfg.Build.Mode == "" {
		cfg.Build.Mode = ModeDevelopment
	}
	if len(cfg.Build.TypeCheck.Command) == 0 {
		cfg.Build.TypeCheck.Command = append([]string(nil), defaultTypeCheckCommand...)
	}
	cfg.Logging.Level = NormalizeLogLevel(string(cfg.Logging.Level))
	cfg.Logging.Format = NormalizeLogFormat(string(cfg.Logging.Format))
	if cfg.Preview.Addr == "" {
		cfg.Preview.Addr = defaultAddr
	}
	if cfg.Preview.Debounce == "" {
		cfg.Preview.Debounce = defaultDebounce.String()
	}
	if cfg.History.Retention == "" {
		cfg.History.Retention = "168h"
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = defaultKeyPrefix
	}
	if cfg.NATS.Subject == "" {
		cfg.NATS.Subject = defaultSubject
	}
}

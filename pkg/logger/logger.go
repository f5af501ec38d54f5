package logger

import "log/slog"

var def *slog.Logger

// Init configures the process-wide slog logger for the given environment
// and installs it as the slog default.
func Init(cfg Config) {
	if cfg.Env == "" {
		cfg.Env = DetectEnv()
	}
	if cfg.Service == "" {
		cfg.Service = "forum-service"
	}
	cfg.InstanceID = instanceID(cfg.InstanceID)

	if cfg.Backend == "" {
		if cfg.Env == EnvDev {
			cfg.Backend = BackendStd
		} else {
			cfg.Backend = BackendZap
		}
	}

	var h slog.Handler
	switch cfg.Backend {
	case BackendZap:
		h = newZapHandler(cfg)
	default:
		h = newStdHandler(cfg)
	}

	h = h.WithAttrs(baseAttrs(cfg))

	base := slog.New(h)
	slog.SetDefault(base)
	def = base
}

// L returns the configured logger, initializing defaults on first use.
func L() *slog.Logger {
	if def != nil {
		return def
	}

	Init(Config{})
	return def
}

package logger

import (
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
)

// instanceID returns v unchanged, or derives a per-process fallback so
// records from different replicas stay distinguishable.
func instanceID(v string) string {
	if v != "" {
		return v
	}
	host, _ := os.Hostname()
	return host + "-" + uuid.NewString()[:8]
}

// baseAttrs is attached to every record the process emits.
func baseAttrs(cfg Config) []slog.Attr {
	return []slog.Attr{
		slog.String("service", cfg.Service),
		slog.String("env", string(cfg.Env)),
		slog.String("version", cfg.Version),
		slog.String("instance_id", cfg.InstanceID),
		slog.Time("started_at", time.Now()),
	}
}

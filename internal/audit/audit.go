// Package audit records successful PDF generations. Recording is best
// effort: failures are logged by the caller and never fail a request.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	u "pdf-generator/internal/utils"
)

// Record describes one generated document.
type Record struct {
	RequestID string        `json:"request_id"`
	Template  string        `json:"template"`
	Path      string        `json:"path"`
	Bytes     int           `json:"bytes"`
	Duration  time.Duration `json:"duration_ns"`
	CreatedAt time.Time     `json:"created_at"`
}

// Recorder persists generation records.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
	Close() error
}

// Lister is implemented by recorders that can list recent records.
type Lister interface {
	Recent(ctx context.Context, n int64) ([]Record, error)
}

// Nop discards records.
type Nop struct{}

func (Nop) Record(context.Context, Record) error { return nil }
func (Nop) Close() error                         { return nil }

// New builds the recorder selected by cfg.Audit.Backend. rdb is only used by
// the redis backend.
func New(cfg u.Config, rdb *redis.Client) (Recorder, error) {
	switch cfg.Audit.Backend {
	case u.AuditPostgres:
		return NewPostgresRecorder(cfg.Audit.Postgres)
	case u.AuditRedis:
		if rdb == nil {
			return nil, fmt.Errorf("audit backend redis requires cache.redis_host")
		}
		return NewRedisRecorder(rdb, cfg.Audit.RedisKey, cfg.Audit.MaxEntries), nil
	case u.AuditNone, "":
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown audit backend %q", cfg.Audit.Backend)
	}
}

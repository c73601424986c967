package lock

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const releaseTimeout = 5 * time.Second

// Advisory is a session-scoped Postgres advisory lock held on a dedicated
// connection for the duration of one run. If the connection dies the server
// releases the lock.
type Advisory struct {
	db     *sql.DB
	key    int64
	logger *zap.Logger
}

func NewAdvisory(db *sql.DB, key int64, logger *zap.Logger) *Advisory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Advisory{db: db, key: key, logger: logger}
}

// TryLock attempts pg_try_advisory_lock without waiting.
func (a *Advisory) TryLock(ctx context.Context) (func(), bool, error) {
	conn, err := a.db.Conn(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("advisory lock: dedicated connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", a.key).Scan(&acquired); err != nil {
		conn.Close()
		return nil, false, fmt.Errorf("advisory lock: %w", err)
	}
	if !acquired {
		conn.Close()
		return nil, false, nil
	}

	a.logger.Debug("advisory lock acquired", zap.Int64("lock_key", a.key))
	release := func() {
		defer conn.Close()
		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()

		var released bool
		if err := conn.QueryRowContext(ctx, "SELECT pg_advisory_unlock($1)", a.key).Scan(&released); err != nil {
			a.logger.Warn("advisory unlock failed, lock ends with the session", zap.Int64("lock_key", a.key), zap.Error(err))
			return
		}
		if !released {
			a.logger.Warn("advisory lock was not held at release", zap.Int64("lock_key", a.key))
		}
	}
	return release, true, nil
}

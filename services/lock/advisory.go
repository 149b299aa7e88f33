package lock

import (
	"context"
	"database/sql"
	"sync"

	"gorm.io/gorm"

	"reportplane/pkg/errutil"
)

// advisoryLocker backs the Locker interface with database advisory locks
// (MySQL GET_LOCK, Postgres pg_try_advisory_lock). Advisory locks are bound
// to the session that took them, so each held lock pins a dedicated
// connection until release.
type advisoryLocker struct {
	db *gorm.DB

	mu    sync.Mutex
	conns map[string]*sql.Conn
}

func NewAdvisoryLocker(db *gorm.DB) Locker {
	return &advisoryLocker{db: db, conns: make(map[string]*sql.Conn)}
}

func (l *advisoryLocker) TryAcquire(ctx context.Context, name string) (bool, error) {
	l.mu.Lock()
	if _, ok := l.conns[name]; ok {
		l.mu.Unlock()
		return false, nil
	}
	l.mu.Unlock()

	sqlDB, err := l.db.DB()
	if err != nil {
		return false, errutil.Execution("failed to get sql.DB from gorm", errutil.WithErr(err))
	}

	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return false, errutil.Execution("failed to get lock connection", errutil.WithErr(err))
	}

	var acquired bool
	switch l.db.Dialector.Name() {
	case "mysql":
		var got sql.NullInt64
		err = conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, 0)", name).Scan(&got)
		acquired = err == nil && got.Valid && got.Int64 == 1
	case "postgres":
		err = conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock(hashtext($1))", name).Scan(&acquired)
	default:
		conn.Close()
		return false, errutil.Configuration("advisory locks unsupported for dialect " + l.db.Dialector.Name())
	}

	if err != nil {
		conn.Close()
		return false, errutil.Execution("advisory lock query failed", errutil.WithErr(err))
	}
	if !acquired {
		conn.Close()
		return false, nil
	}

	l.mu.Lock()
	l.conns[name] = conn
	l.mu.Unlock()

	return true, nil
}

func (l *advisoryLocker) Release(ctx context.Context, name string) error {
	l.mu.Lock()
	conn, ok := l.conns[name]
	delete(l.conns, name)
	l.mu.Unlock()

	if !ok {
		return nil
	}
	defer conn.Close()

	var err error
	switch l.db.Dialector.Name() {
	case "mysql":
		_, err = conn.ExecContext(ctx, "SELECT RELEASE_LOCK(?)", name)
	case "postgres":
		_, err = conn.ExecContext(ctx, "SELECT pg_advisory_unlock(hashtext($1))", name)
	}

	if err != nil {
		return errutil.Execution("advisory unlock failed", errutil.WithErr(err))
	}
	return nil
}

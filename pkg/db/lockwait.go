package db

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// LockWaitStatement returns the statement that caps how long the current
// transaction waits on a row lock, or "" when the dialect has none.
func LockWaitStatement(dialect string, timeout time.Duration) string {
	if timeout <= 0 {
		return ""
	}
	switch dialect {
	case TypePostgres:
		ms := timeout.Milliseconds()
		if ms < 1 {
			ms = 1
		}
		return fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", ms)
	case TypeMySQL:
		// innodb_lock_wait_timeout has no transaction scope and whole-second
		// granularity; every ledger transaction sets it again.
		secs := int64((timeout + time.Second - 1) / time.Second)
		return fmt.Sprintf("SET SESSION innodb_lock_wait_timeout = %d", secs)
	default:
		return ""
	}
}

// BoundLockWait applies LockWaitStatement inside tx. A wait that exceeds the
// bound fails with 55P03 or MySQL error 1205, both lock conflicts.
func BoundLockWait(tx *gorm.DB, timeout time.Duration) error {
	if tx == nil || tx.Dialector == nil {
		return nil
	}
	stmt := LockWaitStatement(tx.Dialector.Name(), timeout)
	if stmt == "" {
		return nil
	}
	return tx.Exec(stmt).Error
}

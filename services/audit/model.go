package audit

import (
	"time"

	"gorm.io/datatypes"
)

// Entry is one append-only record per runner invocation. It is the system's
// sole persisted observability signal: outcome, error detail, mail status
// and optional idempotency tag all land in Summary.
type Entry struct {
	ID         string         `gorm:"column:id;primaryKey;type:char(26)"`
	TaskID     string         `gorm:"column:task_id;index;not null"`
	ExecutedAt time.Time      `gorm:"column:executed_at;index;not null"`
	RowCount   int            `gorm:"column:row_count;default:0"`
	Summary    string         `gorm:"column:summary;type:text"`
	Metadata   datatypes.JSON `gorm:"column:metadata"`
}

func (Entry) TableName() string { return "task_audit_log" }

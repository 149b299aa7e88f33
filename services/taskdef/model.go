package taskdef

import (
	"time"
)

// TaskDefinition is an administrator-owned record describing one scheduled
// task. Exactly one of Description (natural-language question) or RawSQL
// drives execution; when both are stored, RawSQL takes priority. An empty
// Recipient means the task still runs and logs, but delivery is skipped.
type TaskDefinition struct {
	ID          string    `gorm:"column:id;primaryKey;type:char(26)"`
	Name        string    `gorm:"column:name;uniqueIndex;type:varchar(100);not null"`
	Description string    `gorm:"column:description;type:text"`
	RawSQL      string    `gorm:"column:raw_sql;type:text"`
	CronExpr    string    `gorm:"column:cron_expr;type:varchar(50);not null"`
	Recipient   string    `gorm:"column:recipient;type:varchar(255)"`
	IsActive    bool      `gorm:"column:is_active;default:true"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

func (TaskDefinition) TableName() string { return "task_definitions" }

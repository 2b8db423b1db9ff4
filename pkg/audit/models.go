package audit

import (
	"time"

	"gorm.io/datatypes"
)

type Record struct {
	ID          string         `gorm:"primaryKey;column:id" json:"id"`
	Actor       string         `gorm:"column:actor" json:"actor"`
	Operation   string         `gorm:"column:operation" json:"operation"`
	Parameters  datatypes.JSON `gorm:"column:parameters" json:"parameters"`
	ResultCount int            `gorm:"column:result_count" json:"result_count"`
	CreatedAt   time.Time      `gorm:"column:created_at" json:"created_at"`
}

func (Record) TableName() string {
	return "query_audit_log"
}

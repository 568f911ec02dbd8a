package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	AuditActionMatch      = "match"
	AuditActionIgnore     = "ignore"
	AuditActionReactivate = "reactivate"
	AuditActionReverse    = "reverse"
	AuditActionDelete     = "delete"

	PerformedByAuto   = "auto"
	PerformedByManual = "manual"
)

// MatchAuditLog records every lifecycle mutation of a transaction, so a
// reversed or re-matched payment can be traced afterwards.
type MatchAuditLog struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey"`
	TransactionID   uuid.UUID  `gorm:"index"`
	Action          string     `gorm:"index"`
	PreviousFactuur *uuid.UUID
	NewFactuur      *uuid.UUID
	PerformedBy     string
	Reason          string
	CreatedAt       time.Time
}

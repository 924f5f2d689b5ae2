package models

import (
	"strings"
	"time"
)

// ReportStatus is the lifecycle state of a report.
type ReportStatus string

const (
	ReportStatusPending        ReportStatus = "pending"
	ReportStatusRejected       ReportStatus = "rejected"
	ReportStatusApproved       ReportStatus = "approved"
	ReportStatusContentDeleted ReportStatus = "content_deleted"
)

// Terminal reports whether no further transition is allowed.
func (s ReportStatus) Terminal() bool {
	return s == ReportStatusRejected || s == ReportStatusApproved || s == ReportStatusContentDeleted
}

// ModerationAction is an administrative decision on a pending report.
type ModerationAction string

const (
	ActionWait    ModerationAction = "wait"
	ActionReject  ModerationAction = "reject"
	ActionApprove ModerationAction = "approve"
	ActionDelete  ModerationAction = "delete"
)

// ParseModerationAction normalizes a client-supplied action name.
func ParseModerationAction(raw string) (ModerationAction, bool) {
	switch a := ModerationAction(strings.ToLower(strings.TrimSpace(raw))); a {
	case ActionWait, ActionReject, ActionApprove, ActionDelete:
		return a, true
	default:
		return "", false
	}
}

// Penalizes reports whether the action counts an infraction against the author.
func (a ModerationAction) Penalizes() bool {
	return a == ActionApprove || a == ActionDelete
}

// TerminalStatus returns the report status an action moves to.
func (a ModerationAction) TerminalStatus() ReportStatus {
	switch a {
	case ActionReject:
		return ReportStatusRejected
	case ActionApprove:
		return ReportStatusApproved
	case ActionDelete:
		return ReportStatusContentDeleted
	default:
		return ReportStatusPending
	}
}

// Report is a user complaint against a post or market listing.
type Report struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	ReporterID  string       `gorm:"size:36;not null;uniqueIndex:idx_report_once" json:"reporter_id"`
	ContentType ContentType  `gorm:"size:16;not null;uniqueIndex:idx_report_once" json:"content_type"`
	ContentID   uint         `gorm:"not null;uniqueIndex:idx_report_once" json:"content_id"`
	Reason      string       `gorm:"type:text;not null" json:"reason"`
	Status      ReportStatus `gorm:"size:20;not null;default:pending;index" json:"status"`
	AdminID     *string      `gorm:"size:36" json:"admin_id,omitempty"`
	DecidedAt   *time.Time   `json:"decided_at,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

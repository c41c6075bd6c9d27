package model

import (
	"time"

	"github.com/google/uuid"
)

// HistoryDomain separates status transitions from stage transitions in the
// audit trail.
type HistoryDomain string

const (
	HistoryDomainStatus HistoryDomain = "status"
	HistoryDomainStage  HistoryDomain = "stage"
)

type ChangeType string

const (
	ChangeTypeStatus           ChangeType = "status_change"
	ChangeTypeDoctorAssigned   ChangeType = "doctor_assigned"
	ChangeTypeDoctorUnassigned ChangeType = "doctor_unassigned"
	ChangeTypeDoctorChanged    ChangeType = "doctor_changed"
)

// AppointmentStatusHistory is one immutable audit record. Rows are only ever
// inserted; Seq is assigned by the store and breaks ties on ChangedAt.
type AppointmentStatusHistory struct {
	ID                    uuid.UUID     `db:"id" json:"id"`
	Seq                   int64         `db:"seq" json:"seq"`
	AppointmentID         uuid.UUID     `db:"appointment_id" json:"appointment_id"`
	Domain                HistoryDomain `db:"domain" json:"domain"`
	FromStatus            *string       `db:"from_status" json:"from_status"`
	ToStatus              string        `db:"to_status" json:"to_status"`
	ChangeType            ChangeType    `db:"change_type" json:"change_type"`
	ChangedBy             uuid.UUID     `db:"changed_by" json:"changed_by"`
	ChangedByRole         Role          `db:"changed_by_role" json:"changed_by_role"`
	ChangedAt             time.Time     `db:"changed_at" json:"changed_at"`
	IsReversion           bool          `db:"is_reversion" json:"is_reversion"`
	RevertedFromHistoryID *uuid.UUID    `db:"reverted_from_history_id" json:"reverted_from_history_id,omitempty"`
	OldDoctorID           *uuid.UUID    `db:"old_doctor_id" json:"old_doctor_id,omitempty"`
	NewDoctorID           *uuid.UUID    `db:"new_doctor_id" json:"new_doctor_id,omitempty"`
	Reason                *string       `db:"reason" json:"reason,omitempty"`
	Metadata              JSONMap       `db:"metadata" json:"metadata,omitempty"`
}

// From returns the previous value, or "null" for the creation entry.
func (h *AppointmentStatusHistory) From() string {
	if h.FromStatus == nil {
		return "null"
	}
	return *h.FromStatus
}

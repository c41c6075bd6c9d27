package model

import (
	"github.com/google/uuid"
)

// MedicalRecord is only consulted for existence; its clinical content is
// owned by another component.
type MedicalRecord struct {
	Base
	AppointmentID uuid.UUID `db:"appointment_id" json:"appointment_id"`
	PatientID     uuid.UUID `db:"patient_id" json:"patient_id"`
	CreatedBy     uuid.UUID `db:"created_by" json:"created_by"`
}

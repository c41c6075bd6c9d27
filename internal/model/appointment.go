package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusPending     AppointmentStatus = "pending"
	AppointmentStatusScheduled   AppointmentStatus = "scheduled"
	AppointmentStatusCheckedIn   AppointmentStatus = "checked_in"
	AppointmentStatusInProgress  AppointmentStatus = "in_progress"
	AppointmentStatusCompleted   AppointmentStatus = "completed"
	AppointmentStatusCancelled   AppointmentStatus = "cancelled"
	AppointmentStatusNoShow      AppointmentStatus = "no_show"
	AppointmentStatusRescheduled AppointmentStatus = "rescheduled"
)

// AppointmentStatuses lists every status in lifecycle order.
var AppointmentStatuses = []AppointmentStatus{
	AppointmentStatusPending,
	AppointmentStatusScheduled,
	AppointmentStatusCheckedIn,
	AppointmentStatusInProgress,
	AppointmentStatusCompleted,
	AppointmentStatusCancelled,
	AppointmentStatusNoShow,
	AppointmentStatusRescheduled,
}

func (s AppointmentStatus) Valid() bool {
	for _, v := range AppointmentStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no forward transition leaves s.
func (s AppointmentStatus) IsTerminal() bool {
	switch s {
	case AppointmentStatusCompleted, AppointmentStatusCancelled,
		AppointmentStatusNoShow, AppointmentStatusRescheduled:
		return true
	}
	return false
}

func ParseAppointmentStatus(s string) (AppointmentStatus, error) {
	status := AppointmentStatus(s)
	if !status.Valid() {
		return "", fmt.Errorf("unknown appointment status: %q", s)
	}
	return status, nil
}

// Stage is the position inside the health-card processing pipeline.
type Stage string

const (
	StageCheckIn    Stage = "check_in"
	StageLaboratory Stage = "laboratory"
	StageResults    Stage = "results"
	StageCheckup    Stage = "checkup"
	StageReleasing  Stage = "releasing"
)

// Stages lists the pipeline in order.
var Stages = []Stage{StageCheckIn, StageLaboratory, StageResults, StageCheckup, StageReleasing}

func (s Stage) Valid() bool {
	for _, v := range Stages {
		if v == s {
			return true
		}
	}
	return false
}

func ParseStage(s string) (Stage, error) {
	stage := Stage(s)
	if !stage.Valid() {
		return "", fmt.Errorf("unknown stage: %q", s)
	}
	return stage, nil
}

// StageString renders a nullable stage for audit records and errors.
func StageString(s *Stage) string {
	if s == nil {
		return "null"
	}
	return string(*s)
}

type TimeBlock string

const (
	TimeBlockAM TimeBlock = "AM"
	TimeBlockPM TimeBlock = "PM"
)

func (b TimeBlock) Valid() bool {
	return b == TimeBlockAM || b == TimeBlockPM
}

// DoctorDecision is the outcome recorded at the checkup stage.
type DoctorDecision string

const (
	DecisionApprove DoctorDecision = "approve"
	DecisionRetest  DoctorDecision = "retest"
)

// AppointmentDateLayout is the wire and storage layout of appointment_date.
const AppointmentDateLayout = "2006-01-02"

// AppointmentTimeLayout is the wire and storage layout of appointment_time.
const AppointmentTimeLayout = "15:04"

type Appointment struct {
	Base
	PatientID          uuid.UUID         `db:"patient_id" json:"patient_id"`
	ServiceID          uuid.UUID         `db:"service_id" json:"service_id"`
	DoctorID           *uuid.UUID        `db:"doctor_id" json:"doctor_id,omitempty"`
	AppointmentDate    time.Time         `db:"appointment_date" json:"appointment_date"`
	AppointmentTime    string            `db:"appointment_time" json:"appointment_time,omitempty"`
	TimeBlock          TimeBlock         `db:"time_block" json:"time_block"`
	AppointmentNumber  int               `db:"appointment_number" json:"appointment_number"`
	CardType           *string           `db:"card_type" json:"card_type,omitempty"`
	LabLocation        *string           `db:"lab_location" json:"lab_location,omitempty"`
	Status             AppointmentStatus `db:"status" json:"status"`
	Stage              *Stage            `db:"stage" json:"stage,omitempty"`
	CheckedInAt        *time.Time        `db:"checked_in_at" json:"checked_in_at,omitempty"`
	StartedAt          *time.Time        `db:"started_at" json:"started_at,omitempty"`
	CompletedAt        *time.Time        `db:"completed_at" json:"completed_at,omitempty"`
	CancelledAt        *time.Time        `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CancellationReason *string           `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	CompletedByID      *uuid.UUID        `db:"completed_by_id" json:"completed_by_id,omitempty"`
	Version            int               `db:"version" json:"version"`
}

// Clone returns a copy that can be mutated without touching the original.
// Pointer fields are shared; mutations replace them rather than write through.
func (a *Appointment) Clone() *Appointment {
	c := *a
	return &c
}

// AppointmentView is the read model returned to UI collaborators.
type AppointmentView struct {
	*Appointment
	HasMedicalRecord   bool                `json:"has_medical_record"`
	AllowedTransitions []AppointmentStatus `json:"allowed_transitions"`
}

type BookAppointmentRequest struct {
	PatientID     uuid.UUID         `json:"patient_id" binding:"required"`
	ServiceID     uuid.UUID         `json:"service_id" binding:"required"`
	Date          string            `json:"appointment_date" binding:"required,datetime=2006-01-02"`
	Time          string            `json:"appointment_time" binding:"omitempty,datetime=15:04"`
	TimeBlock     TimeBlock         `json:"time_block" binding:"required,oneof=AM PM"`
	CardType      *string           `json:"card_type" binding:"omitempty,max=64"`
	LabLocation   *string           `json:"lab_location" binding:"omitempty,max=128"`
	InitialStatus AppointmentStatus `json:"initial_status" binding:"omitempty,oneof=pending scheduled"`
}

type TransitionRequest struct {
	Status AppointmentStatus `json:"status" binding:"required,appointment_status"`
	Reason string            `json:"reason" binding:"max=1000"`
}

type StageRequest struct {
	Stage Stage `json:"stage" binding:"required,appointment_stage"`
}

type ReversionRequest struct {
	Domain HistoryDomain `json:"domain" binding:"required,oneof=status stage"`
	Reason string        `json:"reason" binding:"required,max=1000"`
}

type DecisionRequest struct {
	Decision DoctorDecision `json:"decision" binding:"required,oneof=approve retest"`
	Note     string         `json:"note" binding:"max=1000"`
}

type AssignDoctorRequest struct {
	DoctorID *uuid.UUID `json:"doctor_id"`
}

type AppointmentFilters struct {
	ServiceID uuid.UUID
	PatientID uuid.UUID
	Status    AppointmentStatus
	Date      time.Time
}

package exam

import (
	"time"

	"github.com/google/uuid"
)

const (
	CategoryLaboratory = "laboratory"
	CategoryImaging    = "imaging"
	CategoryOther      = "other"
)

const (
	StatusRequested  = "requested"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// Exam maps to the exam table: a laboratory or imaging order and, once
// completed, its result.
type Exam struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	PatientID      uuid.UUID  `db:"patient_id" json:"patient_id" validate:"required"`
	ConsultationID *uuid.UUID `db:"consultation_id" json:"consultation_id,omitempty"`
	DoctorID       uuid.UUID  `db:"doctor_id" json:"doctor_id" validate:"required"`
	Category       string     `db:"category" json:"category" validate:"required,oneof=laboratory imaging other"`
	Name           string     `db:"name" json:"name" validate:"required,max=200"`
	Status         string     `db:"status" json:"status" validate:"required,oneof=requested in_progress completed cancelled"`
	RequestedAt    time.Time  `db:"requested_at" json:"requested_at"`
	Result         *string    `db:"result" json:"result,omitempty" validate:"omitempty,max=8000"`
	ResultDate     *time.Time `db:"result_date" json:"result_date,omitempty" validate:"omitempty,notfuture"`
	Notes          *string    `db:"notes" json:"notes,omitempty" validate:"omitempty,max=4000"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// transitions lists the statuses reachable from each status. An open status
// may be kept; completed and cancelled are final.
var transitions = map[string][]string{
	StatusRequested:  {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
	StatusCompleted:  nil,
	StatusCancelled:  nil,
}

// CanTransition reports whether an exam in status from may move to to.
func CanTransition(from, to string) bool {
	if from == to {
		return !terminal(from)
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func terminal(status string) bool {
	return status == StatusCompleted || status == StatusCancelled
}

// Terminal reports whether the exam can no longer change.
func (e *Exam) Terminal() bool {
	return terminal(e.Status)
}

package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DateLayout is the ISO civil date layout used for storage and export.
const DateLayout = "2006-01-02"

// Production is one production entry: a procedure performed by a doctor at a
// hospital on a date. UnitPrice is nil when no price was supplied or found.
type Production struct {
	ID          int64            `json:"id" db:"id"`
	ExecDate    time.Time        `json:"exec_date" db:"exec_date"`
	DoctorID    int64            `json:"doctor_user_id" db:"doctor_user_id"`
	HospitalID  int64            `json:"hospital_id" db:"hospital_id"`
	ProcedureID int64            `json:"procedure_id" db:"procedure_id"`
	Quantity    int              `json:"quantity" db:"quantity"`
	UnitPrice   *decimal.Decimal `json:"unit_price,omitempty" db:"unit_price"`
	Note        string           `json:"note,omitempty" db:"note"`
	ImportBatch *uuid.UUID       `json:"import_batch,omitempty" db:"import_batch"`
}

// ProductionView is a production entry joined with display names.
type ProductionView struct {
	ID            int64            `json:"id"`
	ExecDate      time.Time        `json:"exec_date"`
	Quantity      int              `json:"quantity"`
	UnitPrice     *decimal.Decimal `json:"unit_price,omitempty"`
	Note          string           `json:"note,omitempty"`
	DoctorID      int64            `json:"doctor_id"`
	Username      string           `json:"username"`
	DoctorName    string           `json:"doctor_name,omitempty"`
	HospitalID    int64            `json:"hospital_id"`
	HospitalName  string           `json:"hospital_name"`
	ProcedureID   int64            `json:"procedure_id"`
	TUSSCode      string           `json:"tuss_code"`
	ProcedureName string           `json:"procedure_name"`
}

// Total returns quantity times unit price; a missing price counts as zero.
func (v ProductionView) Total() decimal.Decimal {
	if v.UnitPrice == nil {
		return decimal.Zero
	}
	return v.UnitPrice.Mul(decimal.NewFromInt(int64(v.Quantity)))
}

// Doctor returns the full name, falling back to the username.
func (v ProductionView) Doctor() string {
	if v.DoctorName != "" {
		return v.DoctorName
	}
	return v.Username
}

// ProductionFilter narrows a production listing. Zero values mean "any".
// DateFrom and DateTo are inclusive.
type ProductionFilter struct {
	DoctorID    int64
	HospitalID  int64
	ProcedureID int64
	DateFrom    *time.Time
	DateTo      *time.Time
	Limit       int
}

// ClampLimit bounds a requested row limit to [1, max].
func ClampLimit(limit, max int) int {
	if limit < 1 {
		return 1
	}
	if limit > max {
		return max
	}
	return limit
}

// CivilDate truncates t to midnight UTC of its calendar date.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

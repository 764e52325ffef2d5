// Package model defines the billing domain types shared by the stores,
// the importer, the exporter and the HTTP layer.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Hospital is a contracted hospital. Nickname, trade name and corporate name
// are alternate display names; any of them identifies the hospital.
type Hospital struct {
	ID            int64  `json:"id" db:"id"`
	CorporateName string `json:"corporate_name" db:"corporate_name"`
	TradeName     string `json:"trade_name,omitempty" db:"trade_name"`
	Nickname      string `json:"nickname,omitempty" db:"nickname"`
}

// DisplayName returns the first non-empty of nickname, trade name and
// corporate name.
func (h Hospital) DisplayName() string {
	switch {
	case h.Nickname != "":
		return h.Nickname
	case h.TradeName != "":
		return h.TradeName
	default:
		return h.CorporateName
	}
}

// HospitalNameField names one of the hospital display name columns.
type HospitalNameField string

// Hospital name columns, in the order the resolver tries them.
const (
	HospitalNickname      HospitalNameField = "nickname"
	HospitalTradeName     HospitalNameField = "trade_name"
	HospitalCorporateName HospitalNameField = "corporate_name"
)

// Valid reports whether f is a known hospital name column.
func (f HospitalNameField) Valid() bool {
	switch f {
	case HospitalNickname, HospitalTradeName, HospitalCorporateName:
		return true
	}
	return false
}

// Role distinguishes doctors from administrators.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleDoctor Role = "doctor"
)

// User is an account. Doctors carry an optional full name.
type User struct {
	ID       int64  `json:"id" db:"id"`
	Username string `json:"username" db:"username"`
	Role     Role   `json:"role" db:"role"`
	FullName string `json:"full_name,omitempty" db:"full_name"`
}

// Procedure is a billable procedure identified by its TUSS code.
type Procedure struct {
	ID         int64  `json:"id" db:"id"`
	TUSSCode   string `json:"tuss_code" db:"tuss_code"`
	Name       string `json:"name" db:"name"`
	ChargeUnit string `json:"charge_unit,omitempty" db:"charge_unit"`
	Active     bool   `json:"active" db:"active"`
}

// HospitalPrice is one contracted price record for a (hospital, procedure)
// pair. At most one record per pair is active.
type HospitalPrice struct {
	ID            int64           `json:"id" db:"id"`
	HospitalID    int64           `json:"hospital_id" db:"hospital_id"`
	ProcedureID   int64           `json:"procedure_id" db:"procedure_id"`
	TUSSCode      string          `json:"tuss_code,omitempty"`
	ProcedureName string          `json:"procedure_name,omitempty"`
	Price         decimal.Decimal `json:"price" db:"price"`
	Note          string          `json:"note,omitempty" db:"note"`
	Active        bool            `json:"active" db:"active"`
	EndDate       *time.Time      `json:"end_date,omitempty" db:"end_date"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// PricedProcedure is a procedure offered by a hospital with its current
// active price.
type PricedProcedure struct {
	ProcedureID int64           `json:"procedure_id"`
	TUSSCode    string          `json:"tuss_code"`
	Name        string          `json:"name"`
	ChargeUnit  string          `json:"charge_unit,omitempty"`
	Price       decimal.Decimal `json:"price"`
}

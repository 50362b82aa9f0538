package models

import "github.com/shopspring/decimal"

// MaritalState is either Married, carrying the spouse record, or Unmarried.
// A spouse cannot exist on an unmarried record because only Married holds one.
type MaritalState interface {
	MaritalStatus() MaritalStatus
	isMaritalState()
}

// Married carries the spouse sub-record.
type Married struct {
	Spouse Spouse
}

// Unmarried carries which of the non-married statuses applies.
type Unmarried struct {
	Status MaritalStatus
}

func (Married) MaritalStatus() MaritalStatus { return MaritalMarried }
func (Married) isMaritalState()              {}

func (u Unmarried) MaritalStatus() MaritalStatus {
	if u.Status == "" || u.Status == MaritalMarried {
		return MaritalSingle
	}
	return u.Status
}
func (Unmarried) isMaritalState() {}

// SpouseOf returns the spouse when the state is Married.
func SpouseOf(m MaritalState) (Spouse, bool) {
	if married, ok := m.(Married); ok {
		return married.Spouse, true
	}
	return Spouse{}, false
}

// HealthState is either Healthy or Sick, and only Sick carries the medical
// certificate image reference.
type HealthState interface {
	HealthStatus() HealthStatus
	isHealthState()
}

type Healthy struct{}

type Sick struct {
	CertificationImage string
}

func (Healthy) HealthStatus() HealthStatus { return HealthHealthy }
func (Healthy) isHealthState()             {}

func (Sick) HealthStatus() HealthStatus { return HealthSick }
func (Sick) isHealthState()             {}

// CertificationImageOf returns the certificate image for a Sick state and "" otherwise.
func CertificationImageOf(h HealthState) string {
	if sick, ok := h.(Sick); ok {
		return sick.CertificationImage
	}
	return ""
}

// IsSick reports whether h is a Sick state. A nil state counts as healthy.
func IsSick(h HealthState) bool {
	_, ok := h.(Sick)
	return ok
}

// Spouse is the embedded spouse record of a married beneficiary or married child.
type Spouse struct {
	Name     string
	CivilID  string
	Phone    string
	WhatsApp string
	Income   decimal.Decimal
	Health   HealthState
}

// Child is one row of the household's children list.
type Child struct {
	Name           string
	CivilID        string
	School         string
	EducationStage string
	Marital        MaritalState
	Health         HealthState
}

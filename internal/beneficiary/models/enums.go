package models

import "strings"

// MaritalStatus is the flat marital status carried on the wire and in storage.
type MaritalStatus string

const (
	MaritalSingle   MaritalStatus = "single"
	MaritalMarried  MaritalStatus = "married"
	MaritalDivorced MaritalStatus = "divorced"
	MaritalWidowed  MaritalStatus = "widowed"
)

// ParseMaritalStatus falls back to single for unknown values.
func ParseMaritalStatus(s string) MaritalStatus {
	switch v := MaritalStatus(normalizeEnum(s)); v {
	case MaritalSingle, MaritalMarried, MaritalDivorced, MaritalWidowed:
		return v
	default:
		return MaritalSingle
	}
}

// HealthStatus is the flat health status carried on the wire and in storage.
type HealthStatus string

const (
	HealthHealthy HealthStatus = "healthy"
	HealthSick    HealthStatus = "sick"
)

// ParseHealthStatus falls back to healthy for unknown values.
func ParseHealthStatus(s string) HealthStatus {
	if HealthStatus(normalizeEnum(s)) == HealthSick {
		return HealthSick
	}
	return HealthHealthy
}

type HousingType string

const (
	HousingOwned  HousingType = "owned"
	HousingRented HousingType = "rented"
)

// ParseHousingType falls back to owned for unknown values.
func ParseHousingType(s string) HousingType {
	if HousingType(normalizeEnum(s)) == HousingRented {
		return HousingRented
	}
	return HousingOwned
}

// Category is the A–D grouping used for aid distribution lists.
type Category string

const (
	CategoryA Category = "A"
	CategoryB Category = "B"
	CategoryC Category = "C"
	CategoryD Category = "D"

	DefaultCategory = CategoryC
)

// ParseCategory falls back to DefaultCategory for unknown or empty values.
func ParseCategory(s string) Category {
	switch c := Category(strings.ToUpper(strings.TrimSpace(s))); c {
	case CategoryA, CategoryB, CategoryC, CategoryD:
		return c
	default:
		return DefaultCategory
	}
}

type Status string

const (
	StatusActive    Status = "active"
	StatusPending   Status = "pending"
	StatusCancelled Status = "cancelled"
)

// ParseStatus falls back to active for unknown values.
func ParseStatus(s string) Status {
	switch v := Status(normalizeEnum(s)); v {
	case StatusActive, StatusPending, StatusCancelled:
		return v
	default:
		return StatusActive
	}
}

// DefaultListName tags records that were not assigned to any reporting list.
const DefaultListName = "general"

func normalizeEnum(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

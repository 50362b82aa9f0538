// Package priority computes the 1-10 need ranking of a household.
// This is pure domain logic: no I/O, no side effects.
package priority

import (
	"github.com/shopspring/decimal"

	"caredesk/internal/beneficiary/models"
)

// Signals are the normalized economic and health inputs of the score.
type Signals struct {
	Income        decimal.Decimal
	SpouseIncome  decimal.Decimal
	Rent          decimal.Decimal
	FamilyMembers int

	Married    bool
	Sick       bool
	SpouseSick bool

	// SickUnmarriedChildren counts dependent children with a sick health state.
	SickUnmarriedChildren int
}

// SignalsFrom extracts scoring signals from a sanitized profile.
func SignalsFrom(p models.Profile) Signals {
	s := Signals{
		Income:        p.Income,
		Rent:          p.RentalCost,
		FamilyMembers: p.FamilyMembers,
		Sick:          models.IsSick(p.Health),
	}
	if spouse, ok := models.SpouseOf(p.Marital); ok {
		s.Married = true
		s.SpouseIncome = spouse.Income
		s.SpouseSick = models.IsSick(spouse.Health)
	}
	for _, c := range p.Children {
		if _, married := models.SpouseOf(c.Marital); married {
			continue
		}
		if models.IsSick(c.Health) {
			s.SickUnmarriedChildren++
		}
	}
	return s
}

var (
	pressureBands = []struct {
		below  decimal.Decimal
		points int
	}{
		{decimal.NewFromInt(50), 4},
		{decimal.NewFromInt(100), 3},
		{decimal.NewFromInt(200), 2},
		{decimal.NewFromInt(350), 1},
	}
	spouseSelfSufficient = decimal.NewFromInt(100)
)

// Score ranks need from 1 (least) to 10 (most).
//
// Rule chain:
//  1. Base of 1
//  2. Economic pressure from per-head residual income, only when income or rent is declared
//  3. Health: +2 sick beneficiary, +1 sick spouse, +1 per sick unmarried child
//  4. -1 when a married spouse earns at least 100
//  5. Clamp into [1,10]
func Score(s Signals) int {
	score := 1
	score += pressure(s)

	if s.Sick {
		score += 2
	}
	if s.Married && s.SpouseSick {
		score++
	}
	score += max(s.SickUnmarriedChildren, 0)

	if s.Married && s.SpouseIncome.GreaterThanOrEqual(spouseSelfSufficient) {
		score--
	}
	return clamp(score)
}

func pressure(s Signals) int {
	if !s.Income.IsPositive() && !s.Rent.IsPositive() {
		return 0
	}
	residual := s.Income.Sub(s.Rent)
	if s.Married {
		residual = residual.Add(s.SpouseIncome)
	}
	perHead := residual.Div(decimal.NewFromInt(int64(max(s.FamilyMembers, 1))))
	if !perHead.IsPositive() {
		return 5
	}
	for _, band := range pressureBands {
		if perHead.LessThan(band.below) {
			return band.points
		}
	}
	return 0
}

// Resolve returns the manual override clamped into range when one is given,
// and the computed score otherwise.
func Resolve(s Signals, manual *int) int {
	if manual != nil {
		return clamp(*manual)
	}
	return Score(s)
}

func clamp(v int) int {
	return min(max(v, models.MinPriority), models.MaxPriority)
}

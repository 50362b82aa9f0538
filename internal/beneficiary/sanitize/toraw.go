package sanitize

import (
	"strconv"

	"caredesk/internal/beneficiary/models"
)

// ToRaw renders a profile back into the inbound shape. Sanitizing the result
// yields an equivalent profile, which is how edits and previews re-enter the
// sanitizer.
func ToRaw(p models.Profile) Raw {
	r := Raw{
		Name:                     p.Name,
		InternalNumber:           Loose(p.InternalNumber),
		CivilID:                  Loose(p.CivilID),
		ContactPhone:             Loose(p.ContactPhone),
		WhatsApp:                 Loose(p.WhatsApp),
		Address:                  p.Address,
		FamilyMembers:            Loose(strconv.Itoa(p.FamilyMembers)),
		Income:                   Loose(p.Income.String()),
		RentalCost:               Loose(p.RentalCost.String()),
		HousingType:              string(p.HousingType),
		Employment:               p.Employment,
		Priority:                 Loose(strconv.Itoa(p.Priority)),
		PriorityManual:           p.PriorityManual,
		Category:                 string(p.Category),
		Status:                   string(p.Status),
		StatusReason:             p.StatusReason,
		ListNames:                append([]string(nil), p.ListNames...),
		ReceivesMonthlyAllowance: p.ReceivesMonthlyAllowance,
		MonthlyAllowanceAmount:   Loose(p.MonthlyAllowanceAmount.String()),
	}
	r.HealthStatus, r.HealthCertificationImage = rawHealth(p.Health)
	r.MaritalStatus, r.Spouse = rawMarital(p.Marital)
	for _, c := range p.Children {
		rc := RawChild{
			Name:           c.Name,
			CivilID:        Loose(c.CivilID),
			School:         c.School,
			EducationStage: c.EducationStage,
		}
		rc.MaritalStatus, rc.Spouse = rawMarital(c.Marital)
		rc.HealthStatus, rc.HealthCertificationImage = rawHealth(c.Health)
		r.Children = append(r.Children, rc)
	}
	for _, e := range p.Relationships {
		if e.Reciprocal {
			continue
		}
		r.Relationships = append(r.Relationships, RawRelationship{
			RelationType:        string(e.RelationType),
			InverseRelationType: string(e.InverseRelationType),
			RelativeName:        e.RelativeName,
			RelativeCivilID:     Loose(e.RelativeCivilID),
		})
	}
	return r
}

func rawMarital(m models.MaritalState) (string, *RawSpouse) {
	if m == nil {
		return string(models.MaritalSingle), nil
	}
	spouse, ok := models.SpouseOf(m)
	if !ok {
		return string(m.MaritalStatus()), nil
	}
	rs := &RawSpouse{
		Name:     spouse.Name,
		CivilID:  Loose(spouse.CivilID),
		Phone:    Loose(spouse.Phone),
		WhatsApp: Loose(spouse.WhatsApp),
		Income:   Loose(spouse.Income.String()),
	}
	rs.HealthStatus, rs.HealthCertificationImage = rawHealth(spouse.Health)
	return string(models.MaritalMarried), rs
}

func rawHealth(h models.HealthState) (string, string) {
	if h == nil {
		return string(models.HealthHealthy), ""
	}
	return string(h.HealthStatus()), models.CertificationImageOf(h)
}

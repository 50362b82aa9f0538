// Package sanitize turns an inbound beneficiary payload into a validated
// models.Profile. It has no side effects: the same Raw always yields the same
// Profile or the same error.
package sanitize

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"

	"caredesk/internal/beneficiary/models"
	dErrors "caredesk/pkg/domain-errors"
	pstrings "caredesk/pkg/platform/strings"
)

// ValidationError identifies the first field that failed validation.
type ValidationError struct {
	Field   string
	Rule    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Sanitizer holds the compiled validation rules. It is safe for concurrent use.
type Sanitizer struct {
	validate *validator.Validate
}

func New() *Sanitizer {
	return &Sanitizer{validate: newValidator()}
}

var std = New()

// Beneficiary sanitizes raw with English messages.
func Beneficiary(raw Raw) (models.Profile, error) {
	return std.Sanitize(raw, language.English)
}

// Sanitize normalizes raw, validates it and builds the profile. Validation is
// fail-fast: the returned error describes the first violation only, in lang.
func (s *Sanitizer) Sanitize(raw Raw, lang language.Tag) (models.Profile, error) {
	cleaned := clean(raw)
	if err := s.validate.Struct(checkOf(cleaned)); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			msg := message(lang, fe)
			return models.Profile{}, dErrors.Wrap(
				&ValidationError{Field: fieldPath(fe.Namespace()), Rule: fe.Tag(), Message: msg},
				dErrors.CodeValidation, msg)
		}
		return models.Profile{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to validate beneficiary")
	}
	return build(cleaned), nil
}

// Coerce applies the sanitizer's normalization and coercions without
// validating. It serves previews of partially filled forms.
func Coerce(raw Raw) models.Profile {
	return build(clean(raw))
}

// clean trims and canonicalizes every field, drops incomplete rows and strips
// sub-records whose condition does not hold.
func clean(raw Raw) Raw {
	out := raw
	out.Name = collapseSpaces(raw.Name)
	out.InternalNumber = Loose(asciiDigits(string(raw.InternalNumber)))
	out.CivilID = Loose(asciiDigits(string(raw.CivilID)))
	out.ContactPhone = Loose(phone(string(raw.ContactPhone)))
	out.WhatsApp = Loose(phone(string(raw.WhatsApp)))
	out.Address = strings.TrimSpace(raw.Address)
	out.Employment = strings.TrimSpace(raw.Employment)
	out.StatusReason = strings.TrimSpace(raw.StatusReason)

	out.MaritalStatus = string(models.ParseMaritalStatus(raw.MaritalStatus))
	out.HousingType = string(models.ParseHousingType(raw.HousingType))
	out.Category = string(models.ParseCategory(raw.Category))
	out.Status = string(models.ParseStatus(raw.Status))
	out.HealthStatus, out.HealthCertificationImage = health(raw.HealthStatus, raw.HealthCertificationImage)

	out.Spouse = nil
	if out.MaritalStatus == string(models.MaritalMarried) {
		spouse := RawSpouse{}
		if raw.Spouse != nil {
			spouse = *raw.Spouse
		}
		out.Spouse = cleanSpouse(spouse)
	}

	out.Children = nil
	for _, c := range raw.Children {
		c.Name = collapseSpaces(c.Name)
		if c.Name == "" {
			continue
		}
		c.CivilID = Loose(asciiDigits(string(c.CivilID)))
		c.School = strings.TrimSpace(c.School)
		c.EducationStage = strings.TrimSpace(c.EducationStage)
		c.MaritalStatus = string(models.ParseMaritalStatus(c.MaritalStatus))
		c.HealthStatus, c.HealthCertificationImage = health(c.HealthStatus, c.HealthCertificationImage)
		if c.MaritalStatus == string(models.MaritalMarried) && c.Spouse != nil {
			c.Spouse = cleanSpouse(*c.Spouse)
		} else {
			c.Spouse = nil
		}
		out.Children = append(out.Children, c)
	}

	out.Relationships = nil
	for _, r := range raw.Relationships {
		name := collapseSpaces(r.RelativeName)
		civilID := asciiDigits(r.civilID())
		if name == "" && civilID == "" {
			continue
		}
		rel, _ := models.ParseRelationType(r.RelationType)
		inverse := ""
		if inv, ok := models.ParseRelationType(r.InverseRelationType); ok {
			inverse = string(inv)
		}
		out.Relationships = append(out.Relationships, RawRelationship{
			RelationType:        string(rel),
			InverseRelationType: inverse,
			RelativeName:        name,
			RelativeCivilID:     Loose(civilID),
		})
	}

	out.ListNames = pstrings.DedupeAndTrim(raw.ListNames)
	if len(out.ListNames) == 0 {
		out.ListNames = []string{models.DefaultListName}
	}
	return out
}

func cleanSpouse(s RawSpouse) *RawSpouse {
	s.Name = collapseSpaces(s.Name)
	s.CivilID = Loose(asciiDigits(string(s.CivilID)))
	s.Phone = Loose(phone(string(s.Phone)))
	s.WhatsApp = Loose(phone(string(s.WhatsApp)))
	s.HealthStatus, s.HealthCertificationImage = health(s.HealthStatus, s.HealthCertificationImage)
	return &s
}

func health(status, image string) (string, string) {
	hs := models.ParseHealthStatus(status)
	if hs != models.HealthSick {
		return string(hs), ""
	}
	return string(hs), strings.TrimSpace(image)
}

func checkOf(r Raw) beneficiaryCheck {
	c := beneficiaryCheck{
		Name:                   r.Name,
		InternalNumber:         string(r.InternalNumber),
		CivilID:                string(r.CivilID),
		ContactPhone:           string(r.ContactPhone),
		WhatsApp:               string(r.WhatsApp),
		Address:                r.Address,
		Income:                 string(r.Income),
		RentalCost:             string(r.RentalCost),
		MonthlyAllowanceAmount: string(r.MonthlyAllowanceAmount),
	}
	if r.Spouse != nil {
		c.Spouse = &spouseCheck{
			Name:     r.Spouse.Name,
			CivilID:  string(r.Spouse.CivilID),
			Phone:    string(r.Spouse.Phone),
			WhatsApp: string(r.Spouse.WhatsApp),
			Income:   string(r.Spouse.Income),
		}
	}
	for _, ch := range r.Children {
		cc := childCheck{Name: ch.Name, CivilID: string(ch.CivilID)}
		if ch.Spouse != nil {
			cc.Spouse = &childSpouseCheck{
				Name:    ch.Spouse.Name,
				CivilID: string(ch.Spouse.CivilID),
				Phone:   string(ch.Spouse.Phone),
			}
		}
		c.Children = append(c.Children, cc)
	}
	for _, rel := range r.Relationships {
		c.Relationships = append(c.Relationships, relationshipCheck{
			RelativeName:    rel.RelativeName,
			RelativeCivilID: string(rel.RelativeCivilID),
		})
	}
	return c
}

// build assumes r has been cleaned and validated.
func build(r Raw) models.Profile {
	p := models.Profile{
		Name:                     r.Name,
		InternalNumber:           string(r.InternalNumber),
		CivilID:                  string(r.CivilID),
		ContactPhone:             string(r.ContactPhone),
		WhatsApp:                 string(r.WhatsApp),
		Address:                  r.Address,
		FamilyMembers:            familyMembers(r.FamilyMembers),
		Income:                   money(r.Income),
		RentalCost:               money(r.RentalCost),
		HousingType:              models.HousingType(r.HousingType),
		Employment:               r.Employment,
		Health:                   healthState(r.HealthStatus, r.HealthCertificationImage),
		Priority:                 Priority(r.Priority),
		PriorityManual:           r.PriorityManual,
		Category:                 models.Category(r.Category),
		Status:                   models.Status(r.Status),
		StatusReason:             r.StatusReason,
		ListNames:                r.ListNames,
		ReceivesMonthlyAllowance: r.ReceivesMonthlyAllowance,
		MonthlyAllowanceAmount:   money(r.MonthlyAllowanceAmount),
	}
	p.Marital = maritalState(r.MaritalStatus, r.Spouse)
	for _, c := range r.Children {
		p.Children = append(p.Children, models.Child{
			Name:           c.Name,
			CivilID:        string(c.CivilID),
			School:         c.School,
			EducationStage: c.EducationStage,
			Marital:        maritalState(c.MaritalStatus, c.Spouse),
			Health:         healthState(c.HealthStatus, c.HealthCertificationImage),
		})
	}
	for _, rel := range r.Relationships {
		p.Relationships = append(p.Relationships, models.RelationshipEdge{
			RelationType:        models.RelationType(rel.RelationType),
			InverseRelationType: models.RelationType(rel.InverseRelationType),
			RelativeName:        rel.RelativeName,
			RelativeCivilID:     string(rel.RelativeCivilID),
		})
	}
	return p
}

func maritalState(status string, spouse *RawSpouse) models.MaritalState {
	if status != string(models.MaritalMarried) {
		return models.Unmarried{Status: models.MaritalStatus(status)}
	}
	if spouse == nil {
		return models.Married{Spouse: models.Spouse{Health: models.Healthy{}}}
	}
	return models.Married{Spouse: models.Spouse{
		Name:     spouse.Name,
		CivilID:  string(spouse.CivilID),
		Phone:    string(spouse.Phone),
		WhatsApp: string(spouse.WhatsApp),
		Income:   money(spouse.Income),
		Health:   healthState(spouse.HealthStatus, spouse.HealthCertificationImage),
	}}
}

func healthState(status, image string) models.HealthState {
	if status == string(models.HealthSick) {
		return models.Sick{CertificationImage: image}
	}
	return models.Healthy{}
}

// familyMembers coerces a loose value to a household size of at least 1.
func familyMembers(v Loose) int {
	f, err := strconv.ParseFloat(string(v), 64)
	if err != nil || math.IsNaN(f) || f < 1 {
		return 1
	}
	if f >= math.MaxInt32 {
		return math.MaxInt32
	}
	return int(math.Floor(f))
}

// Priority coerces a loose value into [1,10], defaulting to 5 when absent or
// unparseable.
func Priority(v Loose) int {
	f, err := strconv.ParseFloat(string(v), 64)
	if err != nil || math.IsNaN(f) {
		return models.DefaultPriority
	}
	return ClampPriority(f)
}

// ClampPriority truncates and clamps a priority into [1,10].
func ClampPriority(f float64) int {
	switch {
	case f <= models.MinPriority:
		return models.MinPriority
	case f >= models.MaxPriority:
		return models.MaxPriority
	default:
		return int(f)
	}
}

func money(v Loose) decimal.Decimal {
	if v == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(string(v))
	if err != nil || d.IsZero() {
		return decimal.Zero
	}
	return d
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// asciiDigits trims s and maps Arabic-Indic and Extended Arabic-Indic digits to ASCII.
func asciiDigits(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '٠' && r <= '٩':
			return '0' + (r - '٠')
		case r >= '۰' && r <= '۹':
			return '0' + (r - '۰')
		}
		return r
	}, s)
}

// phone removes the separators people type into phone numbers.
func phone(s string) string {
	return strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(asciiDigits(s))
}

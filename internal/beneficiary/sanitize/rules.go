package sanitize

import (
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	digitsPattern       = regexp.MustCompile(`^[0-9]+$`)
	civilIDPattern      = regexp.MustCompile(`^[0-9]{10,20}$`)
	contactPhonePattern = regexp.MustCompile(`^\+?[0-9]{10,20}$`)
	shortPhonePattern   = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
)

// isNameRune accepts Latin letters, Arabic letters and their combining marks,
// spaces, hyphens and apostrophes.
func isNameRune(r rune) bool {
	switch {
	case r == ' ', r == '-', r == '\'':
		return true
	case r < unicode.MaxASCII:
		return ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z')
	case unicode.Is(unicode.Arabic, r):
		return unicode.IsLetter(r) || unicode.Is(unicode.Mn, r)
	default:
		return false
	}
}

func isPersonName(s string) bool {
	if strings.TrimSpace(s) == "" {
		return false
	}
	for _, r := range s {
		if !isNameRune(r) {
			return false
		}
	}
	return true
}

func isMoney(s string) bool {
	d, err := decimal.NewFromString(s)
	return err == nil && !d.IsNegative()
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	mustRegister(v, "person_name", func(fl validator.FieldLevel) bool { return isPersonName(fl.Field().String()) })
	mustRegister(v, "digits", func(fl validator.FieldLevel) bool { return digitsPattern.MatchString(fl.Field().String()) })
	mustRegister(v, "civil_id", func(fl validator.FieldLevel) bool { return civilIDPattern.MatchString(fl.Field().String()) })
	mustRegister(v, "contact_phone", func(fl validator.FieldLevel) bool { return contactPhonePattern.MatchString(fl.Field().String()) })
	mustRegister(v, "short_phone", func(fl validator.FieldLevel) bool { return shortPhonePattern.MatchString(fl.Field().String()) })
	mustRegister(v, "money", func(fl validator.FieldLevel) bool { return isMoney(fl.Field().String()) })
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic("sanitize: register " + tag + ": " + err.Error())
	}
}

// The check structs mirror the payload in the order fields are validated. The
// first reported error is the one surfaced.

type beneficiaryCheck struct {
	Name                   string              `json:"name" validate:"required,person_name"`
	InternalNumber         string              `json:"internalNumber" validate:"required,digits"`
	CivilID                string              `json:"civilId" validate:"required,civil_id"`
	ContactPhone           string              `json:"contactPhone" validate:"required,contact_phone"`
	WhatsApp               string              `json:"whatsapp" validate:"omitempty,short_phone"`
	Address                string              `json:"address" validate:"required,min=5"`
	Income                 string              `json:"income" validate:"omitempty,money"`
	RentalCost             string              `json:"rentalCost" validate:"omitempty,money"`
	MonthlyAllowanceAmount string              `json:"monthlyAllowanceAmount" validate:"omitempty,money"`
	Spouse                 *spouseCheck        `json:"spouse" validate:"omitempty"`
	Children               []childCheck        `json:"children" validate:"dive"`
	Relationships          []relationshipCheck `json:"relationships" validate:"dive"`
}

type spouseCheck struct {
	Name     string `json:"name" validate:"required,person_name"`
	CivilID  string `json:"civilId" validate:"omitempty,civil_id"`
	Phone    string `json:"phone" validate:"omitempty,short_phone"`
	WhatsApp string `json:"whatsapp" validate:"omitempty,short_phone"`
	Income   string `json:"income" validate:"omitempty,money"`
}

type childSpouseCheck struct {
	Name    string `json:"name" validate:"omitempty,person_name"`
	CivilID string `json:"civilId" validate:"omitempty,civil_id"`
	Phone   string `json:"phone" validate:"omitempty,short_phone"`
}

type childCheck struct {
	Name    string            `json:"name" validate:"required,person_name"`
	CivilID string            `json:"civilId" validate:"omitempty,civil_id"`
	Spouse  *childSpouseCheck `json:"spouse" validate:"omitempty"`
}

type relationshipCheck struct {
	RelativeName    string `json:"relativeName" validate:"required,person_name"`
	RelativeCivilID string `json:"relativeCivilId" validate:"omitempty,civil_id"`
}

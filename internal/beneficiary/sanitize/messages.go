package sanitize

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/language"
)

var supported = []language.Tag{language.English, language.Arabic}

var matcher = language.NewMatcher(supported)

// MatchLanguage picks the message language from an Accept-Language header.
// English is the fallback.
func MatchLanguage(acceptLanguage string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return language.English
	}
	_, idx, confidence := matcher.Match(tags...)
	if confidence == language.No {
		return language.English
	}
	return supported[idx]
}

type catalogue map[string]string

var ruleMessages = map[language.Tag]catalogue{
	language.English: {
		"required":      "%s is required",
		"person_name":   "%s may only contain letters, spaces, hyphens and apostrophes",
		"digits":        "%s must contain digits only",
		"civil_id":      "%s must be 10 to 20 digits",
		"contact_phone": "%s must be 10 to 20 digits with an optional leading +",
		"short_phone":   "%s must be 7 to 15 digits with an optional leading +",
		"min":           "%s must be at least 5 characters",
		"money":         "%s must be a non-negative number",
		"invalid":       "%s is invalid",
	},
	language.Arabic: {
		"required":      "%s مطلوب",
		"person_name":   "%s يجب أن يحتوي على أحرف ومسافات وشرطات وفواصل علوية فقط",
		"digits":        "%s يجب أن يحتوي على أرقام فقط",
		"civil_id":      "%s يجب أن يتكون من 10 إلى 20 رقماً",
		"contact_phone": "%s يجب أن يتكون من 10 إلى 20 رقماً مع علامة + اختيارية في البداية",
		"short_phone":   "%s يجب أن يتكون من 7 إلى 15 رقماً مع علامة + اختيارية في البداية",
		"min":           "%s يجب ألا يقل عن 5 أحرف",
		"money":         "%s يجب أن يكون رقماً غير سالب",
		"invalid":       "%s غير صالح",
	},
}

var fieldLabels = map[language.Tag]map[string]string{
	language.English: {
		"name":                   "name",
		"internalNumber":         "internal number",
		"civilId":                "civil id",
		"contactPhone":           "contact phone",
		"whatsapp":               "whatsapp number",
		"address":                "address",
		"income":                 "income",
		"rentalCost":             "rental cost",
		"monthlyAllowanceAmount": "monthly allowance amount",
		"phone":                  "phone",
		"relativeName":           "relative name",
		"relativeCivilId":        "relative civil id",
		"spouse":                 "spouse",
		"children":               "child",
		"relationships":          "relationship",
	},
	language.Arabic: {
		"name":                   "الاسم",
		"internalNumber":         "الرقم الداخلي",
		"civilId":                "الرقم المدني",
		"contactPhone":           "هاتف التواصل",
		"whatsapp":               "رقم الواتساب",
		"address":                "العنوان",
		"income":                 "الدخل",
		"rentalCost":             "قيمة الإيجار",
		"monthlyAllowanceAmount": "مبلغ المخصص الشهري",
		"phone":                  "الهاتف",
		"relativeName":           "اسم القريب",
		"relativeCivilId":        "الرقم المدني للقريب",
		"spouse":                 "الزوج/الزوجة",
		"children":               "الابن",
		"relationships":          "صلة القرابة",
	},
}

// label renders a validator namespace such as "beneficiaryCheck.children[1].spouse.name"
// as "child 2 spouse name" in the requested language.
func label(lang language.Tag, namespace string) string {
	labels := fieldLabels[lang]
	_, path, _ := strings.Cut(namespace, ".")
	parts := strings.Split(path, ".")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		name, index, hasIndex := strings.Cut(part, "[")
		word := labels[name]
		if word == "" {
			word = name
		}
		if hasIndex {
			var n int
			_, _ = fmt.Sscanf(strings.TrimSuffix(index, "]"), "%d", &n)
			word = fmt.Sprintf("%s %d", word, n+1)
		}
		out = append(out, word)
	}
	return strings.Join(out, " ")
}

func fieldPath(namespace string) string {
	_, path, _ := strings.Cut(namespace, ".")
	return path
}

func message(lang language.Tag, fe validator.FieldError) string {
	msgs := ruleMessages[lang]
	tmpl, ok := msgs[fe.Tag()]
	if !ok {
		tmpl = msgs["invalid"]
	}
	return fmt.Sprintf(tmpl, label(lang, fe.Namespace()))
}

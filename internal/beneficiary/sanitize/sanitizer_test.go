package sanitize

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"caredesk/internal/beneficiary/models"
	dErrors "caredesk/pkg/domain-errors"
)

func validRaw() Raw {
	return Raw{
		Name:           "  Fatima   Al-Sayed ",
		InternalNumber: "1001",
		CivilID:        "2870112345",
		ContactPhone:   "+965 5000 1234",
		WhatsApp:       "50001234",
		Address:        "Block 4, Street 12, House 7",
		FamilyMembers:  "4",
		MaritalStatus:  "married",
		Income:         "450.50",
		RentalCost:     "200",
		HousingType:    "rented",
		HealthStatus:   "sick",

		HealthCertificationImage: "certs/fatima.png",
		Spouse: &RawSpouse{
			Name:         "Khaled",
			CivilID:      "2800112345",
			Phone:        "60001234",
			Income:       "100",
			HealthStatus: "healthy",

			HealthCertificationImage: "should-be-cleared.png",
		},
		Children: []RawChild{
			{Name: "Noor", MaritalStatus: "single", HealthStatus: "sick", HealthCertificationImage: "certs/noor.png"},
			{Name: "", School: "incomplete row"},
			{Name: "Hadi", MaritalStatus: "married", Spouse: &RawSpouse{Name: "Lina", Phone: "7001234"}},
		},
		Relationships: []RawRelationship{
			{RelationType: "father", RelativeName: "Hassan", RelativeCivilID: "2500112345"},
			{RelationType: "", RelativeName: "", RelativeCivilID: ""},
			{RelationType: "cousin", RelativeName: "Mariam"},
		},
		ListNames: []string{" ramadan ", "ramadan"},
	}
}

func requireValidationField(t *testing.T, err error, field, rule string) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), "expected validation code, got %v", err)
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, field, ve.Field)
	assert.Equal(t, rule, ve.Rule)
}

func TestSanitizeNormalizes(t *testing.T) {
	p, err := Beneficiary(validRaw())
	require.NoError(t, err)

	assert.Equal(t, "Fatima Al-Sayed", p.Name)
	assert.Equal(t, "+96550001234", p.ContactPhone)
	assert.Equal(t, 4, p.FamilyMembers)
	assert.Equal(t, models.DefaultPriority, p.Priority)
	assert.Equal(t, models.HousingRented, p.HousingType)
	assert.Equal(t, []string{"ramadan"}, p.ListNames)
	assert.Equal(t, "certs/fatima.png", models.CertificationImageOf(p.Health))

	spouse, ok := models.SpouseOf(p.Marital)
	require.True(t, ok)
	assert.Equal(t, "Khaled", spouse.Name)
	assert.Empty(t, models.CertificationImageOf(spouse.Health), "healthy spouse keeps no certificate")

	require.Len(t, p.Children, 2, "unnamed child rows are dropped")
	assert.Equal(t, "Noor", p.Children[0].Name)
	childSpouse, ok := models.SpouseOf(p.Children[1].Marital)
	require.True(t, ok)
	assert.Equal(t, "Lina", childSpouse.Name)

	require.Len(t, p.Relationships, 2, "empty relationship rows are dropped")
	assert.Equal(t, models.RelationFather, p.Relationships[0].RelationType)
	assert.Equal(t, models.RelationOther, p.Relationships[1].RelationType, "unknown relation falls back to other")
	assert.Nil(t, p.Relationships[0].LinkedBeneficiaryID, "the sanitizer never links")
}

func TestSanitizeIsIdempotent(t *testing.T) {
	inputs := map[string]Raw{
		"married household": validRaw(),
		"minimal single": {
			Name: "Ali", InternalNumber: "7", CivilID: "1234567890",
			ContactPhone: "1234567890", Address: "Main road",
		},
		"loose numerics": {
			Name: "Sami", InternalNumber: "٤٢", CivilID: "١٢٣٤٥٦٧٨٩٠",
			ContactPhone: "0096512345678", Address: "Farwaniya block 1",
			FamilyMembers: "2.9", Priority: "42", Income: "1000.50", MaritalStatus: "WIDOWED",
		},
	}
	for name, raw := range inputs {
		t.Run(name, func(t *testing.T) {
			once, err := Beneficiary(raw)
			require.NoError(t, err)
			twice, err := Beneficiary(ToRaw(once))
			require.NoError(t, err)
			assert.Equal(t, ToRaw(once), ToRaw(twice))
			assert.Equal(t, once.Marital, twice.Marital)
			assert.Equal(t, once.Health, twice.Health)
		})
	}
}

func TestSpouseOnlyWhenMarried(t *testing.T) {
	for _, status := range []string{"single", "divorced", "widowed", "", "engaged"} {
		t.Run("status "+status, func(t *testing.T) {
			raw := validRaw()
			raw.MaritalStatus = status
			raw.Spouse = &RawSpouse{Name: "Not Kept", Phone: "not-a-phone"}
			p, err := Beneficiary(raw)
			require.NoError(t, err, "spouse data is ignored, not validated, when unmarried")
			_, married := models.SpouseOf(p.Marital)
			assert.False(t, married)
			assert.Nil(t, ToRaw(p).Spouse)
		})
	}

	t.Run("child spouse dropped for unmarried child", func(t *testing.T) {
		raw := validRaw()
		raw.Children = []RawChild{{Name: "Reem", MaritalStatus: "single", Spouse: &RawSpouse{Name: "X"}}}
		p, err := Beneficiary(raw)
		require.NoError(t, err)
		_, married := models.SpouseOf(p.Children[0].Marital)
		assert.False(t, married)
	})

	t.Run("married without spouse name is rejected", func(t *testing.T) {
		raw := validRaw()
		raw.Spouse = nil
		_, err := Beneficiary(raw)
		requireValidationField(t, err, "spouse.name", "required")
	})
}

func TestCertificateImageOnlyWhenSick(t *testing.T) {
	for _, status := range []string{"healthy", "", "unknown"} {
		t.Run("status "+status, func(t *testing.T) {
			raw := validRaw()
			raw.HealthStatus = status
			raw.HealthCertificationImage = "certs/leftover.png"
			raw.Children = []RawChild{{Name: "Noor", HealthStatus: status, HealthCertificationImage: "certs/child.png"}}
			p, err := Beneficiary(raw)
			require.NoError(t, err)
			assert.Empty(t, models.CertificationImageOf(p.Health))
			assert.Empty(t, models.CertificationImageOf(p.Children[0].Health))
			assert.Empty(t, ToRaw(p).HealthCertificationImage)
		})
	}
}

func TestFamilyMembersFloor(t *testing.T) {
	for _, in := range []Loose{"0", "-3", "", "abc", "NaN", "0.4"} {
		t.Run(string(in), func(t *testing.T) {
			raw := validRaw()
			raw.FamilyMembers = in
			p, err := Beneficiary(raw)
			require.NoError(t, err)
			assert.Equal(t, 1, p.FamilyMembers)
		})
	}

	t.Run("fractions truncate", func(t *testing.T) {
		raw := validRaw()
		raw.FamilyMembers = "5.8"
		p, err := Beneficiary(raw)
		require.NoError(t, err)
		assert.Equal(t, 5, p.FamilyMembers)
	})
}

func TestPriorityClamp(t *testing.T) {
	tests := []struct {
		in   Loose
		want int
	}{
		{"", 5}, {"abc", 5}, {"0", 1}, {"-4", 1}, {"11", 10}, {"7", 7}, {"7.9", 7},
	}
	for _, tt := range tests {
		t.Run(string(tt.in), func(t *testing.T) {
			assert.Equal(t, tt.want, Priority(tt.in))
		})
	}
}

func TestIdentityFieldsFailFast(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Raw)
		field  string
		rule   string
	}{
		{"name with digits", func(r *Raw) { r.Name = "Ali 2" }, "name", "person_name"},
		{"missing internal number", func(r *Raw) { r.InternalNumber = "" }, "internalNumber", "required"},
		{"internal number with letters", func(r *Raw) { r.InternalNumber = "10a" }, "internalNumber", "digits"},
		{"civil id too short", func(r *Raw) { r.CivilID = "123456789" }, "civilId", "civil_id"},
		{"civil id too long", func(r *Raw) { r.CivilID = "123456789012345678901" }, "civilId", "civil_id"},
		{"contact phone under 10 digits", func(r *Raw) { r.ContactPhone = "123456789" }, "contactPhone", "contact_phone"},
		{"whatsapp over 15 digits", func(r *Raw) { r.WhatsApp = "1234567890123456" }, "whatsapp", "short_phone"},
		{"short address", func(r *Raw) { r.Address = "  abc  " }, "address", "min"},
		{"negative income", func(r *Raw) { r.Income = "-1" }, "income", "money"},
		{"spouse phone over 15 digits", func(r *Raw) { r.Spouse.Phone = "1234567890123456" }, "spouse.phone", "short_phone"},
		{"child name with symbols", func(r *Raw) { r.Children[0].Name = "Noor!" }, "children[0].name", "person_name"},
		{"relative name with digits", func(r *Raw) { r.Relationships[0].RelativeName = "Hassan 2" }, "relationships[0].relativeName", "person_name"},
		{"relative civil id malformed", func(r *Raw) { r.Relationships[0].RelativeCivilID = "12" }, "relationships[0].relativeCivilId", "civil_id"},
		{"relative with civil id but no name", func(r *Raw) { r.Relationships[0].RelativeName = "" }, "relationships[0].relativeName", "required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := validRaw()
			tt.mutate(&raw)
			_, err := Beneficiary(raw)
			requireValidationField(t, err, tt.field, tt.rule)
		})
	}

	t.Run("first violation wins", func(t *testing.T) {
		raw := validRaw()
		raw.CivilID = "1"
		raw.Address = "x"
		_, err := Beneficiary(raw)
		requireValidationField(t, err, "civilId", "civil_id")
	})
}

func TestArabicNamesAccepted(t *testing.T) {
	raw := validRaw()
	raw.Name = "فاطمة عبدُالله"
	raw.Relationships = []RawRelationship{{RelationType: "mother", RelativeName: "مريم", RelativeNationalID: "2500112345"}}
	p, err := Beneficiary(raw)
	require.NoError(t, err)
	assert.Equal(t, "فاطمة عبدُالله", p.Name)
	assert.Equal(t, "2500112345", p.Relationships[0].RelativeCivilID, "legacy field name is accepted")
}

func TestLocalizedMessages(t *testing.T) {
	raw := validRaw()
	raw.CivilID = "12"

	_, err := New().Sanitize(raw, language.Arabic)
	require.Error(t, err)
	assert.Equal(t, "الرقم المدني يجب أن يتكون من 10 إلى 20 رقماً", dErrors.MessageOf(err))

	_, err = New().Sanitize(raw, language.English)
	assert.Equal(t, "civil id must be 10 to 20 digits", dErrors.MessageOf(err))

	raw = validRaw()
	raw.Children[0].Name = "N0or"
	_, err = Beneficiary(raw)
	assert.Equal(t, "child 1 name may only contain letters, spaces, hyphens and apostrophes", dErrors.MessageOf(err))
}

func TestMatchLanguage(t *testing.T) {
	assert.Equal(t, language.Arabic, MatchLanguage("ar-KW,ar;q=0.9,en;q=0.5"))
	assert.Equal(t, language.English, MatchLanguage("en-GB"))
	assert.Equal(t, language.English, MatchLanguage(""))
	assert.Equal(t, language.English, MatchLanguage("fr-FR"))
}

func TestLooseDecoding(t *testing.T) {
	var raw Raw
	payload := `{"familyMembers": 3, "priority": "8", "income": null, "internalNumber": 1001, "civilId": " 2870112345 "}`
	require.NoError(t, json.Unmarshal([]byte(payload), &raw))
	assert.Equal(t, Loose("3"), raw.FamilyMembers)
	assert.Equal(t, Loose("8"), raw.Priority)
	assert.Equal(t, Loose(""), raw.Income)
	assert.Equal(t, Loose("1001"), raw.InternalNumber)
	assert.Equal(t, Loose("2870112345"), raw.CivilID)
}

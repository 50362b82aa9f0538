package sanitize

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Loose is a scalar that arrives as a JSON number, a string, or null. Form-driven
// clients send numbers either way; coercion happens in the sanitizer, not at decode.
type Loose string

func (l *Loose) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*l = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = Loose(strings.TrimSpace(s))
	case bytes.Equal(data, []byte("true")), bytes.Equal(data, []byte("false")):
		*l = ""
	default:
		*l = Loose(data)
	}
	return nil
}

func (l Loose) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(l))
}

// Raw is the inbound beneficiary payload before sanitization.
type Raw struct {
	Name           string `json:"name"`
	InternalNumber Loose  `json:"internalNumber"`
	CivilID        Loose  `json:"civilId"`
	ContactPhone   Loose  `json:"contactPhone"`
	WhatsApp       Loose  `json:"whatsapp"`
	Address        string `json:"address"`
	FamilyMembers  Loose  `json:"familyMembers"`
	MaritalStatus  string `json:"maritalStatus"`
	Income         Loose  `json:"income"`
	RentalCost     Loose  `json:"rentalCost"`
	HousingType    string `json:"housingType"`
	Employment     string `json:"employment"`

	HealthStatus             string `json:"healthStatus"`
	HealthCertificationImage string `json:"healthCertificationImage"`

	Spouse        *RawSpouse        `json:"spouse"`
	Children      []RawChild        `json:"children"`
	Relationships []RawRelationship `json:"relationships"`

	Priority       Loose    `json:"priority"`
	PriorityManual bool     `json:"priorityManual"`
	Category       string   `json:"category"`
	Status         string   `json:"status"`
	StatusReason   string   `json:"statusReason"`
	ListNames      []string `json:"listNames"`

	ReceivesMonthlyAllowance bool  `json:"receivesMonthlyAllowance"`
	MonthlyAllowanceAmount   Loose `json:"monthlyAllowanceAmount"`

	// Branch (an id) or BranchName lets a superadmin direct the create at a
	// single branch. They are not part of the record.
	Branch     string `json:"branch,omitempty"`
	BranchName string `json:"branchName,omitempty"`
}

type RawSpouse struct {
	Name                     string `json:"name"`
	CivilID                  Loose  `json:"civilId"`
	Phone                    Loose  `json:"phone"`
	WhatsApp                 Loose  `json:"whatsapp"`
	Income                   Loose  `json:"income"`
	HealthStatus             string `json:"healthStatus"`
	HealthCertificationImage string `json:"healthCertificationImage"`
}

type RawChild struct {
	Name                     string     `json:"name"`
	CivilID                  Loose      `json:"civilId"`
	School                   string     `json:"school"`
	EducationStage           string     `json:"educationStage"`
	MaritalStatus            string     `json:"maritalStatus"`
	Spouse                   *RawSpouse `json:"spouse"`
	HealthStatus             string     `json:"healthStatus"`
	HealthCertificationImage string     `json:"healthCertificationImage"`
}

type RawRelationship struct {
	RelationType        string `json:"relationType"`
	InverseRelationType string `json:"inverseRelationType"`
	RelativeName        string `json:"relativeName"`
	RelativeCivilID     Loose  `json:"relativeCivilId"`
	// RelativeNationalID is the older field name some clients still send.
	RelativeNationalID Loose `json:"relativeNationalId"`
}

func (r RawRelationship) civilID() string {
	if r.RelativeCivilID != "" {
		return string(r.RelativeCivilID)
	}
	return string(r.RelativeNationalID)
}

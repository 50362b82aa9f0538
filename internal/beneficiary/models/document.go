package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	id "caredesk/pkg/domain"
)

// The flat document shape is what clients and the document column see. The sum
// types are collapsed into status + optional sub-record here and rebuilt on read,
// so a stored spouse without "married" cannot round-trip into the model.

type SpouseDocument struct {
	Name                     string          `json:"name"`
	CivilID                  string          `json:"civilId,omitempty"`
	Phone                    string          `json:"phone,omitempty"`
	WhatsApp                 string          `json:"whatsapp,omitempty"`
	Income                   decimal.Decimal `json:"income"`
	HealthStatus             HealthStatus    `json:"healthStatus"`
	HealthCertificationImage string          `json:"healthCertificationImage,omitempty"`
}

type ChildDocument struct {
	Name                     string          `json:"name"`
	CivilID                  string          `json:"civilId,omitempty"`
	School                   string          `json:"school,omitempty"`
	EducationStage           string          `json:"educationStage,omitempty"`
	MaritalStatus            MaritalStatus   `json:"maritalStatus"`
	Spouse                   *SpouseDocument `json:"spouse,omitempty"`
	HealthStatus             HealthStatus    `json:"healthStatus"`
	HealthCertificationImage string          `json:"healthCertificationImage,omitempty"`
}

type Document struct {
	ID                       id.BeneficiaryID   `json:"id"`
	BranchID                 id.BranchID        `json:"branchId"`
	BranchName               string             `json:"branchName"`
	Name                     string             `json:"name"`
	InternalNumber           string             `json:"internalNumber"`
	CivilID                  string             `json:"civilId"`
	ContactPhone             string             `json:"contactPhone"`
	WhatsApp                 string             `json:"whatsapp,omitempty"`
	Address                  string             `json:"address"`
	FamilyMembers            int                `json:"familyMembers"`
	MaritalStatus            MaritalStatus      `json:"maritalStatus"`
	Spouse                   *SpouseDocument    `json:"spouse,omitempty"`
	Income                   decimal.Decimal    `json:"income"`
	RentalCost               decimal.Decimal    `json:"rentalCost"`
	HousingType              HousingType        `json:"housingType"`
	Employment               string             `json:"employment,omitempty"`
	HealthStatus             HealthStatus       `json:"healthStatus"`
	HealthCertificationImage string             `json:"healthCertificationImage,omitempty"`
	Children                 []ChildDocument    `json:"children"`
	Relationships            []RelationshipEdge `json:"relationships"`
	Priority                 int                `json:"priority"`
	PriorityManual           bool               `json:"priorityManual"`
	Category                 Category           `json:"category"`
	Status                   Status             `json:"status"`
	StatusReason             string             `json:"statusReason,omitempty"`
	StatusDate               time.Time          `json:"statusDate"`
	ListNames                []string           `json:"listNames"`
	ReceivesMonthlyAllowance bool               `json:"receivesMonthlyAllowance"`
	MonthlyAllowanceAmount   decimal.Decimal    `json:"monthlyAllowanceAmount"`
	CreatedAt                time.Time          `json:"createdAt"`
	UpdatedAt                time.Time          `json:"updatedAt"`
}

// ToDocument flattens the record. Category defaults to C when unset.
func (b *Beneficiary) ToDocument() Document {
	doc := Document{
		ID:                       b.ID,
		BranchID:                 b.BranchID,
		BranchName:               b.BranchName,
		Name:                     b.Name,
		InternalNumber:           b.InternalNumber,
		CivilID:                  b.CivilID,
		ContactPhone:             b.ContactPhone,
		WhatsApp:                 b.WhatsApp,
		Address:                  b.Address,
		FamilyMembers:            b.FamilyMembers,
		MaritalStatus:            maritalStatusOf(b.Marital),
		Income:                   b.Income,
		RentalCost:               b.RentalCost,
		HousingType:              b.HousingType,
		Employment:               b.Employment,
		HealthStatus:             healthStatusOf(b.Health),
		HealthCertificationImage: CertificationImageOf(b.Health),
		Children:                 make([]ChildDocument, 0, len(b.Children)),
		Relationships:            b.Relationships,
		Priority:                 b.Priority,
		PriorityManual:           b.PriorityManual,
		Category:                 ParseCategory(string(b.Category)),
		Status:                   b.Status,
		StatusReason:             b.StatusReason,
		StatusDate:               b.StatusDate,
		ListNames:                b.ListNames,
		ReceivesMonthlyAllowance: b.ReceivesMonthlyAllowance,
		MonthlyAllowanceAmount:   b.MonthlyAllowanceAmount,
		CreatedAt:                b.CreatedAt,
		UpdatedAt:                b.UpdatedAt,
	}
	if spouse, ok := SpouseOf(b.Marital); ok {
		doc.Spouse = spouseDocument(spouse)
	}
	for _, c := range b.Children {
		cd := ChildDocument{
			Name:                     c.Name,
			CivilID:                  c.CivilID,
			School:                   c.School,
			EducationStage:           c.EducationStage,
			MaritalStatus:            maritalStatusOf(c.Marital),
			HealthStatus:             healthStatusOf(c.Health),
			HealthCertificationImage: CertificationImageOf(c.Health),
		}
		if spouse, ok := SpouseOf(c.Marital); ok {
			cd.Spouse = spouseDocument(spouse)
		}
		doc.Children = append(doc.Children, cd)
	}
	if doc.Relationships == nil {
		doc.Relationships = []RelationshipEdge{}
	}
	if doc.ListNames == nil {
		doc.ListNames = []string{DefaultListName}
	}
	return doc
}

// FromDocument rebuilds the record, restoring the sum types from the flat fields.
func FromDocument(doc Document) *Beneficiary {
	b := &Beneficiary{
		ID:         doc.ID,
		BranchID:   doc.BranchID,
		BranchName: doc.BranchName,
		StatusDate: doc.StatusDate,
		CreatedAt:  doc.CreatedAt,
		UpdatedAt:  doc.UpdatedAt,
		Profile: Profile{
			Name:                     doc.Name,
			InternalNumber:           doc.InternalNumber,
			CivilID:                  doc.CivilID,
			ContactPhone:             doc.ContactPhone,
			WhatsApp:                 doc.WhatsApp,
			Address:                  doc.Address,
			FamilyMembers:            doc.FamilyMembers,
			Marital:                  maritalState(doc.MaritalStatus, doc.Spouse),
			Income:                   doc.Income,
			RentalCost:               doc.RentalCost,
			HousingType:              doc.HousingType,
			Employment:               doc.Employment,
			Health:                   healthState(doc.HealthStatus, doc.HealthCertificationImage),
			Relationships:            doc.Relationships,
			Priority:                 doc.Priority,
			PriorityManual:           doc.PriorityManual,
			Category:                 ParseCategory(string(doc.Category)),
			Status:                   doc.Status,
			StatusReason:             doc.StatusReason,
			ListNames:                doc.ListNames,
			ReceivesMonthlyAllowance: doc.ReceivesMonthlyAllowance,
			MonthlyAllowanceAmount:   doc.MonthlyAllowanceAmount,
		},
	}
	for _, cd := range doc.Children {
		b.Children = append(b.Children, Child{
			Name:           cd.Name,
			CivilID:        cd.CivilID,
			School:         cd.School,
			EducationStage: cd.EducationStage,
			Marital:        maritalState(cd.MaritalStatus, cd.Spouse),
			Health:         healthState(cd.HealthStatus, cd.HealthCertificationImage),
		})
	}
	return b
}

func (b Beneficiary) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.ToDocument())
}

func (b *Beneficiary) UnmarshalJSON(data []byte) error {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	*b = *FromDocument(doc)
	return nil
}

func spouseDocument(s Spouse) *SpouseDocument {
	return &SpouseDocument{
		Name:                     s.Name,
		CivilID:                  s.CivilID,
		Phone:                    s.Phone,
		WhatsApp:                 s.WhatsApp,
		Income:                   s.Income,
		HealthStatus:             healthStatusOf(s.Health),
		HealthCertificationImage: CertificationImageOf(s.Health),
	}
}

func maritalState(status MaritalStatus, spouse *SpouseDocument) MaritalState {
	if status == MaritalMarried && spouse != nil {
		return Married{Spouse: Spouse{
			Name:     spouse.Name,
			CivilID:  spouse.CivilID,
			Phone:    spouse.Phone,
			WhatsApp: spouse.WhatsApp,
			Income:   spouse.Income,
			Health:   healthState(spouse.HealthStatus, spouse.HealthCertificationImage),
		}}
	}
	if status == MaritalMarried {
		return Married{}
	}
	return Unmarried{Status: ParseMaritalStatus(string(status))}
}

func healthState(status HealthStatus, image string) HealthState {
	if status == HealthSick {
		return Sick{CertificationImage: image}
	}
	return Healthy{}
}

func maritalStatusOf(m MaritalState) MaritalStatus {
	if m == nil {
		return MaritalSingle
	}
	return m.MaritalStatus()
}

func healthStatusOf(h HealthState) HealthStatus {
	if h == nil {
		return HealthHealthy
	}
	return h.HealthStatus()
}

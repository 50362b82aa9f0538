package priority

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"caredesk/internal/beneficiary/models"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestScoreLowEndScenario(t *testing.T) {
	healthy := Signals{FamilyMembers: 1}
	sick := healthy
	sick.Sick = true

	healthyScore := Score(healthy)
	assert.Equal(t, 1, healthyScore)
	assert.Less(t, healthyScore, models.MaxPriority)
	assert.Greater(t, Score(sick), healthyScore)
	assert.Equal(t, 3, Score(sick))
}

func TestScorePressureBands(t *testing.T) {
	tests := []struct {
		name    string
		signals Signals
		want    int
	}{
		{"rent exceeds income", Signals{Income: d(100), Rent: d(300), FamilyMembers: 2}, 6},
		{"rent only", Signals{Rent: d(150), FamilyMembers: 1}, 6},
		{"under 50 per head", Signals{Income: d(180), FamilyMembers: 4}, 5},
		{"under 100 per head", Signals{Income: d(300), FamilyMembers: 4}, 4},
		{"under 200 per head", Signals{Income: d(300), FamilyMembers: 2}, 3},
		{"under 350 per head", Signals{Income: d(300), FamilyMembers: 1}, 2},
		{"comfortable", Signals{Income: d(2000), FamilyMembers: 2}, 1},
		{"zero family members counts as one", Signals{Income: d(300), FamilyMembers: 0}, 2},
		{"spouse income counts when married", Signals{Income: d(100), SpouseIncome: d(50), Married: true, FamilyMembers: 1}, 3},
		{"spouse income ignored when unmarried", Signals{Income: d(100), SpouseIncome: d(500), FamilyMembers: 1}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Score(tt.signals))
		})
	}
}

func TestScoreHealthAndOffset(t *testing.T) {
	base := Signals{Income: d(1000), FamilyMembers: 1}
	assert.Equal(t, 1, Score(base))

	withChildren := base
	withChildren.SickUnmarriedChildren = 3
	assert.Equal(t, 4, Score(withChildren))

	marriedSickSpouse := base
	marriedSickSpouse.Married = true
	marriedSickSpouse.SpouseSick = true
	assert.Equal(t, 2, Score(marriedSickSpouse))

	earningSpouse := marriedSickSpouse
	earningSpouse.SpouseIncome = d(100)
	assert.Equal(t, 1, Score(earningSpouse))

	unmarriedSpouseFlag := base
	unmarriedSpouseFlag.SpouseSick = true
	assert.Equal(t, 1, Score(unmarriedSpouseFlag), "spouse signals only count when married")
}

func TestScoreAlwaysInRangeAndDeterministic(t *testing.T) {
	incomes := []int64{-500, 0, 1, 49, 99, 199, 349, 350, 10_000}
	members := []int{-1, 0, 1, 3, 12}
	for _, income := range incomes {
		for _, rent := range []int64{0, 120, 5000} {
			for _, fm := range members {
				for _, flags := range []int{0, 1, 2, 3, 4, 5, 6, 7} {
					s := Signals{
						Income:                d(income),
						Rent:                  d(rent),
						SpouseIncome:          d(income / 2),
						FamilyMembers:         fm,
						Married:               flags&1 != 0,
						Sick:                  flags&2 != 0,
						SpouseSick:            flags&4 != 0,
						SickUnmarriedChildren: flags * 2,
					}
					got := Score(s)
					assert.GreaterOrEqual(t, got, models.MinPriority)
					assert.LessOrEqual(t, got, models.MaxPriority)
					assert.Equal(t, got, Score(s))
				}
			}
		}
	}
}

func TestResolve(t *testing.T) {
	s := Signals{FamilyMembers: 1, Sick: true}
	assert.Equal(t, 3, Resolve(s, nil))

	for manual, want := range map[int]int{0: 1, 7: 7, 42: 10, -3: 1} {
		m := manual
		assert.Equal(t, want, Resolve(s, &m))
	}
}

func TestSignalsFrom(t *testing.T) {
	p := models.Profile{
		FamilyMembers: 5,
		Income:        d(400),
		RentalCost:    d(100),
		Health:        models.Sick{CertificationImage: "x.png"},
		Marital: models.Married{Spouse: models.Spouse{
			Name: "Spouse", Income: d(120), Health: models.Sick{},
		}},
		Children: []models.Child{
			{Name: "A", Health: models.Sick{}, Marital: models.Unmarried{Status: models.MaritalSingle}},
			{Name: "B", Health: models.Sick{}, Marital: models.Married{Spouse: models.Spouse{Name: "C"}}},
			{Name: "D", Health: models.Healthy{}},
		},
	}
	s := SignalsFrom(p)
	assert.True(t, s.Married)
	assert.True(t, s.Sick)
	assert.True(t, s.SpouseSick)
	assert.Equal(t, 1, s.SickUnmarriedChildren)
	assert.True(t, s.SpouseIncome.Equal(d(120)))

	// residual (400+120-100)/5 = 84 -> +3, sick +2, spouse sick +1, child +1, earning spouse -1
	assert.Equal(t, 7, Score(s))
}

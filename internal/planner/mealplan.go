package planner

import (
	"bytes"
	"encoding/json"
)

// MealPlanRequest is the dietary profile a plan is generated for.
type MealPlanRequest struct {
	DietaryPreference string   `json:"dietaryPreference"`
	Allergies         []string `json:"allergies"`
	AgeStage          string   `json:"ageStage"`
	MedicalConditions []string `json:"medicalConditions"`
	ActivityLevel     string   `json:"activityLevel"`
}

// SectionKind identifies which of the known sections a heading belongs to.
type SectionKind int

const (
	KindBreakfast SectionKind = iota
	KindLunch
	KindDinner
	KindRecommendedFoods
	KindFoodsToAvoid
)

func (k SectionKind) String() string {
	switch k {
	case KindBreakfast:
		return "Breakfast"
	case KindLunch:
		return "Lunch"
	case KindDinner:
		return "Dinner"
	case KindRecommendedFoods:
		return "Recommended Foods"
	case KindFoodsToAvoid:
		return "Foods to Avoid"
	default:
		return "Unknown"
	}
}

// IsMeal reports whether sections of this kind hold dishes.
func (k SectionKind) IsMeal() bool {
	return k == KindBreakfast || k == KindLunch || k == KindDinner
}

// Dish is a single suggested dish with its health benefits.
type Dish struct {
	Name     string   `json:"name"`
	Benefits []string `json:"benefits"`
}

// Section is one parsed block of the plan. It is implemented by
// *MealSection and *FoodListSection only.
type Section interface {
	Title() string
	Kind() SectionKind
	isSection()
}

// MealSection holds the dishes suggested for a meal of the day.
type MealSection struct {
	title  string
	kind   SectionKind
	Dishes []Dish
}

func (s *MealSection) Title() string     { return s.title }
func (s *MealSection) Kind() SectionKind { return s.kind }
func (*MealSection) isSection()          {}

func (s *MealSection) MarshalJSON() ([]byte, error) {
	dishes := s.Dishes
	if dishes == nil {
		dishes = []Dish{}
	}
	return json.Marshal(dishes)
}

// FoodListSection holds a flat list of foods to eat or to avoid.
type FoodListSection struct {
	title string
	kind  SectionKind
	Foods []string
}

func (s *FoodListSection) Title() string     { return s.title }
func (s *FoodListSection) Kind() SectionKind { return s.kind }
func (*FoodListSection) isSection()          {}

func (s *FoodListSection) MarshalJSON() ([]byte, error) {
	foods := s.Foods
	if foods == nil {
		foods = []string{}
	}
	return json.Marshal(foods)
}

// Deviation records input the parser had to skip. Deviations are not errors.
type Deviation struct {
	Section string
	Line    string
	Reason  string
}

// MealPlan is the structured form of a model reply. Sections keep document
// order and are keyed by their verbatim heading text when rendered as JSON.
type MealPlan struct {
	Sections   []Section
	Deviations []Deviation `json:"-"`
}

// Section returns the first section of the given kind.
func (p *MealPlan) Section(kind SectionKind) (Section, bool) {
	for _, s := range p.Sections {
		if s.Kind() == kind {
			return s, true
		}
	}
	return nil, false
}

// Lookup returns the section with exactly the given title.
func (p *MealPlan) Lookup(title string) (Section, bool) {
	for _, s := range p.Sections {
		if s.Title() == title {
			return s, true
		}
	}
	return nil, false
}

// Meals returns the meal sections in document order.
func (p *MealPlan) Meals() []*MealSection {
	var meals []*MealSection
	for _, s := range p.Sections {
		if m, ok := s.(*MealSection); ok {
			meals = append(meals, m)
		}
	}
	return meals
}

// FoodLists returns the food list sections in document order.
func (p *MealPlan) FoodLists() []*FoodListSection {
	var lists []*FoodListSection
	for _, s := range p.Sections {
		if l, ok := s.(*FoodListSection); ok {
			lists = append(lists, l)
		}
	}
	return lists
}

// put stores a section, replacing an earlier one with the same title in place.
func (p *MealPlan) put(s Section) {
	for i, existing := range p.Sections {
		if existing.Title() == s.Title() {
			p.Sections[i] = s
			return
		}
	}
	p.Sections = append(p.Sections, s)
}

// MarshalJSON renders the plan as an object keyed by section title.
func (p *MealPlan) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, s := range p.Sections {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(s.Title())
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(s)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

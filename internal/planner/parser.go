package planner

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math"
	"strings"
)

const (
	headingDelimiter = "##"
	dishMarker       = "- Dish"
	listMarker       = "-"
	dishNameSep      = ": "

	initialBlockSize = 64 * 1024
)

type sectionHandler func(title string, kind SectionKind, body []string, plan *MealPlan) Section

type sectionRule struct {
	prefix string
	kind   SectionKind
	handle sectionHandler
}

// sectionRules are evaluated in order; the first matching prefix wins.
var sectionRules = []sectionRule{
	{prefix: "Breakfast", kind: KindBreakfast, handle: collectDishes},
	{prefix: "Lunch", kind: KindLunch, handle: collectDishes},
	{prefix: "Dinner", kind: KindDinner, handle: collectDishes},
	{prefix: "Recommended Foods", kind: KindRecommendedFoods, handle: collectFoods},
	{prefix: "Foods to Avoid", kind: KindFoodsToAvoid, handle: collectFoods},
}

// ParseString parses a markdown meal plan held in memory.
func ParseString(text string) (*MealPlan, error) {
	return Parse(strings.NewReader(text))
}

// Parse converts a markdown reply using "##" headings and "-" bullets into a
// MealPlan. Deviations from the expected layout never fail the parse; only a
// missing or unreadable input does.
func Parse(r io.Reader) (*MealPlan, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil reader", ErrMalformedInput)
	}

	plan := &MealPlan{}
	scanner := bufio.NewScanner(r)
	// a section block may be any size; the buffer grows to fit it
	scanner.Buffer(make([]byte, 0, initialBlockSize), math.MaxInt)
	scanner.Split(splitSections)

	for scanner.Scan() {
		block := strings.TrimSpace(scanner.Text())
		if block == "" {
			continue
		}
		parseBlock(block, plan)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	return plan, nil
}

// splitSections is a bufio.SplitFunc yielding the text between heading delimiters.
func splitSections(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.Index(data, []byte(headingDelimiter)); i >= 0 {
		return i + len(headingDelimiter), data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func parseBlock(block string, plan *MealPlan) {
	lines := nonEmptyLines(block)
	if len(lines) == 0 {
		return
	}
	title, body := lines[0], lines[1:]

	for _, rule := range sectionRules {
		if strings.HasPrefix(title, rule.prefix) {
			plan.put(rule.handle(title, rule.kind, body, plan))
			return
		}
	}

	plan.Deviations = append(plan.Deviations, Deviation{
		Section: title,
		Reason:  "unrecognized heading",
	})
}

func nonEmptyLines(block string) []string {
	raw := strings.Split(block, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// dishState is the state of the dish-collection machine.
type dishState int

const (
	noOpenDish dishState = iota
	dishOpen
)

type dishCollector struct {
	state   dishState
	current Dish
	dishes  []Dish
}

// openDish flushes any open dish and starts a new one.
func (c *dishCollector) openDish(name string) {
	c.flush()
	c.current = Dish{Name: name, Benefits: []string{}}
	c.state = dishOpen
}

// addBenefit appends to the open dish. It reports false when no dish is open.
func (c *dishCollector) addBenefit(benefit string) bool {
	if c.state != dishOpen {
		return false
	}
	c.current.Benefits = append(c.current.Benefits, benefit)
	return true
}

func (c *dishCollector) flush() {
	if c.state == dishOpen {
		c.dishes = append(c.dishes, c.current)
	}
	c.current = Dish{}
	c.state = noOpenDish
}

func collectDishes(title string, kind SectionKind, body []string, plan *MealPlan) Section {
	c := &dishCollector{dishes: []Dish{}}

	for _, line := range body {
		switch {
		case strings.HasPrefix(line, dishMarker):
			c.openDish(dishName(line))
		case strings.HasPrefix(line, listMarker):
			if !c.addBenefit(stripMarker(line)) {
				plan.Deviations = append(plan.Deviations, Deviation{
					Section: title,
					Line:    line,
					Reason:  "benefit without an open dish",
				})
			}
		}
	}
	c.flush()

	return &MealSection{title: title, kind: kind, Dishes: c.dishes}
}

func collectFoods(title string, kind SectionKind, body []string, _ *MealPlan) Section {
	foods := make([]string, 0, len(body))
	for _, line := range body {
		foods = append(foods, stripMarker(line))
	}
	return &FoodListSection{title: title, kind: kind, Foods: foods}
}

// dishName returns the text after the first ": " of a dish line, or the line
// without its list marker when there is no separator.
func dishName(line string) string {
	if _, name, ok := strings.Cut(line, dishNameSep); ok {
		return name
	}
	return stripMarker(line)
}

// stripMarker drops the first two characters of a bullet line.
func stripMarker(line string) string {
	runes := []rune(line)
	if len(runes) < 2 {
		return ""
	}
	return string(runes[2:])
}

package detection

import (
	"hash/fnv"
	"math"
	"math/rand/v2"
	"slices"
)

// GeneratorName labels results so nobody mistakes them for model output.
const GeneratorName = "mock"

var ImagePrompts = [3]string{
	"A serene beach resort at sunset with palm trees, photorealistic travel photography",
	"A calm spa and wellness retreat with soft natural light, minimalist interior",
	"Friends enjoying an outdoor adventure in the mountains, vibrant colors",
}

// FallbackImages fill any slot the image model could not render.
var FallbackImages = [3]string{
	"https://images.unsplash.com/photo-1507525428034-b723cf961d3e?w=800",
	"https://images.unsplash.com/photo-1544161515-4ab6ce6db874?w=800",
	"https://images.unsplash.com/photo-1501555088652-021faa106b9b?w=800",
}

var catalogue = map[string][]string{
	"travel":     {"Weekend city break", "Coastal retreat", "Mountain lodge stay"},
	"wellness":   {"Spa day", "Yoga retreat", "Meditation course"},
	"experience": {"Concert tickets", "Cooking class", "Hot air balloon ride"},
	"learning":   {"Online course bundle", "Conference pass", "Language lessons"},
	"family":     {"Family day out", "Theme park passes", "Family photo session"},
}

var categories = []string{"travel", "wellness", "experience", "learning", "family"}

type Candidate struct {
	EmployeeID string   `json:"employee_id"`
	Name       string   `json:"name"`
	Department string   `json:"department,omitempty"`
	Signals    []string `json:"signals,omitempty"`
}

type ContextOutput struct {
	Employees  []Candidate `json:"employees"`
	Milestones int         `json:"open_milestones"`
}

type PreferenceOutput struct {
	Matches map[string][]string `json:"matches"`
	Missing int                 `json:"missing"`
}

type PolicyOutput struct {
	Allowed  []string `json:"allowed"`
	Rejected []string `json:"rejected"`
}

type BudgetOutput struct {
	MonthlyBudget int64 `json:"monthly_budget"`
	Pool          int64 `json:"pool"`
	Available     int64 `json:"available"`
}

type Recommendation struct {
	Title         string `json:"title"`
	Category      string `json:"category"`
	EstimatedCost int64  `json:"estimated_cost"`
	ImageURL      string `json:"image_url,omitempty"`
}

type Finding struct {
	EmployeeID   string           `json:"employee_id,omitempty"`
	EmployeeName string           `json:"employee_name,omitempty"`
	Reason       string           `json:"reason"`
	WithinBudget bool             `json:"within_budget"`
	Options      []Recommendation `json:"options"`
}

type Result struct {
	Generator       string    `json:"generator"`
	Detections      int       `json:"detections"`
	WithinBudget    int       `json:"within_budget"`
	NeedsCofund     int       `json:"needs_cofund"`
	ConfidenceScore float64   `json:"confidence_score"`
	Findings        []Finding `json:"findings"`
}

type GenerateInput struct {
	Context     ContextOutput
	Preferences PreferenceOutput
	Policy      PolicyOutput
	Budget      BudgetOutput
}

// MockGenerator fabricates plausible recommendations from the step outputs.
// It is a placeholder and labels its results as such.
type MockGenerator struct {
	rnd *rand.Rand
}

func NewMockGenerator(seed uint64) *MockGenerator {
	return &MockGenerator{rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// SeedFor derives a stable generator seed from a cycle id.
func SeedFor(cycleID string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(cycleID))
	return h.Sum64()
}

func (g *MockGenerator) Generate(in GenerateInput) Result {
	n := 2 + g.rnd.IntN(4)
	remaining := in.Budget.Available

	res := Result{
		Generator:       GeneratorName,
		Detections:      n,
		ConfidenceScore: math.Round((0.6+g.rnd.Float64()*0.35)*100) / 100,
		Findings:        make([]Finding, 0, n),
	}

	for i := 0; i < n; i++ {
		f := Finding{Reason: "team wellbeing check-in"}
		var prefs []string
		if len(in.Context.Employees) > 0 {
			c := in.Context.Employees[i%len(in.Context.Employees)]
			f.EmployeeID = c.EmployeeID
			f.EmployeeName = c.Name
			if len(c.Signals) > 0 {
				f.Reason = c.Signals[g.rnd.IntN(len(c.Signals))]
			}
			prefs = in.Preferences.Matches[c.EmployeeID]
		}

		pool := eligible(prefs, in.Policy.Allowed)
		options := 1 + g.rnd.IntN(3)
		for j := 0; j < options; j++ {
			category := pool[g.rnd.IntN(len(pool))]
			titles := catalogue[category]
			f.Options = append(f.Options, Recommendation{
				Title:         titles[g.rnd.IntN(len(titles))],
				Category:      category,
				EstimatedCost: int64(100 + g.rnd.IntN(18)*50),
			})
		}

		if cost := f.Options[0].EstimatedCost; cost <= remaining {
			f.WithinBudget = true
			remaining -= cost
			res.WithinBudget++
		} else {
			res.NeedsCofund++
		}
		res.Findings = append(res.Findings, f)
	}

	return res
}

// eligible prefers the employee's categories that the policy allows, then
// any allowed category, then the full set.
func eligible(prefs, allowed []string) []string {
	var both []string
	for _, p := range prefs {
		if slices.Contains(allowed, p) {
			both = append(both, p)
		}
	}
	switch {
	case len(both) > 0:
		return both
	case len(allowed) > 0:
		return allowed
	default:
		return categories
	}
}

// Illustrate assigns images to options in order, cycling over the three
// prompt slots. Nil slots fall back to FallbackImages.
func Illustrate(res *Result, images []*string) {
	n := 0
	for i := range res.Findings {
		for j := range res.Findings[i].Options {
			slot := n % len(FallbackImages)
			url := FallbackImages[slot]
			if slot < len(images) && images[slot] != nil && *images[slot] != "" {
				url = *images[slot]
			}
			res.Findings[i].Options[j].ImageURL = url
			n++
		}
	}
}

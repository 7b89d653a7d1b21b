package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Defaults applied to conditional rules that omit a prescription.
const (
	DefaultRuleSets = 3
	DefaultRuleReps = "10-12"
)

// Entry is a candidate exercise for the shuffled plan.
type Entry struct {
	Name      string   `yaml:"name" json:"name"`
	BaseSets  int      `yaml:"sets" json:"base_sets"`
	Reps      string   `yaml:"reps" json:"reps"`
	Equipment []string `yaml:"equipment" json:"equipment"`
}

// NeedsEquipment reports whether the entry requires any equipment at all.
func (e Entry) NeedsEquipment() bool {
	return len(e.Equipment) > 0
}

// Rule is one step of the conditional plan: add Name when Requires is
// available, or always when Requires is empty.
type Rule struct {
	Name     string `yaml:"name" json:"name"`
	Sets     int    `yaml:"sets" json:"sets"`
	Reps     string `yaml:"reps" json:"reps"`
	Requires string `yaml:"requires" json:"requires,omitempty"`
}

type goalSection struct {
	Name      string  `yaml:"name"`
	Exercises []Entry `yaml:"exercises"`
	Rules     []Rule  `yaml:"rules"`
}

type document struct {
	Goals     []goalSection `yaml:"goals"`
	Equipment []string      `yaml:"equipment"`
	Tips      []string      `yaml:"tips"`
}

// Catalog is the goal-partitioned exercise table. It is never mutated after
// Parse returns; accessors hand out copies.
type Catalog struct {
	goals     []string
	entries   map[string][]Entry
	rules     map[string][]Rule
	equipment []string
	tips      []string
}

// Default returns the catalog embedded in the binary.
func Default() (*Catalog, error) {
	return Parse(defaultYAML)
}

// Load reads a catalog from a YAML file. An empty path loads the embedded default.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	if len(doc.Goals) == 0 {
		return nil, fmt.Errorf("catalog declares no goals")
	}

	c := &Catalog{
		entries:   make(map[string][]Entry, len(doc.Goals)),
		rules:     make(map[string][]Rule, len(doc.Goals)),
		equipment: doc.Equipment,
		tips:      doc.Tips,
	}

	for _, g := range doc.Goals {
		if g.Name == "" {
			return nil, fmt.Errorf("goal without a name")
		}
		if _, dup := c.entries[g.Name]; dup {
			return nil, fmt.Errorf("goal %q declared twice", g.Name)
		}

		entries := make([]Entry, 0, len(g.Exercises))
		for i, e := range g.Exercises {
			if e.Name == "" {
				return nil, fmt.Errorf("goal %q: exercise %d has no name", g.Name, i)
			}
			if e.BaseSets < 1 {
				return nil, fmt.Errorf("goal %q: exercise %q: sets must be at least 1", g.Name, e.Name)
			}
			equipment, err := lowerAll(e.Equipment)
			if err != nil {
				return nil, fmt.Errorf("goal %q: exercise %q: %w", g.Name, e.Name, err)
			}
			e.Equipment = equipment
			entries = append(entries, e)
		}

		rules := make([]Rule, 0, len(g.Rules))
		for i, r := range g.Rules {
			if r.Name == "" {
				return nil, fmt.Errorf("goal %q: rule %d has no name", g.Name, i)
			}
			if r.Sets < 0 {
				return nil, fmt.Errorf("goal %q: rule %q: sets must not be negative", g.Name, r.Name)
			}
			if r.Sets == 0 {
				r.Sets = DefaultRuleSets
			}
			if r.Reps == "" {
				r.Reps = DefaultRuleReps
			}
			r.Requires = strings.ToLower(strings.TrimSpace(r.Requires))
			rules = append(rules, r)
		}

		c.goals = append(c.goals, g.Name)
		c.entries[g.Name] = entries
		c.rules[g.Name] = rules
	}

	return c, nil
}

// Goals returns the goal names in declaration order.
func (c *Catalog) Goals() []string {
	return slices.Clone(c.goals)
}

// HasGoal reports whether goal names a catalog partition.
func (c *Catalog) HasGoal(goal string) bool {
	_, ok := c.entries[goal]
	return ok
}

// Entries returns the shuffle candidates for goal, or nil for an unknown goal.
func (c *Catalog) Entries(goal string) []Entry {
	src, ok := c.entries[goal]
	if !ok {
		return nil
	}
	out := make([]Entry, len(src))
	for i, e := range src {
		e.Equipment = slices.Clone(e.Equipment)
		out[i] = e
	}
	return out
}

// Rules returns the conditional plan steps for goal, or nil for an unknown goal.
func (c *Catalog) Rules(goal string) []Rule {
	src, ok := c.rules[goal]
	if !ok {
		return nil
	}
	return slices.Clone(src)
}

// Equipment returns the equipment options offered during onboarding.
func (c *Catalog) Equipment() []string {
	return slices.Clone(c.equipment)
}

// Tips returns the coach tips shown after a completed workout.
func (c *Catalog) Tips() []string {
	return slices.Clone(c.tips)
}

func lowerAll(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			return nil, fmt.Errorf("blank equipment name")
		}
		out = append(out, s)
	}
	return out, nil
}

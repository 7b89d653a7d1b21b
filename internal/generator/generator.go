// Package generator turns a goal, the equipment a user owns and their
// experience level into a short workout plan drawn from the catalog.
package generator

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/claude/quickfit/internal/catalog"
)

// Plan caps used by the two call sites.
const (
	DashboardCap = 4
	SessionCap   = 5
)

// Strategy names accepted by New.
const (
	StrategyShuffle     = "shuffle"
	StrategyConditional = "conditional"
	StrategyPermissive  = "permissive"
)

// Exercise is one prescribed line of a generated plan.
type Exercise struct {
	Name string `json:"name"`
	Sets int    `json:"sets"`
	Reps string `json:"reps"`
}

// Strategy builds a plan. Implementations never fail: unknown goals and
// missing equipment produce a short or empty plan.
type Strategy interface {
	Generate(goal string, equipment []string, level Level) []Exercise
}

// Options configure a strategy.
type Options struct {
	// Cap bounds the plan length. Zero means DashboardCap.
	Cap int
	// Rand is the shuffle source. Nil seeds a new PCG source from the runtime.
	Rand *rand.Rand
}

func (o Options) cap() int {
	if o.Cap <= 0 {
		return DashboardCap
	}
	return o.Cap
}

func (o Options) source() *rand.Rand {
	if o.Rand != nil {
		return o.Rand
	}
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// New returns the strategy registered under name.
func New(name string, cat *catalog.Catalog, opts Options, log *slog.Logger) (Strategy, error) {
	switch strings.ToLower(name) {
	case "", StrategyShuffle:
		return NewShuffle(cat, opts), nil
	case StrategyConditional:
		return NewConditional(cat, opts), nil
	case StrategyPermissive:
		if log != nil {
			log.Warn("permissive workout strategy ignores equipment; plans may need gear the user lacks")
		}
		return NewPermissive(cat, opts), nil
	default:
		return nil, fmt.Errorf("unknown workout strategy %q", name)
	}
}

// Shuffle draws a uniformly random subset of the goal's catalog entries that
// the user's equipment can satisfy.
type Shuffle struct {
	cat    *catalog.Catalog
	cap    int
	filter bool

	mu  sync.Mutex
	rng *rand.Rand
}

// NewShuffle returns the randomized-filter strategy.
func NewShuffle(cat *catalog.Catalog, opts Options) *Shuffle {
	return &Shuffle{cat: cat, cap: opts.cap(), filter: true, rng: opts.source()}
}

// NewPermissive returns a shuffle that skips the equipment check entirely.
// Plans may include exercises needing equipment the user does not have.
func NewPermissive(cat *catalog.Catalog, opts Options) *Shuffle {
	s := NewShuffle(cat, opts)
	s.filter = false
	return s
}

// Generate implements Strategy.
func (s *Shuffle) Generate(goal string, equipment []string, level Level) []Exercise {
	pool := s.cat.Entries(goal)
	have := equipmentSet(equipment)

	s.mu.Lock()
	s.rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	s.mu.Unlock()

	plan := make([]Exercise, 0, min(len(pool), s.cap))
	for _, e := range pool {
		if len(plan) == s.cap {
			break
		}
		if s.filter && !available(e, have) {
			continue
		}
		plan = append(plan, Exercise{Name: e.Name, Sets: level.AdjustSets(e.BaseSets), Reps: e.Reps})
	}
	return plan
}

// Conditional walks the goal's rules in order and adds each exercise whose
// equipment is present. Rules without a requirement are always added, so
// every known goal yields at least its equipment-free fallbacks.
type Conditional struct {
	cat *catalog.Catalog
	cap int
}

// NewConditional returns the deterministic conditional-append strategy.
func NewConditional(cat *catalog.Catalog, opts Options) *Conditional {
	return &Conditional{cat: cat, cap: opts.cap()}
}

// Generate implements Strategy.
func (c *Conditional) Generate(goal string, equipment []string, level Level) []Exercise {
	have := equipmentSet(equipment)

	var plan []Exercise
	for _, r := range c.cat.Rules(goal) {
		if len(plan) == c.cap {
			break
		}
		if r.Requires != "" && !have[r.Requires] {
			continue
		}
		plan = append(plan, Exercise{Name: r.Name, Sets: level.AdjustSets(r.Sets), Reps: r.Reps})
	}
	if plan == nil {
		plan = []Exercise{}
	}
	return plan
}

func equipmentSet(equipment []string) map[string]bool {
	set := make(map[string]bool, len(equipment))
	for _, eq := range equipment {
		set[strings.ToLower(strings.TrimSpace(eq))] = true
	}
	return set
}

// available reports whether e needs no equipment or at least one item it
// lists is in have.
func available(e catalog.Entry, have map[string]bool) bool {
	if !e.NeedsEquipment() {
		return true
	}
	for _, eq := range e.Equipment {
		if have[eq] {
			return true
		}
	}
	return false
}

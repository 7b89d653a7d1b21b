package generator

import (
	"fmt"
	"strings"
)

// Level is the user's self-reported experience tier.
type Level int

const (
	Intermediate Level = iota
	Beginner
	Advanced
)

var levelNames = map[Level]string{
	Beginner:     "Beginner",
	Intermediate: "Intermediate",
	Advanced:     "Advanced",
}

// Levels lists the tiers in display order.
func Levels() []Level {
	return []Level{Beginner, Intermediate, Advanced}
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// ParseLevel accepts level names case-insensitively. An empty string means
// Intermediate.
func ParseLevel(s string) (Level, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Intermediate, nil
	}
	for l, name := range levelNames {
		if strings.EqualFold(s, name) {
			return l, nil
		}
	}
	return Intermediate, fmt.Errorf("unknown level %q", s)
}

// AdjustSets scales a base set count: beginners drop one set (never below
// one), advanced users add one.
func (l Level) AdjustSets(base int) int {
	switch l {
	case Beginner:
		return max(1, base-1)
	case Advanced:
		return base + 1
	default:
		return base
	}
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

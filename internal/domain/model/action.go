package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind tags an Action as a reward or a punishment.
type Kind string

// Action kinds. The string form doubles as the assignment item type.
const (
	KindReward     Kind = "reward"
	KindPunishment Kind = "punishment"
)

// Kinds lists every valid kind.
var Kinds = []Kind{KindReward, KindPunishment}

// ParseKind accepts "reward" or "punishment", case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindReward:
		return KindReward, nil
	case KindPunishment:
		return KindPunishment, nil
	}
	return "", fmt.Errorf("item type must be %q or %q, got %q", KindReward, KindPunishment, s)
}

// UnmarshalJSON reads a kind through ParseKind, so "Reward" and " reward "
// both decode to KindReward.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("item type must be a string: %w", err)
	}
	parsed, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindReward || k == KindPunishment
}

// Allows reports whether value carries the sign required by k.
func (k Kind) Allows(value int64) bool {
	switch k {
	case KindReward:
		return value > 0
	case KindPunishment:
		return value < 0
	}
	return false
}

// SignRule is the human readable sign constraint of k.
func (k Kind) SignRule() string {
	if k == KindPunishment {
		return "punishment value must be negative"
	}
	return "reward value must be positive"
}

// Sign returns +1 for rewards and -1 for punishments.
func (k Kind) Sign() int64 {
	if k == KindPunishment {
		return -1
	}
	return 1
}

// Action is a named, signed point value. Rewards are positive, punishments negative.
type Action struct {
	ID    int64  `json:"id"`
	Kind  Kind   `json:"kind"`
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

// Severity grades a punishment by magnitude.
type Severity string

// Severity bands, mildest first.
const (
	SeverityMild       Severity = "Mild"
	SeverityModerate   Severity = "Moderate"
	SeveritySevere     Severity = "Severe"
	SeverityVerySevere Severity = "Very Severe"
)

// SeverityOf maps a punishment value to its band. ok is false for value >= 0.
func SeverityOf(value int64) (sev Severity, ok bool) {
	if value >= 0 {
		return "", false
	}
	switch abs := -value; {
	case abs <= 5:
		return SeverityMild, true
	case abs <= 15:
		return SeverityModerate, true
	case abs <= 30:
		return SeveritySevere, true
	default:
		return SeverityVerySevere, true
	}
}

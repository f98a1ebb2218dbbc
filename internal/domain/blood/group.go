package blood

import (
	"errors"
	"strings"
)

// Group is a validated blood group, e.g. "O+" or "AB-".
type Group string

const (
	APositive  Group = "A+"
	ANegative  Group = "A-"
	BPositive  Group = "B+"
	BNegative  Group = "B-"
	ABPositive Group = "AB+"
	ABNegative Group = "AB-"
	OPositive  Group = "O+"
	ONegative  Group = "O-"
)

var ErrInvalidGroup = errors.New("invalid blood group")

var validGroups = map[Group]bool{
	APositive: true, ANegative: true,
	BPositive: true, BNegative: true,
	ABPositive: true, ABNegative: true,
	OPositive: true, ONegative: true,
}

// Normalize converts free-form user input like "o positive", "AB neg" or
// "b +" into a canonical Group. Returns ErrInvalidGroup for anything that
// does not resolve to one of the eight valid groups.
func Normalize(raw string) (Group, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "POSITIVE", "+")
	s = strings.ReplaceAll(s, "NEGATIVE", "-")
	s = strings.ReplaceAll(s, "POS", "+")
	s = strings.ReplaceAll(s, "NEG", "-")
	s = strings.ReplaceAll(s, " ", "")

	g := Group(s)
	if !validGroups[g] {
		return "", ErrInvalidGroup
	}
	return g, nil
}

// IsValid reports whether g is one of the eight canonical groups.
func (g Group) IsValid() bool {
	return validGroups[g]
}

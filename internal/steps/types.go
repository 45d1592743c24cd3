package steps

import (
	"strings"

	"github.com/roach88/storyline/internal/keywords"
)

// Type is the kind of a step.
type Type string

const (
	Given     Type = "GIVEN"
	When      Type = "WHEN"
	Then      Type = "THEN"
	And       Type = "AND"
	Ignorable Type = "IGNORABLE"

	// Any marks a candidate that matches steps of every type.
	Any Type = "ANY"
)

// Classify returns the type of a step line and its text without the
// starting word. Lines without a starting word are returned unchanged with
// an empty type.
func Classify(text string, kw keywords.Keywords) (Type, string) {
	word, ok := kw.StartingWord(text)
	if !ok {
		return "", text
	}
	rest := strings.TrimLeft(text[len(word):], " \t")
	switch word {
	case kw.Given:
		return Given, rest
	case kw.When:
		return When, rest
	case kw.Then:
		return Then, rest
	case kw.And:
		return And, rest
	}
	return Ignorable, text
}

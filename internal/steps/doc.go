// Package steps matches step text against registered step candidates.
//
// A candidate pairs a step type with a pattern such as
//
//	a house with $doors doors
//
// Parameter markers start with a prefix ("$" by default) followed by name
// characters. Literal text is matched exactly except that any run of
// whitespace matches any other run of whitespace, including newlines.
//
// Resolution picks, among candidates of the step's type whose pattern
// matches, the one with the highest priority. Ties go to the pattern with
// fewer parameters, then to the one with more literal text, then to the
// earliest registered. A step that matches nothing is pending.
package steps

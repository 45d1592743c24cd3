// Package story holds the parsed story model and the keyword-driven parser
// that produces it.
//
// A story is plain UTF-8 text:
//
//	A free text description
//
//	Meta:
//	@theme parsing
//
//	Narrative:
//	In order to communicate effectively
//	As a business analyst
//	I want to use a common language
//
//	GivenStories: precondition.story#{0}
//
//	Lifecycle:
//	Before:
//	Given a clean workspace
//	After:
//	Outcome: FAILURE
//	Then dump the logs
//
//	Scenario: a titled scenario
//	Given a house with <doors> doors
//	Then the house has <doors> doors
//	Examples:
//	|doors|
//	|3|
//
// Keywords come from an injected keywords.Keywords table, so the parser is
// not tied to English.
package story

// Package stepdefs loads step definitions that bind step patterns to
// external commands.
//
// A definitions file is YAML:
//
//	source: house-steps
//	dir: scripts
//	env:
//	  HOUSE_DB: test.db
//	steps:
//	  - type: given
//	    pattern: a house with $doors doors
//	    command: [./build-house.sh]
//	  - type: then
//	    pattern: it has $doors doors
//	    shell: test "$1" -eq "$(cat doors)"
//
// Captured values are passed to the command as positional arguments ($1..$n)
// and as STEP_<NAME> environment variables. Commands run with the story's
// context and are killed when it is cancelled.
package stepdefs

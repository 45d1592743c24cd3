// Package meta implements tag sets attached to stories and scenarios and the
// filters that allow or deny them.
//
// Meta is written in story text as "@name value" pairs:
//
//	Meta:
//	@author Mauro
//	@theme parsing !-- trailing comment
//	@skip
//
// A Filter is either a clause list ("+theme parsing -skip") or a boolean
// expression introduced by a prefix ("groovy: theme == 'parsing' && !skip").
// Expressions are evaluated with an embedded JavaScript engine; missing
// names read as false and flag-only names read as true.
package meta

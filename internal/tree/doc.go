// Package tree builds performable trees: the concrete execution plan for a
// set of parsed stories.
//
// A Story becomes a tree of scenarios, each expanded into one Run per
// examples row (the cross product of the story lifecycle examples and the
// scenario's own examples). Every step line is bound to a step candidate up
// front, given stories are loaded and inlined recursively, and lifecycle
// steps are merged in at story and scenario scope. Stories and scenarios
// rejected by the meta filters stay in the tree marked not allowed so that
// their exclusion can be reported.
//
// A built tree is not shared: each Story subtree belongs to whichever worker
// runs it.
package tree

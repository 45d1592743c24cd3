package tree

import "fmt"

// DefaultMaxDepth bounds given-story nesting.
const DefaultMaxDepth = 16

// pathGuard tracks the chain of given stories being expanded.
//
// A path already on the stack is a cycle. A chain deeper than max fails
// even without a repeat.
type pathGuard struct {
	stack []string
	max   int
}

func newPathGuard(max int) *pathGuard {
	if max <= 0 {
		max = DefaultMaxDepth
	}
	return &pathGuard{max: max}
}

// enter pushes path. It fails without pushing if that would cycle or exceed
// the depth limit.
func (g *pathGuard) enter(path string) error {
	for _, p := range g.stack {
		if p == path {
			return &Error{
				Code:    ErrCodeGivenStoryCycle,
				Message: fmt.Sprintf("story %s gives itself", path),
				Path:    path,
				Chain:   append(g.chain(), path),
			}
		}
	}
	// The root story does not count towards the depth.
	if len(g.stack) > g.max {
		return &Error{
			Code:    ErrCodeGivenStoryDepth,
			Message: fmt.Sprintf("given stories nested deeper than %d", g.max),
			Path:    path,
			Chain:   append(g.chain(), path),
		}
	}
	g.stack = append(g.stack, path)
	return nil
}

func (g *pathGuard) leave() {
	g.stack = g.stack[:len(g.stack)-1]
}

func (g *pathGuard) depth() int {
	return len(g.stack)
}

func (g *pathGuard) chain() []string {
	return append([]string(nil), g.stack...)
}

package config

// Category groups Parameters and restricts when their values may change.
// State names are plain strings (matching the state machine's getName()
// tags) rather than a typed dependency on package state, so config does not
// import state — category.go only needs to compare tags.
type Category struct {
	Name          string
	AllowedStates map[string]bool
}

// NewCategory constructs a Category allowing mutation only while the
// current service state's name is one of allowedStates. An empty
// allowedStates means "always allowed" (used by categories mutable from any
// state). The uninitialized-state-machine case is handled separately by
// Configuration, which skips the check while it has no current-state
// accessor.
func NewCategory(name string, allowedStates ...string) *Category {
	c := &Category{Name: name, AllowedStates: make(map[string]bool, len(allowedStates))}
	for _, s := range allowedStates {
		c.AllowedStates[s] = true
	}
	return c
}

// AllowsMutationFrom reports whether a parameter in this category may be
// mutated while the current state name is currentState. An empty
// AllowedStates set always allows mutation.
func (c *Category) AllowsMutationFrom(currentState string) bool {
	if len(c.AllowedStates) == 0 {
		return true
	}
	return c.AllowedStates[currentState]
}

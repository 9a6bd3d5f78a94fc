package model

// Tag is a free-form label attached to transactions. Names are unique
// within a store; matching across stores is by exact, case-sensitive name.
type Tag struct {
	Name string
	ID   int64
}

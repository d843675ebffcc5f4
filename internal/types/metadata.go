package types

// Metadata contains container metadata written during a remux.
type Metadata struct {
	Title   string
	Comment string // share page URL
}

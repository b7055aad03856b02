package port

// QueryValidator checks that SQL text is a single read-only statement
// before it is previewed.
type QueryValidator interface {
	Validate(sql string) error
}

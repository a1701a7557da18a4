package queryir

// Compiled is a backend-native rendering of a Query. String gives a
// human-readable form for explain output and golden tests.
type Compiled interface {
	String() string
}

// Compiler translates a Query into a backend's native query language.
// Implementations live in querysql and querydoc.
type Compiler interface {
	Compile(q *Query, flags Flags) (Compiled, error)
}

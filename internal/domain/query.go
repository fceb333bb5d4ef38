package domain

// PredicateOp is a single restriction operator applied to one field path.
type PredicateOp string

const (
	PredicateContains PredicateOp = "contains"
	PredicateGTE      PredicateOp = "gte"
	PredicateLTE      PredicateOp = "lte"
	PredicateExact    PredicateOp = "exact"
)

// Predicate restricts one field path to a typed, already-validated value.
type Predicate struct {
	Path  string
	Op    PredicateOp
	Value any
}

// SortKey orders results by one field path.
type SortKey struct {
	Path string
	Desc bool
}

// RecordQuery is the declarative narrowing handed to the query engine. All
// predicates are AND-combined; the search term ORs a case-insensitive contains
// over SearchPaths and is ANDed with the predicates.
type RecordQuery struct {
	Predicates  []Predicate
	SearchTerm  string
	SearchPaths []string
	Order       []SortKey
}

package domain

import (
	"strings"
)

// FieldKind classifies a schema field by its storage type. Fields whose storage
// type falls outside these four kinds are not filterable and are excluded from
// introspection.
type FieldKind string

const (
	FieldKindText    FieldKind = "text"
	FieldKindNumber  FieldKind = "number"
	FieldKindDate    FieldKind = "date"
	FieldKindBoolean FieldKind = "boolean"
)

// FilterOperator is the operator a filter of a given kind supports.
type FilterOperator string

const (
	FilterOperatorContains FilterOperator = "contains"
	FilterOperatorRange    FilterOperator = "range"
	FilterOperatorExact    FilterOperator = "exact"
)

// OperatorForKind maps a field classification to its filter operator.
func OperatorForKind(kind FieldKind) FilterOperator {
	switch kind {
	case FieldKindNumber, FieldKindDate:
		return FilterOperatorRange
	case FieldKindBoolean:
		return FilterOperatorExact
	default:
		return FilterOperatorContains
	}
}

// Field is one column of a registered model's schema.
type Field struct {
	Name   string
	Column string
	Kind   FieldKind
}

// Relation is a foreign-key link from one registered model to another.
type Relation struct {
	Name     string
	Target   string
	FKColumn string
}

// FieldDescriptor is a field reachable from a model root, possibly across
// relation hops. Path is dot-joined; Depth counts the hops (0, 1 or 2).
type FieldDescriptor struct {
	Path  string
	Label string
	Kind  FieldKind
	Depth int
}

// FilterDefinition is a single applicable search constraint exposed to clients.
type FilterDefinition struct {
	Name     string         `json:"name"`
	Label    string         `json:"label"`
	Type     FieldKind      `json:"type"`
	Operator FilterOperator `json:"filter_type"`
}

// LabelForPath renders a dotted field path as a display label, with relation
// hops separated by ">" and words title-cased: "study.dataset_name" becomes
// "Study > Dataset Name".
func LabelForPath(path string) string {
	segments := strings.Split(path, ".")
	for i, segment := range segments {
		words := strings.Split(segment, "_")
		for j, word := range words {
			if word == "" {
				continue
			}
			words[j] = strings.ToUpper(word[:1]) + word[1:]
		}
		segments[i] = strings.Join(words, " ")
	}
	return strings.Join(segments, " > ")
}

package domain

import (
	"fmt"
	"iter"
	"strings"
)

// MaxRelationDepth bounds how many relation hops introspection follows.
const MaxRelationDepth = 2

// ModelDescriptor is the static schema and relation metadata for one registered
// entity type. Descriptors are defined once at process start and never mutated.
type ModelDescriptor struct {
	Name      string
	Label     string
	Table     string
	Fields    []Field
	Relations []Relation
	// EagerLoad lists the relation paths (dot-joined) flattened into API
	// output. Independent of MaxRelationDepth; the two bounds need not match.
	EagerLoad []string
}

// Registry maps short model names to their descriptors. It is built once at
// startup and is safe for unsynchronized concurrent reads.
type Registry struct {
	models map[string]*ModelDescriptor
	order  []string
	fields map[string][]FieldDescriptor
}

// NewRegistry builds a registry from the given descriptors, validating relation
// and eager-load targets and precomputing each model's field descriptors.
func NewRegistry(models ...*ModelDescriptor) (*Registry, error) {
	r := &Registry{
		models: make(map[string]*ModelDescriptor, len(models)),
		fields: make(map[string][]FieldDescriptor, len(models)),
	}
	for _, m := range models {
		name := strings.ToLower(strings.TrimSpace(m.Name))
		if name == "" {
			return nil, fmt.Errorf("model descriptor missing name")
		}
		if _, exists := r.models[name]; exists {
			return nil, fmt.Errorf("duplicate model %s", name)
		}
		r.models[name] = m
		r.order = append(r.order, name)
	}
	for _, m := range models {
		for _, rel := range m.Relations {
			if _, ok := r.models[rel.Target]; !ok {
				return nil, fmt.Errorf("model %s: relation %s targets unregistered model %s", m.Name, rel.Name, rel.Target)
			}
		}
		for _, path := range m.EagerLoad {
			if _, err := r.relationAt(m, path); err != nil {
				return nil, fmt.Errorf("model %s: %w", m.Name, err)
			}
		}
	}
	for _, m := range models {
		r.fields[strings.ToLower(m.Name)] = r.introspect(m)
	}
	return r, nil
}

// Resolve returns the descriptor registered under name.
func (r *Registry) Resolve(name string) (*ModelDescriptor, error) {
	m, ok := r.models[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}
	return m, nil
}

// Models returns all descriptors in registration order.
func (r *Registry) Models() []*ModelDescriptor {
	out := make([]*ModelDescriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.models[name])
	}
	return out
}

// Enumerate yields the model's field descriptors in enumeration order: root
// fields first, then depth-1 fields, then depth-2, declaration order within
// each level. The sequence is restartable; descriptors are computed once at
// registry construction.
func (r *Registry) Enumerate(name string) (iter.Seq[FieldDescriptor], error) {
	if _, err := r.Resolve(name); err != nil {
		return nil, err
	}
	cached := r.fields[strings.ToLower(strings.TrimSpace(name))]
	return func(yield func(FieldDescriptor) bool) {
		for _, fd := range cached {
			if !yield(fd) {
				return
			}
		}
	}, nil
}

// RelationTarget resolves the descriptor a dot-joined relation path leads to.
func (r *Registry) RelationTarget(root *ModelDescriptor, path string) (*ModelDescriptor, error) {
	rel, err := r.relationAt(root, path)
	if err != nil {
		return nil, err
	}
	return r.models[rel.Target], nil
}

func (r *Registry) relationAt(root *ModelDescriptor, path string) (Relation, error) {
	current := root
	var last Relation
	for _, segment := range strings.Split(path, ".") {
		found := false
		for _, rel := range current.Relations {
			if rel.Name == segment {
				last = rel
				current = r.models[rel.Target]
				found = true
				break
			}
		}
		if !found {
			return Relation{}, fmt.Errorf("unknown relation path %q", path)
		}
	}
	return last, nil
}

func (r *Registry) introspect(root *ModelDescriptor) []FieldDescriptor {
	type node struct {
		prefix string
		model  *ModelDescriptor
	}

	var out []FieldDescriptor
	level := []node{{prefix: "", model: root}}
	for depth := 0; depth <= MaxRelationDepth; depth++ {
		var next []node
		for _, n := range level {
			for _, field := range n.model.Fields {
				path := n.prefix + field.Name
				out = append(out, FieldDescriptor{
					Path:  path,
					Label: LabelForPath(path),
					Kind:  field.Kind,
					Depth: depth,
				})
			}
			for _, rel := range n.model.Relations {
				next = append(next, node{prefix: n.prefix + rel.Name + ".", model: r.models[rel.Target]})
			}
		}
		level = next
	}
	return out
}

// DefaultRegistry registers the five poxvirus research record types. Adding a
// model is a deployment-time change: extend this set and redeploy.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(
		&ModelDescriptor{
			Name:  "pathogen",
			Label: "Pathogen",
			Table: "pathogens",
			Fields: []Field{
				{Name: "id", Column: "id", Kind: FieldKindNumber},
				{Name: "original_id", Column: "original_id", Kind: FieldKindText},
				{Name: "family", Column: "family", Kind: FieldKindText},
				{Name: "scientific_name", Column: "scientific_name", Kind: FieldKindText},
				{Name: "assay", Column: "assay", Kind: FieldKindText},
				{Name: "test_result", Column: "test_result", Kind: FieldKindText},
				{Name: "assay_date", Column: "assay_date", Kind: FieldKindDate},
				{Name: "tested", Column: "tested", Kind: FieldKindNumber},
				{Name: "positive", Column: "positive", Kind: FieldKindNumber},
				{Name: "negative", Column: "negative", Kind: FieldKindNumber},
				{Name: "number_inconclusive", Column: "number_inconclusive", Kind: FieldKindNumber},
				{Name: "note", Column: "note", Kind: FieldKindText},
			},
			Relations: []Relation{
				{Name: "host", Target: "host", FKColumn: "host_id"},
			},
			EagerLoad: []string{"host", "host.study", "host.study.full_text"},
		},
		&ModelDescriptor{
			Name:  "host",
			Label: "Host",
			Table: "hosts",
			Fields: []Field{
				{Name: "id", Column: "id", Kind: FieldKindNumber},
				{Name: "original_id", Column: "original_id", Kind: FieldKindText},
				{Name: "scientific_name", Column: "scientific_name", Kind: FieldKindText},
				{Name: "event_date", Column: "event_date", Kind: FieldKindText},
				{Name: "locality", Column: "locality", Kind: FieldKindText},
				{Name: "country", Column: "country", Kind: FieldKindText},
				{Name: "verbatim_locality", Column: "verbatim_locality", Kind: FieldKindText},
				{Name: "coordinate_resolution", Column: "coordinate_resolution", Kind: FieldKindText},
				{Name: "location_latitude", Column: "location_latitude", Kind: FieldKindNumber},
				{Name: "location_longitude", Column: "location_longitude", Kind: FieldKindNumber},
				{Name: "individual_count", Column: "individual_count", Kind: FieldKindNumber},
				{Name: "trap_effort", Column: "trap_effort", Kind: FieldKindNumber},
				{Name: "trap_effort_resolution", Column: "trap_effort_resolution", Kind: FieldKindText},
			},
			Relations: []Relation{
				{Name: "study", Target: "descriptive", FKColumn: "study_id"},
			},
			EagerLoad: []string{"study", "study.full_text"},
		},
		&ModelDescriptor{
			Name:  "sequence",
			Label: "Sequence",
			Table: "sequences",
			Fields: []Field{
				{Name: "id", Column: "id", Kind: FieldKindNumber},
				{Name: "original_id", Column: "original_id", Kind: FieldKindText},
				{Name: "scientific_name", Column: "scientific_name", Kind: FieldKindText},
				{Name: "associated_taxa", Column: "associated_taxa", Kind: FieldKindText},
				{Name: "sequence_type", Column: "sequence_type", Kind: FieldKindText},
				{Name: "accession_number", Column: "accession_number", Kind: FieldKindText},
				{Name: "method", Column: "method", Kind: FieldKindText},
				{Name: "note", Column: "note", Kind: FieldKindText},
				{Name: "date_sampled", Column: "date_sampled", Kind: FieldKindDate},
				{Name: "sample_location", Column: "sample_location", Kind: FieldKindText},
			},
			Relations: []Relation{
				{Name: "pathogen", Target: "pathogen", FKColumn: "pathogen_id"},
				{Name: "host", Target: "host", FKColumn: "host_id"},
				{Name: "study", Target: "descriptive", FKColumn: "study_id"},
			},
			EagerLoad: []string{"pathogen", "host", "study"},
		},
		&ModelDescriptor{
			Name:  "descriptive",
			Label: "Descriptive",
			Table: "descriptives",
			Fields: []Field{
				{Name: "id", Column: "id", Kind: FieldKindNumber},
				{Name: "original_id", Column: "original_id", Kind: FieldKindText},
				{Name: "dataset_name", Column: "dataset_name", Kind: FieldKindText},
				{Name: "sampling_effort", Column: "sampling_effort", Kind: FieldKindText},
				{Name: "data_access", Column: "data_access", Kind: FieldKindText},
				{Name: "data_resolution", Column: "data_resolution", Kind: FieldKindText},
				{Name: "linked_manuscripts", Column: "linked_manuscripts", Kind: FieldKindText},
				{Name: "notes", Column: "notes", Kind: FieldKindText},
			},
			Relations: []Relation{
				{Name: "full_text", Target: "fulltext", FKColumn: "full_text_id"},
			},
			EagerLoad: []string{"full_text"},
		},
		&ModelDescriptor{
			Name:  "fulltext",
			Label: "Fulltext",
			Table: "full_texts",
			Fields: []Field{
				{Name: "id", Column: "id", Kind: FieldKindNumber},
				{Name: "original_id", Column: "original_id", Kind: FieldKindText},
				{Name: "extractor", Column: "extractor", Kind: FieldKindText},
				{Name: "community", Column: "community", Kind: FieldKindText},
				{Name: "spatio_temporal_extraction", Column: "spatio_temporal_extraction", Kind: FieldKindText},
				{Name: "decision", Column: "decision", Kind: FieldKindText},
				{Name: "reason", Column: "reason", Kind: FieldKindText},
				{Name: "key", Column: "key", Kind: FieldKindText},
				{Name: "publication_year", Column: "publication_year", Kind: FieldKindNumber},
				{Name: "author", Column: "author", Kind: FieldKindText},
				{Name: "title", Column: "title", Kind: FieldKindText},
				{Name: "processed", Column: "processed", Kind: FieldKindBoolean},
			},
		},
	)
	if err != nil {
		panic(fmt.Sprintf("default registry is invalid: %v", err))
	}
	return r
}

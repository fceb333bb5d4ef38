package domain

import "time"

// FullText is a screened publication record.
type FullText struct {
	ID                       int64
	OriginalID               *string
	Extractor                *string
	Community                *string
	SpatioTemporalExtraction *string
	Decision                 *string
	Reason                   *string
	Key                      *string
	PublicationYear          *int64
	Author                   *string
	Title                    string
	Processed                bool
}

// Descriptive is a dataset description extracted from a publication.
type Descriptive struct {
	ID                int64
	OriginalID        *string
	FullTextID        *int64
	DatasetName       *string
	SamplingEffort    *string
	DataAccess        *string
	DataResolution    *string
	LinkedManuscripts *string
	Notes             *string
}

// Host is a sampled host specimen occurrence.
type Host struct {
	ID                   int64
	OriginalID           *string
	StudyID              *int64
	ScientificName       *string
	EventDate            *string
	Locality             *string
	Country              *string
	VerbatimLocality     *string
	CoordinateResolution *string
	LocationLatitude     *float64
	LocationLongitude    *float64
	IndividualCount      int64
	TrapEffort           *int64
	TrapEffortResolution *string
}

// Pathogen is a pathogen assay result for a host.
type Pathogen struct {
	ID                 int64
	OriginalID         *string
	HostID             *int64
	Family             *string
	ScientificName     *string
	Assay              *string
	TestResult         *string
	AssayDate          *time.Time
	Tested             *int64
	Positive           *int64
	Negative           *int64
	NumberInconclusive *int64
	Note               *string
}

// Sequence is a genetic sequence linked to a pathogen, a host, or a study.
type Sequence struct {
	ID              int64
	OriginalID      *string
	ScientificName  *string
	AssociatedTaxa  *string
	SequenceType    *string
	PathogenID      *int64
	HostID          *int64
	StudyID         *int64
	AccessionNumber *string
	Method          *string
	Note            *string
	DateSampled     *time.Time
	SampleLocation  *string
}

// HostPoint is the subset of a host record rendered on maps.
type HostPoint struct {
	ID              int64
	Latitude        float64
	Longitude       float64
	ScientificName  *string
	Country         *string
	IndividualCount int64
	EventDate       *string
}

// Package ingestion loads the five-sheet research spreadsheets into the
// record tables: it maps aliased sheet and column names onto model fields,
// normalizes cell values, deduplicates against existing data, and rewrites
// cross-sheet references to the assigned database keys.
package ingestion

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/virodata/poxbase/internal/domain"
	"github.com/virodata/poxbase/internal/gbif"
	"github.com/virodata/poxbase/internal/repository"
)

// ErrUnsupportedFormat is returned when an uploaded file is not supported.
var ErrUnsupportedFormat = errors.New("unsupported file format")

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

// Service imports uploaded spreadsheets into the record store.
type Service struct {
	records  repository.RecordRepository
	resolver gbif.SpeciesResolver
}

// NewService creates the import service. The resolver canonicalizes species
// names; pass gbif.NoopResolver to keep verbatim names.
func NewService(records repository.RecordRepository, resolver gbif.SpeciesResolver) *Service {
	return &Service{records: records, resolver: resolver}
}

// Request describes one uploaded file.
type Request struct {
	FileName string
	// Sheet names the target sheet for CSV uploads, which carry no workbook
	// structure. Ignored for XLSX.
	Sheet string
	Data  io.Reader
}

// SheetSummary reports the outcome of loading one sheet.
type SheetSummary struct {
	Sheet      string `json:"sheet"`
	Model      string `json:"model"`
	Rows       int    `json:"rows"`
	Inserted   int    `json:"inserted"`
	Duplicates int    `json:"duplicates"`
	Skipped    int    `json:"skipped"`
}

// Summary reports an entire import run.
type Summary struct {
	RunID    uuid.UUID      `json:"run_id"`
	Sheets   []SheetSummary `json:"sheets"`
	Messages []string       `json:"messages"`
}

// importState carries cross-sheet context: the mapping from spreadsheet
// record identifiers to assigned database keys, per model.
type importState struct {
	runID    uuid.UUID
	mapping  map[string]map[string]int64
	summary  *Summary
	messages []string
}

func newImportState() *importState {
	s := &importState{
		runID:   uuid.New(),
		mapping: map[string]map[string]int64{},
	}
	for _, model := range []string{"fulltext", "descriptive", "host", "pathogen", "sequence"} {
		s.mapping[model] = map[string]int64{}
	}
	s.summary = &Summary{RunID: s.runID}
	return s
}

func (s *importState) logf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	s.messages = append(s.messages, msg)
	log.Printf("[IMPORT] run=%s %s", s.runID, msg)
}

// mapID records an original-to-assigned identifier mapping, rejecting
// conflicting remappings of the same original identifier.
func (s *importState) mapID(model, originalID string, assigned int64) error {
	if originalID == "" {
		return nil
	}
	if existing, ok := s.mapping[model][originalID]; ok {
		if existing != assigned {
			return fmt.Errorf("duplicate %s id %q with conflicting mappings: %d and %d", model, originalID, existing, assigned)
		}
		return nil
	}
	s.mapping[model][originalID] = assigned
	return nil
}

func (s *importState) lookupID(model, raw string) (int64, bool) {
	id, ok := s.mapping[model][strings.TrimSpace(raw)]
	return id, ok
}

// sheet is one parsed table: a header row plus data rows.
type sheet struct {
	name   string
	header []string
	rows   [][]string
}

// Import parses the uploaded file and loads every sheet in workbook order.
// Sheet order matters: referenced records must be imported before the sheets
// that reference them.
func (s *Service) Import(ctx context.Context, req Request) (Summary, error) {
	state := newImportState()

	if req.Data == nil {
		return *state.summary, errors.New("data reader is required")
	}
	payload, err := io.ReadAll(req.Data)
	if err != nil {
		return *state.summary, fmt.Errorf("read upload: %w", err)
	}
	if len(payload) == 0 {
		return *state.summary, errors.New("file is empty")
	}

	sheets, err := parseSheets(req, payload)
	if err != nil {
		return *state.summary, err
	}

	for _, sh := range sheets {
		model, ok := modelForSheet(sh.name)
		if !ok {
			return *state.summary, fmt.Errorf("unknown sheet %q", sh.name)
		}
		state.logf("processing sheet %s (%d rows)", sh.name, len(sh.rows))

		var importErr error
		switch model {
		case "fulltext":
			importErr = s.importFullTexts(ctx, state, sh)
		case "descriptive":
			importErr = s.importDescriptives(ctx, state, sh)
		case "host":
			importErr = s.importHosts(ctx, state, sh)
		case "pathogen":
			importErr = s.importPathogens(ctx, state, sh)
		case "sequence":
			importErr = s.importSequences(ctx, state, sh)
		}
		if importErr != nil {
			return *state.summary, fmt.Errorf("sheet %s: %w", sh.name, importErr)
		}
	}

	state.summary.Messages = state.messages
	return *state.summary, nil
}

func parseSheets(req Request, payload []byte) ([]sheet, error) {
	ext := strings.ToLower(filepath.Ext(req.FileName))
	switch ext {
	case ".xlsx":
		return parseWorkbook(payload)
	case ".csv":
		name := strings.TrimSpace(req.Sheet)
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(req.FileName), filepath.Ext(req.FileName))
		}
		parsed, err := parseCSV(name, payload)
		if err != nil {
			return nil, err
		}
		return []sheet{parsed}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

func parseWorkbook(payload []byte) ([]sheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	names := f.GetSheetList()
	if len(names) == 0 {
		return nil, errors.New("workbook has no sheets")
	}

	sheets := make([]sheet, 0, len(names))
	for _, name := range names {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("read sheet %s: %w", name, err)
		}
		sheets = append(sheets, buildSheet(name, rows))
	}
	return sheets, nil
}

func parseCSV(name string, payload []byte) (sheet, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return sheet{}, fmt.Errorf("read csv: %w", err)
	}
	return buildSheet(name, records), nil
}

func buildSheet(name string, records [][]string) sheet {
	sh := sheet{name: name}
	for _, row := range records {
		empty := true
		for _, cell := range row {
			if strings.TrimSpace(cell) != "" {
				empty = false
				break
			}
		}
		if empty {
			continue
		}
		if sh.header == nil {
			sh.header = row
			continue
		}
		sh.rows = append(sh.rows, row)
	}
	return sh
}

// cellReader gives field-name access into raw rows via the alias mapping.
type cellReader struct {
	positions map[string]int
}

func newCellReader(model string, header []string) cellReader {
	return cellReader{positions: mapColumns(model, header)}
}

func (c cellReader) get(row []string, field string) string {
	pos, ok := c.positions[field]
	if !ok || pos >= len(row) {
		return ""
	}
	return row[pos]
}

func (s *Service) importFullTexts(ctx context.Context, state *importState, sh sheet) error {
	cells := newCellReader("fulltext", sh.header)
	summary := SheetSummary{Sheet: sh.name, Model: "fulltext", Rows: len(sh.rows)}

	existing, err := s.records.FullTexts(ctx)
	if err != nil {
		return err
	}
	keyToID := make(map[string]int64, len(existing))
	for _, ft := range existing {
		key := rowKey(ft.Title, textOrEmpty(ft.Author), intKeyPart(ft.PublicationYear))
		keyToID[key] = ft.ID
	}

	var pending []domain.FullText
	var pendingIDs []string
	batchKeys := map[string]int{}

	for _, row := range sh.rows {
		originalID := strings.TrimSpace(cells.get(row, "id"))
		title := normalizeText(cells.get(row, "title"))
		if title == nil {
			state.logf("skipped fulltext row %q: missing title", originalID)
			summary.Skipped++
			continue
		}

		record := domain.FullText{
			OriginalID:               normalizeText(originalID),
			Extractor:                normalizeText(cells.get(row, "extractor")),
			Community:                normalizeText(cells.get(row, "community")),
			SpatioTemporalExtraction: normalizeText(cells.get(row, "spatio_temporal_extraction")),
			Decision:                 normalizeText(cells.get(row, "decision")),
			Reason:                   normalizeText(cells.get(row, "reason")),
			Key:                      normalizeText(cells.get(row, "key")),
			PublicationYear:          cleanInt(cells.get(row, "publication_year")),
			Author:                   normalizeText(cells.get(row, "author")),
			Title:                    *title,
			Processed:                cleanBool(cells.get(row, "processed")),
		}

		key := rowKey(record.Title, textOrEmpty(record.Author), intKeyPart(record.PublicationYear))
		if existingID, ok := keyToID[key]; ok {
			if err := state.mapID("fulltext", originalID, existingID); err != nil {
				return err
			}
			summary.Duplicates++
			continue
		}
		if _, ok := batchKeys[key]; ok {
			summary.Duplicates++
			continue
		}

		batchKeys[key] = len(pending)
		pending = append(pending, record)
		pendingIDs = append(pendingIDs, originalID)
	}

	ids, err := s.records.InsertFullTexts(ctx, pending)
	if err != nil {
		return err
	}
	for i, id := range ids {
		if err := state.mapID("fulltext", pendingIDs[i], id); err != nil {
			return err
		}
	}
	summary.Inserted = len(ids)
	state.logf("inserted %d fulltext records", len(ids))
	state.summary.Sheets = append(state.summary.Sheets, summary)
	return nil
}

func (s *Service) importDescriptives(ctx context.Context, state *importState, sh sheet) error {
	cells := newCellReader("descriptive", sh.header)
	summary := SheetSummary{Sheet: sh.name, Model: "descriptive", Rows: len(sh.rows)}

	fullTexts, err := s.records.FullTexts(ctx)
	if err != nil {
		return err
	}
	fullTextIDs := make(map[int64]bool, len(fullTexts))
	for _, ft := range fullTexts {
		fullTextIDs[ft.ID] = true
	}

	existing, err := s.records.Descriptives(ctx)
	if err != nil {
		return err
	}
	keyToID := make(map[string]int64, len(existing))
	for _, d := range existing {
		key := rowKey(textOrEmpty(d.DatasetName), textOrEmpty(d.DataAccess))
		keyToID[key] = d.ID
	}

	var pending []domain.Descriptive
	var pendingIDs []string
	batchKeys := map[string]bool{}

	for _, row := range sh.rows {
		originalID := strings.TrimSpace(cells.get(row, "id"))

		// Mapped imports take priority; a raw numeric value may reference a
		// record from a previous run directly.
		ftRaw := cells.get(row, "full_text")
		ftID, ok := state.lookupID("fulltext", ftRaw)
		if !ok {
			if n := cleanInt(ftRaw); n != nil && fullTextIDs[*n] {
				ftID = *n
				ok = true
			}
		}
		if !ok {
			state.logf("skipped descriptive row %q: full text %q not found", originalID, strings.TrimSpace(ftRaw))
			summary.Skipped++
			continue
		}

		record := domain.Descriptive{
			OriginalID:        normalizeText(originalID),
			FullTextID:        &ftID,
			DatasetName:       normalizeText(cells.get(row, "dataset_name")),
			SamplingEffort:    normalizeText(cells.get(row, "sampling_effort")),
			DataAccess:        normalizeText(cells.get(row, "data_access")),
			DataResolution:    normalizeText(cells.get(row, "data_resolution")),
			LinkedManuscripts: normalizeText(cells.get(row, "linked_manuscripts")),
			Notes:             normalizeText(cells.get(row, "notes")),
		}

		key := rowKey(textOrEmpty(record.DatasetName), textOrEmpty(record.DataAccess))
		if existingID, ok := keyToID[key]; ok {
			if err := state.mapID("descriptive", originalID, existingID); err != nil {
				return err
			}
			summary.Duplicates++
			continue
		}
		if batchKeys[key] {
			summary.Duplicates++
			continue
		}

		batchKeys[key] = true
		pending = append(pending, record)
		pendingIDs = append(pendingIDs, originalID)
	}

	ids, err := s.records.InsertDescriptives(ctx, pending)
	if err != nil {
		return err
	}
	for i, id := range ids {
		if err := state.mapID("descriptive", pendingIDs[i], id); err != nil {
			return err
		}
	}
	summary.Inserted = len(ids)
	state.logf("inserted %d descriptive records", len(ids))
	state.summary.Sheets = append(state.summary.Sheets, summary)
	return nil
}

func (s *Service) importHosts(ctx context.Context, state *importState, sh sheet) error {
	cells := newCellReader("host", sh.header)
	summary := SheetSummary{Sheet: sh.name, Model: "host", Rows: len(sh.rows)}

	existing, err := s.records.Hosts(ctx)
	if err != nil {
		return err
	}
	keyToID := make(map[string]int64, len(existing))
	for _, h := range existing {
		keyToID[hostKey(h)] = h.ID
	}

	var pending []domain.Host
	var pendingIDs []string

	for _, row := range sh.rows {
		originalID := strings.TrimSpace(cells.get(row, "id"))

		count := cleanInt(cells.get(row, "individual_count"))
		if count == nil {
			state.logf("skipped host row %q: missing individual_count", originalID)
			summary.Skipped++
			continue
		}

		studyID, ok := state.lookupID("descriptive", cells.get(row, "study"))
		if !ok {
			state.logf("skipped host row %q: study %q not found", originalID, strings.TrimSpace(cells.get(row, "study")))
			summary.Skipped++
			continue
		}

		var scientificName *string
		if resolved := s.resolver.Resolve(ctx, cells.get(row, "scientific_name")); resolved != "" {
			scientificName = &resolved
		}

		record := domain.Host{
			OriginalID:           normalizeText(originalID),
			StudyID:              &studyID,
			ScientificName:       scientificName,
			EventDate:            normalizeText(cells.get(row, "event_date")),
			Locality:             normalizeText(cells.get(row, "locality")),
			Country:              normalizeText(cells.get(row, "country")),
			VerbatimLocality:     normalizeText(cells.get(row, "verbatim_locality")),
			CoordinateResolution: normalizeText(cells.get(row, "coordinate_resolution")),
			LocationLatitude:     cleanFloat(cells.get(row, "location_latitude")),
			LocationLongitude:    cleanFloat(cells.get(row, "location_longitude")),
			IndividualCount:      *count,
			TrapEffort:           cleanInt(cells.get(row, "trap_effort")),
			TrapEffortResolution: normalizeText(cells.get(row, "trap_effort_resolution")),
		}

		if existingID, ok := keyToID[hostKey(record)]; ok {
			if err := state.mapID("host", originalID, existingID); err != nil {
				return err
			}
			summary.Duplicates++
			continue
		}

		pending = append(pending, record)
		pendingIDs = append(pendingIDs, originalID)
	}

	ids, err := s.records.InsertHosts(ctx, pending)
	if err != nil {
		return err
	}
	for i, id := range ids {
		if err := state.mapID("host", pendingIDs[i], id); err != nil {
			return err
		}
	}
	summary.Inserted = len(ids)
	state.logf("inserted %d host records", len(ids))
	state.summary.Sheets = append(state.summary.Sheets, summary)
	return nil
}

func hostKey(h domain.Host) string {
	return rowKey(
		textOrEmpty(h.ScientificName),
		textOrEmpty(h.EventDate),
		textOrEmpty(h.Locality),
		textOrEmpty(h.Country),
		textOrEmpty(h.VerbatimLocality),
		textOrEmpty(h.CoordinateResolution),
		floatKeyPart(h.LocationLatitude),
		floatKeyPart(h.LocationLongitude),
		intKeyPart(&h.IndividualCount),
	)
}

func (s *Service) importPathogens(ctx context.Context, state *importState, sh sheet) error {
	cells := newCellReader("pathogen", sh.header)
	summary := SheetSummary{Sheet: sh.name, Model: "pathogen", Rows: len(sh.rows)}

	hosts, err := s.records.Hosts(ctx)
	if err != nil {
		return err
	}
	hostByID := make(map[int64]domain.Host, len(hosts))
	for _, h := range hosts {
		hostByID[h.ID] = h
	}

	existing, err := s.records.Pathogens(ctx)
	if err != nil {
		return err
	}
	keyToID := make(map[string]int64, len(existing))
	for _, p := range existing {
		hostName := ""
		if p.HostID != nil {
			if h, ok := hostByID[*p.HostID]; ok {
				hostName = textOrEmpty(h.ScientificName)
			}
		}
		keyToID[pathogenKey(p, hostName)] = p.ID
	}

	var pending []domain.Pathogen
	var pendingIDs []string

	for _, row := range sh.rows {
		originalID := strings.TrimSpace(cells.get(row, "id"))

		hostID, ok := state.lookupID("host", cells.get(row, "host"))
		if !ok {
			state.logf("skipped pathogen row %q: host %q not found", originalID, strings.TrimSpace(cells.get(row, "host")))
			summary.Skipped++
			continue
		}
		hostName := ""
		if h, found := hostByID[hostID]; found {
			hostName = textOrEmpty(h.ScientificName)
		}

		var scientificName *string
		if resolved := s.resolver.Resolve(ctx, cells.get(row, "scientific_name")); resolved != "" {
			scientificName = &resolved
		}

		record := domain.Pathogen{
			OriginalID:         normalizeText(originalID),
			HostID:             &hostID,
			Family:             normalizeText(cells.get(row, "family")),
			ScientificName:     scientificName,
			Assay:              normalizeText(cells.get(row, "assay")),
			TestResult:         normalizeText(cells.get(row, "test_result")),
			AssayDate:          cleanDate(cells.get(row, "assay_date")),
			Tested:             cleanInt(cells.get(row, "tested")),
			Positive:           cleanInt(cells.get(row, "positive")),
			Negative:           cleanInt(cells.get(row, "negative")),
			NumberInconclusive: cleanInt(cells.get(row, "number_inconclusive")),
			Note:               normalizeText(cells.get(row, "note")),
		}

		if existingID, ok := keyToID[pathogenKey(record, hostName)]; ok {
			if err := state.mapID("pathogen", originalID, existingID); err != nil {
				return err
			}
			summary.Duplicates++
			continue
		}

		pending = append(pending, record)
		pendingIDs = append(pendingIDs, originalID)
	}

	ids, err := s.records.InsertPathogens(ctx, pending)
	if err != nil {
		return err
	}
	for i, id := range ids {
		if err := state.mapID("pathogen", pendingIDs[i], id); err != nil {
			return err
		}
	}
	summary.Inserted = len(ids)
	state.logf("inserted %d pathogen records", len(ids))
	state.summary.Sheets = append(state.summary.Sheets, summary)
	return nil
}

func pathogenKey(p domain.Pathogen, hostScientificName string) string {
	return rowKey(
		textOrEmpty(p.Family),
		textOrEmpty(p.ScientificName),
		textOrEmpty(p.Assay),
		intKeyPart(p.Tested),
		intKeyPart(p.Positive),
		intKeyPart(p.Negative),
		intKeyPart(p.NumberInconclusive),
		hostScientificName,
	)
}

func (s *Service) importSequences(ctx context.Context, state *importState, sh sheet) error {
	cells := newCellReader("sequence", sh.header)
	summary := SheetSummary{Sheet: sh.name, Model: "sequence", Rows: len(sh.rows)}

	existing, err := s.records.Sequences(ctx)
	if err != nil {
		return err
	}
	keyToID := make(map[string]int64, len(existing))
	for _, seq := range existing {
		keyToID[rowKey(textOrEmpty(seq.AccessionNumber))] = seq.ID
	}

	var pending []domain.Sequence
	var pendingIDs []string

	for _, row := range sh.rows {
		originalID := strings.TrimSpace(cells.get(row, "id"))

		accession := normalizeText(cells.get(row, "accession_number"))
		if accession == nil {
			state.logf("skipped sequence row %q: missing accession_number", originalID)
			summary.Skipped++
			continue
		}

		pathogenID, hostID, studyID, skipReason := s.resolveSequenceRefs(state, cells, row)
		if skipReason != "" {
			state.logf("skipped sequence row %q: %s", originalID, skipReason)
			summary.Skipped++
			continue
		}

		record := domain.Sequence{
			OriginalID:      normalizeText(originalID),
			ScientificName:  normalizeText(cells.get(row, "scientific_name")),
			AssociatedTaxa:  normalizeText(cells.get(row, "associated_taxa")),
			SequenceType:    normalizeText(cells.get(row, "sequence_type")),
			PathogenID:      pathogenID,
			HostID:          hostID,
			StudyID:         studyID,
			AccessionNumber: accession,
			Method:          normalizeText(cells.get(row, "method")),
			Note:            normalizeText(cells.get(row, "note")),
			DateSampled:     cleanDate(cells.get(row, "date_sampled")),
			SampleLocation:  normalizeText(cells.get(row, "sample_location")),
		}

		key := rowKey(*accession)
		if existingID, ok := keyToID[key]; ok {
			if err := state.mapID("sequence", originalID, existingID); err != nil {
				return err
			}
			summary.Duplicates++
			continue
		}

		pending = append(pending, record)
		pendingIDs = append(pendingIDs, originalID)
	}

	ids, err := s.records.InsertSequences(ctx, pending)
	if err != nil {
		return err
	}
	for i, id := range ids {
		if err := state.mapID("sequence", pendingIDs[i], id); err != nil {
			return err
		}
	}
	summary.Inserted = len(ids)
	state.logf("inserted %d sequence records", len(ids))
	state.summary.Sheets = append(state.summary.Sheets, summary)
	return nil
}

// resolveSequenceRefs picks at most one reference for a sequence row.
// Human-associated sequences attach to the study and require it. Pathogen
// typed sequences require their pathogen. Host typed sequences prefer their
// host but only warn when it is missing. Anything else needs at least one
// resolvable reference.
func (s *Service) resolveSequenceRefs(state *importState, cells cellReader, row []string) (pathogenID, hostID, studyID *int64, skipReason string) {
	sequenceType := strings.ToLower(strings.TrimSpace(cells.get(row, "sequence_type")))
	associatedTaxa := strings.ToLower(strings.TrimSpace(cells.get(row, "associated_taxa")))

	lookup := func(model, field string) *int64 {
		if id, ok := state.lookupID(model, cells.get(row, field)); ok {
			return &id
		}
		return nil
	}
	candidatePathogen := lookup("pathogen", "pathogen")
	candidateHost := lookup("host", "host")
	candidateStudy := lookup("descriptive", "study")

	if associatedTaxa == "homo sapiens" {
		if candidateStudy == nil {
			return nil, nil, nil, fmt.Sprintf("associated taxa is Homo sapiens but study %q not found", strings.TrimSpace(cells.get(row, "study")))
		}
		return nil, nil, candidateStudy, ""
	}

	switch sequenceType {
	case "pathogen":
		if candidatePathogen == nil {
			return nil, nil, nil, fmt.Sprintf("pathogen %q not found", strings.TrimSpace(cells.get(row, "pathogen")))
		}
		return candidatePathogen, nil, nil, ""
	case "host":
		if candidateHost == nil {
			state.logf("warning: host %q not found for host sequence", strings.TrimSpace(cells.get(row, "host")))
		}
		return nil, candidateHost, nil, ""
	}

	if candidatePathogen == nil && candidateHost == nil && candidateStudy == nil {
		return nil, nil, nil, "no host, pathogen, or study reference found"
	}
	// Untyped rows keep whichever single reference resolved, preferring the
	// most specific one.
	if candidatePathogen != nil {
		return candidatePathogen, nil, nil, ""
	}
	if candidateHost != nil {
		return nil, candidateHost, nil, ""
	}
	return nil, nil, candidateStudy, ""
}

package ingestion

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/virodata/poxbase/internal/domain"
	"github.com/virodata/poxbase/internal/gbif"
)

// stubRecordRepository keeps records in memory and assigns sequential ids.
type stubRecordRepository struct {
	fullTexts    []domain.FullText
	descriptives []domain.Descriptive
	hosts        []domain.Host
	pathogens    []domain.Pathogen
	sequences    []domain.Sequence
	nextID       int64
}

func newStubRepo() *stubRecordRepository {
	return &stubRecordRepository{nextID: 1}
}

func (r *stubRecordRepository) assign(n int) []int64 {
	ids := make([]int64, n)
	for i := range ids {
		ids[i] = r.nextID
		r.nextID++
	}
	return ids
}

func (r *stubRecordRepository) FullTexts(context.Context) ([]domain.FullText, error) {
	return r.fullTexts, nil
}

func (r *stubRecordRepository) InsertFullTexts(_ context.Context, rows []domain.FullText) ([]int64, error) {
	ids := r.assign(len(rows))
	for i, row := range rows {
		row.ID = ids[i]
		r.fullTexts = append(r.fullTexts, row)
	}
	return ids, nil
}

func (r *stubRecordRepository) Descriptives(context.Context) ([]domain.Descriptive, error) {
	return r.descriptives, nil
}

func (r *stubRecordRepository) InsertDescriptives(_ context.Context, rows []domain.Descriptive) ([]int64, error) {
	ids := r.assign(len(rows))
	for i, row := range rows {
		row.ID = ids[i]
		r.descriptives = append(r.descriptives, row)
	}
	return ids, nil
}

func (r *stubRecordRepository) Hosts(context.Context) ([]domain.Host, error) {
	return r.hosts, nil
}

func (r *stubRecordRepository) InsertHosts(_ context.Context, rows []domain.Host) ([]int64, error) {
	ids := r.assign(len(rows))
	for i, row := range rows {
		row.ID = ids[i]
		r.hosts = append(r.hosts, row)
	}
	return ids, nil
}

func (r *stubRecordRepository) Pathogens(context.Context) ([]domain.Pathogen, error) {
	return r.pathogens, nil
}

func (r *stubRecordRepository) InsertPathogens(_ context.Context, rows []domain.Pathogen) ([]int64, error) {
	ids := r.assign(len(rows))
	for i, row := range rows {
		row.ID = ids[i]
		r.pathogens = append(r.pathogens, row)
	}
	return ids, nil
}

func (r *stubRecordRepository) Sequences(context.Context) ([]domain.Sequence, error) {
	return r.sequences, nil
}

func (r *stubRecordRepository) InsertSequences(_ context.Context, rows []domain.Sequence) ([]int64, error) {
	ids := r.assign(len(rows))
	for i, row := range rows {
		row.ID = ids[i]
		r.sequences = append(r.sequences, row)
	}
	return ids, nil
}

func (r *stubRecordRepository) CountByModel(context.Context) (map[string]int64, error) {
	return map[string]int64{}, nil
}

func (r *stubRecordRepository) HostPoints(context.Context) ([]domain.HostPoint, error) {
	return nil, nil
}

func buildWorkbook(t *testing.T, sheets map[string][][]string, order []string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	for i, name := range order {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				t.Fatalf("rename sheet: %v", err)
			}
		} else {
			if _, err := f.NewSheet(name); err != nil {
				t.Fatalf("new sheet: %v", err)
			}
		}
		for rowIdx, row := range sheets[name] {
			cell, err := excelize.CoordinatesToCellName(1, rowIdx+1)
			if err != nil {
				t.Fatalf("cell name: %v", err)
			}
			values := make([]any, len(row))
			for j, v := range row {
				values[j] = v
			}
			if err := f.SetSheetRow(name, cell, &values); err != nil {
				t.Fatalf("set row: %v", err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

func TestImportWorkbookLinksSheets(t *testing.T) {
	repo := newStubRepo()
	service := NewService(repo, gbif.NoopResolver{})

	order := []string{"Inclusion Full Text", "descriptive", "Rodents", "pathogen", "sequences"}
	payload := buildWorkbook(t, map[string][][]string{
		"Inclusion Full Text": {
			{"full_text_id", "title", "author", "publication year", "processed"},
			{"ft_1", "Rodent virus surveys", "Smith", "2019", "yes"},
			{"ft_2", "", "Jones", "2020", "no"},
		},
		"descriptive": {
			{"study_id", "full_text_id", "datasetName", "data_access"},
			{"s_1", "ft_1", "Survey A", "open"},
			{"s_2", "ft_9", "Survey B", "closed"},
		},
		"Rodents": {
			{"rodent_record_id", "study_id", "scientificName", "individualCount", "decimalLatitude", "decimalLongitude", "country"},
			{"r_1", "s_1", "Mastomys natalensis", "4", "9.1", "7.2", "Nigeria"},
			{"r_2", "s_1", "Rattus rattus", "", "", "", "Ghana"},
		},
		"pathogen": {
			{"pathogen_record_id", "associated_rodent_record_id", "scientificName", "tested", "positive"},
			{"p_1", "r_1", "Monkeypox virus", "4", "1"},
			{"p_2", "r_2", "Cowpox virus", "2", "0"},
		},
		"sequences": {
			{"sequence_record_id", "sequenceType", "associatedTaxa", "associated_pathogen_record_id", "associated_rodent_record_id", "study_id", "accession_number"},
			{"q_1", "pathogen", "", "p_1", "", "", "MN001"},
			{"q_2", "pathogen", "", "p_9", "", "", "MN002"},
			{"q_3", "", "Homo sapiens", "", "", "s_1", "MN003"},
			{"q_4", "host", "", "", "r_1", "", ""},
		},
	}, order)

	summary, err := service.Import(context.Background(), Request{
		FileName: "upload.xlsx",
		Data:     bytes.NewReader(payload),
	})
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if summary.RunID.String() == "" {
		t.Fatal("expected run id")
	}
	if len(summary.Sheets) != 5 {
		t.Fatalf("expected 5 sheet summaries, got %d", len(summary.Sheets))
	}

	// Full texts: one inserted, one skipped for missing title.
	if len(repo.fullTexts) != 1 || repo.fullTexts[0].Title != "Rodent virus surveys" {
		t.Fatalf("unexpected full texts: %+v", repo.fullTexts)
	}
	ftID := repo.fullTexts[0].ID

	// Descriptives: s_1 links ft_1, s_2 is skipped (unknown full text).
	if len(repo.descriptives) != 1 {
		t.Fatalf("expected 1 descriptive, got %d", len(repo.descriptives))
	}
	study := repo.descriptives[0]
	if study.FullTextID == nil || *study.FullTextID != ftID {
		t.Fatalf("descriptive not linked to full text: %+v", study)
	}

	// Hosts: r_1 inserted and linked, r_2 skipped for missing count.
	if len(repo.hosts) != 1 {
		t.Fatalf("expected 1 host, got %d", len(repo.hosts))
	}
	host := repo.hosts[0]
	if host.StudyID == nil || *host.StudyID != study.ID {
		t.Fatalf("host not linked to study: %+v", host)
	}
	if host.IndividualCount != 4 {
		t.Fatalf("unexpected individual count %d", host.IndividualCount)
	}

	// Pathogens: p_1 linked to r_1, p_2 skipped (its host was skipped).
	if len(repo.pathogens) != 1 {
		t.Fatalf("expected 1 pathogen, got %d", len(repo.pathogens))
	}
	pathogen := repo.pathogens[0]
	if pathogen.HostID == nil || *pathogen.HostID != host.ID {
		t.Fatalf("pathogen not linked to host: %+v", pathogen)
	}

	// Sequences: q_1 keeps its pathogen, q_3 attaches to the study, q_2 is
	// skipped for its missing pathogen and q_4 for its missing accession.
	if len(repo.sequences) != 2 {
		t.Fatalf("expected 2 sequences, got %d", len(repo.sequences))
	}
	bySuffix := map[string]domain.Sequence{}
	for _, seq := range repo.sequences {
		bySuffix[*seq.AccessionNumber] = seq
	}
	q1 := bySuffix["MN001"]
	if q1.PathogenID == nil || *q1.PathogenID != pathogen.ID || q1.HostID != nil || q1.StudyID != nil {
		t.Fatalf("unexpected q_1 links: %+v", q1)
	}
	q3 := bySuffix["MN003"]
	if q3.StudyID == nil || *q3.StudyID != study.ID || q3.HostID != nil || q3.PathogenID != nil {
		t.Fatalf("unexpected q_3 links: %+v", q3)
	}

	skipped := 0
	for _, sheet := range summary.Sheets {
		skipped += sheet.Skipped
	}
	if skipped != 6 {
		t.Fatalf("expected 6 skipped rows in total, got %d", skipped)
	}
}

func TestImportDeduplicatesAgainstExisting(t *testing.T) {
	repo := newStubRepo()
	service := NewService(repo, gbif.NoopResolver{})

	csv := "full_text_id,title,author,publication year\nft_1,Rodent virus surveys,Smith,2019\n"
	req := Request{FileName: "fulltext.csv", Sheet: "inclusion full text", Data: strings.NewReader(csv)}

	first, err := service.Import(context.Background(), req)
	if err != nil {
		t.Fatalf("first import failed: %v", err)
	}
	if first.Sheets[0].Inserted != 1 {
		t.Fatalf("expected 1 inserted, got %+v", first.Sheets[0])
	}

	req.Data = strings.NewReader(csv)
	second, err := service.Import(context.Background(), req)
	if err != nil {
		t.Fatalf("second import failed: %v", err)
	}
	if second.Sheets[0].Inserted != 0 || second.Sheets[0].Duplicates != 1 {
		t.Fatalf("expected duplicate mapping on second run, got %+v", second.Sheets[0])
	}
	if len(repo.fullTexts) != 1 {
		t.Fatalf("duplicate row was inserted: %+v", repo.fullTexts)
	}
}

func TestImportWithinBatchDuplicates(t *testing.T) {
	repo := newStubRepo()
	service := NewService(repo, gbif.NoopResolver{})

	csv := "full_text_id,title,author,publication year\n" +
		"ft_1,Same study,Smith,2019\n" +
		"ft_2,Same study,Smith,2019\n"
	summary, err := service.Import(context.Background(), Request{
		FileName: "fulltext.csv",
		Sheet:    "full_text",
		Data:     strings.NewReader(csv),
	})
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if summary.Sheets[0].Inserted != 1 || summary.Sheets[0].Duplicates != 1 {
		t.Fatalf("unexpected summary: %+v", summary.Sheets[0])
	}
}

func TestImportUnknownSheetFails(t *testing.T) {
	repo := newStubRepo()
	service := NewService(repo, gbif.NoopResolver{})

	payload := buildWorkbook(t, map[string][][]string{
		"metadata": {{"a", "b"}, {"1", "2"}},
	}, []string{"metadata"})

	_, err := service.Import(context.Background(), Request{
		FileName: "upload.xlsx",
		Data:     bytes.NewReader(payload),
	})
	if err == nil || !strings.Contains(err.Error(), "unknown sheet") {
		t.Fatalf("expected unknown sheet error, got %v", err)
	}
}

func TestImportUnsupportedFormat(t *testing.T) {
	repo := newStubRepo()
	service := NewService(repo, gbif.NoopResolver{})

	_, err := service.Import(context.Background(), Request{
		FileName: "upload.pdf",
		Data:     strings.NewReader("junk"),
	})
	if err == nil || !strings.Contains(err.Error(), "unsupported file format") {
		t.Fatalf("expected unsupported format error, got %v", err)
	}
}

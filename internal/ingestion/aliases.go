package ingestion

import "strings"

// sheetAliases maps workbook sheet names (lowercased, trimmed) to registered
// model names. Sheet names not listed here resolve directly when they match a
// model name.
var sheetAliases = map[string]string{
	"inclusion_full_text": "fulltext",
	"inclusion full text": "fulltext",
	"full_text":           "fulltext",
	"rodent":              "host",
	"rodents":             "host",
	"sequences":           "sequence",
}

// modelForSheet resolves a sheet name to the model it loads into.
func modelForSheet(sheet string) (string, bool) {
	normalized := strings.ToLower(strings.TrimSpace(sheet))
	if alias, ok := sheetAliases[normalized]; ok {
		normalized = alias
	}
	switch normalized {
	case "fulltext", "descriptive", "host", "pathogen", "sequence":
		return normalized, true
	}
	return "", false
}

// columnAliases maps each model's canonical field names to the spreadsheet
// headings they may appear under. Matching is case-insensitive on trimmed
// headings; the canonical name itself always matches.
var columnAliases = map[string]map[string][]string{
	"fulltext": {
		"id":                         {"full_text_id"},
		"extractor":                  {},
		"community":                  {},
		"spatio_temporal_extraction": {"spatio-temporal extraction"},
		"decision":                   {},
		"reason":                     {},
		"key":                        {},
		"publication_year":           {"publication year"},
		"author":                     {},
		"title":                      {},
		"processed":                  {},
	},
	"descriptive": {
		"id":                 {"study_id"},
		"full_text":          {"full_text_id"},
		"dataset_name":       {"datasetname"},
		"sampling_effort":    {},
		"data_access":        {},
		"data_resolution":    {},
		"linked_manuscripts": {},
		"notes":              {},
	},
	"host": {
		"id":                     {"rodent_record_id", "host_record_id"},
		"study":                  {"study_id"},
		"scientific_name":        {"scientificname"},
		"event_date":             {"eventdate"},
		"locality":               {},
		"country":                {},
		"verbatim_locality":      {"verbatimlocality"},
		"coordinate_resolution":  {},
		"location_latitude":      {"decimallatitude"},
		"location_longitude":     {"decimallongitude"},
		"individual_count":       {"individualcount"},
		"trap_effort":            {"trapeffort"},
		"trap_effort_resolution": {"trapeffortresolution"},
	},
	"pathogen": {
		"id":                  {"pathogen_record_id"},
		"host":                {"associated_rodent_record_id", "associated_host_record_id"},
		"family":              {},
		"scientific_name":     {"scientificname"},
		"assay":               {},
		"test_result":         {"testresult"},
		"assay_date":          {"assaydate"},
		"tested":              {},
		"positive":            {},
		"negative":            {},
		"number_inconclusive": {},
		"note":                {},
	},
	"sequence": {
		"id":               {"sequence_record_id"},
		"sequence_type":    {"sequencetype"},
		"associated_taxa":  {"associatedtaxa"},
		"pathogen":         {"associated_pathogen_record_id"},
		"host":             {"associated_rodent_record_id", "associated_host_record_id"},
		"study":            {"study_id"},
		"accession_number": {},
		"method":           {},
		"note":             {},
		"date_sampled":     {},
		"sample_location":  {"samplelocation"},
		"scientific_name":  {"scientificname"},
	},
}

// mapColumns builds a canonical-field to column-index mapping for one sheet's
// header row. The first matching alias wins per field.
func mapColumns(model string, header []string) map[string]int {
	aliases := columnAliases[model]
	index := make(map[string]int, len(header))
	for i, heading := range header {
		normalized := strings.ToLower(strings.TrimSpace(heading))
		if normalized == "" {
			continue
		}
		if _, seen := index[normalized]; !seen {
			index[normalized] = i
		}
	}

	positions := make(map[string]int, len(aliases))
	for field, options := range aliases {
		if pos, ok := index[field]; ok {
			positions[field] = pos
			continue
		}
		for _, option := range options {
			if pos, ok := index[option]; ok {
				positions[field] = pos
				break
			}
		}
	}
	return positions
}

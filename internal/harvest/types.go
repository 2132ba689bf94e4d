// Package harvest defines core types shared across the pipeline subsystems.
package harvest

import (
	"encoding/json"
	"net/http"
	"time"
)

// Status discriminates the two output-line variants.
type Status string

// Output record status values.
const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Author is one entry of the document author list.
type Author struct {
	Name        string `json:"name"`
	Affiliation string `json:"affiliation,omitempty"`
}

// Metadata holds the bibliographic fields pulled from the document head.
// Absent fields stay empty; absence is tracked in Record.MissingFields.
type Metadata struct {
	Title           string   `json:"title,omitempty"`
	Authors         []Author `json:"authors"`
	Journal         string   `json:"journal,omitempty"`
	Publisher       string   `json:"publisher,omitempty"`
	DOI             string   `json:"doi,omitempty"`
	PMID            string   `json:"pmid,omitempty"`
	PublicationDate string   `json:"publication_date,omitempty"`
	Volume          string   `json:"volume,omitempty"`
	Issue           string   `json:"issue,omitempty"`
	Pages           string   `json:"pages,omitempty"`
}

// Paragraph is one paragraph of text with its whitespace-token word count.
type Paragraph struct {
	Text      string `json:"text"`
	WordCount int    `json:"word_count"`
}

// Section is one top-level body section.
type Section struct {
	Heading        string      `json:"heading"`
	Paragraphs     []Paragraph `json:"paragraphs"`
	ParagraphCount int         `json:"paragraph_count"`
	TotalWordCount int         `json:"total_word_count"`
}

// Reference is one bibliography entry with its 1-based sequential id.
type Reference struct {
	ID           string `json:"id"`
	CitationText string `json:"citation_text"`
}

// FigureTable kinds.
const (
	KindFigure = "figure"
	KindTable  = "table"
)

// FigureTable is a figure or table caption entry.
type FigureTable struct {
	Type    string `json:"type"`
	ID      string `json:"id"`
	Caption string `json:"caption"`
	URL     string `json:"url,omitempty"`
}

// Metrics aggregates counts over the structured content. TotalWordCount
// covers body sections only and always equals the sum of the per-section
// totals.
type Metrics struct {
	TotalWordCount         int `json:"total_word_count"`
	SectionCount           int `json:"section_count"`
	TotalParagraphCount    int `json:"total_paragraph_count"`
	AbstractParagraphCount int `json:"abstract_paragraph_count"`
	ReferenceCount         int `json:"reference_count"`
	FigureCount            int `json:"figure_count"`
	TableCount             int `json:"table_count"`
}

// Paper is the extractor output: everything derived from one fetched body.
// It carries no identity or provenance; the worker wraps it into a Record.
type Paper struct {
	Metadata           Metadata
	AbstractParagraphs []Paragraph
	Sections           []Section
	References         []Reference
	FiguresTables      []FigureTable
	Funding            string
	Acknowledgments    string
	MissingFields      []string
	Metrics            Metrics
}

// Record is the single output-line type. Status selects which fields are
// populated: success lines carry the document content, error lines carry the
// failure taxonomy. Field names and nesting are the compatibility contract
// for downstream consumers and must not change.
type Record struct {
	PaperID   string `json:"paper_id"`
	SourceURL string `json:"source_url"`
	ScrapedAt string `json:"scraped_at"`
	Status    Status `json:"status"`

	MissingFields      []string      `json:"missing_fields"`
	Metadata           *Metadata     `json:"metadata,omitempty"`
	AbstractParagraphs []Paragraph   `json:"abstract_paragraphs,omitempty"`
	Sections           []Section     `json:"sections,omitempty"`
	References         []Reference   `json:"references,omitempty"`
	FiguresTables      []FigureTable `json:"figures_tables,omitempty"`
	Funding            string        `json:"funding,omitempty"`
	Acknowledgments    string        `json:"acknowledgments,omitempty"`
	Metrics            *Metrics      `json:"metrics,omitempty"`

	ErrorMessage string `json:"error,omitempty"`
	ErrorType    Kind   `json:"error_type,omitempty"`
	StatusCode   int    `json:"status_code,omitempty"`
}

// MarshalJSON pins the variant shapes: success lines always carry
// missing_fields (an empty array when nothing is absent), error lines never
// do.
func (r Record) MarshalJSON() ([]byte, error) {
	type record Record
	if r.Status == StatusError {
		return json.Marshal(struct {
			record
			MissingFields []string `json:"missing_fields,omitempty"`
		}{record: record(r)})
	}
	if r.MissingFields == nil {
		r.MissingFields = []string{}
	}
	return json.Marshal(record(r))
}

// Page is the result of one completed HTTP exchange. Non-2xx responses are
// still pages; only transport-level failures surface as errors.
type Page struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// RunSummary reports the accounting for one pipeline run. Written must equal
// Submitted at normal completion; the dispatcher warns on any mismatch.
type RunSummary struct {
	RunID     string
	Submitted int
	Written   int64
	Succeeded int64
	Failed    int64
	Elapsed   time.Duration
}

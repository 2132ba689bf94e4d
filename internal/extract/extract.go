// Package extract normalizes a fetched document body into structured paper
// content. Parsing is a pure function of the body: no I/O, no clocks, and
// byte-identical input yields byte-identical output.
package extract

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/biopub/harvester/internal/harvest"
)

// Field names recorded when an expected block is absent.
const (
	fieldDOI      = "doi"
	fieldPMID     = "pmid"
	fieldAbstract = "abstract"
)

// Parse reduces an HTML body to a Paper. A missing field is never an error;
// it is left empty and noted in MissingFields. Parse fails only when the
// body cannot be read as HTML at all.
func Parse(body []byte) (*harvest.Paper, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	paper := &harvest.Paper{
		MissingFields: []string{},
	}

	paper.Metadata = metadata(doc)
	paper.AbstractParagraphs = abstractParagraphs(doc)
	paper.Sections = bodySections(doc)
	paper.References = references(doc)
	paper.FiguresTables = figuresTables(doc)
	paper.Funding = labeledSection(doc, "section#funding-statement1", "Funding Statement")
	paper.Acknowledgments = labeledSection(doc, "section#ack1", "Acknowledgments")

	if paper.Metadata.DOI == "" {
		paper.MissingFields = append(paper.MissingFields, fieldDOI)
	}
	if paper.Metadata.PMID == "" {
		paper.MissingFields = append(paper.MissingFields, fieldPMID)
	}
	if len(paper.AbstractParagraphs) == 0 {
		paper.MissingFields = append(paper.MissingFields, fieldAbstract)
	}

	paper.Metrics = metrics(paper)
	return paper, nil
}

func metadata(doc *goquery.Document) harvest.Metadata {
	return harvest.Metadata{
		Title:           metaContent(doc, "citation_title"),
		Authors:         authors(doc),
		Journal:         metaContent(doc, "citation_journal_title"),
		Publisher:       metaContent(doc, "citation_publisher"),
		DOI:             metaContent(doc, "citation_doi"),
		PMID:            metaContent(doc, "citation_pmid"),
		PublicationDate: metaContent(doc, "citation_publication_date"),
		Volume:          metaContent(doc, "citation_volume"),
		Issue:           metaContent(doc, "citation_issue"),
		Pages:           metaContent(doc, "citation_firstpage"),
	}
}

// metaContent returns the trimmed content attribute of the first matching
// meta tag, or "" when absent.
func metaContent(doc *goquery.Document, name string) string {
	sel := doc.Find(fmt.Sprintf(`meta[name=%q]`, name)).First()
	return strings.TrimSpace(sel.AttrOr("content", ""))
}

// authors pairs citation_author tags with citation_author_institution tags
// by position; an author past the end of the affiliation list simply has
// none.
func authors(doc *goquery.Document) []harvest.Author {
	var affiliations []string
	doc.Find(`meta[name="citation_author_institution"]`).Each(func(_ int, s *goquery.Selection) {
		affiliations = append(affiliations, strings.TrimSpace(s.AttrOr("content", "")))
	})

	authors := []harvest.Author{}
	doc.Find(`meta[name="citation_author"]`).Each(func(i int, s *goquery.Selection) {
		name := strings.TrimSpace(s.AttrOr("content", ""))
		if name == "" {
			return
		}
		author := harvest.Author{Name: name}
		if i < len(affiliations) {
			author.Affiliation = affiliations[i]
		}
		authors = append(authors, author)
	})
	return authors
}

func abstractParagraphs(doc *goquery.Document) []harvest.Paragraph {
	paragraphs := []harvest.Paragraph{}
	doc.Find("section.abstract").First().Find("p").Each(func(_ int, p *goquery.Selection) {
		if para, ok := paragraph(p); ok {
			paragraphs = append(paragraphs, para)
		}
	})
	return paragraphs
}

// bodySections iterates only the direct child sections of the article
// element. Recursing into nested sub-sections would double-count their
// paragraphs in both parent and child.
func bodySections(doc *goquery.Document) []harvest.Section {
	sections := []harvest.Section{}
	article := doc.Find("article").First()
	article.ChildrenFiltered("section").Each(func(_ int, sec *goquery.Selection) {
		heading := cleanText(sec.Find("h2.pmc_sec_title, h3.pmc_sec_title").First())
		if heading == "" {
			heading = "Untitled Section"
		}

		paragraphs := []harvest.Paragraph{}
		total := 0
		sec.Find("p").Each(func(_ int, p *goquery.Selection) {
			if para, ok := paragraph(p); ok {
				paragraphs = append(paragraphs, para)
				total += para.WordCount
			}
		})
		if len(paragraphs) == 0 {
			return
		}
		sections = append(sections, harvest.Section{
			Heading:        heading,
			Paragraphs:     paragraphs,
			ParagraphCount: len(paragraphs),
			TotalWordCount: total,
		})
	})
	return sections
}

// references assigns sequential 1-based ids across every list item, so an
// item without a citation node still consumes its position.
func references(doc *goquery.Document) []harvest.Reference {
	refs := []harvest.Reference{}
	doc.Find("section.ref-list").First().Find("li").Each(func(i int, li *goquery.Selection) {
		cite := li.Find("cite").First()
		if cite.Length() == 0 {
			return
		}
		refs = append(refs, harvest.Reference{
			ID:           strconv.Itoa(i + 1),
			CitationText: cleanText(cite),
		})
	})
	return refs
}

// figuresTables classifies each figure container as a table when its id
// attribute contains "table" (case-insensitive). The signal is heuristic
// but it is the only one these documents carry; see the project notes
// before changing it. Output lists figures first, then tables. Entries
// without a caption (or, for figures, an image URL) are dropped after
// numbering, so synthetic ids stay stable regardless of filtering.
func figuresTables(doc *goquery.Document) []harvest.FigureTable {
	var figures, tables []harvest.FigureTable
	doc.Find("figure.fig").Each(func(_ int, fig *goquery.Selection) {
		id := fig.AttrOr("id", "")
		caption := cleanText(fig.Find("figcaption").First())

		if strings.Contains(strings.ToLower(id), "table") {
			if id == "" {
				id = fmt.Sprintf("table_%d", len(tables)+1)
			}
			tables = append(tables, harvest.FigureTable{
				Type:    harvest.KindTable,
				ID:      id,
				Caption: caption,
			})
			return
		}

		url := fig.Find("img").First().AttrOr("src", "")
		if id == "" {
			id = fmt.Sprintf("figure_%d", len(figures)+1)
		}
		figures = append(figures, harvest.FigureTable{
			Type:    harvest.KindFigure,
			ID:      id,
			Caption: caption,
			URL:     url,
		})
	})

	combined := []harvest.FigureTable{}
	for _, f := range figures {
		if f.Caption != "" || f.URL != "" {
			combined = append(combined, f)
		}
	}
	for _, t := range tables {
		if t.Caption != "" {
			combined = append(combined, t)
		}
	}
	return combined
}

// labeledSection pulls a block by selector and strips its leading label
// once, e.g. the "Funding Statement" heading text baked into the section.
func labeledSection(doc *goquery.Document, selector, label string) string {
	text := cleanText(doc.Find(selector).First())
	if text == "" {
		return ""
	}
	text = strings.Replace(text, label, "", 1)
	return strings.Join(strings.Fields(text), " ")
}

func metrics(p *harvest.Paper) harvest.Metrics {
	m := harvest.Metrics{
		SectionCount:           len(p.Sections),
		AbstractParagraphCount: len(p.AbstractParagraphs),
		ReferenceCount:         len(p.References),
	}
	for _, sec := range p.Sections {
		m.TotalWordCount += sec.TotalWordCount
		m.TotalParagraphCount += sec.ParagraphCount
	}
	for _, ft := range p.FiguresTables {
		switch ft.Type {
		case harvest.KindFigure:
			m.FigureCount++
		case harvest.KindTable:
			m.TableCount++
		}
	}
	return m
}

func paragraph(p *goquery.Selection) (harvest.Paragraph, bool) {
	text := cleanText(p)
	if text == "" {
		return harvest.Paragraph{}, false
	}
	return harvest.Paragraph{Text: text, WordCount: countWords(text)}, true
}

// cleanText collapses a node's text to single-space separated tokens.
func cleanText(sel *goquery.Selection) string {
	return strings.Join(strings.Fields(sel.Text()), " ")
}

// countWords tokenizes on whitespace; the counts feed volume metrics, not
// anything linguistic.
func countWords(text string) int {
	return len(strings.Fields(text))
}

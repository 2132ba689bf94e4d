// Package analyze aggregates failures from a completed output stream.
package analyze

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/biopub/harvester/internal/harvest"
)

// SampleLimit caps how many failing URLs a report lists in full.
const SampleLimit = 10

const maxLineBytes = 16 * 1024 * 1024

// Sample is one failing URL with its diagnostics.
type Sample struct {
	URL     string
	Type    harvest.Kind
	Message string
}

// Report summarizes the failures found in an output stream. It is purely
// diagnostic; producing it never mutates the stream.
type Report struct {
	Records       int
	TotalFailures int
	ByType        map[harvest.Kind]int
	ByStatus      map[int]int
	Samples       []Sample
}

// File analyzes the output stream at path.
func File(path string) (Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return Report{}, fmt.Errorf("open output %s: %w", path, err)
	}
	defer f.Close()
	return Analyze(f)
}

// Analyze performs a read-only pass over a record stream. Lines that do not
// parse are skipped; a half-written trailing line from an interrupted run
// must not poison the report.
func Analyze(r io.Reader) (Report, error) {
	report := Report{
		ByType:   map[harvest.Kind]int{},
		ByStatus: map[int]int{},
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec harvest.Record
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		report.Records++
		if rec.Status != harvest.StatusError {
			continue
		}
		report.TotalFailures++
		kind := rec.ErrorType
		if kind == "" {
			kind = harvest.KindUnknownError
		}
		report.ByType[kind]++
		if rec.StatusCode != 0 {
			report.ByStatus[rec.StatusCode]++
		}
		if len(report.Samples) < SampleLimit {
			report.Samples = append(report.Samples, Sample{
				URL:     rec.SourceURL,
				Type:    kind,
				Message: rec.ErrorMessage,
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return Report{}, fmt.Errorf("scan output: %w", err)
	}
	return report, nil
}

// Render formats the report for terminal output.
func (r Report) Render() string {
	if r.TotalFailures == 0 {
		return "No failures recorded.\n"
	}
	var b strings.Builder
	rule := strings.Repeat("=", 60)
	fmt.Fprintf(&b, "%s\nFAILURE ANALYSIS\n%s\n\n", rule, rule)
	fmt.Fprintf(&b, "Total failures: %d\n\nError types:\n", r.TotalFailures)
	for _, kind := range sortedKinds(r.ByType) {
		fmt.Fprintf(&b, "  %s: %d\n", kind, r.ByType[kind])
	}
	if len(r.ByStatus) > 0 {
		fmt.Fprintf(&b, "\nHTTP status codes:\n")
		for _, code := range sortedCodes(r.ByStatus) {
			fmt.Fprintf(&b, "  %d: %d\n", code, r.ByStatus[code])
		}
	}
	fmt.Fprintf(&b, "\nFailed URLs (first %d):\n", SampleLimit)
	for i, s := range r.Samples {
		fmt.Fprintf(&b, "\n%d. %s\n   Type: %s\n   Error: %s\n", i+1, s.URL, s.Type, truncate(s.Message, 100))
	}
	if extra := r.TotalFailures - len(r.Samples); extra > 0 {
		fmt.Fprintf(&b, "\n... and %d more failures\n", extra)
	}
	fmt.Fprintf(&b, "\n%s\n", rule)
	return b.String()
}

// sortedKinds orders error types by descending count, then name.
func sortedKinds(counts map[harvest.Kind]int) []harvest.Kind {
	kinds := make([]harvest.Kind, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool {
		if counts[kinds[i]] != counts[kinds[j]] {
			return counts[kinds[i]] > counts[kinds[j]]
		}
		return kinds[i] < kinds[j]
	})
	return kinds
}

func sortedCodes(counts map[int]int) []int {
	codes := make([]int, 0, len(counts))
	for c := range counts {
		codes = append(codes, c)
	}
	sort.Slice(codes, func(i, j int) bool {
		if counts[codes[i]] != counts[codes[j]] {
			return counts[codes[i]] > counts[codes[j]]
		}
		return codes[i] < codes[j]
	})
	return codes
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

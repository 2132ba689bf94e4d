// Package input loads the source document manifest.
package input

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// Manifest is the ordered unit of work for one run, immutable once loaded.
type Manifest struct {
	URLs    []string
	Rows    int
	Skipped int
}

// urlColumn is the manifest header naming the document URL column. When no
// such header exists the second column is assumed, matching the historical
// export format.
const urlColumn = "link"

// Load reads a CSV manifest. Rows without a usable URL are skipped and
// counted, never fatal; an unreadable file is one of the two run-halting
// errors.
func Load(path string) (Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("open input %s: %w", path, err)
	}
	defer f.Close()
	return parse(f)
}

func parse(r io.Reader) (Manifest, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return Manifest{}, nil
		}
		return Manifest{}, fmt.Errorf("read manifest header: %w", err)
	}

	col := urlColumnIndex(header)

	m := Manifest{URLs: []string{}}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Manifest{}, fmt.Errorf("read manifest row: %w", err)
		}
		m.Rows++
		url := ""
		if col < len(row) {
			url = strings.TrimSpace(row[col])
		}
		if !strings.HasPrefix(url, "http") {
			m.Skipped++
			continue
		}
		m.URLs = append(m.URLs, url)
	}
	return m, nil
}

func urlColumnIndex(header []string) int {
	for i, name := range header {
		if strings.EqualFold(strings.TrimSpace(name), urlColumn) {
			return i
		}
	}
	if len(header) > 1 {
		return 1
	}
	return 0
}

// Package aoi manages the catalog of named coastal areas of interest that
// pipeline runs draw from.
package aoi

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/hartis-org/cvi-workflow/internal/fetcher"
)

// Entry is one coastal area in the catalog.
type Entry struct {
	Name    string
	Country string
}

// Query returns the primary geocoding query for the area.
func (e Entry) Query() string {
	if e.Country == "" {
		return e.Name
	}
	return e.Name + ", " + e.Country
}

// coastSuffixes are stripped one at a time to widen geocoding retries,
// "Miami Beach" falling back to "Miami".
var coastSuffixes = []string{" Beach", " Harbor", " Bay", " Coast"}

// FallbackQueries returns progressively looser queries to try when the
// primary query finds nothing: suffix-stripped names, the bare name without
// country, and accent-folded variants of each.
func (e Entry) FallbackQueries() []string {
	var out []string
	seen := map[string]bool{e.Query(): true}
	add := func(q string) {
		q = strings.TrimSpace(q)
		if q == "" || seen[q] {
			return
		}
		seen[q] = true
		out = append(out, q)
	}

	for _, suffix := range coastSuffixes {
		if strings.Contains(e.Name, suffix) {
			stripped := Entry{Name: strings.ReplaceAll(e.Name, suffix, ""), Country: e.Country}
			add(stripped.Query())
		}
	}
	if e.Country != "" {
		add(e.Name)
	}

	// Accent-folded variants help endpoints that mangle non-ASCII input.
	add(foldAccents(e.Query()))
	for _, q := range append([]string(nil), out...) {
		add(foldAccents(q))
	}

	return out
}

// foldAccents strips combining marks: "Cancún" becomes "Cancun".
func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Catalog is a loaded set of areas.
type Catalog struct {
	entries []Entry
}

// Load reads a catalog from a CSV or XLSX file. The sheet name only applies
// to XLSX files and may be empty for the first sheet.
func Load(path, sheet string) (*Catalog, error) {
	var header []string
	var rows [][]string

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "aoi: open catalog %s", path)
		}
		defer f.Close() //nolint:errcheck

		header, rows, err = fetcher.ReadCSV(f, fetcher.CSVOptions{HasHeader: true, TrimSpace: true})
		if err != nil {
			return nil, eris.Wrapf(err, "aoi: parse catalog %s", path)
		}
	case ".xlsx":
		all, err := fetcher.ReadXLSX(path, fetcher.XLSXOptions{Sheet: sheet})
		if err != nil {
			return nil, eris.Wrapf(err, "aoi: parse catalog %s", path)
		}
		if len(all) > 0 {
			header, rows = all[0], all[1:]
		}
	default:
		return nil, eris.Errorf("aoi: unsupported catalog format %q", ext)
	}

	nameIdx, countryIdx := columnIndexes(header)
	if nameIdx < 0 {
		// No recognizable header: treat the whole file as data with
		// name in the first column and country in the second.
		if len(header) > 0 {
			rows = append([][]string{header}, rows...)
		}
		nameIdx, countryIdx = 0, 1
	}

	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		if nameIdx >= len(row) {
			continue
		}
		name := strings.TrimSpace(row[nameIdx])
		if name == "" {
			continue
		}
		var country string
		if countryIdx >= 0 && countryIdx < len(row) {
			country = strings.TrimSpace(row[countryIdx])
		}
		entries = append(entries, Entry{Name: name, Country: country})
	}

	if len(entries) == 0 {
		return nil, eris.Errorf("aoi: catalog %s has no areas", path)
	}
	return &Catalog{entries: entries}, nil
}

// columnIndexes locates the name and country columns in a header row,
// returning -1 for columns it cannot find.
func columnIndexes(header []string) (nameIdx, countryIdx int) {
	nameIdx, countryIdx = -1, -1
	for i, cell := range header {
		switch strings.ToLower(strings.TrimSpace(cell)) {
		case "name", "area", "beach":
			if nameIdx < 0 {
				nameIdx = i
			}
		case "country":
			if countryIdx < 0 {
				countryIdx = i
			}
		}
	}
	return nameIdx, countryIdx
}

// Entries returns all areas in catalog order.
func (c *Catalog) Entries() []Entry {
	return c.entries
}

// Len returns the number of areas.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Pick returns a uniformly random area. Pass a seeded rand for reproducible
// runs; nil uses the shared global source.
func (c *Catalog) Pick(r *rand.Rand) Entry {
	if r == nil {
		return c.entries[rand.IntN(len(c.entries))]
	}
	return c.entries[r.IntN(len(c.entries))]
}

// Find looks up an area by name or full query, case-insensitively.
func (c *Catalog) Find(name string) (Entry, bool) {
	needle := strings.ToLower(strings.TrimSpace(name))
	for _, e := range c.entries {
		if strings.ToLower(e.Name) == needle || strings.ToLower(e.Query()) == needle {
			return e, true
		}
	}
	return Entry{}, false
}

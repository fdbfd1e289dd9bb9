package sheet

import (
	"bytes"
	"strings"
	"unicode"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/unicode/norm"
)

var (
	ErrNoMatchingTable    = errors.New("no worksheet contains the required columns")
	ErrUnreadableWorkbook = errors.New("workbook could not be read")
)

const (
	defaultSampleSize  = 15
	defaultMaxScanRows = 50
	defaultMinValid    = 1

	preferWeight = 1000
	sampleWeight = 100
)

// Config lists every option the locator understands. Column names are
// canonicalised with CanonicalHeader before matching.
type Config struct {
	// MustInclude columns must all appear in the header row.
	MustInclude []string
	// PreferInclude columns raise the score of a header row.
	PreferInclude []string
	// MinPreferMatches rejects header rows with fewer preferred columns.
	MinPreferMatches int
	// SheetNameExcludePrefixes skips sheets by name, case-insensitive.
	// Defaults to "note".
	SheetNameExcludePrefixes []string
	// RequiredNonEmptyInSample columns must be filled on a sample row for it
	// to count as valid.
	RequiredNonEmptyInSample []string
	// MinValidSampleRows rejects sheets with fewer valid sample rows.
	MinValidSampleRows int
	// SampleSize is the number of rows under the header that are sampled.
	SampleSize int
	// MaxScanRows bounds the header search from the top of each sheet.
	MaxScanRows int
}

func (c Config) withDefaults() Config {
	if len(c.SheetNameExcludePrefixes) == 0 {
		c.SheetNameExcludePrefixes = []string{"note"}
	}
	if c.SampleSize <= 0 {
		c.SampleSize = defaultSampleSize
	}
	if c.MinValidSampleRows <= 0 {
		c.MinValidSampleRows = defaultMinValid
	}
	if c.MaxScanRows <= 0 {
		c.MaxScanRows = defaultMaxScanRows
	}
	return c
}

type Row struct {
	// Number is the 1-based row number in the sheet.
	Number int
	Values map[string]string
}

// Value returns the raw cell under the canonical header key, nil if absent
// or blank.
func (r Row) Value(key string) interface{} {
	v, ok := r.Values[key]
	if !ok || strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

type Table struct {
	SheetName string
	// HeaderRow is the 1-based row number of the header.
	HeaderRow int
	Headers   []string
	Rows      []Row
}

type candidate struct {
	sheet     string
	rows      [][]string
	headerIdx int
	headers   []string
	score     int
}

// Locate picks the worksheet and header row that best match cfg and
// returns the rows beneath it.
func Locate(data []byte, cfg Config) (*Table, error) {
	cfg = cfg.withDefaults()

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(ErrUnreadableWorkbook, err.Error())
	}
	defer f.Close()

	must := canonicalSet(cfg.MustInclude)
	prefer := canonicalSet(cfg.PreferInclude)
	required := canonicalSet(cfg.RequiredNonEmptyInSample)

	var best *candidate
	for _, name := range f.GetSheetList() {
		if excluded(name, cfg.SheetNameExcludePrefixes) {
			continue
		}

		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, errors.Wrapf(ErrUnreadableWorkbook, "sheet %s: %s", name, err.Error())
		}

		headerIdx, headers, score, ok := findHeader(rows, must, prefer, cfg.MinPreferMatches, cfg.MaxScanRows)
		if !ok {
			continue
		}

		sampleValid := cfg.SampleSize
		if len(required) > 0 {
			sampleValid = countValidSample(rows, headerIdx, headers, required, cfg.SampleSize)
			if sampleValid < cfg.MinValidSampleRows {
				continue
			}
		}

		score += sampleValid * sampleWeight
		if best == nil || score > best.score {
			best = &candidate{sheet: name, rows: rows, headerIdx: headerIdx, headers: headers, score: score}
		}
	}

	if best == nil {
		return nil, ErrNoMatchingTable
	}

	return best.table(), nil
}

func (c *candidate) table() *Table {
	t := &Table{
		SheetName: c.sheet,
		HeaderRow: c.headerIdx + 1,
		Headers:   c.headers,
	}

	for i := c.headerIdx + 1; i < len(c.rows); i++ {
		row := c.rows[i]
		if blank(row) {
			continue
		}

		values := make(map[string]string, len(c.headers))
		for col, header := range c.headers {
			if header == "" {
				continue
			}
			var cell string
			if col < len(row) {
				cell = row[col]
			}
			// A repeated header keeps the rightmost column's cell.
			values[header] = cell
		}
		t.Rows = append(t.Rows, Row{Number: i + 1, Values: values})
	}
	return t
}

func findHeader(rows [][]string, must, prefer map[string]struct{}, minPrefer, maxScan int) (int, []string, int, bool) {
	bestIdx, bestScore := -1, 0
	var bestHeaders []string

	for i := 0; i < len(rows) && i < maxScan; i++ {
		if len(rows[i]) == 0 {
			continue
		}

		headers := make([]string, len(rows[i]))
		set := map[string]struct{}{}
		for col, cell := range rows[i] {
			headers[col] = CanonicalHeader(cell)
			if headers[col] != "" {
				set[headers[col]] = struct{}{}
			}
		}

		if !contains(set, must) {
			continue
		}

		hits := 0
		for h := range prefer {
			if _, ok := set[h]; ok {
				hits++
			}
		}
		if hits < minPrefer {
			continue
		}

		score := hits*preferWeight + len(set)
		if bestIdx < 0 || score > bestScore {
			bestIdx, bestScore, bestHeaders = i, score, headers
		}
	}

	return bestIdx, bestHeaders, bestScore, bestIdx >= 0
}

func countValidSample(rows [][]string, headerIdx int, headers []string, required map[string]struct{}, size int) int {
	var idx []int
	for col, h := range headers {
		if _, ok := required[h]; ok {
			idx = append(idx, col)
		}
	}
	if len(idx) == 0 {
		return 0
	}

	count := 0
	for i := headerIdx + 1; i <= headerIdx+size && i < len(rows); i++ {
		row := rows[i]
		if blank(row) {
			continue
		}
		valid := true
		for _, col := range idx {
			if col >= len(row) || strings.TrimSpace(row[col]) == "" {
				valid = false
				break
			}
		}
		if valid {
			count++
		}
	}
	return count
}

// CanonicalHeader folds a header cell for matching: NFKC, lower case, and
// only letters and digits kept. "Person Id", "PERSON_ID" and "person-id"
// all become "personid".
func CanonicalHeader(cell string) string {
	folded := strings.ToLower(norm.NFKC.String(cell))

	var b strings.Builder
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func canonicalSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		if c := CanonicalHeader(n); c != "" {
			set[c] = struct{}{}
		}
	}
	return set
}

func contains(set, sub map[string]struct{}) bool {
	for k := range sub {
		if _, ok := set[k]; !ok {
			return false
		}
	}
	return true
}

func excluded(sheet string, prefixes []string) bool {
	title := strings.ToLower(strings.TrimSpace(sheet))
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(title, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

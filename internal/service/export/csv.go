package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// WriteCSV writes a header line followed by records.
func WriteCSV(w io.Writer, header []string, records [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return errors.Wrap(err, "write csv header")
	}
	if err := cw.WriteAll(records); err != nil {
		return errors.Wrap(err, "write csv rows")
	}
	return nil
}

// FileName builds a descriptive download name such as
// headcount_from-2026-01-01_to-2026-01-07_shift-all_bus-A01.csv.
// Empty values are written as "all".
func FileName(kind, ext string, pairs ...string) string {
	parts := []string{kind}
	for i := 0; i+1 < len(pairs); i += 2 {
		value := strings.TrimSpace(pairs[i+1])
		if value == "" {
			value = "all"
		}
		value = strings.NewReplacer(",", "-", " ", "", "/", "-").Replace(value)
		parts = append(parts, fmt.Sprintf("%s-%s", pairs[i], value))
	}
	return strings.Join(parts, "_") + "." + ext
}

// Package delimited parses delimited text exports (CSV and friends). The
// separator and the encoding are detected from the bytes, the first
// non-empty line is treated as the header.
package delimited

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Result is the parsed file: the header columns and one map per data row,
// keyed by column name.
type Result struct {
	Columns          []string
	Rows             []map[string]string
	RawRows          [][]string
	Separator        rune
	DetectedEncoding string
}

var (
	ErrEmptyFile = errors.New("the file contains no data")
	ErrNoHeader  = errors.New("the file contains no header line")
)

// separator candidates, in tie-break order.
var separators = []rune{';', ',', '\t', '|'}

// sniffLines is the number of non-empty lines the separator vote runs over.
const sniffLines = 10

// Parse decodes and parses a delimited text export.
func Parse(data []byte) (*Result, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}

	text, encoding := decode(data)
	sep := detectSeparator(text)

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = sep
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var header []string
	var rows []map[string]string
	var rawRows [][]string

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A malformed line does not abort the whole file, rows
			// keep their positions for diagnostics.
			continue
		}

		if isEmptyRecord(record) {
			continue
		}

		if header == nil {
			header = make([]string, len(record))
			for i, h := range record {
				header[i] = strings.TrimSpace(h)
			}
			continue
		}

		row := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(record) {
				row[h] = strings.TrimSpace(record[i])
			}
		}
		rows = append(rows, row)
		rawRows = append(rawRows, record)
	}

	if header == nil {
		return nil, ErrNoHeader
	}

	return &Result{
		Columns:          header,
		Rows:             rows,
		RawRows:          rawRows,
		Separator:        sep,
		DetectedEncoding: encoding,
	}, nil
}

// decode sniffs the encoding: a UTF-8 BOM wins, then valid UTF-8, then the
// high-bit bytes are assumed to be windows-1252 (a superset of latin1 for
// the printable range).
func decode(data []byte) (text, encoding string) {
	if bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}) {
		return string(data[3:]), "utf-8"
	}

	if utf8.Valid(data) {
		return string(data), "utf-8"
	}

	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return string(data), "utf-8"
	}
	return string(decoded), "cp1252"
}

// detectSeparator runs a majority vote across the first lines: the
// candidate that appears in the most lines wins, total occurrences break
// ties.
func detectSeparator(text string) rune {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
		if len(lines) == sniffLines {
			break
		}
	}

	best := ','
	bestVotes, bestTotal := 0, 0
	for _, sep := range separators {
		votes, total := 0, 0
		for _, line := range lines {
			n := strings.Count(line, string(sep))
			total += n
			if n > 0 {
				votes++
			}
		}

		if votes > bestVotes || (votes == bestVotes && total > bestTotal) {
			best, bestVotes, bestTotal = sep, votes, total
		}
	}

	return best
}

func isEmptyRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

package journal

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dargueta/shadowfs"
	"github.com/gocarina/gocsv"
)

// Records are space-separated. Fields containing whitespace, quotes, or line
// breaks are double-quoted with embedded quotes doubled. The CSV reader turns
// "\r\n" inside a quoted field into "\n", so text fields holding a carriage
// return, or starting with a quote, are first escaped with [strconv.Quote].
const fieldSeparator = ' '

const (
	numFields       = 6
	numLegacyFields = 5
)

// Encode writes one line per entry, skipping empty slots.
func Encode(w io.Writer, entries []Entry) error {
	nonEmpty := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsEmpty() {
			entry.Primary = escapeText(entry.Primary)
			entry.Secondary = escapeText(entry.Secondary)
			entry.Payload = escapeText(entry.Payload)
			nonEmpty = append(nonEmpty, entry)
		}
	}
	if len(nonEmpty) == 0 {
		return nil
	}

	writer := csv.NewWriter(w)
	writer.Comma = fieldSeparator
	return gocsv.MarshalCSVWithoutHeaders(&nonEmpty, gocsv.NewSafeCSVWriter(writer))
}

// Decode parses every well-formed record in `r`. Records that can't be parsed
// are skipped, and one error per skipped record is returned in `skipped`, each
// matching [shadowfs.ErrMalformedRecord]. `err` is only set if reading from
// `r` fails.
func Decode(r io.Reader) (entries []Entry, skipped []error, err error) {
	reader := csv.NewReader(r)
	reader.Comma = fieldSeparator
	reader.FieldsPerRecord = -1

	for {
		row, readErr := reader.Read()
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			var parseErr *csv.ParseError
			if errors.As(readErr, &parseErr) {
				skipped = append(skipped, shadowfs.ErrMalformedRecord.Wrap(readErr))
				continue
			}
			return entries, skipped, shadowfs.ErrIOFailed.Wrap(readErr)
		}

		line, _ := reader.FieldPos(0)
		entry, decodeErr := decodeRecord(row)
		if decodeErr != nil {
			skipped = append(
				skipped,
				shadowfs.ErrMalformedRecord.WithMessage(
					fmt.Sprintf("line %d: %s", line, decodeErr.Error()),
				),
			)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, skipped, nil
}

func decodeRecord(row []string) (Entry, error) {
	switch len(row) {
	case numFields:
	case numLegacyFields:
		row = append(row, "")
	default:
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(row))
	}

	var decoded []Entry
	err := gocsv.UnmarshalCSVWithoutHeaders(&rowReader{rows: [][]string{row}}, &decoded)
	if err != nil {
		return Entry{}, err
	}
	if len(decoded) != 1 {
		return Entry{}, fmt.Errorf("expected 1 record, got %d", len(decoded))
	}

	entry := decoded[0]
	for _, field := range []*string{&entry.Primary, &entry.Secondary, &entry.Payload} {
		if *field, err = unescapeText(*field); err != nil {
			return Entry{}, err
		}
	}
	if entry.Timestamp <= 0 {
		return Entry{}, fmt.Errorf("invalid timestamp %q", row[0])
	}
	if entry.Primary == "" {
		return Entry{}, errors.New("missing file name")
	}
	return entry, nil
}

func escapeText(text string) string {
	if strings.ContainsRune(text, '\r') || strings.HasPrefix(text, `"`) {
		return strconv.Quote(text)
	}
	return text
}

func unescapeText(text string) (string, error) {
	if !strings.HasPrefix(text, `"`) {
		return text, nil
	}
	unquoted, err := strconv.Unquote(text)
	if err != nil {
		return "", fmt.Errorf("bad escaped field %s: %w", text, err)
	}
	return unquoted, nil
}

// rowReader feeds rows that have already been split into fields back to
// gocsv.
type rowReader struct {
	rows [][]string
}

func (r *rowReader) Read() ([]string, error) {
	if len(r.rows) == 0 {
		return nil, io.EOF
	}
	row := r.rows[0]
	r.rows = r.rows[1:]
	return row, nil
}

func (r *rowReader) ReadAll() ([][]string, error) {
	rows := r.rows
	r.rows = nil
	return rows, nil
}

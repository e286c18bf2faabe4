// Package importer loads the person directory from spreadsheet CSV exports.
// Files may be UTF-8 (with or without BOM) or Windows-1252, and separated by
// commas or semicolons.
package importer

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/okian/asamblea/internal/domain/model"
	"github.com/okian/asamblea/pkg/logger"
	"github.com/okian/asamblea/pkg/metrics"
)

// Encoding names reported in a Result.
const (
	EncodingUTF8        = "utf-8"
	EncodingWindows1252 = "windows-1252"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// column aliases accepted in the header row, matched case-insensitively
var columnAliases = map[string]string{
	"id":        "id",
	"socia_id":  "id",
	"member_id": "id",
	"name":      "name",
	"nombre":    "name",
	"surname":   "surname",
	"apellidos": "surname",
	"gender":    "gender",
	"genero":    "gender",
	"género":    "gender",
}

var requiredColumns = []string{"id", "name", "gender"}

// PersonWriter stores one person.
type PersonWriter interface {
	UpsertPerson(ctx context.Context, p model.Person) error
}

// RowError describes a rejected line. Line is 1-based and counts the header.
type RowError struct {
	Line int    `json:"line"`
	Err  string `json:"error"`
}

// Result summarises an import.
type Result struct {
	Encoding string     `json:"encoding"`
	Imported int        `json:"imported"`
	Rejected []RowError `json:"rejected,omitempty"`
}

// Decode returns data as UTF-8 and the encoding it was read as.
func Decode(data []byte) ([]byte, string, error) {
	if utf8.Valid(data) {
		return bytes.TrimPrefix(data, utf8BOM), EncodingUTF8, nil
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return nil, "", fmt.Errorf("decode windows-1252: %w", err)
	}
	return out, EncodingWindows1252, nil
}

// detectComma picks ';' when the header line has more semicolons than commas.
func detectComma(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	if bytes.Count(line, []byte{';'}) > bytes.Count(line, []byte{','}) {
		return ';'
	}
	return ','
}

// Parse reads people from r. Invalid rows are reported and skipped; only an
// unreadable file or header is an error.
func Parse(r io.Reader) ([]model.Person, Result, error) {
	var res Result
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, res, fmt.Errorf("read import: %w", err)
	}
	data, enc, err := Decode(raw)
	if err != nil {
		return nil, res, err
	}
	res.Encoding = enc
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, res, ErrEmptyFile
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = detectComma(data)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, res, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		if canon, ok := columnAliases[strings.ToLower(strings.TrimSpace(h))]; ok {
			index[canon] = i
		}
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, res, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	var people []model.Person
	seen := make(map[string]int)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if !errors.As(err, &perr) {
				return nil, res, fmt.Errorf("read row: %w", err)
			}
			res.Rejected = append(res.Rejected, RowError{Line: perr.Line, Err: perr.Err.Error()})
			continue
		}
		line, _ := cr.FieldPos(0)
		p, err := personFrom(rec, index)
		if err != nil {
			res.Rejected = append(res.Rejected, RowError{Line: line, Err: err.Error()})
			continue
		}
		// a later row for the same id replaces the earlier one
		if i, ok := seen[p.ID]; ok {
			people[i] = p
			continue
		}
		seen[p.ID] = len(people)
		people = append(people, p)
	}
	return people, res, nil
}

func personFrom(rec []string, index map[string]int) (model.Person, error) {
	field := func(col string) string {
		i, ok := index[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}
	p := model.Person{ID: field("id"), Name: field("name"), Surname: field("surname")}
	if p.ID == "" {
		return p, fmt.Errorf("%w: empty id", ErrInvalidRow)
	}
	g, err := model.ParseGender(field("gender"))
	if err != nil {
		return p, fmt.Errorf("%w: %w", ErrInvalidRow, err)
	}
	p.Gender = g
	return p, nil
}

// Importer parses a CSV and writes every valid person.
type Importer struct {
	w   PersonWriter
	log logger.Logger
}

// New constructs an importer writing to w.
func New(w PersonWriter, log logger.Logger) *Importer {
	if log == nil {
		log = logger.Nop()
	}
	return &Importer{w: w, log: log.Named("importer")}
}

// Import parses r and upserts each person. A store failure aborts the import.
func (im *Importer) Import(ctx context.Context, r io.Reader) (Result, error) {
	people, res, err := Parse(r)
	if err != nil {
		return res, err
	}
	for _, p := range people {
		if err := im.w.UpsertPerson(ctx, p); err != nil {
			metrics.RecordPeopleImported(res.Imported)
			return res, fmt.Errorf("store person %s: %w", p.ID, err)
		}
		res.Imported++
	}
	metrics.RecordPeopleImported(res.Imported)
	metrics.RecordImportRowsRejected(len(res.Rejected))
	im.log.Info(ctx, "people imported",
		logger.String("encoding", res.Encoding),
		logger.Int("imported", res.Imported),
		logger.Int("rejected", len(res.Rejected)))
	return res, nil
}

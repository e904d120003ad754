package table

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/hupe1980/anneal/blobstore"
)

var (
	// ErrNoRows is returned for a table without data lines.
	ErrNoRows = errors.New("table: no data rows")

	// ErrNonFinite is wrapped by ParseError for NaN and infinite values.
	ErrNonFinite = errors.New("value is not finite")

	// ErrNoValues is wrapped by ParseError for a data line with a name only.
	ErrNoValues = errors.New("row has no values")
)

// maxLineSize bounds a single input line.
const maxLineSize = 16 * 1024 * 1024

// Table is a set of named numeric rows of equal width.
type Table struct {
	Names []string
	Rows  [][]float64
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Dim returns the row width, or 0 for an empty table.
func (t *Table) Dim() int {
	if len(t.Rows) == 0 {
		return 0
	}
	return len(t.Rows[0])
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	out := &Table{
		Names: make([]string, len(t.Names)),
		Rows:  make([][]float64, len(t.Rows)),
	}
	copy(out.Names, t.Names)
	for i, row := range t.Rows {
		out.Rows[i] = append([]float64(nil), row...)
	}
	return out
}

// ParseError reports a value that is not a finite number.
type ParseError struct {
	Line  int
	Token string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("table: line %d: invalid value %q: %v", e.Line, e.Token, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// FieldCountError reports a row whose width differs from the first data row.
type FieldCountError struct {
	Line int
	Want int
	Got  int
}

func (e *FieldCountError) Error() string {
	return fmt.Sprintf("table: line %d: expected %d values, got %d", e.Line, e.Want, e.Got)
}

// DuplicateNameError reports a row name that appeared before.
type DuplicateNameError struct {
	Line      int
	Name      string
	FirstLine int
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("table: line %d: duplicate row name %q (first seen on line %d)", e.Line, e.Name, e.FirstLine)
}

// Read parses a table from r using sep between fields.
// Trailing carriage returns are stripped, so CRLF input is accepted.
func Read(r io.Reader, sep rune) (*Table, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	s := string(sep)
	tbl := &Table{}
	seen := make(map[string]int)
	width := -1
	line := 0

	for sc.Scan() {
		line++
		text := strings.TrimSuffix(sc.Text(), "\r")

		fields := strings.Split(text, s)
		if fields[0] == "" {
			continue
		}
		name, tokens := fields[0], fields[1:]

		if len(tokens) == 0 {
			return nil, &ParseError{Line: line, Token: text, Err: ErrNoValues}
		}
		if width < 0 {
			width = len(tokens)
		} else if len(tokens) != width {
			return nil, &FieldCountError{Line: line, Want: width, Got: len(tokens)}
		}
		if first, ok := seen[name]; ok {
			return nil, &DuplicateNameError{Line: line, Name: name, FirstLine: first}
		}
		seen[name] = line

		row := make([]float64, len(tokens))
		for j, tok := range tokens {
			v, err := strconv.ParseFloat(strings.TrimSpace(tok), 64)
			if err != nil {
				return nil, &ParseError{Line: line, Token: tok, Err: err}
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, &ParseError{Line: line, Token: tok, Err: ErrNonFinite}
			}
			row[j] = v
		}

		tbl.Names = append(tbl.Names, name)
		tbl.Rows = append(tbl.Rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read table: %w", err)
	}
	if len(tbl.Rows) == 0 {
		return nil, ErrNoRows
	}
	return tbl, nil
}

// Load reads the table stored under name.
func Load(ctx context.Context, store blobstore.Store, name string, sep rune) (*Table, error) {
	r, err := store.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to open table %q: %w", name, err)
	}
	defer func() { _ = r.Close() }()

	tbl, err := Read(r, sep)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return tbl, nil
}

// ParseSeparator maps a flag value to a separator rune.
// The escapes `\t` and `tab` mean a tab; otherwise s must be one character.
func ParseSeparator(s string) (rune, error) {
	switch s {
	case `\t`, "tab", "\t":
		return '\t', nil
	case "":
		return 0, errors.New("table: empty separator")
	}
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || size != len(s) {
		return 0, fmt.Errorf("table: separator must be a single character, got %q", s)
	}
	if r == '\n' || r == '\r' {
		return 0, fmt.Errorf("table: separator %q would split lines", s)
	}
	return r, nil
}

package parser

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/KaramelBytes/dataglimpse/internal/model"
)

// Table is the raw result of parsing a tabular upload.
type Table struct {
	Columns []string
	Rows    []model.Row
}

// Parser defines a tabular format implementation.
type Parser interface {
	CanParse(filename string) bool
	Parse(r io.Reader) (*Table, error)
}

var registry []Parser

// Register adds a parser implementation to the registry.
func Register(p Parser) {
	registry = append(registry, p)
}

func init() {
	Register(csvParser{})
	Register(xlsxParser{})
}

// ErrUnsupported indicates a format is not supported.
var ErrUnsupported = errors.New("unsupported file format")

// UnsupportedFormatError reports the rejected extension.
type UnsupportedFormatError struct {
	Ext string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Ext == "" {
		return "unsupported file format: missing extension (use .csv or .xlsx)"
	}
	return fmt.Sprintf("unsupported file format %q (use .csv or .xlsx)", e.Ext)
}

func (e *UnsupportedFormatError) Is(target error) bool { return target == ErrUnsupported }

// ParseError reports content the selected parser could not read, such as a
// corrupt workbook or malformed CSV.
type ParseError struct {
	File string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.File, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Supported reports whether a registered parser accepts filename.
func Supported(filename string) bool {
	return lookup(filename) != nil
}

func lookup(filename string) Parser {
	for _, p := range registry {
		if p.CanParse(filename) {
			return p
		}
	}
	return nil
}

// Parse selects a parser by filename and parses r.
func Parse(r io.Reader, filename string) (*Table, error) {
	p := lookup(filename)
	if p == nil {
		return nil, &UnsupportedFormatError{Ext: strings.ToLower(filepath.Ext(filename))}
	}
	tbl, err := p.Parse(r)
	if err != nil {
		return nil, &ParseError{File: filepath.Base(filename), Err: err}
	}
	return tbl, nil
}

// ParseFile parses the file at path.
func ParseFile(path string) (*Table, error) {
	p := lookup(path)
	if p == nil {
		return nil, &UnsupportedFormatError{Ext: strings.ToLower(filepath.Ext(path))}
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()
	tbl, err := p.Parse(f)
	if err != nil {
		return nil, &ParseError{File: filepath.Base(path), Err: err}
	}
	return tbl, nil
}

// headerNames trims header cells, names blank ones column_<n> and suffixes duplicates.
func headerNames(raw []string) []string {
	out := make([]string, len(raw))
	seen := make(map[string]int, len(raw))
	for i, h := range raw {
		name := strings.TrimSpace(h)
		if name == "" {
			name = "column_" + strconv.Itoa(i+1)
		}
		if n, dup := seen[name]; dup {
			for {
				n++
				candidate := name + "_" + strconv.Itoa(n)
				if _, taken := seen[candidate]; !taken {
					seen[name] = n
					name = candidate
					break
				}
			}
		}
		seen[name] = max(seen[name], 1)
		out[i] = name
	}
	return out
}

func blankRecord(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

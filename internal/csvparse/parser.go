// Package csvparse reads the school dataset CSV.
package csvparse

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"reportbot/internal/school"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Columns is the number of fields in a data row.
const Columns = 15

// Result is the outcome of parsing one file. Skipped aggregates the
// problems of every dropped row and is nil when all rows were kept.
type Result struct {
	Schools []school.School
	Rows    int
	Skipped *multierror.Error
}

// SkippedCount returns the number of dropped rows.
func (r Result) SkippedCount() int {
	if r.Skipped == nil {
		return 0
	}
	return len(r.Skipped.Errors)
}

// Parser turns CSV input into schools.
type Parser struct {
	logger *slog.Logger
}

// New creates a parser.
func New() *Parser {
	return &Parser{logger: slog.With("component", "csvparse")}
}

// ParseFile parses the CSV file at path.
func (p *Parser) ParseFile(path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return p.Parse(f)
}

// Parse reads every record after the header. Malformed rows are skipped and
// recorded in Result.Skipped; only read failures are returned as an error.
func (p *Parser) Parse(r io.Reader) (Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true

	var res Result
	header := true
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				res.Rows++
				res.Skipped = multierror.Append(res.Skipped, err)
				continue
			}
			return res, fmt.Errorf("read csv: %w", err)
		}
		if header {
			header = false
			continue
		}
		res.Rows++

		line, _ := reader.FieldPos(0)
		s, err := parseRecord(record)
		if err != nil {
			res.Skipped = multierror.Append(res.Skipped, fmt.Errorf("line %d: %w", line, err))
			continue
		}
		res.Schools = append(res.Schools, s)
	}

	if n := res.SkippedCount(); n > 0 {
		p.logger.Warn("Skipped malformed rows", "skipped", n, "rows", res.Rows)
	}
	return res, nil
}

func parseRecord(record []string) (school.School, error) {
	if len(record) < Columns {
		return school.School{}, fmt.Errorf("expected %d columns, got %d", Columns, len(record))
	}
	for i := range record {
		record[i] = strings.TrimSpace(record[i])
	}

	id := parseInt(record[0])
	if id == nil {
		return school.School{}, errors.New("missing school id")
	}
	if record[2] == "" {
		return school.School{}, fmt.Errorf("school %d: missing name", *id)
	}

	return school.School{
		ID:          *id,
		DistrictID:  parseInt(record[1]),
		Name:        record[2],
		County:      record[3],
		Grades:      record[4],
		Students:    parseInt(record[5]),
		Teachers:    parseFloat(record[6]),
		Calworks:    parseFloat(record[7]),
		Lunch:       parseFloat(record[8]),
		Computers:   parseInt(record[9]),
		Expenditure: parseFloat(record[10]),
		Income:      parseFloat(record[11]),
		English:     parseFloat(record[12]),
		ReadScore:   parseFloat(record[13]),
		MathScore:   parseFloat(record[14]),
	}, nil
}

func parseInt(s string) *int {
	if s == "" {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &v
}

func parseFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// Package school holds the school dataset domain types.
package school

import (
	"fmt"
	"strconv"
	"strings"
)

// School is one row of the dataset. Numeric columns are nil when the source
// value was missing or malformed.
type School struct {
	ID          int
	DistrictID  *int
	Name        string
	County      string
	Grades      string
	Students    *int
	Teachers    *float64
	Calworks    *float64
	Lunch       *float64
	Computers   *int
	Expenditure *float64
	Income      *float64
	English     *float64
	ReadScore   *float64
	MathScore   *float64
}

// ExpenditureStats is the per-county expenditure aggregate.
type ExpenditureStats struct {
	County         string  `db:"county_name" yaml:"county"`
	SchoolCount    int     `db:"school_count" yaml:"school_count"`
	AvgExpenditure float64 `db:"avg_expenditure" yaml:"avg_expenditure"`
	MinExpenditure float64 `db:"min_expenditure" yaml:"min_expenditure"`
	MaxExpenditure float64 `db:"max_expenditure" yaml:"max_expenditure"`
}

// MathSchool is the best math school within a student range.
type MathSchool struct {
	ID          int     `db:"id"`
	Name        string  `db:"school_name"`
	County      string  `db:"county_name"`
	Students    int     `db:"students"`
	MathScore   float64 `db:"math_score"`
	Expenditure float64 `db:"expenditure"`
}

// CountyStudents is the per-county student aggregate.
type CountyStudents struct {
	County        string  `db:"county_name" yaml:"county"`
	SchoolCount   int     `db:"school_count" yaml:"school_count"`
	AvgStudents   float64 `db:"avg_students" yaml:"avg_students"`
	MinStudents   int     `db:"min_students" yaml:"min_students"`
	MaxStudents   int     `db:"max_students" yaml:"max_students"`
	TotalStudents int     `db:"total_students" yaml:"total_students"`
}

// Summary describes the whole database.
type Summary struct {
	TotalSchools   int     `yaml:"total_schools"`
	TotalCounties  int     `yaml:"total_counties"`
	TotalStudents  int     `yaml:"total_students"`
	AvgStudents    float64 `yaml:"avg_students"`
	AvgMathScore   float64 `yaml:"avg_math_score"`
	AvgReadScore   float64 `yaml:"avg_read_score"`
	AvgExpenditure float64 `yaml:"avg_expenditure"`
	MinStudents    int     `yaml:"min_students"`
	MaxStudents    int     `yaml:"max_students"`
}

// Empty reports whether the database holds no schools.
func (s Summary) Empty() bool {
	return s.TotalSchools == 0
}

// StudentRange is an inclusive range of student counts.
type StudentRange struct {
	Min int
	Max int
}

func (r StudentRange) String() string {
	return fmt.Sprintf("%d-%d", r.Min, r.Max)
}

// ParseStudentRange parses "5000-7500".
func ParseStudentRange(s string) (StudentRange, error) {
	lo, hi, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return StudentRange{}, fmt.Errorf("student range %q: expected MIN-MAX", s)
	}
	minV, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return StudentRange{}, fmt.Errorf("student range %q: invalid minimum: %w", s, err)
	}
	maxV, err := strconv.Atoi(strings.TrimSpace(hi))
	if err != nil {
		return StudentRange{}, fmt.Errorf("student range %q: invalid maximum: %w", s, err)
	}
	if minV < 0 || maxV < minV {
		return StudentRange{}, fmt.Errorf("student range %q: minimum must be non-negative and not above maximum", s)
	}
	return StudentRange{Min: minV, Max: maxV}, nil
}

// ParseStudentRanges parses a list of ranges, failing on the first bad one.
func ParseStudentRanges(values []string) ([]StudentRange, error) {
	ranges := make([]StudentRange, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		r, err := ParseStudentRange(v)
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, r)
	}
	return ranges, nil
}

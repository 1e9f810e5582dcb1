// Package report renders query results as chat text and YAML exports.
package report

import (
	"fmt"
	"strings"

	"reportbot/internal/school"
)

// MathSection is the result of one student-range query.
type MathSection struct {
	Range  school.StudentRange
	School *school.MathSchool // nil when no school falls in the range
}

// Formatter renders chat messages. It is stateless.
type Formatter struct{}

// NewFormatter creates a formatter.
func NewFormatter() *Formatter {
	return &Formatter{}
}

// Expenditure renders per-county expenditure statistics.
func (f *Formatter) Expenditure(counties []string, minExpenditure float64, stats []school.ExpenditureStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Average expenditure in %s\n", strings.Join(counties, ", "))

	if len(stats) == 0 {
		fmt.Fprintf(&b, "No data for these counties with expenditure above %s", money(minExpenditure))
		return b.String()
	}

	for _, s := range stats {
		fmt.Fprintf(&b, "\nCounty: %s\n", s.County)
		fmt.Fprintf(&b, "Schools: %d\n", s.SchoolCount)
		fmt.Fprintf(&b, "Average: %s\n", money(s.AvgExpenditure))
		fmt.Fprintf(&b, "Minimum: %s\n", money(s.MinExpenditure))
		fmt.Fprintf(&b, "Maximum: %s\n", money(s.MaxExpenditure))
	}
	return b.String()
}

// MathSchool renders the best school of one range.
func (f *Formatter) MathSchool(section MathSection) string {
	if section.School == nil {
		return fmt.Sprintf("No schools with %s students", section.Range)
	}
	s := section.School
	return fmt.Sprintf("Best school:\nID: %d\nName: %s\nCounty: %s\nStudents: %d\nMath: %.2f\nExpenditure: %s",
		s.ID, s.Name, s.County, s.Students, s.MathScore, money(s.Expenditure))
}

// MathSchools renders one section per student range.
func (f *Formatter) MathSchools(sections []MathSection) string {
	var b strings.Builder
	b.WriteString("Best math schools by student range\n")
	for i, section := range sections {
		fmt.Fprintf(&b, "\nRange %d (%s students):\n", i+1, section.Range)
		b.WriteString(f.MathSchool(section))
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

// CountyStudents renders the student statistics table.
func (f *Formatter) CountyStudents(stats []school.CountyStudents) string {
	if len(stats) == 0 {
		return "No student data.\n\nThe database is empty. Load data with /load"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Student statistics by county (top %d)\n", len(stats))
	for i, s := range stats {
		fmt.Fprintf(&b, "\n%d. %s\n", i+1, s.County)
		fmt.Fprintf(&b, "   Schools: %d\n", s.SchoolCount)
		fmt.Fprintf(&b, "   Average students: %.1f\n", s.AvgStudents)
		fmt.Fprintf(&b, "   Total students: %d\n", s.TotalStudents)
		fmt.Fprintf(&b, "   Range: %d - %d students\n", s.MinStudents, s.MaxStudents)
	}
	return b.String()
}

// CountyStudentsBrief renders the first top counties on one line each.
func (f *Formatter) CountyStudentsBrief(stats []school.CountyStudents, top int) string {
	if len(stats) == 0 {
		return "Student statistics: no data"
	}

	var b strings.Builder
	b.WriteString("Student statistics\n")
	for i, s := range stats {
		if i == top {
			fmt.Fprintf(&b, "... and %d more counties\n", len(stats)-top)
			break
		}
		fmt.Fprintf(&b, "%s: %.1f students on average\n", s.County, s.AvgStudents)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Summary renders the database summary.
func (f *Formatter) Summary(sum school.Summary) string {
	var b strings.Builder
	b.WriteString("Database statistics\n\n")
	fmt.Fprintf(&b, "Schools: %d\n", sum.TotalSchools)
	fmt.Fprintf(&b, "Counties: %d\n", sum.TotalCounties)
	fmt.Fprintf(&b, "Average students: %.2f\n", sum.AvgStudents)
	fmt.Fprintf(&b, "Average math score: %.2f\n", sum.AvgMathScore)
	fmt.Fprintf(&b, "Average read score: %.2f\n", sum.AvgReadScore)
	fmt.Fprintf(&b, "Average expenditure per student: %s\n", money(sum.AvgExpenditure))
	fmt.Fprintf(&b, "Total students: %d\n", sum.TotalStudents)
	fmt.Fprintf(&b, "Smallest school: %d students\n", sum.MinStudents)
	fmt.Fprintf(&b, "Largest school: %d students\n", sum.MaxStudents)
	if sum.Empty() {
		b.WriteString("\nThe database is empty. Use /load to import the CSV file.")
	}
	return strings.TrimRight(b.String(), "\n")
}

// Loaded renders the result of a CSV import.
func (f *Formatter) Loaded(loaded, skipped int) string {
	msg := fmt.Sprintf("Loaded %d schools", loaded)
	if skipped > 0 {
		msg += fmt.Sprintf(" (%d malformed rows skipped)", skipped)
	}
	return msg + "\nYou can now run queries and build charts."
}

// ChartCaption describes the average-students chart.
func (f *Formatter) ChartCaption(stats []school.CountyStudents) string {
	return fmt.Sprintf("Average students per school, %d largest counties", len(stats))
}

// AllQueriesDone renders the final message of a query_all fan-out.
func (f *Formatter) AllQueriesDone(failed int) string {
	if failed == 0 {
		return "All queries finished.\n\nPick a single query from the menu for details."
	}
	return fmt.Sprintf("%d of the queries failed.\n\nTry running them one at a time.", failed)
}

// Status renders the bot status.
func (f *Formatter) Status(stage string, ready bool, workers, active, queued int, completed uint64) string {
	state := "starting"
	if ready {
		state = "ready"
	}
	return fmt.Sprintf("Bot status: %s\nStage: %s\nWorkers: %d (%d busy)\nQueued tasks: %d\nCompleted tasks: %d",
		state, stage, workers, active, queued, completed)
}

// Start is the welcome text.
func (f *Formatter) Start() string {
	return `School data analysis

I analyse the school dataset loaded from a CSV file.

Queries: analytic queries over the database
Charts: data visualisation
Load data: import the CSV file
Statistics: database summary

To begin:
1. Load the data with "Load data"
2. Run the queries
3. Build a chart

Use the buttons below or the commands:
/load /queries /charts /stats /export /help`
}

// Help is the command reference.
func (f *Formatter) Help() string {
	return `Commands:

/start - main menu
/help - this help
/load - load data from the CSV file
/queries - analytic queries
/charts - build a chart
/stats - database statistics
/export - database statistics as YAML
/status - bot status

Buttons:
Queries, Charts, Load data, Statistics, Help, Status

Queries:
1. Average expenditure in selected counties
2. Best math schools by student range
3. Student statistics by county

Charts:
Average students per school by county`
}

// QueriesMenu introduces the query buttons.
func (f *Formatter) QueriesMenu() string {
	return "Choose a query:"
}

// ChartsMenu introduces the chart buttons.
func (f *Formatter) ChartsMenu() string {
	return "Choose a chart:"
}

// Unknown answers input that matches no command.
func (f *Formatter) Unknown() string {
	return "Unknown command. Send /help for the list of commands."
}

func money(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}

// Package testutil provides shared fixtures for tests that need a populated
// school database.
package testutil

import (
	"fmt"
	"strings"

	"reportbot/internal/school"
)

// CSVHeader is the header row of the school dataset.
const CSVHeader = "id,district,school,county,grades,students,teachers,calworks,lunch,computer,expenditure,income,english,read,math"

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func sample(id, district int, name, county string, students *int, expenditure, math, read *float64) school.School {
	return school.School{
		ID:          id,
		DistrictID:  intPtr(district),
		Name:        name,
		County:      county,
		Grades:      "KK-08",
		Students:    students,
		Teachers:    floatPtr(20),
		Calworks:    floatPtr(5.5),
		Lunch:       floatPtr(30),
		Computers:   intPtr(100),
		Expenditure: expenditure,
		Income:      floatPtr(15.2),
		English:     floatPtr(3.1),
		ReadScore:   read,
		MathScore:   math,
	}
}

// Schools returns eleven schools across five counties.
//
//	Fresno        3 schools, expenditure 5000/6000/7000, students 6000/7000/300
//	Contra Costa  2 schools, expenditure 8000/9000, students 10500/400
//	Glenn         1 school, expenditure 4000
//	El Dorado     1 school, expenditure 5 (below the usual minimum of 10)
//	Alameda       4 schools, one with no students, expenditure or scores
//
// Totals over non-null values: 27145 students (min 195, max 10500), average
// math 667, average read 664.66, average expenditure 5608.99.
func Schools() []school.School {
	return []school.School{
		sample(1, 100, "Fresno High", "Fresno", intPtr(6000), floatPtr(5000), floatPtr(700), floatPtr(690)),
		sample(2, 100, "Clovis West", "Fresno", intPtr(7000), floatPtr(6000), floatPtr(720), floatPtr(700)),
		sample(3, 101, "Sunnyside", "Fresno", intPtr(300), floatPtr(7000), floatPtr(640), floatPtr(650)),
		sample(4, 200, "Walnut Creek", "Contra Costa", intPtr(10500), floatPtr(8000), floatPtr(650), floatPtr(660)),
		sample(5, 200, "Orinda", "Contra Costa", intPtr(400), floatPtr(9000), floatPtr(710), floatPtr(705)),
		sample(6, 300, "Willows", "Glenn", intPtr(200), floatPtr(4000), floatPtr(600), floatPtr(610)),
		sample(7, 400, "Placerville", "El Dorado", intPtr(250), floatPtr(5), floatPtr(620), floatPtr(615)),
		sample(8, 500, "Sunol Glen", "Alameda", intPtr(195), floatPtr(6384.9), floatPtr(690), floatPtr(691.6)),
		sample(9, 500, "Fremont", "Alameda", intPtr(500), floatPtr(5500), floatPtr(680), floatPtr(670)),
		sample(10, 501, "Hayward", "Alameda", nil, nil, nil, nil),
		sample(11, 501, "Oakland Tech", "Alameda", intPtr(1800), floatPtr(5200), floatPtr(660), floatPtr(655)),
	}
}

// CSV renders schools in the dataset's CSV layout, header included.
func CSV(schools []school.School) string {
	var b strings.Builder
	b.WriteString(CSVHeader)
	b.WriteByte('\n')
	for _, s := range schools {
		fields := []string{
			fmt.Sprint(s.ID),
			intField(s.DistrictID),
			quote(s.Name),
			quote(s.County),
			s.Grades,
			intField(s.Students),
			floatField(s.Teachers),
			floatField(s.Calworks),
			floatField(s.Lunch),
			intField(s.Computers),
			floatField(s.Expenditure),
			floatField(s.Income),
			floatField(s.English),
			floatField(s.ReadScore),
			floatField(s.MathScore),
		}
		b.WriteString(strings.Join(fields, ","))
		b.WriteByte('\n')
	}
	return b.String()
}

func quote(s string) string {
	if strings.ContainsAny(s, ",\"") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}

func intField(v *int) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(*v)
}

func floatField(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(*v)
}

package storage

import "github.com/doug-martin/goqu/v9"

var (
	countiesTable    = goqu.T("counties")
	districtsTable   = goqu.T("districts")
	schoolsTable     = goqu.T("schools")
	financialsTable  = goqu.T("school_financials")
	performanceTable = goqu.T("school_performance")
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS counties (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT UNIQUE NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS districts (
		id INTEGER PRIMARY KEY,
		name TEXT,
		county_id INTEGER,
		FOREIGN KEY (county_id) REFERENCES counties(id)
	)`,
	`CREATE TABLE IF NOT EXISTS schools (
		id INTEGER PRIMARY KEY,
		district_id INTEGER,
		name TEXT NOT NULL,
		county_id INTEGER,
		grades TEXT,
		students INTEGER,
		teachers REAL,
		computers INTEGER,
		FOREIGN KEY (district_id) REFERENCES districts(id),
		FOREIGN KEY (county_id) REFERENCES counties(id)
	)`,
	`CREATE TABLE IF NOT EXISTS school_financials (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		school_id INTEGER UNIQUE,
		calworks REAL,
		lunch REAL,
		expenditure REAL,
		income REAL,
		fiscal_year DATE DEFAULT CURRENT_DATE,
		FOREIGN KEY (school_id) REFERENCES schools(id)
	)`,
	`CREATE TABLE IF NOT EXISTS school_performance (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		school_id INTEGER UNIQUE,
		english_learners REAL,
		read_score REAL,
		math_score REAL,
		test_date DATE DEFAULT CURRENT_DATE,
		FOREIGN KEY (school_id) REFERENCES schools(id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_schools_district ON schools(district_id)`,
	`CREATE INDEX IF NOT EXISTS idx_schools_county ON schools(county_id)`,
	`CREATE INDEX IF NOT EXISTS idx_performance_math ON school_performance(math_score DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_performance_read ON school_performance(read_score DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_financials_expenditure ON school_financials(expenditure DESC)`,
}

package bot

import "reportbot/internal/messenger"

// Callback data carried by inline buttons.
const (
	CallbackExpenditure  = "query_expenditure"
	CallbackMathSchools  = "query_math_schools"
	CallbackStudentStats = "query_student_stats"
	CallbackAllQueries   = "query_all"
	CallbackChartStudent = "chart_students"
	CallbackDataReload   = "data_reload"
	CallbackDataStats    = "data_stats"
)

// mainKeyboard sends its button text back as a message.
func mainKeyboard() [][]messenger.Button {
	return [][]messenger.Button{
		{{Text: "Queries"}, {Text: "Charts"}},
		{{Text: "Load data"}, {Text: "Statistics"}},
		{{Text: "Help"}, {Text: "Status"}},
	}
}

func queryKeyboard() [][]messenger.Button {
	return [][]messenger.Button{
		{{Text: "Average expenditure", Data: CallbackExpenditure}},
		{{Text: "Best math schools", Data: CallbackMathSchools}},
		{{Text: "Student statistics", Data: CallbackStudentStats}},
		{{Text: "All queries", Data: CallbackAllQueries}},
	}
}

func chartKeyboard() [][]messenger.Button {
	return [][]messenger.Button{
		{{Text: "Average students by county", Data: CallbackChartStudent}},
	}
}

package export

import "github.com/noah-isme/erp-timetable-proxy/internal/models"

// DayColumn heads the first column of a timetable export.
const DayColumn = "Day"

// Dataset defines tabular export content.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// FromTimetable lays a timetable out as one row per day in upstream order.
func FromTimetable(tt *models.Timetable) Dataset {
	headers := append([]string{DayColumn}, tt.Periods...)
	rows := make([]map[string]string, 0, len(tt.Days))
	for _, day := range tt.Days {
		row := map[string]string{DayColumn: day}
		for period, slot := range tt.Slots[day] {
			row[period] = slot
		}
		rows = append(rows, row)
	}
	return Dataset{Headers: headers, Rows: rows}
}

package models

// Timetable is the grid scraped from the portal. Slots is the day -> period ->
// text mapping returned to clients; Days and Periods keep the upstream order.
type Timetable struct {
	Days    []string
	Periods []string
	Slots   map[string]map[string]string
}

// NewTimetable builds an empty timetable for the given period labels.
func NewTimetable(periods []string) *Timetable {
	return &Timetable{
		Periods: periods,
		Slots:   make(map[string]map[string]string),
	}
}

// SetDay zips cells positionally with the period labels. Cells beyond the
// last label are dropped; a repeated day keeps its first position.
func (t *Timetable) SetDay(day string, cells []string) {
	row := make(map[string]string, len(cells))
	for i, cell := range cells {
		if i >= len(t.Periods) {
			break
		}
		row[t.Periods[i]] = cell
	}
	if _, seen := t.Slots[day]; !seen {
		t.Days = append(t.Days, day)
	}
	t.Slots[day] = row
}

// CaptchaChallenge is what the client receives when a session is opened.
type CaptchaChallenge struct {
	Token       string
	Image       []byte
	ContentType string
}

// TimetableQuery selects the term to scrape.
type TimetableQuery struct {
	AcademicYear string
	Semester     string
}

// Credentials are the portal login fields. Password and captcha are never
// logged or stored.
type Credentials struct {
	Username string
	Password string
	Captcha  string
}

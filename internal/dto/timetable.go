package dto

// Export formats accepted by FetchTimetableRequest.Format.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatPDF  = "pdf"
)

// FetchTimetableRequest is the form posted to /fetch-timetable.
type FetchTimetableRequest struct {
	Username         string `form:"username" json:"username" validate:"required"`
	Password         string `form:"password" json:"password" validate:"required"`
	Captcha          string `form:"captcha" json:"captcha" validate:"required"`
	SessionID        string `form:"session_id" json:"session_id" validate:"required"`
	AcademicYearCode string `form:"academic_year_code" json:"academic_year_code" validate:"omitempty,alphanum,max=16"`
	SemesterID       string `form:"semester_id" json:"semester_id" validate:"omitempty,alphanum,max=16"`
	Format           string `form:"format" json:"format" validate:"omitempty,oneof=json csv pdf"`
}

// HealthResponse is returned by the root health route.
type HealthResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/erp-timetable-proxy/internal/dto"
	"github.com/noah-isme/erp-timetable-proxy/internal/models"
	appErrors "github.com/noah-isme/erp-timetable-proxy/pkg/errors"
	"github.com/noah-isme/erp-timetable-proxy/pkg/export"
	"github.com/noah-isme/erp-timetable-proxy/pkg/response"
)

// SessionHeader carries the ticket token issued with a CAPTCHA.
const SessionHeader = "X-Session-ID"

type sessionService interface {
	IssueCaptcha(ctx context.Context) (*models.CaptchaChallenge, error)
	FetchTimetable(ctx context.Context, req dto.FetchTimetableRequest) (*models.Timetable, error)
}

// TimetableHandler exposes the CAPTCHA and timetable endpoints.
type TimetableHandler struct {
	service sessionService
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
}

// NewTimetableHandler constructs a timetable handler.
func NewTimetableHandler(svc sessionService) *TimetableHandler {
	return &TimetableHandler{
		service: svc,
		csv:     export.NewCSVExporter(true),
		pdf:     export.NewPDFExporter(),
	}
}

// GetCaptcha godoc
// @Summary Issue a CAPTCHA
// @Description Opens a portal session and returns its CAPTCHA image. The session token is in the X-Session-ID header.
// @Tags Timetable
// @Produce image/jpeg
// @Success 200 {file} binary
// @Failure 500 {object} response.Envelope
// @Router /get-captcha [get]
func (h *TimetableHandler) GetCaptcha(c *gin.Context) {
	challenge, err := h.service.IssueCaptcha(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	// The CORS middleware exposes SessionHeader to browsers.
	response.Binary(c, challenge.ContentType, challenge.Image, map[string]string{SessionHeader: challenge.Token})
}

// FetchTimetable godoc
// @Summary Log in and fetch the timetable
// @Description Consumes the session token, submits the login and scrapes the timetable.
// @Tags Timetable
// @Accept x-www-form-urlencoded
// @Produce json
// @Param username formData string true "Portal username"
// @Param password formData string true "Portal password"
// @Param captcha formData string true "CAPTCHA answer"
// @Param session_id formData string true "Token from X-Session-ID"
// @Param academic_year_code formData string false "Academic year code"
// @Param semester_id formData string false "Semester id"
// @Param format formData string false "json, csv or pdf"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Router /fetch-timetable [post]
func (h *TimetableHandler) FetchTimetable(c *gin.Context) {
	var req dto.FetchTimetableRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid timetable payload"))
		return
	}
	if req.SessionID == "" {
		req.SessionID = c.GetHeader(SessionHeader)
	}
	req.Format = strings.ToLower(strings.TrimSpace(req.Format))
	if req.Format == "" {
		req.Format = dto.FormatJSON
	}

	timetable, err := h.service.FetchTimetable(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	switch req.Format {
	case dto.FormatCSV:
		body, err := h.csv.Render(export.FromTimetable(timetable))
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Binary(c, "text/csv; charset=utf-8", body, attachment("timetable.csv"))
	case dto.FormatPDF:
		body, err := h.pdf.Render(export.FromTimetable(timetable), "Timetable")
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Binary(c, "application/pdf", body, attachment("timetable.pdf"))
	case dto.FormatJSON:
		response.Timetable(c, timetable.Slots)
	default:
		response.Error(c, appErrors.Wrap(fmt.Errorf("unsupported format %q", req.Format), appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid timetable payload"))
	}
}

func attachment(name string) map[string]string {
	return map[string]string{"Content-Disposition": fmt.Sprintf("attachment; filename=%q", name)}
}

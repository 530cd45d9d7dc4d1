package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/erp-timetable-proxy/internal/dto"
	"github.com/noah-isme/erp-timetable-proxy/internal/models"
	appErrors "github.com/noah-isme/erp-timetable-proxy/pkg/errors"
	"github.com/noah-isme/erp-timetable-proxy/pkg/response"
)

type mockSessionService struct {
	challenge *models.CaptchaChallenge
	timetable *models.Timetable
	err       error
	lastReq   dto.FetchTimetableRequest
}

func (m *mockSessionService) IssueCaptcha(ctx context.Context) (*models.CaptchaChallenge, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.challenge, nil
}

func (m *mockSessionService) FetchTimetable(ctx context.Context, req dto.FetchTimetableRequest) (*models.Timetable, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return m.timetable, nil
}

func newTimetableRouter(svc sessionService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewTimetableHandler(svc)
	r.GET("/get-captcha", h.GetCaptcha)
	r.POST("/fetch-timetable", h.FetchTimetable)
	return r
}

func postForm(r http.Handler, form url.Values, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/fetch-timetable", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func validForm() url.Values {
	return url.Values{
		"username":   {"2100031234"},
		"password":   {"secret"},
		"captcha":    {"X7KQ"},
		"session_id": {"token-1"},
	}
}

func sampleTimetable() *models.Timetable {
	tt := models.NewTimetable([]string{"9-10", "10-11"})
	tt.SetDay("Mon", []string{"Maths", "Physics"})
	tt.SetDay("Tue", []string{"Chemistry", ""})
	return tt
}

func TestGetCaptchaReturnsImageAndSessionHeader(t *testing.T) {
	svc := &mockSessionService{challenge: &models.CaptchaChallenge{Token: "token-1", Image: []byte("jpegdata"), ContentType: "image/jpeg"}}
	r := newTimetableRouter(svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/get-captcha", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))
	assert.Equal(t, "token-1", w.Header().Get(SessionHeader))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Equal(t, []byte("jpegdata"), w.Body.Bytes())
}

func TestGetCaptchaError(t *testing.T) {
	svc := &mockSessionService{err: appErrors.Clone(appErrors.ErrCSRFNotFound, "")}
	r := newTimetableRouter(svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/get-captcha", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, w.Header().Get(SessionHeader))

	var body response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "Failed to get CSRF token", body.Message)
	assert.Equal(t, "CSRF_NOT_FOUND", body.Code)
}

func TestFetchTimetableJSON(t *testing.T) {
	svc := &mockSessionService{timetable: sampleTimetable()}
	r := newTimetableRouter(svc)

	form := validForm()
	form.Set("academic_year_code", "20")
	form.Set("semester_id", "2")
	w := postForm(r, form, nil)

	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, map[string]interface{}{
		"success": true,
		"timetable": map[string]interface{}{
			"Mon": map[string]interface{}{"9-10": "Maths", "10-11": "Physics"},
			"Tue": map[string]interface{}{"9-10": "Chemistry", "10-11": ""},
		},
	}, body)

	assert.Equal(t, dto.FetchTimetableRequest{
		Username:         "2100031234",
		Password:         "secret",
		Captcha:          "X7KQ",
		SessionID:        "token-1",
		AcademicYearCode: "20",
		SemesterID:       "2",
		Format:           dto.FormatJSON,
	}, svc.lastReq)
}

func TestFetchTimetableEmptyGridKeepsTimetableKey(t *testing.T) {
	svc := &mockSessionService{timetable: models.NewTimetable(nil)}
	r := newTimetableRouter(svc)

	w := postForm(r, validForm(), nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"timetable":{}}`, w.Body.String())
}

func TestFetchTimetableSessionHeaderFallback(t *testing.T) {
	svc := &mockSessionService{timetable: sampleTimetable()}
	r := newTimetableRouter(svc)

	form := validForm()
	form.Del("session_id")
	w := postForm(r, form, map[string]string{SessionHeader: "from-header"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "from-header", svc.lastReq.SessionID)
}

func TestFetchTimetableInvalidSession(t *testing.T) {
	svc := &mockSessionService{err: appErrors.Clone(appErrors.ErrInvalidSession, "")}
	r := newTimetableRouter(svc)

	w := postForm(r, validForm(), nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"success":false,"message":"Invalid or expired session","code":"INVALID_SESSION"}`, w.Body.String())
}

func TestFetchTimetableMalformedBody(t *testing.T) {
	svc := &mockSessionService{timetable: sampleTimetable()}
	r := newTimetableRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/fetch-timetable", bytes.NewBufferString("{broken"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, appErrors.ErrValidation.Code, body.Code)
}

func TestFetchTimetableCSV(t *testing.T) {
	svc := &mockSessionService{timetable: sampleTimetable()}
	r := newTimetableRouter(svc)

	form := validForm()
	form.Set("format", "CSV")
	w := postForm(r, form, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "timetable.csv")
	assert.Equal(t, dto.FormatCSV, svc.lastReq.Format)

	csv := strings.TrimPrefix(w.Body.String(), "\xEF\xBB\xBF")
	assert.Equal(t, "Day,9-10,10-11\nMon,Maths,Physics\nTue,Chemistry,\n", csv)
}

func TestFetchTimetablePDF(t *testing.T) {
	svc := &mockSessionService{timetable: sampleTimetable()}
	r := newTimetableRouter(svc)

	form := validForm()
	form.Set("format", "pdf")
	w := postForm(r, form, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))
}

func TestFetchTimetableUnknownFormat(t *testing.T) {
	svc := &mockSessionService{timetable: sampleTimetable()}
	r := newTimetableRouter(svc)

	form := validForm()
	form.Set("format", "xml")
	w := postForm(r, form, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, appErrors.ErrValidation.Code, body.Code)
	assert.Nil(t, body.Timetable)
}

package response

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	appErrors "github.com/noah-isme/erp-timetable-proxy/pkg/errors"
)

func newContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	return c, w
}

func TestTimetableRendersEmptyGrid(t *testing.T) {
	for name, grid := range map[string]map[string]map[string]string{
		"empty": {},
		"nil":   nil,
	} {
		t.Run(name, func(t *testing.T) {
			c, w := newContext()
			Timetable(c, grid)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, `{"success":true,"timetable":{}}`, w.Body.String())
			assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
		})
	}
}

func TestErrorOmitsTimetable(t *testing.T) {
	c, w := newContext()
	Error(c, appErrors.Clone(appErrors.ErrLoginRejected, ""))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"success":false,"message":"Invalid credentials or captcha","code":"LOGIN_REJECTED"}`, w.Body.String())
	assert.Len(t, c.Errors, 1)
}

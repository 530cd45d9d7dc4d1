package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/erp-timetable-proxy/pkg/errors"
)

// Envelope is the response contract shared by every JSON endpoint.
type Envelope struct {
	Success bool `json:"success"`
	// Timetable is set on success only; an empty grid still renders as {}.
	Timetable *map[string]map[string]string `json:"timetable,omitempty"`
	Message   string                        `json:"message,omitempty"`
	Code      string                        `json:"code,omitempty"`
}

func noStore(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
}

// Timetable sends a successful timetable payload.
func Timetable(c *gin.Context, timetable map[string]map[string]string) {
	noStore(c)
	if timetable == nil {
		timetable = map[string]map[string]string{}
	}
	c.JSON(http.StatusOK, Envelope{Success: true, Timetable: &timetable})
}

// Error sends a failure envelope converting the error to the common structure.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	_ = c.Error(err)
	noStore(c)
	c.JSON(appErr.Status, Envelope{Success: false, Message: appErr.Message, Code: appErr.Code})
}

// Binary streams a non-JSON body such as an image or an export.
func Binary(c *gin.Context, contentType string, body []byte, headers map[string]string) {
	noStore(c)
	for k, v := range headers {
		c.Header(k, v)
	}
	c.Data(http.StatusOK, contentType, body)
}

package response

import "github.com/gin-gonic/gin"

const (
	CodeOK                 = 0
	CodeBadRequest         = 40000
	CodeUnknownStyle       = 40002
	CodeUnauthorized       = 40100
	CodeInvalidCredentials = 40101
	CodeNotFound           = 40400
	CodeNoMaterial         = 40401
	CodeSubjectExists      = 40900
	CodeNoActiveSubject    = 40901
	CodeTooLarge           = 41300
	CodeUnsupportedFormat  = 41500
	CodeExtractionFailed   = 42200
	CodeInternalServer     = 50000
	CodeUnavailable        = 50300
)

type APIResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(200, APIResponse{
		Code:    CodeOK,
		Message: "ok",
		Data:    data,
	})
}

func Error(c *gin.Context, httpStatus, code int, message string) {
	c.JSON(httpStatus, APIResponse{
		Code:    code,
		Message: message,
	})
}

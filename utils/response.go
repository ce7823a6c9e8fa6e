package utils

import "github.com/gin-gonic/gin"

// JSONResponse defines the uniform structure for API responses. Field is set
// only for validation failures and names the offending form field.
type JSONResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Field   string      `json:"field,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Respond writes a JSON response with the given status code.
func Respond(ctx *gin.Context, status int, code int, message string, data interface{}) {
	ctx.JSON(status, JSONResponse{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

// Success returns a standard success response.
func Success(ctx *gin.Context, data interface{}) {
	Respond(ctx, 200, 0, "success", data)
}

// Error returns a standard error response.
func Error(ctx *gin.Context, status int, code int, message string) {
	Respond(ctx, status, code, message, nil)
}

// ErrorField returns a 400 response scoped to a single form field. The caller
// keeps its input; nothing was persisted.
func ErrorField(ctx *gin.Context, code int, field, message string) {
	ctx.JSON(400, JSONResponse{
		Code:    code,
		Message: message,
		Field:   field,
	})
}

package utils

import (
	appErrors "fluoride-monitor/pkg/errors"

	"github.com/gin-gonic/gin"
)

// SuccessResponse writes {message, data}.
func SuccessResponse(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, gin.H{
		"message": message,
		"data":    data,
	})
}

// ErrorResponse writes {message} and stops the handler chain.
func ErrorResponse(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"message": message,
	})
}

// ValidationErrorResponse writes {errors:[{field, message}]}.
func ValidationErrorResponse(c *gin.Context, status int, ve *appErrors.ValidationError) {
	fields := ve.Fields
	if fields == nil {
		fields = []appErrors.FieldError{}
	}
	c.AbortWithStatusJSON(status, gin.H{
		"errors": fields,
	})
}

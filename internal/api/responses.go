package api

import (
	"github.com/gin-gonic/gin"
)

// successResponse writes a uniform success envelope.
func successResponse(c *gin.Context, data interface{}) {
	c.JSON(200, gin.H{
		"success": true,
		"data":    data,
	})
}

// errorResponse writes a uniform error envelope with the given status.
func errorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error":   message,
	})
}

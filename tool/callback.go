package tool

import (
	"github.com/gin-gonic/gin"
)

func FastReturnError(msg string) gin.H {
	return gin.H{
		"error": msg,
	}
}

func FastReturnSuccess() gin.H {
	return gin.H{
		"status": "ok",
	}
}

func FastReturnSuccessWithData(data any) gin.H {
	return gin.H{
		"data": data,
	}
}

// FastReturnErrorWithDetails returns an error body listing per-file problems.
func FastReturnErrorWithDetails(msg string, details []string) gin.H {
	return gin.H{
		"error":   msg,
		"details": details,
	}
}

package ginutil

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// QueryInt extracts an integer from query parameters with default value
func QueryInt(c *gin.Context, key string, defaultValue int) int {
	valueStr := c.Query(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// FormBool extracts a boolean from a form field (multipart or urlencoded) with default value
func FormBool(c *gin.Context, key string, defaultValue bool) bool {
	valueStr, ok := c.GetPostForm(key)
	if !ok || valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// ClampLimit bounds a requested page size; values <= 0 fall back to def
func ClampLimit(requested, def, max int) int {
	if requested <= 0 {
		requested = def
	}
	if max > 0 && requested > max {
		return max
	}
	return requested
}

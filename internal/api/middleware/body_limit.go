package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"researchhub/backend/pkg/response"
)

// BodyLimit 请求体大小限制中间件
// multipart 上传使用 uploadBytes，其余请求使用 maxBytes
func BodyLimit(maxBytes, uploadBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			limit := maxBytes
			if strings.HasPrefix(c.ContentType(), "multipart/") {
				limit = uploadBytes
			}
			if c.Request.ContentLength > limit {
				response.Error(c, http.StatusRequestEntityTooLarge, 10005, "请求体过大")
				c.Abort()
				return
			}
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}

		c.Next()
	}
}

package handler

import (
	"github.com/gin-gonic/gin"

	"researchhub/backend/internal/service"
	"researchhub/backend/pkg/response"
)

// readUpload 读取 multipart 文件字段，调用方负责执行返回的 close
func readUpload(c *gin.Context, field string) (service.FileUpload, func(), bool) {
	header, err := c.FormFile(field)
	if err != nil {
		response.BadRequest(c, 10001, "请上传文件")
		return service.FileUpload{}, nil, false
	}
	file, err := header.Open()
	if err != nil {
		response.BadRequest(c, 10001, "无法读取上传文件")
		return service.FileUpload{}, nil, false
	}
	return service.FileUpload{
		FileName:    header.Filename,
		Size:        header.Size,
		ContentType: header.Header.Get("Content-Type"),
		Reader:      file,
	}, func() { _ = file.Close() }, true
}

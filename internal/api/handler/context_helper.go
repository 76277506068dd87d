package handler

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"researchhub/backend/internal/model"
	"researchhub/backend/internal/service"
	pkgerrors "researchhub/backend/pkg/errors"
	"researchhub/backend/pkg/response"
)

// 上下文键，由 middleware.JWTAuth 写入
const (
	ctxUserID       = "user_id"
	ctxRole         = "role"
	ctxDepartmentID = "department_id"
	ctxTokenID      = "token_id"
	ctxTokenExpires = "token_expires_at"
)

// MustGetUserID 从 Gin 上下文中安全提取 user_id。
// 如果 JWT 中间件未正确注入 user_id，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetUserID(c *gin.Context) (string, bool) {
	s := c.GetString(ctxUserID)
	if s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}

// MustGetCaller 组装当前请求的用户上下文
func MustGetCaller(c *gin.Context) (service.Caller, bool) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return service.Caller{}, false
	}
	role, valid := model.ParseRole(c.GetString(ctxRole))
	if !valid {
		response.Unauthorized(c, 10002, "未认证")
		return service.Caller{}, false
	}
	return service.Caller{
		UserID:       userID,
		Role:         role,
		DepartmentID: c.GetString(ctxDepartmentID),
	}, true
}

// tokenMeta 当前 Token 的 jti 与过期时间
func tokenMeta(c *gin.Context) (string, time.Time) {
	return c.GetString(ctxTokenID), c.GetTime(ctxTokenExpires)
}

// handleCommonError 处理跨模块共享的错误，已写响应时返回 true
func handleCommonError(c *gin.Context, err error) bool {
	switch {
	case errors.Is(err, pkgerrors.ErrNoPermission):
		response.Forbidden(c, 10003, "无权执行该操作")
	case errors.Is(err, pkgerrors.ErrOptimisticLock):
		response.Conflict(c, 10006, "数据已被其他操作修改，请刷新后重试")
	case errors.Is(err, pkgerrors.ErrStorageUnavailable):
		response.ServiceUnavailable(c, 10007, "文件存储服务不可用")
	default:
		return false
	}
	return true
}

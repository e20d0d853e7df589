package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/zefirkoooo/food-calendar/backend/internal/api/middleware"
	"github.com/zefirkoooo/food-calendar/backend/pkg/jwt"
	"github.com/zefirkoooo/food-calendar/backend/pkg/response"
)

// MustGetUserID 从 Gin 上下文中安全提取 user_id。
// 如果 JWT 中间件未正确注入 user_id，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetUserID(c *gin.Context) (string, bool) {
	s := c.GetString(middleware.CtxUserID)
	if s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}

// MustGetClaims 提取当前 Access Token 的声明
func MustGetClaims(c *gin.Context) (*jwt.Claims, bool) {
	v, exists := c.Get(middleware.CtxClaims)
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return nil, false
	}
	claims, ok := v.(*jwt.Claims)
	if !ok || claims == nil {
		response.Unauthorized(c, 10002, "未认证")
		return nil, false
	}
	return claims, true
}

// ParseIDParam 校验路径参数为 UUID，非法时写入 400 响应
func ParseIDParam(c *gin.Context, name string) (string, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.BadRequest(c, 10001, "无效的 ID")
		return "", false
	}
	return id.String(), true
}

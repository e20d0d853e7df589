package dto

// ── 用户模块 DTO ──

// UserListRequest 用户列表查询参数
type UserListRequest struct {
	PaginationRequest
}

// CreateUserRequest 管理员创建用户请求
type CreateUserRequest struct {
	Username string `json:"username" binding:"required,min=2,max=150"`
	Password string `json:"password" binding:"omitempty,min=8,max=64"` // 为空则生成临时密码
	Role     string `json:"role"     binding:"omitempty,oneof=admin employee"`
}

// AssignRoleRequest 分配角色请求
type AssignRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=admin employee"`
}

// SetPasswordRequest 管理员设置用户密码请求（为空则生成临时密码）
type SetPasswordRequest struct {
	Password string `json:"password" binding:"omitempty,min=8,max=64"`
}

// CreateUserResponse 创建用户响应
type CreateUserResponse struct {
	User         UserResponse `json:"user"`
	TempPassword string       `json:"temp_password,omitempty"`
}

// ResetPasswordResponse 重置密码响应，仅在生成临时密码时返回 temp_password
type ResetPasswordResponse struct {
	TempPassword string `json:"temp_password,omitempty"`
}

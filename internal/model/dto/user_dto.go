package dto

import "otelapi/internal/model"

// CreateUserRequest 创建用户请求，role 缺省为 user
type CreateUserRequest struct {
	Name  string     `json:"name"`
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
}

// UserListResponse 用户列表
type UserListResponse struct {
	Count int          `json:"count"`
	Users []model.User `json:"users"`
}

// CreateUserResponse 创建用户响应
type CreateUserResponse struct {
	Message string     `json:"message"`
	User    model.User `json:"user"`
}

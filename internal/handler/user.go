package handler

import (
	"context"
	stderrors "errors"
	"strconv"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"go.uber.org/zap"

	"otelapi/internal/model"
	"otelapi/internal/model/dto"
	"otelapi/internal/store"
	"otelapi/pkg/errors"
	"otelapi/pkg/logger"
	"otelapi/pkg/response"
)

// ListUsers 用户列表
// GET /api/users
func (h *Handler) ListUsers(ctx context.Context, c *app.RequestContext) {
	var users []model.User
	err := h.queryDB(ctx, "list_users", func(ctx context.Context) (err error) {
		users, err = h.store.ListUsers(ctx)
		return err
	})
	if err != nil {
		logger.Logger.Error("Failed to list users", zap.Error(err))
		response.Error(ctx, c, errors.InternalServerError)
		return
	}

	logger.Logger.Info("Listed users", zap.Int("count", len(users)))
	response.Success(ctx, c, dto.UserListResponse{Count: len(users), Users: users})
}

// GetUser 按 id 查询用户
// GET /api/users/:id
func (h *Handler) GetUser(ctx context.Context, c *app.RequestContext) {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		response.ErrorWithDetails(ctx, c, errors.InvalidUserID, map[string]interface{}{
			"requested_id": raw,
		})
		return
	}

	var user model.User
	err = h.queryDB(ctx, "get_user", func(ctx context.Context) (err error) {
		user, err = h.store.GetUser(ctx, id)
		return err
	})
	switch {
	case stderrors.Is(err, store.ErrUserNotFound):
		logger.Logger.Warn("User not found", zap.Int64("user_id", id))
		response.ErrorWithDetails(ctx, c, errors.UserNotFound, map[string]interface{}{
			"requested_id": id,
		})
		return
	case err != nil:
		logger.Logger.Error("Failed to get user", zap.Int64("user_id", id), zap.Error(err))
		response.Error(ctx, c, errors.InternalServerError)
		return
	}

	response.Success(ctx, c, user)
}

// CreateUser 创建用户，name 和 email 必填
// POST /api/users
func (h *Handler) CreateUser(ctx context.Context, c *app.RequestContext) {
	var req dto.CreateUserRequest
	if err := c.BindJSON(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" || req.Email == "" {
		response.Error(ctx, c, errors.ValidationFailed)
		return
	}

	var user model.User
	err := h.queryDB(ctx, "create_user", func(ctx context.Context) (err error) {
		user, err = h.store.CreateUser(ctx, req.Name, req.Email, req.Role)
		return err
	})
	if err != nil {
		logger.Logger.Error("Failed to create user", zap.Error(err))
		response.Error(ctx, c, errors.InternalServerError)
		return
	}

	logger.Logger.Info("User created", zap.Int64("user_id", user.ID), zap.String("role", string(user.Role)))
	response.Created(ctx, c, dto.CreateUserResponse{Message: "User created successfully", User: user})
}

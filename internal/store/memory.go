package store

import (
	"context"
	"errors"
	"sync"

	"otelapi/internal/model"
)

// ErrUserNotFound 用户不存在
var ErrUserNotFound = errors.New("user not found")

// Memory 内存中的演示数据，所有读写都在同一把读写锁下
// 返回值都是拷贝，调用方修改不会影响存储
type Memory struct {
	mu         sync.RWMutex
	users      []model.User
	products   []model.Product
	nextUserID int64
}

// NewMemory 创建并写入种子数据
func NewMemory() *Memory {
	m := &Memory{
		users: []model.User{
			{ID: 1, Name: "Alice Smith", Email: "alice@example.com", Role: model.RoleAdmin},
			{ID: 2, Name: "Bob Johnson", Email: "bob@example.com", Role: model.RoleUser},
			{ID: 3, Name: "Carol Davis", Email: "carol@example.com", Role: model.RoleUser},
		},
		products: []model.Product{
			{ID: 1, Name: "Laptop", Price: 2999.99, Stock: 15},
			{ID: 2, Name: "Wireless Mouse", Price: 89.90, Stock: 50},
			{ID: 3, Name: "Mechanical Keyboard", Price: 199.90, Stock: 30},
		},
	}
	m.nextUserID = int64(len(m.users)) + 1
	return m
}

func (m *Memory) ListUsers(ctx context.Context) ([]model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.User, len(m.users))
	copy(out, m.users)
	return out, nil
}

func (m *Memory) GetUser(ctx context.Context, id int64) (model.User, error) {
	if err := ctx.Err(); err != nil {
		return model.User{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return model.User{}, ErrUserNotFound
}

// CreateUser id 在锁内分配，并发创建不会重复
func (m *Memory) CreateUser(ctx context.Context, name, email string, role model.Role) (model.User, error) {
	if err := ctx.Err(); err != nil {
		return model.User{}, err
	}
	if role == "" {
		role = model.RoleUser
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	u := model.User{ID: m.nextUserID, Name: name, Email: email, Role: role}
	m.nextUserID++
	m.users = append(m.users, u)
	return u, nil
}

func (m *Memory) ListProducts(ctx context.Context) ([]model.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Product, len(m.products))
	copy(out, m.products)
	return out, nil
}

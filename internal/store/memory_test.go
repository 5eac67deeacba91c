package store

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"otelapi/internal/model"
)

func TestSeedData(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	users, err := m.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "Alice Smith", users[0].Name)
	assert.Equal(t, model.RoleAdmin, users[0].Role)

	products, err := m.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 3)
	assert.Equal(t, "Laptop", products[0].Name)
	assert.Equal(t, 2999.99, products[0].Price)
	assert.Equal(t, 15, products[0].Stock)
}

func TestGetUser(t *testing.T) {
	m := NewMemory()

	u, err := m.GetUser(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", u.Email)

	_, err = m.GetUser(context.Background(), 999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestCreateUserDefaultsRole(t *testing.T) {
	m := NewMemory()

	u, err := m.CreateUser(context.Background(), "Dave", "dave@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, int64(4), u.ID)
	assert.Equal(t, model.RoleUser, u.Role)

	got, err := m.GetUser(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, u, got)
}

func TestReturnedSlicesAreCopies(t *testing.T) {
	m := NewMemory()

	users, err := m.ListUsers(context.Background())
	require.NoError(t, err)
	users[0].Name = "mutated"

	u, err := m.GetUser(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Alice Smith", u.Name)
}

func TestConcurrentCreateAllocatesUniqueIDs(t *testing.T) {
	m := NewMemory()
	const n = 200

	var wg sync.WaitGroup
	ids := make(chan int64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u, err := m.CreateUser(context.Background(), fmt.Sprintf("u%d", i), fmt.Sprintf("u%d@example.com", i), model.RoleUser)
			if err == nil {
				ids <- u.ID
			}
			_, _ = m.ListUsers(context.Background())
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool, n)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)

	users, err := m.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, n+3)
}

func TestCancelledContext(t *testing.T) {
	m := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.ListUsers(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = m.CreateUser(ctx, "x", "y", "")
	assert.ErrorIs(t, err, context.Canceled)
}

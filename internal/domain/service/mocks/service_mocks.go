package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/turtacn/taskflow/internal/domain/models"
)

type MockPasswordHasher struct {
	mock.Mock
}

func (m *MockPasswordHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

func (m *MockPasswordHasher) Compare(hash, password string) bool {
	args := m.Called(hash, password)
	return args.Bool(0)
}

type MockTokenService struct {
	mock.Mock
}

func (m *MockTokenService) Issue(ctx context.Context, user *models.User) (string, time.Time, error) {
	args := m.Called(ctx, user)
	return args.String(0), args.Get(1).(time.Time), args.Error(2)
}

func (m *MockTokenService) Verify(ctx context.Context, token string) (models.ClientIdentity, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(models.ClientIdentity), args.Error(1)
}

type MockResetTokenStore struct {
	mock.Mock
}

func (m *MockResetTokenStore) Save(ctx context.Context, token, userID string, ttl time.Duration) error {
	args := m.Called(ctx, token, userID, ttl)
	return args.Error(0)
}

func (m *MockResetTokenStore) Consume(ctx context.Context, token string) (string, bool, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Bool(1), args.Error(2)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, event models.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

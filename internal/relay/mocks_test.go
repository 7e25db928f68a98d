package relay_test

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"devconnect/backend/internal/models"
)

// mockClient is a test double for the relay.Client interface.
type mockClient struct {
	userID string
	roomID string
	send   chan models.Envelope

	closeOnce sync.Once
}

func newMockClient(id string) *mockClient {
	return &mockClient{
		userID: id,
		// Buffered to prevent blocking the hub in tests.
		send: make(chan models.Envelope, 16),
	}
}

func (c *mockClient) GetUserID() string                      { return c.userID }
func (c *mockClient) GetRoomID() string                      { return c.roomID }
func (c *mockClient) SetRoomID(id string)                    { c.roomID = id }
func (c *mockClient) GetSendChannel() chan<- models.Envelope { return c.send }

func (c *mockClient) Run() {
	// Not needed for testing.
}

func (c *mockClient) Close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// MockStorage is a testify mock of the storage.Storage interface.
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) AddRoomMember(roomID, userID string) error {
	args := m.Called(roomID, userID)
	return args.Error(0)
}

func (m *MockStorage) RemoveRoomMember(roomID, userID string) error {
	args := m.Called(roomID, userID)
	return args.Error(0)
}

func (m *MockStorage) GetRoomMembers(roomID string) ([]string, error) {
	args := m.Called(roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockStorage) PublishMessage(roomID string, msg models.UserMessagePayload) error {
	args := m.Called(roomID, msg)
	return args.Error(0)
}

func (m *MockStorage) Subscribe(ctx context.Context, handle func(models.UserMessagePayload)) error {
	args := m.Called(ctx, handle)
	return args.Error(0)
}

package mocks

import (
	"github.com/brettbedarf/pseudofs"
	"github.com/stretchr/testify/mock"
)

// MockProvider implements adapters.Provider for testing across packages
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) NewEntry(raw []byte) (pseudofs.DirectoryEntry, error) {
	args := m.Called(raw)

	// Handle function return types (for complex tests)
	if fn, ok := args.Get(0).(func([]byte) pseudofs.DirectoryEntry); ok {
		return fn(raw), args.Error(1)
	}

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(pseudofs.DirectoryEntry), args.Error(1)
}

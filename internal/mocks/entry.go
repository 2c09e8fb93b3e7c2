package mocks

import (
	"github.com/brettbedarf/pseudofs"
	"github.com/brettbedarf/pseudofs/fspath"
	"github.com/stretchr/testify/mock"
)

// MockEntry implements pseudofs.DirectoryEntry for testing across packages.
// Open is recorded and, unless a function return is configured, resolves
// the responder with the configured connection and error.
type MockEntry struct {
	mock.Mock
}

func (m *MockEntry) Open(scope *pseudofs.ExecutionScope, flags pseudofs.OpenFlags, mode uint32, path fspath.Path, responder pseudofs.Responder) {
	args := m.Called(scope, flags, mode, path, responder)

	// Handle function return types (for complex tests)
	if fn, ok := args.Get(0).(func(*pseudofs.ExecutionScope, pseudofs.OpenFlags, uint32, fspath.Path, pseudofs.Responder)); ok {
		fn(scope, flags, mode, path, responder)
		return
	}

	var conn pseudofs.Connection
	if c, ok := args.Get(0).(pseudofs.Connection); ok {
		conn = c
	}
	responder.Respond(conn, args.Error(1))
}

func (m *MockEntry) EntryInfo() pseudofs.EntryInfo {
	args := m.Called()
	return args.Get(0).(pseudofs.EntryInfo)
}

var _ pseudofs.DirectoryEntry = (*MockEntry)(nil)

// MockWatcherSink implements pseudofs.WatcherSink for testing across packages.
type MockWatcherSink struct {
	mock.Mock
}

func (m *MockWatcherSink) Send(msg pseudofs.WatchMessage) error {
	args := m.Called(msg)
	return args.Error(0)
}

var _ pseudofs.WatcherSink = (*MockWatcherSink)(nil)

// MockEntryConstructor implements pseudofs.EntryConstructor for testing across packages.
type MockEntryConstructor struct {
	mock.Mock
}

func (m *MockEntryConstructor) CreateEntry(scope *pseudofs.ExecutionScope, parent pseudofs.MutableDirectory, flags pseudofs.OpenFlags, mode uint32, name string, rest fspath.Path) (pseudofs.DirectoryEntry, error) {
	args := m.Called(scope, parent, flags, mode, name, rest)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(pseudofs.DirectoryEntry), args.Error(1)
}

var _ pseudofs.EntryConstructor = (*MockEntryConstructor)(nil)

// MockConnection implements pseudofs.Connection for testing across packages.
type MockConnection struct {
	mock.Mock
}

func (m *MockConnection) Entry() pseudofs.DirectoryEntry {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(pseudofs.DirectoryEntry)
}

func (m *MockConnection) Flags() pseudofs.OpenFlags {
	args := m.Called()
	return args.Get(0).(pseudofs.OpenFlags)
}

func (m *MockConnection) Close() error {
	args := m.Called()
	return args.Error(0)
}

var _ pseudofs.Connection = (*MockConnection)(nil)

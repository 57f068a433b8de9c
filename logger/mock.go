package logger

import (
	"github.com/stretchr/testify/mock"
)

// MockLogger is a testify mock implementing Logger. Each record is reported
// to the mock as a call named after its level ("Debug", "Warn", ...) with the
// message and the key/value slice as arguments.
type MockLogger struct {
	mock.Mock
}

var _ Logger = (*MockLogger)(nil)

func NewMockLogger() *MockLogger {
	return &MockLogger{}
}

// Expect registers an expectation for one record at level with msg, matching
// any key/values.
func (m *MockLogger) Expect(level Level, msg string) *mock.Call {
	return m.On(methodName(level), msg, mock.Anything)
}

// Tolerate accepts any record at the given levels without asserting on it.
func (m *MockLogger) Tolerate(levels ...Level) {
	for _, level := range levels {
		m.On(methodName(level), mock.Anything, mock.Anything).Maybe()
	}
}

func (m *MockLogger) Debug(msg string, keysAndValues ...any) {
	m.MethodCalled("Debug", msg, keysAndValues)
}

func (m *MockLogger) Info(msg string, keysAndValues ...any) {
	m.MethodCalled("Info", msg, keysAndValues)
}

func (m *MockLogger) Warn(msg string, keysAndValues ...any) {
	m.MethodCalled("Warn", msg, keysAndValues)
}

func (m *MockLogger) Error(msg string, keysAndValues ...any) {
	m.MethodCalled("Error", msg, keysAndValues)
}

func (m *MockLogger) Fatal(msg string, keysAndValues ...any) {
	m.MethodCalled("Fatal", msg, keysAndValues)
}

func (m *MockLogger) SetLevel(level Level) {
	m.Called(level)
}

func (m *MockLogger) Level() Level {
	args := m.Called()
	return args.Get(0).(Level)
}

// With returns the mock itself so expectations set on the parent still apply
// to child loggers. The bound key/values are not recorded.
func (m *MockLogger) With(_ ...any) Logger {
	return m
}

func methodName(level Level) string {
	switch level {
	case DebugLevel:
		return "Debug"
	case InfoLevel:
		return "Info"
	case WarnLevel:
		return "Warn"
	case ErrorLevel:
		return "Error"
	default:
		return "Fatal"
	}
}

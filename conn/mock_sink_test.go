// Hand-written in the layout MockGen produces, for the Sink interface in
// connection.go.

package conn

import (
	reflect "reflect"

	gomock "go.uber.org/mock/gomock"
)

// MockSink is a mock of the Sink interface.
type MockSink struct {
	ctrl     *gomock.Controller
	recorder *MockSinkMockRecorder
}

// MockSinkMockRecorder is the mock recorder for MockSink.
type MockSinkMockRecorder struct {
	mock *MockSink
}

// NewMockSink creates a new mock instance.
func NewMockSink(ctrl *gomock.Controller) *MockSink {
	mock := &MockSink{ctrl: ctrl}
	mock.recorder = &MockSinkMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockSink) EXPECT() *MockSinkMockRecorder {
	return m.recorder
}

// Send mocks base method.
func (m *MockSink) Send(b []byte) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Send", b)
	ret0, _ := ret[0].(error)
	return ret0
}

// Send indicates an expected call of Send.
func (mr *MockSinkMockRecorder) Send(b interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Send", reflect.TypeOf((*MockSink)(nil).Send), b)
}

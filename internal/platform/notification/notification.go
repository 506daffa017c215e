// Package notification delivers outbound SMS. The Twilio client is the
// production gateway; MockSMSGateway records calls for tests and local runs.
package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrGatewayUnavailable is returned when SMS credentials are not configured.
var ErrGatewayUnavailable = errors.New("sms gateway is not configured")

// SMSReceipt is what the gateway reports back for an accepted message.
type SMSReceipt struct {
	SID         string     `json:"sid"`
	Status      string     `json:"status"`
	To          string     `json:"to"`
	From        string     `json:"from,omitempty"`
	Body        string     `json:"body,omitempty"`
	ErrorCode   *int       `json:"errorCode,omitempty"`
	ErrorText   string     `json:"errorMessage,omitempty"`
	DateCreated *time.Time `json:"dateCreated,omitempty"`
	DateSent    *time.Time `json:"dateSent,omitempty"`
}

// SMSGateway sends text messages. Available reports whether the gateway has
// the credentials it needs; callers skip sending when it does not.
type SMSGateway interface {
	Available() bool
	SendSMS(ctx context.Context, to, body string) (*SMSReceipt, error)
}

// MessageLookup fetches delivery status for a previously sent message.
type MessageLookup interface {
	FetchMessage(ctx context.Context, sid string) (*SMSReceipt, error)
}

// SMSCall records a single call to SendSMS.
type SMSCall struct {
	To   string
	Body string
}

// MockSMSGateway is an in-memory SMSGateway.
type MockSMSGateway struct {
	mu         sync.Mutex
	calls      []SMSCall
	Disabled   bool
	ShouldFail bool
	FailError  string
	// FailFor fails only messages addressed to these numbers.
	FailFor map[string]bool
}

func (m *MockSMSGateway) Available() bool { return !m.Disabled }

// SendSMS records the call and optionally returns an error.
func (m *MockSMSGateway) SendSMS(_ context.Context, to, body string) (*SMSReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Disabled {
		return nil, ErrGatewayUnavailable
	}
	m.calls = append(m.calls, SMSCall{To: to, Body: body})
	if m.ShouldFail || m.FailFor[to] {
		msg := m.FailError
		if msg == "" {
			msg = "mock send failure"
		}
		return nil, errors.New(msg)
	}
	return &SMSReceipt{
		SID:    fmt.Sprintf("SM%032d", len(m.calls)),
		Status: "queued",
		To:     to,
		Body:   body,
	}, nil
}

// FetchMessage reports every recorded message as delivered.
func (m *MockSMSGateway) FetchMessage(_ context.Context, sid string) (*SMSReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, call := range m.calls {
		if fmt.Sprintf("SM%032d", i+1) == sid {
			return &SMSReceipt{SID: sid, Status: "delivered", To: call.To, Body: call.Body}, nil
		}
	}
	return nil, fmt.Errorf("message %s not found", sid)
}

// Calls returns a copy of recorded SMS calls.
func (m *MockSMSGateway) Calls() []SMSCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SMSCall, len(m.calls))
	copy(out, m.calls)
	return out
}

package notification

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uma-arai/sbcntr-pickup/internal/apperror"
	"github.com/uma-arai/sbcntr-pickup/internal/line"
	"github.com/uma-arai/sbcntr-pickup/internal/model"
	"github.com/uma-arai/sbcntr-pickup/internal/retry"
)

// MockSender はテスト用の送信先です
// errsの順に結果を返し、尽きた後は成功します
type MockSender struct {
	errs       []error
	calls      int
	retryKeys  []string
	recipients [][]string
}

func (m *MockSender) next() error {
	m.calls++
	if m.calls <= len(m.errs) {
		return m.errs[m.calls-1]
	}
	return nil
}

func (m *MockSender) PushMessage(ctx context.Context, retryKey string, to string, messages ...line.Message) error {
	m.retryKeys = append(m.retryKeys, retryKey)
	m.recipients = append(m.recipients, []string{to})
	return m.next()
}

func (m *MockSender) Multicast(ctx context.Context, retryKey string, to []string, messages ...line.Message) error {
	m.retryKeys = append(m.retryKeys, retryKey)
	m.recipients = append(m.recipients, to)
	return m.next()
}

// MockNotificationLogRepository はテスト用のモックリポジトリです
type MockNotificationLogRepository struct {
	mu        sync.Mutex
	appendErr error
	entries   []model.NotificationLog
}

func (m *MockNotificationLogRepository) Append(ctx context.Context, entry *model.NotificationLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *entry)
	return m.appendErr
}

func (m *MockNotificationLogRepository) ListByReservationID(ctx context.Context, reservationID string) ([]model.NotificationLog, error) {
	return m.entries, nil
}

func newTestDispatcher(sender *MockSender, logs *MockNotificationLogRepository) *Dispatcher {
	return NewDispatcher(sender, logs, NewTemplater("https://example.com"), DefaultPolicy(3, 0), zerolog.Nop())
}

func TestDispatcher_Push(t *testing.T) {
	serverErr := &line.APIError{StatusCode: http.StatusInternalServerError, Message: "internal"}
	authErr := &line.APIError{StatusCode: http.StatusUnauthorized, Message: "auth"}

	tests := []struct {
		name        string
		errs        []error
		appendErr   error
		wantCalls   int
		wantErr     bool
		wantSuccess []bool
	}{
		{
			name:        "初回で成功",
			wantCalls:   1,
			wantSuccess: []bool{true},
		},
		{
			name:        "5xxは再試行して成功",
			errs:        []error{serverErr, serverErr},
			wantCalls:   3,
			wantSuccess: []bool{false, false, true},
		},
		{
			name:        "5xxが続くと上限で失敗",
			errs:        []error{serverErr, serverErr, serverErr},
			wantCalls:   3,
			wantErr:     true,
			wantSuccess: []bool{false, false, false},
		},
		{
			name:        "認証エラーは再試行しない",
			errs:        []error{authErr},
			wantCalls:   1,
			wantErr:     true,
			wantSuccess: []bool{false},
		},
		{
			name:        "履歴の保存に失敗しても送信は成功",
			appendErr:   errors.New("db down"),
			wantCalls:   1,
			wantSuccess: []bool{true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &MockSender{errs: tt.errs}
			logs := &MockNotificationLogRepository{appendErr: tt.appendErr}
			dispatcher := newTestDispatcher(sender, logs)

			err := dispatcher.Push(context.Background(), "U1234", model.NotificationKindConfirmation, newTestReservation())
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperror.Is(err, apperror.KindExternalService))
			} else {
				require.NoError(t, err)
			}

			assert.Equal(t, tt.wantCalls, sender.calls)
			require.Len(t, logs.entries, len(tt.wantSuccess))
			for i, entry := range logs.entries {
				assert.Equal(t, i+1, entry.Attempt)
				assert.Equal(t, tt.wantSuccess[i], entry.Success)
				assert.Equal(t, "U1234", entry.Recipient)
				assert.Equal(t, model.NotificationKindConfirmation, entry.Kind)
				require.NotNil(t, entry.ReservationID)
				if !entry.Success {
					require.NotNil(t, entry.StatusCode)
					assert.NotEmpty(t, entry.ErrorMessage)
				}
			}

			// 再送時は同じリトライキーを使う
			for _, key := range sender.retryKeys {
				assert.Equal(t, sender.retryKeys[0], key)
			}
		})
	}
}

func TestDispatcher_PushValidation(t *testing.T) {
	dispatcher := newTestDispatcher(&MockSender{}, &MockNotificationLogRepository{})

	err := dispatcher.Push(context.Background(), "", model.NotificationKindConfirmation, newTestReservation())
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	err = dispatcher.Push(context.Background(), "U1", "unknown", newTestReservation())
	assert.True(t, apperror.Is(err, apperror.KindValidation))
}

func TestDispatcher_Multicast(t *testing.T) {
	recipients := make([]string, line.MaxMulticastRecipients+2)
	for i := range recipients {
		recipients[i] = "U" + string(rune('A'+i%26))
	}

	sender := &MockSender{}
	logs := &MockNotificationLogRepository{}
	dispatcher := newTestDispatcher(sender, logs)

	err := dispatcher.Multicast(context.Background(), recipients, model.NotificationKindReminder, newTestReservation())
	require.NoError(t, err)

	// 上限ごとに分割される
	assert.Equal(t, 2, sender.calls)
	assert.Len(t, sender.recipients[0], line.MaxMulticastRecipients)
	assert.Len(t, sender.recipients[1], 2)
	assert.NotEqual(t, sender.retryKeys[0], sender.retryKeys[1])
	// 送信先ごとに履歴が残る
	assert.Len(t, logs.entries, len(recipients))
}

func TestDispatcher_MulticastPartialFailure(t *testing.T) {
	sender := &MockSender{errs: []error{&line.APIError{StatusCode: http.StatusBadRequest, Message: "invalid"}}}
	logs := &MockNotificationLogRepository{}
	dispatcher := NewDispatcher(sender, logs, NewTemplater(""), retry.Policy{MaxAttempts: 2, Retryable: line.Retryable}, zerolog.Nop())

	err := dispatcher.Multicast(context.Background(), []string{"U1", "U2"}, model.NotificationKindReminder, newTestReservation())
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindExternalService))
	assert.Equal(t, 1, sender.calls)
	require.Len(t, logs.entries, 2)
	assert.False(t, logs.entries[0].Success)

	assert.NoError(t, dispatcher.Multicast(context.Background(), nil, model.NotificationKindReminder, newTestReservation()))
}

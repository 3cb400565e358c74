package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/uma-arai/sbcntr-pickup/internal/apperror"
	"github.com/uma-arai/sbcntr-pickup/internal/common/tracing"
	"github.com/uma-arai/sbcntr-pickup/internal/line"
	"github.com/uma-arai/sbcntr-pickup/internal/model"
	"github.com/uma-arai/sbcntr-pickup/internal/repository"
	"github.com/uma-arai/sbcntr-pickup/internal/retry"
)

// Sender はメッセージの送信先です
type Sender interface {
	PushMessage(ctx context.Context, retryKey string, to string, messages ...line.Message) error
	Multicast(ctx context.Context, retryKey string, to []string, messages ...line.Message) error
}

// Dispatcher は予約に関する通知を送信し、試行ごとに送信履歴を残します
type Dispatcher struct {
	sender    Sender
	logs      repository.NotificationLogRepository
	templater *Templater
	policy    retry.Policy
	logger    zerolog.Logger
	now       func() time.Time
}

// DefaultPolicy は通知送信の既定の再試行方針です
func DefaultPolicy(maxAttempts int, backoff time.Duration) retry.Policy {
	return retry.Policy{
		MaxAttempts: maxAttempts,
		Backoff:     retry.Linear(backoff),
		Retryable:   line.Retryable,
	}
}

func NewDispatcher(
	sender Sender,
	logs repository.NotificationLogRepository,
	templater *Templater,
	policy retry.Policy,
	logger zerolog.Logger,
) *Dispatcher {
	return &Dispatcher{
		sender:    sender,
		logs:      logs,
		templater: templater,
		policy:    policy,
		logger:    logger,
		now:       time.Now,
	}
}

// Push は1ユーザーに通知を送信します
func (d *Dispatcher) Push(ctx context.Context, to string, kind model.NotificationKind, r *model.Reservation) (err error) {
	ctx, end := tracing.Start(ctx, "NotificationDispatcher.Push")
	defer func() { end(err) }()

	if to == "" {
		return apperror.Validation([]string{"recipient is required"})
	}
	msg, err := d.templater.Render(kind, r)
	if err != nil {
		return apperror.Validation([]string{err.Error()})
	}

	retryKey := uuid.NewString()
	err = retry.Do(ctx, d.policy, func(ctx context.Context, attempt int) error {
		sendErr := d.sender.PushMessage(ctx, retryKey, to, msg)
		d.record(ctx, []string{to}, kind, r, attempt, sendErr)
		return sendErr
	})
	if err != nil {
		return apperror.ExternalService("line push", err)
	}
	return nil
}

// Multicast は複数ユーザーに同じ通知を送信します
// 送信先は上限ごとに分割し、いずれかの分割が失敗した場合はすべての分割を試したうえでエラーを返します
func (d *Dispatcher) Multicast(ctx context.Context, to []string, kind model.NotificationKind, r *model.Reservation) (err error) {
	ctx, end := tracing.Start(ctx, "NotificationDispatcher.Multicast")
	defer func() { end(err) }()

	if len(to) == 0 {
		return nil
	}
	msg, err := d.templater.Render(kind, r)
	if err != nil {
		return apperror.Validation([]string{err.Error()})
	}

	var errs []error
	for start := 0; start < len(to); start += line.MaxMulticastRecipients {
		chunk := to[start:min(start+line.MaxMulticastRecipients, len(to))]
		retryKey := uuid.NewString()
		chunkErr := retry.Do(ctx, d.policy, func(ctx context.Context, attempt int) error {
			sendErr := d.sender.Multicast(ctx, retryKey, chunk, msg)
			d.record(ctx, chunk, kind, r, attempt, sendErr)
			return sendErr
		})
		if chunkErr != nil {
			errs = append(errs, fmt.Errorf("recipients %d-%d: %w", start, start+len(chunk)-1, chunkErr))
		}
	}
	if len(errs) > 0 {
		return apperror.ExternalService("line multicast", errors.Join(errs...))
	}
	return nil
}

// record は送信履歴を追記します。追記の失敗はログに残すだけで送信結果には影響させません
func (d *Dispatcher) record(ctx context.Context, recipients []string, kind model.NotificationKind, r *model.Reservation, attempt int, sendErr error) {
	var reservationID *string
	if r != nil && r.ID != "" {
		id := r.ID
		reservationID = &id
	}

	var (
		statusCode *int
		errMessage string
	)
	if sendErr != nil {
		errMessage = sendErr.Error()
		if code, ok := line.StatusCode(sendErr); ok {
			statusCode = &code
		}
		d.logger.Warn().
			Err(sendErr).
			Str("kind", string(kind)).
			Int("attempt", attempt).
			Int("recipients", len(recipients)).
			Msg("line notification attempt failed")
	}

	now := d.now()
	for _, recipient := range recipients {
		entry := &model.NotificationLog{
			Recipient:     recipient,
			Kind:          kind,
			ReservationID: reservationID,
			Attempt:       attempt,
			Success:       sendErr == nil,
			StatusCode:    statusCode,
			ErrorMessage:  errMessage,
			CreatedAt:     now,
		}
		if err := d.logs.Append(ctx, entry); err != nil {
			d.logger.Error().
				Err(err).
				Str("recipient", recipient).
				Str("kind", string(kind)).
				Msg("failed to append notification log")
		}
	}
}

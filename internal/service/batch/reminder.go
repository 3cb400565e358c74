package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/rs/zerolog"
	"github.com/uma-arai/sbcntr-pickup/internal/common/config"
	"github.com/uma-arai/sbcntr-pickup/internal/common/tracing"
	"github.com/uma-arai/sbcntr-pickup/internal/common/utils"
	"github.com/uma-arai/sbcntr-pickup/internal/model"
	"github.com/uma-arai/sbcntr-pickup/internal/repository"
	"golang.org/x/sync/errgroup"
)

const (
	// reminderPageSize は予約を読み込む1回あたりの件数です
	reminderPageSize = 500
	// reminderConcurrency は同時に送信する通知の数です
	reminderConcurrency = 4
)

// ReminderSender は予約1件分のリマインドを送信します
type ReminderSender interface {
	Push(ctx context.Context, to string, kind model.NotificationKind, r *model.Reservation) error
}

// TaskReporter はStep Functionsへタスクの結果を返します
type TaskReporter interface {
	SendTaskSuccess(ctx context.Context, params *sfn.SendTaskSuccessInput, optFns ...func(*sfn.Options)) (*sfn.SendTaskSuccessOutput, error)
	SendTaskFailure(ctx context.Context, params *sfn.SendTaskFailureInput, optFns ...func(*sfn.Options)) (*sfn.SendTaskFailureOutput, error)
}

var _ TaskReporter = (*sfn.Client)(nil)

// ReminderBatchService は翌日受け取りの予約にリマインドを送信するバッチです
type ReminderBatchService struct {
	reservations repository.ReservationRepository
	sender       ReminderSender
	reporter     TaskReporter
	cfg          *config.Config
	loc          *time.Location
	logger       zerolog.Logger
	now          func() time.Time

	event model.ReminderEvent
}

// NewReminderBatchService は新しいReminderBatchServiceを作成します
// reporterがnilの場合はStep Functionsへの通知を行いません
func NewReminderBatchService(
	cfg *config.Config,
	reservations repository.ReservationRepository,
	sender ReminderSender,
	reporter TaskReporter,
	logger zerolog.Logger,
) *ReminderBatchService {
	return &ReminderBatchService{
		reservations: reservations,
		sender:       sender,
		reporter:     reporter,
		cfg:          cfg,
		loc:          utils.JST,
		logger:       logger,
		now:          time.Now,
	}
}

// Event は直近の実行結果を返します
func (s *ReminderBatchService) Event() model.ReminderEvent {
	return s.event
}

// Run はリマインドを送信し、結果をStep Functionsへ返します
// 個々の送信失敗は件数として数え、バッチ自体は失敗させません
func (s *ReminderBatchService) Run(ctx context.Context) (err error) {
	ctx, end := tracing.Start(ctx, "ReminderBatchService.Run")
	defer func() { end(err) }()

	startTime := s.now()
	pickupDate := utils.Tomorrow(startTime, s.loc)

	reservations, err := s.loadTargets(ctx, pickupDate)
	if err != nil {
		return utils.WithStack(fmt.Errorf("failed to load reservations for %s: %w", pickupDate, err))
	}
	s.logger.Info().Str("pickup_date", pickupDate).Int("targets", len(reservations)).Msg("reminder targets loaded")

	event := s.send(ctx, pickupDate, reservations)
	s.event = event
	tracing.AddMetadata(ctx, "reminder", event)

	if err := s.sendTaskSuccess(ctx, event); err != nil {
		return utils.WithStack(fmt.Errorf("failed to send task success: %w", err))
	}

	s.logger.Info().
		Str("pickup_date", event.PickupDate).
		Int("sent", event.Sent).
		Int("failed", event.Failed).
		Int("skipped", event.Skipped).
		Dur("duration", s.now().Sub(startTime)).
		Msg("reminder batch completed")
	return nil
}

// ReportFailure はバッチの失敗をStep Functionsへ通知します
func (s *ReminderBatchService) ReportFailure(ctx context.Context, cause error) error {
	if s.skipReport() {
		return nil
	}
	_, err := s.reporter.SendTaskFailure(ctx, &sfn.SendTaskFailureInput{
		TaskToken: aws.String(s.cfg.SFN.TaskToken),
		Error:     aws.String("ReminderBatchFailed"),
		Cause:     aws.String(cause.Error()),
	})
	if err != nil {
		return fmt.Errorf("failed to send task failure: %w", err)
	}
	return nil
}

// loadTargets は受け取り日が指定日の確定済み予約をすべて読み込みます
func (s *ReminderBatchService) loadTargets(ctx context.Context, pickupDate string) ([]model.Reservation, error) {
	var targets []model.Reservation
	for offset := 0; ; offset += reminderPageSize {
		page, err := s.reservations.List(ctx, model.ReservationFilter{
			Status:     model.ReservationStatusConfirmed,
			PickupDate: pickupDate,
			Limit:      reminderPageSize,
			Offset:     offset,
		})
		if err != nil {
			return nil, err
		}
		targets = append(targets, page...)
		if len(page) < reminderPageSize {
			return targets, nil
		}
	}
}

func (s *ReminderBatchService) send(ctx context.Context, pickupDate string, reservations []model.Reservation) model.ReminderEvent {
	event := model.ReminderEvent{PickupDate: pickupDate, Targets: len(reservations)}

	// 宛先のない予約はgoroutineを起動する前に数える
	recipients := make([]*model.Reservation, 0, len(reservations))
	for i := range reservations {
		if reservations[i].LineUserID == "" {
			event.Skipped++
			continue
		}
		recipients = append(recipients, &reservations[i])
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reminderConcurrency)
	for _, r := range recipients {
		g.Go(func() error {
			err := s.sender.Push(gctx, r.LineUserID, model.NotificationKindReminder, r)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				event.Failed++
				s.logger.Warn().Err(err).Str("reservation_id", r.ID).Msg("failed to send reminder")
				return nil
			}
			event.Sent++
			return nil
		})
	}
	_ = g.Wait()
	return event
}

// sendTaskSuccess は送信結果をStep Functionsへ返します
func (s *ReminderBatchService) sendTaskSuccess(ctx context.Context, event model.ReminderEvent) error {
	if s.skipReport() {
		s.logger.Info().Msg("local environment or no Step Functions client, skipping task success notification")
		return nil
	}
	if s.cfg.SFN.TaskToken == "" {
		return errors.New("task token is not set")
	}

	output, err := json.Marshal(map[string]any{"reminder": event})
	if err != nil {
		return fmt.Errorf("failed to marshal reminder event: %w", err)
	}

	_, err = s.reporter.SendTaskSuccess(ctx, &sfn.SendTaskSuccessInput{
		TaskToken: aws.String(s.cfg.SFN.TaskToken),
		Output:    aws.String(string(output)),
	})
	return err
}

func (s *ReminderBatchService) skipReport() bool {
	return s.reporter == nil || s.cfg.IsLocal()
}

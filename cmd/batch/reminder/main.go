package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/uma-arai/sbcntr-pickup/internal/common/config"
	"github.com/uma-arai/sbcntr-pickup/internal/common/database"
	"github.com/uma-arai/sbcntr-pickup/internal/common/logger"
	"github.com/uma-arai/sbcntr-pickup/internal/common/utils"
	"github.com/uma-arai/sbcntr-pickup/internal/line"
	"github.com/uma-arai/sbcntr-pickup/internal/repository"
	"github.com/uma-arai/sbcntr-pickup/internal/service/batch"
	"github.com/uma-arai/sbcntr-pickup/internal/service/notification"
)

const projectName = "sbcntr-pickup-reminder"

func main() {
	timeout := flag.Duration("timeout", 5*time.Minute, "バッチ処理のタイムアウト時間")
	flag.Parse()

	// 最後の引数として渡されたタスクトークンを取得
	// ENV=LOCALの場合はタスクトークンを取得しない
	taskToken := "DUMMY_TASK_TOKEN"
	if os.Getenv("ENV") != "LOCAL" {
		if flag.NArg() == 0 {
			log.Fatalf("Task token is required")
		}
		taskToken = flag.Arg(flag.NArg() - 1)
	}

	cfg, err := config.LoadConfig(taskToken)
	if err != nil {
		log.Fatalf("Failed to load config: %v\nStack trace:\n%s", err, debug.Stack())
	}
	logger := logger.New(cfg.Env, projectName)

	if cfg.EnableTracing {
		if err := xray.Configure(xray.Config{
			DaemonAddr:     "127.0.0.1:2000",
			ServiceVersion: "1.0.0",
		}); err != nil {
			logger.Warn().Err(err).Msg("failed to configure X-Ray, using defaults")
			if configErr := xray.Configure(xray.Config{}); configErr != nil {
				logger.Fatal().Err(configErr).Msg("failed to configure default X-Ray settings")
			}
		}
		os.Setenv("AWS_XRAY_CONTEXT_MISSING", "LOG_ERROR")
	}

	// Step Functionsクライアントはローカル以外でのみ作成する
	var reporter batch.TaskReporter
	if !cfg.IsLocal() {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to load AWS config")
		}
		reporter = sfn.NewFromConfig(awsCfg)
	}

	conn, err := database.Open(cfg.DB)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	db := repository.NewDB(conn)
	defer db.Close()

	var lineOpts []line.ClientOption
	if cfg.EnableTracing {
		lineOpts = append(lineOpts, line.WithTracing())
	}
	dispatcher := notification.NewDispatcher(
		line.NewClient(cfg.Line.APIBaseURL, cfg.Line.ChannelAccessToken, cfg.Line.Timeout, lineOpts...),
		repository.NewNotificationLogRepository(db),
		notification.NewTemplater(cfg.PublicBaseURL),
		notification.DefaultPolicy(cfg.Notify.MaxAttempts, cfg.Notify.Backoff),
		logger,
	)

	service := batch.NewReminderBatchService(cfg, repository.NewReservationRepository(db), dispatcher, reporter, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.EnableTracing {
		var seg *xray.Segment
		ctx, seg = xray.BeginSegment(ctx, projectName)
		defer seg.Close(nil)

		if err := seg.AddMetadata("timeout", timeout.String()); err != nil {
			logger.Warn().Err(err).Msg("failed to add timeout metadata")
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- utils.RunWithTimeout(ctx, *timeout, service.Run)
	}()

	select {
	case sig := <-sigChan:
		logger.Warn().Str("signal", sig.String()).Msg("received signal, stopping batch")
		cancel()
		<-errChan
		os.Exit(1)
	case err := <-errChan:
		if err != nil {
			logger.Error().Err(err).Str("stack", utils.StackOf(err)).Msg("reminder batch failed")

			reportCtx, reportCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer reportCancel()
			if reportErr := service.ReportFailure(reportCtx, err); reportErr != nil {
				logger.Error().Err(reportErr).Msg("failed to report batch failure")
			}
			os.Exit(1)
		}
		event := service.Event()
		logger.Info().
			Str("pickup_date", event.PickupDate).
			Int("targets", event.Targets).
			Int("sent", event.Sent).
			Msg("batch process completed successfully")
	}
}

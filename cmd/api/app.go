package main

import (
	"context"
	"fmt"

	config "github.com/anjiri1684/marketplace_booking/configs"
	"github.com/anjiri1684/marketplace_booking/database"
	"github.com/anjiri1684/marketplace_booking/jobs"
	"github.com/anjiri1684/marketplace_booking/notifications"
	"github.com/anjiri1684/marketplace_booking/repository"
	"github.com/anjiri1684/marketplace_booking/services"
	"github.com/anjiri1684/marketplace_booking/utils"
	"github.com/anjiri1684/marketplace_booking/websocket"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type application struct {
	settings  *config.Settings
	log       *zap.Logger
	db        *gorm.DB
	redis     *redis.Client
	slots     *repository.SlotRepo
	bookings  *services.BookingService
	hub       *websocket.Hub
	processor *jobs.QueueProcessor
}

// loadBase reads configuration, sets up logging and opens the database.
func loadBase() (*application, error) {
	settings, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	utils.InitializeLogger(config.IsProduction())
	log := utils.GetLogger()

	db, err := database.ConnectDB(settings.DatabaseURL, log)
	if err != nil {
		return nil, err
	}
	return &application{settings: settings, log: log, db: db}, nil
}

// newApplication wires the booking service and queue processor. With
// withHub the in-app websocket hub is one of the delivery channels.
func newApplication(ctx context.Context, withHub bool) (*application, error) {
	a, err := loadBase()
	if err != nil {
		return nil, err
	}
	s := a.settings
	loc := s.Location()
	clock := utils.RealClock()

	a.slots = repository.NewSlotRepo(a.db)
	queue := repository.NewNotificationRepo(a.db)
	scheduler := services.NewDeadlineScheduler(queue, clock, loc, a.log.Named("scheduler"))
	a.bookings = services.NewBookingService(services.BookingDeps{
		Slots:             a.slots,
		Bookings:          repository.NewBookingRepo(a.db),
		Proposals:         repository.NewProposalRepo(a.db),
		Payments:          repository.NewPaymentRepo(a.db),
		Scheduler:         scheduler,
		Clock:             clock,
		Logger:            a.log.Named("bookings"),
		PaymentDeadline:   s.PaymentDeadline(),
		PrepaymentPercent: s.PrepaymentPercent,
		Location:          loc,
	})

	var channels notifications.Fanout
	if withHub {
		a.hub = websocket.NewHub(a.log.Named("hub"))
		channels = append(channels, a.hub)
	}
	if brevo := notifications.NewBrevoService(s.BrevoAPIKey, s.EmailSender, s.EmailSenderName, a.log); brevo != nil {
		channels = append(channels, &notifications.EmailDeliverer{
			Contacts: repository.NewUserRepo(a.db),
			Client:   brevo,
		})
	}
	if len(channels) == 0 {
		a.log.Warn("⚠️ No delivery channel configured; notifications will be recorded as failed")
	}

	var lease jobs.Lease
	if s.RedisAddr != "" {
		client, err := jobs.ConnectRedis(ctx, s.RedisAddr, s.RedisPassword, s.RedisDB)
		if err != nil {
			return nil, err
		}
		a.redis = client
		lease = jobs.NewRedisLease(client)
		a.log.Info("✅ Redis tick lease enabled", zap.String("addr", s.RedisAddr))
	}

	a.processor = jobs.NewQueueProcessor(jobs.Deps{
		Queue:     queue,
		Bookings:  a.bookings,
		Canceller: a.bookings,
		Deliverer: channels,
		Lease:     lease,
		Clock:     clock,
		Logger:    a.log.Named("queue"),
	}, jobs.Options{
		Schedule:     s.QueueSchedule,
		BatchSize:    s.QueueBatchSize,
		Concurrency:  s.QueueConcurrency,
		ClaimTimeout: s.QueueClaimTimeout,
		RatePerSec:   s.DeliveryRatePerSec,
		Location:     loc,
	})
	return a, nil
}

func (a *application) close() {
	if a.redis != nil {
		a.redis.Close()
	}
	if sqlDB, err := a.db.DB(); err == nil {
		sqlDB.Close()
	}
	a.log.Sync()
}

func (a *application) startWorker(ctx context.Context) error {
	if _, err := a.processor.Start(ctx); err != nil {
		return fmt.Errorf("start queue processor: %w", err)
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anjiri1684/marketplace_booking/database"
	"github.com/anjiri1684/marketplace_booking/handlers"
	"github.com/anjiri1684/marketplace_booking/payments"
	"github.com/anjiri1684/marketplace_booking/routes"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	var (
		migrateUp bool
		noWorker  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the queue worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := newApplication(ctx, true)
			if err != nil {
				return err
			}
			defer a.close()

			if migrateUp {
				if err := database.Migrate(a.db, a.log); err != nil {
					return err
				}
			}

			go a.hub.Run(ctx)
			if !noWorker {
				if err := a.startWorker(ctx); err != nil {
					return err
				}
			}

			handlers.Init(handlers.Deps{
				Bookings:      a.bookings,
				Slots:         a.slots,
				Gateway:       payments.NewHostedCheckout(a.settings.PaymentCheckoutURL, a.settings.PaymentWebhookSecret),
				Hub:           a.hub,
				WebhookSecret: a.settings.PaymentWebhookSecret,
				Location:      a.settings.Location(),
				Logger:        a.log.Named("http"),
			})

			app := newFiberApp(a)
			go func() {
				<-ctx.Done()
				_ = app.ShutdownWithTimeout(10 * time.Second)
			}()

			a.log.Info("✅ Server is running", zap.String("port", a.settings.AppPort))
			if err := app.Listen(":" + a.settings.AppPort); err != nil {
				return fmt.Errorf("server failed: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", false, "run database migrations on startup")
	cmd.Flags().BoolVar(&noWorker, "no-worker", false, "serve HTTP only, leave the queue to a separate worker")
	return cmd
}

func newFiberApp(a *application) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:       "Marketplace Booking",
		CaseSensitive: true,
		StrictRouting: true,
		ReadTimeout:   15 * time.Second,
		WriteTimeout:  15 * time.Second,
		IdleTimeout:   60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}

			a.log.Error("request error",
				zap.Error(err), zap.String("path", c.Path()), zap.String("method", c.Method()))
			return c.Status(code).JSON(fiber.Map{
				"status":  "error",
				"code":    code,
				"message": err.Error(),
			})
		},
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, X-Signature, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods:  "GET, POST, OPTIONS",
		ExposeHeaders: "Content-Length",
		MaxAge:        86400,
	}))
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   a.settings.AppTimezone,
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	routes.Register(app)
	return app
}

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run only the deadline/notification queue worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := newApplication(ctx, false)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.startWorker(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			a.log.Info("worker stopping")
			return nil
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadBase()
			if err != nil {
				return err
			}
			defer a.close()
			return database.Migrate(a.db, a.log)
		},
	}
}

func newProcessOnceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process-once",
		Short: "Run a single queue pass and print its stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := newApplication(ctx, false)
			if err != nil {
				return err
			}
			defer a.close()

			stats, err := a.processor.RunOnce(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "due=%d claimed=%d delivered=%d failed=%d skipped=%d auto_cancelled=%d\n",
				stats.Due, stats.Claimed, stats.Delivered, stats.Failed, stats.Skipped, stats.AutoCancelled)
			return err
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "booking %s (commit=%s, built=%s)\n", Version, CommitSHA, BuildDate)
		},
	}
}

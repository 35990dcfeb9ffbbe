package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdg-garage/club-booking-api/internal/auth"
	"github.com/gdg-garage/club-booking-api/internal/config"
	"github.com/gdg-garage/club-booking-api/internal/database"
	"github.com/gdg-garage/club-booking-api/internal/events"
	"github.com/gdg-garage/club-booking-api/internal/handlers"
	"github.com/gdg-garage/club-booking-api/internal/jobs"
	"github.com/gdg-garage/club-booking-api/internal/ledger"
	"github.com/gdg-garage/club-booking-api/internal/lockset"
	"github.com/gdg-garage/club-booking-api/internal/notifier"
	"github.com/gdg-garage/club-booking-api/internal/ratelimit"
	"github.com/gdg-garage/club-booking-api/internal/scheduling"
	"github.com/go-chi/chi/v5"
	"github.com/robfig/cron/v3"
)

func main() {
	// Load Configuration
	cfg := config.LoadConfig()

	// Connect to Database
	db := database.Connect(cfg)

	// Notifications go to Discord when configured, otherwise to the log.
	var gateway notifier.Gateway = notifier.LogGateway{}
	discordGateway, err := notifier.NewDiscordGateway(cfg)
	if err != nil {
		log.Printf("Discord notifier not initialized: %v", err)
	} else {
		gateway = discordGateway
	}
	dispatcher := notifier.NewDispatcher(gateway, cfg.NotifyTimeout)

	// Initialize catalogs and ledger
	locks := lockset.New()
	limits := cfg.Limits()
	slotCatalog := scheduling.NewCatalog(db, locks, limits)
	eventCatalog := events.NewCatalog(db, locks, limits, dispatcher)
	bookings := ledger.NewLedger(db, locks, slotCatalog, eventCatalog, dispatcher)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	limiter := ratelimit.NewStore(cfg.RegistrationRatePerSecond, cfg.RegistrationBurst)
	limiter.StartJanitor(ctx)

	// Schedule session reminders
	scheduler := cron.New()
	reminders := jobs.NewReminders(db, dispatcher, cfg.ReminderLead)
	if _, err := jobs.Schedule(scheduler, cfg.ReminderSchedule, reminders); err != nil {
		log.Fatalf("Invalid reminder schedule %q: %v", cfg.ReminderSchedule, err)
	}
	scheduler.Start()

	// Initialize Router
	r := chi.NewRouter()

	// Register Routes
	handlers.RegisterRoutes(r, handlers.Deps{
		Auth:          auth.NewAuthenticator(cfg),
		Slots:         handlers.NewSlotHandler(slotCatalog, bookings),
		Events:        handlers.NewEventHandler(eventCatalog),
		Registrations: handlers.NewRegistrationHandler(bookings),
		Limiter:       limiter,
		TrustProxy:    cfg.TrustProxy,
		EnableCORS:    cfg.EnableCORS,
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%s", cfg.Port), Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown: %v", err)
		}
	}()

	// Start Server
	log.Printf("Starting server on port %s", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Failed to start server: %v", err)
	}

	<-scheduler.Stop().Done()
	dispatcher.Wait()
	log.Printf("Server stopped")
}

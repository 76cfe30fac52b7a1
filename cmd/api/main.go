package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/clinic-api/internal/config"
	authhandler "github.com/jwalitptl/clinic-api/internal/handler/auth"
	doctorhandler "github.com/jwalitptl/clinic-api/internal/handler/doctor"
	"github.com/jwalitptl/clinic-api/internal/handler/health"
	patienthandler "github.com/jwalitptl/clinic-api/internal/handler/patient"
	promhandler "github.com/jwalitptl/clinic-api/internal/handler/prometheus"
	recordhandler "github.com/jwalitptl/clinic-api/internal/handler/record"
	reservationhandler "github.com/jwalitptl/clinic-api/internal/handler/reservation"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/repository/postgres"
	"github.com/jwalitptl/clinic-api/internal/router"
	authService "github.com/jwalitptl/clinic-api/internal/service/auth"
	"github.com/jwalitptl/clinic-api/internal/service/availability"
	"github.com/jwalitptl/clinic-api/internal/service/booking"
	doctorService "github.com/jwalitptl/clinic-api/internal/service/doctor"
	"github.com/jwalitptl/clinic-api/internal/service/medical"
	patientService "github.com/jwalitptl/clinic-api/internal/service/patient"
	"github.com/jwalitptl/clinic-api/internal/service/planning"
	"github.com/jwalitptl/clinic-api/pkg/auth"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/messaging/redis"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
	"github.com/jwalitptl/clinic-api/pkg/security"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		JSON:       cfg.Log.JSON,
	})

	if err := run(cfg, log); err != nil {
		log.Fatal(err, "api stopped")
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()

	policy, err := availability.PolicyFromConfig(cfg.Clinic)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(registry, "clinic")

	hasher := security.NewBcryptHasher(cfg.Security.BcryptCost)
	encryptor, err := security.NewAESEncryptorFromPassphrase(cfg.Security.EncryptionKey)
	if err != nil {
		return fmt.Errorf("failed to initialise record encryption: %w", err)
	}
	jwtSvc := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, time.Duration(cfg.JWT.ExpiryHours)*time.Hour)

	// Repositories
	patientRepo := postgres.NewPatientRepository(db)
	doctorRepo := postgres.NewDoctorRepository(db)
	slotRepo := postgres.NewSlotRepository(db)
	reservationRepo := postgres.NewReservationRepository(db)
	recordRepo := postgres.NewMedicalRecordRepository(db)

	// Services
	availSvc := availability.NewService(slotRepo, reservationRepo, doctorRepo, policy, m)
	authSvc := authService.NewService(patientRepo, doctorRepo, hasher, jwtSvc, auth.NewRedisRevocationStore(rdb), log)
	doctorSvc := doctorService.NewService(doctorRepo, availSvc, hasher, cfg.Cache.DoctorsTTL, cfg.Cache.CleanupInterval, log)
	bookingSvc := booking.NewService(reservationRepo, slotRepo, doctorRepo, policy.Location, log, m)
	planningSvc := planning.NewService(reservationRepo, policy.Hours(), policy.Location, log)
	medicalSvc := medical.NewService(recordRepo, patientRepo, encryptor, log, m)
	patientSvc := patientService.NewService(patientRepo)

	healthH := health.NewHandler(map[string]health.Check{
		"postgres": db.PingContext,
		"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	})

	r := router.NewRouter(
		middleware.NewAuthMiddleware(authSvc),
		healthH,
		promhandler.New(registry, "clinic"),
		log,
		router.RouterConfig{
			Mode:             cfg.Server.Mode,
			RateLimitEnabled: cfg.RateLimit.Enabled,
			RateLimit:        rate.Limit(cfg.RateLimit.RequestsPerSecond),
			RateBurst:        cfg.RateLimit.Burst,
			AllowedOrigins:   cfg.CORS.AllowedOrigins,
			RequestTimeout:   cfg.Server.RequestTimeout,
		},
		authhandler.NewHandler(authSvc),
		doctorhandler.NewHandler(doctorSvc, availSvc, planningSvc, policy.Location, cfg.Cache.DoctorsTTL),
		patienthandler.NewHandler(patientSvc),
		reservationhandler.NewHandler(bookingSvc),
		recordhandler.NewHandler(medicalSvc),
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", "port", cfg.Server.Port, "timezone", cfg.Clinic.Timezone)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server exited properly")
	return nil
}

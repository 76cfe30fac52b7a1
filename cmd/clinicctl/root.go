package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/clinic-api/internal/config"
	"github.com/jwalitptl/clinic-api/internal/repository/postgres"
	"github.com/jwalitptl/clinic-api/internal/service/availability"
	doctorService "github.com/jwalitptl/clinic-api/internal/service/doctor"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
	"github.com/jwalitptl/clinic-api/pkg/security"
)

// env carries what every subcommand needs once config is loaded.
type env struct {
	cfg    *config.Config
	log    *logger.Logger
	db     *sqlx.DB
	policy availability.Policy
}

func newRootCmd() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           "clinicctl",
		Short:         "Administrative tasks for the clinic API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to a config file")

	load := func(ctx context.Context) (*env, error) {
		var (
			cfg *config.Config
			err error
		)
		if configFile != "" {
			cfg, err = config.LoadFile(configFile)
		} else {
			cfg, err = config.LoadConfig()
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}

		policy, err := availability.PolicyFromConfig(cfg.Clinic)
		if err != nil {
			return nil, err
		}

		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		log := logger.NewLogger(&logger.Config{
			Level:      logger.ParseLevel(cfg.Log.Level),
			TimeFormat: time.RFC3339,
			JSON:       cfg.Log.JSON,
		}).WithFields(map[string]interface{}{"component": "clinicctl"})

		return &env{cfg: cfg, log: log, db: db, policy: policy}, nil
	}

	root.AddCommand(
		newMigrateCmd(load),
		newDoctorCmd(load),
		newSlotsCmd(load),
	)
	return root
}

type loader func(ctx context.Context) (*env, error)

func (e *env) doctors() *doctorService.Service {
	doctorRepo := postgres.NewDoctorRepository(e.db)
	avail := availability.NewService(
		postgres.NewSlotRepository(e.db),
		postgres.NewReservationRepository(e.db),
		doctorRepo,
		e.policy,
		metrics.NewNop(),
	)
	return doctorService.NewService(
		doctorRepo,
		avail,
		security.NewBcryptHasher(e.cfg.Security.BcryptCost),
		e.cfg.Cache.DoctorsTTL,
		e.cfg.Cache.CleanupInterval,
		e.log,
	)
}

package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository/postgres"
)

func newMigrateCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := load(cmd.Context())
			if err != nil {
				return err
			}
			defer e.db.Close()

			applied, err := postgres.Migrate(cmd.Context(), e.db)
			if err != nil {
				return err
			}
			for _, name := range applied {
				fmt.Fprintln(cmd.OutOrStdout(), "applied", name)
			}
			return nil
		},
	}
}

func newDoctorCmd(load loader) *cobra.Command {
	doctor := &cobra.Command{
		Use:   "doctor",
		Short: "Manage doctors",
	}

	var req model.CreateDoctorRequest
	var specialty string
	create := &cobra.Command{
		Use:   "create",
		Short: "Register a doctor and open their first availability window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := load(cmd.Context())
			if err != nil {
				return err
			}
			defer e.db.Close()

			req.Specialty = model.Specialty(specialty)
			created, err := e.doctors().Create(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created doctor %s (%s)\n", created.ID, created.Email)
			return nil
		},
	}
	create.Flags().StringVar(&req.FirstName, "first-name", "", "first name")
	create.Flags().StringVar(&req.LastName, "last-name", "", "last name")
	create.Flags().StringVar(&req.Email, "email", "", "login email")
	create.Flags().StringVar(&req.Password, "password", "", "initial password")
	create.Flags().StringVar(&specialty, "specialty", "", "one of the clinic specialties")
	for _, name := range []string{"first-name", "last-name", "email", "password", "specialty"} {
		_ = create.MarkFlagRequired(name)
	}

	doctor.AddCommand(create)
	return doctor
}

func newSlotsCmd(load loader) *cobra.Command {
	slots := &cobra.Command{
		Use:   "slots",
		Short: "Manage availability slots",
	}

	var (
		doctorID string
		all      bool
		from     string
	)
	seed := &cobra.Command{
		Use:   "seed",
		Short: "Generate the availability window for one or all doctors",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (doctorID == "") == !all {
				return fmt.Errorf("exactly one of --doctor or --all is required")
			}

			e, err := load(cmd.Context())
			if err != nil {
				return err
			}
			defer e.db.Close()

			start := time.Now().In(e.policy.Location)
			if from != "" {
				start, err = time.ParseInLocation(model.DateLayout, from, e.policy.Location)
				if err != nil {
					return fmt.Errorf("--from must be YYYY-MM-DD: %w", err)
				}
			}

			inserted := map[uuid.UUID]int64{}
			if all {
				inserted, err = e.doctors().SeedAll(cmd.Context(), start)
				if err != nil {
					return err
				}
			} else {
				id, err := uuid.Parse(doctorID)
				if err != nil {
					return fmt.Errorf("invalid doctor id: %w", err)
				}
				n, err := e.doctors().SeedAvailability(cmd.Context(), id, start)
				if err != nil {
					return err
				}
				inserted[id] = n
			}

			var total int64
			for id, n := range inserted {
				e.log.Info("slots seeded", "doctor_id", id.String(), "inserted", n)
				total += n
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d slots for %d doctors\n", total, len(inserted))
			return nil
		},
	}
	seed.Flags().StringVar(&doctorID, "doctor", "", "doctor id")
	seed.Flags().BoolVar(&all, "all", false, "seed every doctor")
	seed.Flags().StringVar(&from, "from", "", "first day of the window (YYYY-MM-DD), defaults to today")

	slots.AddCommand(seed)
	return slots
}

package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jengzang/daytrail-backend-go/internal/app"
	"github.com/jengzang/daytrail-backend-go/internal/middleware"
	"github.com/jengzang/daytrail-backend-go/internal/models"
)

func serveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API, the event buffer and the pipeline scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer logger.Sync()

			a, err := app.New(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.Serve(ctx)
		},
	}
}

func runCmd(opts *rootOptions) *cobra.Command {
	var eventsPath string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once over a JSON file of track events",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer logger.Sync()

			data, err := os.ReadFile(eventsPath)
			if err != nil {
				return fmt.Errorf("failed to read events: %w", err)
			}
			trackEvents, err := models.DecodeTrackEvents(data)
			if err != nil {
				return err
			}

			var appOpts []app.Option
			if dryRun {
				appOpts = append(appOpts, app.WithInMemoryDatabase())
			}
			a, err := app.New(cfg, logger, appOpts...)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			if err := a.RunOnce(ctx, trackEvents); err != nil {
				return err
			}

			days := map[string]time.Time{}
			for _, ev := range trackEvents {
				times := []time.Time{ev.EventTime()}
				if sample, ok := ev.(models.HealthSample); ok {
					times = append(times, sample.EndTime)
				}
				for _, t := range times {
					t = t.In(a.TimeService.Location())
					days[t.Format("2006-01-02")] = t
				}
			}

			out := map[string][]models.TimeSlot{}
			for key, day := range days {
				slots, err := a.TimeSlots.GetTimeSlots(ctx, day)
				if err != nil {
					return err
				}
				out[key] = slots
			}

			logger.Info("pipeline run completed", zap.Int("events", len(trackEvents)), zap.Int("days", len(days)))
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	cmd.Flags().StringVarP(&eventsPath, "events", "e", "", "JSON array of track event envelopes")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Use an in-memory database")
	_ = cmd.MarkFlagRequired("events")

	return cmd
}

func purgeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete smart guesses not used within smart_guess.max_age",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer logger.Sync()

			a, err := app.New(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			purged, err := a.Purge(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d smart guesses\n", purged)
			return nil
		},
	}
}

func tokenCmd(opts *rootOptions) *cobra.Command {
	var subject string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API bearer token signed with jwt_secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}
			token, err := middleware.IssueToken(cfg.JWTSecret, subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "owner", "Token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 30*24*time.Hour, "Token lifetime")

	return cmd
}

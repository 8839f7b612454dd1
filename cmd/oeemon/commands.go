package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"oee-analytics/internal/controller"
	"oee-analytics/internal/oee"
	"oee-analytics/internal/repository"
	"oee-analytics/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return withApp(ctx, func(ctx context.Context, a *app) error {
				a.seedFallback(ctx)
				if addr == "" {
					addr = a.cfg.HTTP.Addr
				}

				gin.SetMode(gin.ReleaseMode)
				router := controller.NewRouter(controller.Services{
					Analytics:  a.analytics,
					Production: a.production,
					Machines:   a.machines,
					Events:     a.events,
					Health:     a.repo,
				}, a.logger)

				srv := &http.Server{
					Addr:         addr,
					Handler:      router,
					ReadTimeout:  a.cfg.HTTP.ReadTimeout,
					WriteTimeout: a.cfg.HTTP.WriteTimeout,
				}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
					defer cancel()
					if err := srv.Shutdown(shutdownCtx); err != nil {
						a.logger.Error("server shutdown failed", "error", err.Error())
					}
				}()

				a.logger.Info("starting server",
					"addr", addr,
					"breaker", a.repo.BreakerState(),
					"replicate_writes", a.cfg.Store.ReplicateWrites,
				)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				a.logger.Info("server stopped")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides http.addr)")
	return cmd
}

func seedCmd() *cobra.Command {
	var opts service.SeedOptions
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill the store with demo machines and production history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				seeder := service.NewSeeder(a.repo, a.policy, rollupPolicy(a.cfg.OEE), nil, a.logger)
				summary, err := seeder.Seed(ctx, opts)
				if err != nil {
					return err
				}

				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Machines", "Records", "Skipped", "Downtime Events", "Alerts"})
				tw.AppendRow(table.Row{summary.Machines, summary.Records, summary.Skipped, summary.DowntimeEvents, summary.Alerts})
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&opts.Days, "days", 30, "days of history to generate")
	cmd.Flags().Int64Var(&opts.RandSeed, "seed", 42, "random seed")
	return cmd
}

func analyticsCmd() *cobra.Command {
	var machineID, month string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Print the monthly analytics report",
		RunE: func(cmd *cobra.Command, args []string) error {
			var machine *string
			if machineID != "" {
				machine = &machineID
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				var (
					report *service.HistoricalAnalytics
					err    error
				)
				if month != "" {
					m, perr := time.Parse("2006-01", month)
					if perr != nil {
						return fmt.Errorf("--month must be YYYY-MM: %w", perr)
					}
					report, err = a.analytics.GetMonthlyAnalytics(ctx, machine, m)
				} else {
					report, err = a.analytics.GetHistoricalAnalytics(ctx, machine)
				}
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(report)
				}
				renderAnalytics(report)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&machineID, "machine", "", "machine id (default: all machines)")
	cmd.Flags().StringVar(&month, "month", "", "month as YYYY-MM (default: current month)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	return cmd
}

func renderAnalytics(r *service.HistoricalAnalytics) {
	summary := table.NewWriter()
	summary.SetOutputMirror(os.Stdout)
	summary.SetTitle(fmt.Sprintf("OEE %s to %s", r.Period.StartDate.Format(time.DateOnly), r.Period.EndDate.Format(time.DateOnly)))
	summary.AppendHeader(table.Row{"Metric", "Value"})
	summary.AppendRows([]table.Row{
		{"OEE", fmt.Sprintf("%.2f%%", r.Averages.OEE)},
		{"Availability", fmt.Sprintf("%.2f%%", r.Averages.Availability)},
		{"Performance", fmt.Sprintf("%.2f%%", r.Averages.Performance)},
		{"Quality", fmt.Sprintf("%.2f%%", r.Averages.Quality)},
		{"Trend", fmt.Sprintf("%+.2f", r.Trend)},
		{"Production", fmt.Sprintf("%.0f (%s, %+.1f%%)", r.Totals.Production, r.Productivity.Trend, r.Productivity.ChangePercent)},
		{"Downtime hours", fmt.Sprintf("%.1f", r.Totals.DowntimeHours)},
		{"MTBF hours", fmt.Sprintf("%.1f", r.MTBFHours)},
		{"Risk", r.Risk.Level},
	})
	summary.Render()

	if len(r.DowntimeBreakdown) > 0 {
		dt := table.NewWriter()
		dt.SetOutputMirror(os.Stdout)
		dt.AppendHeader(table.Row{"Category", "Hours", "Share", "Events"})
		for _, c := range r.DowntimeBreakdown {
			dt.AppendRow(table.Row{c.Category, fmt.Sprintf("%.1f", c.Hours), fmt.Sprintf("%.1f%%", c.Percentage), c.Events})
		}
		dt.Render()
	}

	if len(r.ImprovementOpportunities) > 0 {
		op := table.NewWriter()
		op.SetOutputMirror(os.Stdout)
		op.AppendHeader(table.Row{"Area", "Current", "Target", "Suggestion"})
		for _, o := range r.ImprovementOpportunities {
			op.AppendRow(table.Row{o.Area, fmt.Sprintf("%.1f", o.Current), fmt.Sprintf("%.1f", o.Target), o.Suggestion})
		}
		op.Render()
	}

	for _, rec := range r.Risk.Recommendations {
		fmt.Println("-", rec)
	}
}

func calcCmd() *cobra.Command {
	var good, planned, downtime, target float64
	cmd := &cobra.Command{
		Use:   "calc",
		Short: "Compute OEE for a single run",
		RunE: func(cmd *cobra.Command, args []string) error {
			m := oee.Calculate(good, planned, downtime, target)
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"OEE", "Availability", "Performance", "Quality"})
			tw.AppendRow(table.Row{
				fmt.Sprintf("%.2f", m.OEE),
				fmt.Sprintf("%.2f", m.Availability),
				fmt.Sprintf("%.2f", m.Performance),
				fmt.Sprintf("%.2f", m.Quality),
			})
			tw.Render()
			return nil
		},
	}
	cmd.Flags().Float64Var(&good, "good", 0, "good production")
	cmd.Flags().Float64Var(&planned, "planned", 480, "planned time in minutes")
	cmd.Flags().Float64Var(&downtime, "downtime", 0, "downtime in minutes")
	cmd.Flags().Float64Var(&target, "target", 1, "target production for the planned time")
	_ = cmd.MarkFlagRequired("good")
	return cmd
}

func syncFallbackCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "sync-fallback",
		Short: "Copy the primary store, or a snapshot file, into the fallback store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				var (
					snap *repository.Snapshot
					err  error
				)
				if file != "" {
					snap, err = repository.LoadSnapshot(file)
				} else {
					snap, err = repository.ExportSnapshot(ctx, a.primary)
				}
				if err != nil {
					return err
				}
				report := a.repo.SyncFallback(ctx, snap)
				fmt.Printf("synced %d rows into the fallback store (%d failed)\n", report.Written, report.Failed)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "snapshot YAML file (default: read the primary store)")
	return cmd
}

func snapshotCmd() *cobra.Command {
	snap := &cobra.Command{Use: "snapshot", Short: "Manage store snapshots"}

	var out string
	export := &cobra.Command{
		Use:   "export",
		Short: "Write every row of the store to a YAML snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				s, err := repository.ExportSnapshot(ctx, a.repo)
				if err != nil {
					return err
				}
				if err := s.WriteFile(out); err != nil {
					return err
				}
				fmt.Printf("wrote %d rows to %s\n", s.Len(), out)
				return nil
			})
		},
	}
	export.Flags().StringVarP(&out, "out", "o", "oeemon-snapshot.yaml", "output file")
	snap.AddCommand(export)
	return snap
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

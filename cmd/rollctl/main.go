package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"rollcall/internal/app"
	"rollcall/internal/attendance"
	"rollcall/internal/config"
	"rollcall/internal/logging"
	"rollcall/internal/report"
	"rollcall/internal/store"
)

var (
	// Version information (set via ldflags during build)
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "rollctl",
	Short:   "rollctl - operator tool for the roll-call service",
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		logging.Init(logging.Config{Level: cfg.LogLevel, JSONOutput: cfg.LogJSON, Output: os.Stderr})
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("rollctl version %s\nCommit: %s\n", Version, Commit))

	summaryCmd.Flags().String("staff", "", "Only count records written by this staff id")
	summaryCmd.Flags().String("schedule", "", "Only count records of this schedule id")
	reportCmd.Flags().String("class", "all", "Class section to report on")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(reportCmd)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// withApp builds the dependencies, runs fn and releases them.
func withApp(fn func(ctx context.Context, a *app.App) error) error {
	ctx, stop := signalContext()
	defer stop()

	cfg := config.Load()
	cfg.AutoMigrate = false
	a, err := app.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the Postgres tables and indexes",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		cfg := config.Load()
		db, err := store.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to connect: %w", err)
		}
		defer db.Close()

		if err := store.Migrate(ctx, db.Client); err != nil {
			return err
		}
		fmt.Println("✓ Schema is up to date")
		return nil
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Backfill absences for expired schedules and retire them now",
	Long: `Run the expiry sweep immediately, ignoring the cooldown.

Every expected staff member who never submitted gets Absent records for
the whole roster and an untaken history row; the schedule is then deleted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			res, err := a.Sweeper.Sweep(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Expired:    %d\n", res.Expired)
			fmt.Printf("Retired:    %d\n", res.Retired)
			fmt.Printf("Backfilled: %d\n", res.Backfilled)
			fmt.Printf("Failed:     %d\n", res.Failed)
			return nil
		})
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary DATE",
	Short: "Print the roll-call summary of a date (YYYY-MM-DD)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		staffID, _ := cmd.Flags().GetString("staff")
		scheduleID, _ := cmd.Flags().GetString("schedule")
		return withApp(func(ctx context.Context, a *app.App) error {
			sum, err := a.Service.Summary(ctx, args[0], attendance.PresentFilter{StaffID: staffID, ScheduleID: scheduleID})
			if err != nil {
				return err
			}
			fmt.Println(sum.Text())
			return nil
		})
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print every student's attendance percentage",
	RunE: func(cmd *cobra.Command, args []string) error {
		class, _ := cmd.Flags().GetString("class")
		return withApp(func(ctx context.Context, a *app.App) error {
			m, err := a.Service.StudentMatrix(ctx, class)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tCLASS\tRANK\tATTENDED\tPERCENT")
			for _, row := range m.Records {
				attended, total := 0, 0
				for _, d := range row.History {
					if d.Status == report.NotApplicable {
						continue
					}
					total++
					if d.Status == report.Present {
						attended++
					}
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d/%d\t%s%%\n",
					row.Student.ID, row.Student.Name, row.Student.ClassSection,
					strings.ToUpper(row.Student.Rank), attended, total, row.Percentage)
			}
			return w.Flush()
		})
	},
}

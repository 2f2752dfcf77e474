// Package main provides the ecotracker command line client.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ecotracker-client/internal/activityapi"
	"ecotracker-client/internal/config"
	"ecotracker-client/internal/credential"
	"ecotracker-client/internal/entry"
	"ecotracker-client/internal/eventchannel"
	"ecotracker-client/internal/logger"
	"ecotracker-client/internal/model"
	"ecotracker-client/internal/preview"
	"ecotracker-client/internal/transport"
)

// app wires the client stack once per invocation.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	store   credential.Store
	api     *activityapi.Service
	channel *eventchannel.Channel
}

func newApp() *app {
	cfg := config.Load()
	log := logger.New(cfg.Env)

	store := credential.NewFileStore(os.Getenv("CREDENTIAL_PATH"))
	navigate := func(route string) {
		fmt.Fprintf(os.Stderr, "session expired, run `ecotracker login` (%s)\n", route)
	}
	client := transport.New(cfg.APIBaseURL, store, navigate, cfg.RequestTimeout, log)

	return &app{
		cfg:     cfg,
		log:     log,
		store:   store,
		api:     activityapi.New(client),
		channel: eventchannel.Shared(cfg.EventServerURL, store, log),
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "ecotracker",
		Short:         "Personal carbon footprint tracker client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newLogActivityCmd(a),
		newPreviewCmd(a),
		newTailCmd(a),
		newGoalCmd(a),
		newDashboardCmd(a),
		newStreakCmd(a),
		newLeaderboardCmd(a),
	)
	return root
}

func newLoginCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login <token>",
		Short: "Store the bearer credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return a.store.Set(args[0])
		},
	}
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the stored credential",
		RunE: func(*cobra.Command, []string) error {
			return a.store.Clear()
		},
	}
}

// activityFlags binds the shared draft fields for log and preview.
type activityFlags struct {
	name, category, description string
	quantity, unit              string
	mode, source, food, waste   string
	disposal                    string
}

func (f *activityFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "activity name")
	cmd.Flags().StringVar(&f.category, "category", "", "transport|energy|food|waste|other")
	cmd.Flags().StringVar(&f.description, "description", "", "free-text description")
	cmd.Flags().StringVar(&f.quantity, "quantity", "", "quantity value")
	cmd.Flags().StringVar(&f.unit, "unit", "", "quantity unit")
	cmd.Flags().StringVar(&f.mode, "transport-mode", "", "transport mode detail")
	cmd.Flags().StringVar(&f.source, "energy-source", "", "energy source detail")
	cmd.Flags().StringVar(&f.food, "food-type", "", "food type detail")
	cmd.Flags().StringVar(&f.waste, "waste-type", "", "waste type detail")
	cmd.Flags().StringVar(&f.disposal, "disposal-method", "", "waste disposal method")
}

func (f *activityFlags) details() model.ActivityDetails {
	return model.ActivityDetails{
		TransportMode:  f.mode,
		EnergySource:   f.source,
		FoodType:       f.food,
		WasteType:      f.waste,
		DisposalMethod: f.disposal,
	}
}

func newLogActivityCmd(a *app) *cobra.Command {
	var flags activityFlags
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Log a new activity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctrl := entry.New(a.api, a.log)
			ctrl.SetForm(entry.Form{
				ActivityName:  flags.name,
				ActivityType:  flags.category,
				Description:   flags.description,
				QuantityValue: flags.quantity,
				QuantityUnit:  flags.unit,
				Details:       flags.details(),
			})
			defer ctrl.Preview().Stop()

			saved, err := ctrl.Submit(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("logged %q: %.2f kg CO₂\n",
				saved.Activity.ActivityName, saved.Activity.CalculatedCarbonFootprint)
			if saved.ServerTip != nil {
				printTip(saved.ServerTip)
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newPreviewCmd(a *app) *cobra.Command {
	var flags activityFlags
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Preview the impact of an unsaved activity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := a.api.CalculatePreview(cmd.Context(), model.PreviewRequest{
				ActivityType: flags.category,
				Quantity:     model.Quantity{Value: parseQuantity(flags.quantity), Unit: flags.unit},
				Details:      flags.details(),
			})
			if err != nil {
				return err
			}
			fmt.Printf("estimated impact: %.2f kg CO₂ (factor %s, quantity %s)\n",
				resp.CalculatedCarbonFootprint, resp.EmissionFactor, resp.Calculation.Quantity)

			status, err := a.api.GetEmissionGoalProgress(cmd.Context())
			if err != nil {
				a.log.Warn("goal snapshot unavailable", zap.Error(err))
				status = nil
			}
			if tip := preview.Classify(flags.category, flags.details(), resp.CalculatedCarbonFootprint, status); tip != nil {
				printTip(tip)
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newTailCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tail",
		Short: "Stream live tips, insights, and goal updates",
		RunE: func(cmd *cobra.Command, _ []string) error {
			events := []string{
				eventchannel.EventActivityTip,
				eventchannel.EventWeeklyInsights,
				eventchannel.EventGoalSet,
				eventchannel.EventGoalMilestone,
				eventchannel.EventGoalStatusUpdate,
				eventchannel.EventTrendAlert,
				eventchannel.EventServerError,
			}
			for _, event := range events {
				a.channel.On(event, func(data json.RawMessage) {
					fmt.Printf("[%s] %s\n", event, string(data))
				})
			}
			a.channel.On(eventchannel.EventTerminal, func(json.RawMessage) {
				fmt.Fprintln(os.Stderr, "event channel gave up; rerun to force a reconnect")
			})

			if err := a.channel.Connect(); err != nil {
				return err
			}
			defer a.channel.Disconnect()

			<-cmd.Context().Done()
			return nil
		},
	}
}

func newGoalCmd(a *app) *cobra.Command {
	goal := &cobra.Command{Use: "goal", Short: "Manage the emission goal"}

	var target float64
	var category, timeframe string
	set := &cobra.Command{
		Use:   "set",
		Short: "Set the emission goal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, err := a.api.SetEmissionGoal(cmd.Context(), model.GoalRequest{
				TargetEmissions: target,
				Category:        category,
				Timeframe:       timeframe,
			})
			if err != nil {
				return err
			}
			fmt.Printf("goal set: %.1f kg CO₂ (%s, %s)\n",
				status.Goal.TargetEmissions, status.Goal.Category, status.Goal.Timeframe)
			return nil
		},
	}
	set.Flags().Float64Var(&target, "target", 0, "target emissions in kg CO₂")
	set.Flags().StringVar(&category, "category", "all", "goal category")
	set.Flags().StringVar(&timeframe, "timeframe", "weekly", "weekly|monthly")

	progress := &cobra.Command{
		Use:   "progress",
		Short: "Show emission goal progress",
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, err := a.api.GetEmissionGoalProgress(cmd.Context())
			if err != nil {
				return err
			}
			if !status.HasActiveGoal {
				fmt.Println("no active goal")
				return nil
			}
			p := status.Progress
			fmt.Printf("%.1f of %.1f kg CO₂ used (%.0f%%), %.1f remaining, %d day(s) left, on track: %v\n",
				p.CurrentEmissions, status.Goal.TargetEmissions, p.ProgressPercentage,
				p.RemainingBudget, p.DaysRemaining, p.IsOnTrack)
			return nil
		},
	}

	goal.AddCommand(set, progress)
	return goal
}

func newDashboardCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show the dashboard summary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := a.api.GetDashboard(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("total: %.1f kg CO₂ over %d activities (community average %.1f)\n",
				d.TotalEmissions, d.ActivitiesCount, d.CommunityAverage)
			return nil
		},
	}
}

func newStreakCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "streak",
		Short: "Show logging streak",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.api.GetStreak(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("current streak %d day(s), longest %d, %d total\n",
				s.CurrentStreak, s.LongestStreak, s.TotalDays)
			return nil
		},
	}
}

func newLeaderboardCmd(a *app) *cobra.Command {
	var period int
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the community leaderboard",
		RunE: func(cmd *cobra.Command, _ []string) error {
			lb, err := a.api.GetLeaderboard(cmd.Context(), period)
			if err != nil {
				return err
			}
			for _, e := range lb.Leaderboard {
				fmt.Printf("%3d. %-20s %.1f kg CO₂ (%d activities)\n",
					e.Rank, e.Username, e.TotalEmissions, e.ActivityCount)
			}
			if lb.CurrentUser != nil {
				fmt.Printf("you: rank %d, %.1f kg CO₂\n",
					lb.CurrentUser.Rank, lb.CurrentUser.TotalEmissions)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&period, "period", 30, "period in days")
	return cmd
}

func printTip(tip *model.Tip) {
	fmt.Printf("%s: %s %s\n", tip.Type, tip.Title, tip.Message)
	for _, s := range tip.Suggestions {
		fmt.Printf("  - %s\n", s)
	}
}

func parseQuantity(raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0
	}
	return v
}

// Run is the testable entrypoint for the client.
func Run(ctx context.Context, args []string) error {
	a := newApp()
	defer func() { _ = a.log.Sync() }()

	root := newRootCmd(a)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := Run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

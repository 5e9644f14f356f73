package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	errorvalues "github.com/limbo/habitstreak/internal/error_values"
	"github.com/limbo/habitstreak/internal/service"
	"github.com/limbo/habitstreak/internal/streak"
	"github.com/limbo/habitstreak/pkg/cleanup"
	"github.com/limbo/habitstreak/pkg/entity"
	"github.com/spf13/cobra"
)

func main() {
	service.InitValidator()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	cleanup.CleanUp()
	if err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "habitctl",
	Short:        "Track habit streaks from the terminal",
	SilenceUsage: true,
}

var loginCmd = &cobra.Command{
	Use:   "login EMAIL",
	Short: "Sign in and keep the session in the OS keyring",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, _ := cmd.Flags().GetString("password")
		if password == "" {
			password = os.Getenv("HABITSTREAK_PASSWORD")
		}
		if password == "" {
			return errors.New("password is required: use --password or HABITSTREAK_PASSWORD")
		}
		c, err := newClient(cmd.Context())
		if err != nil {
			return err
		}
		id, err := c.gate.SignIn(cmd.Context(), args[0], password)
		if err != nil {
			return fmt.Errorf("signing in: %w", err)
		}
		fmt.Printf("Signed in as %s until %s\n", id.Email, id.ExpiresAt.Local().Format(time.DateTime))
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd.Context())
		if err != nil {
			return err
		}
		if err = c.gate.SignOut(cmd.Context()); err != nil {
			return fmt.Errorf("signing out: %w", err)
		}
		fmt.Println("Signed out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd.Context())
		if err != nil {
			return err
		}
		id, ok := c.gate.Current()
		if !ok {
			fmt.Println("Not signed in")
			return nil
		}
		fmt.Printf("%s (%s)\n", id.Email, id.UserID)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List habits with their streaks",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd.Context())
		if err != nil {
			return err
		}
		if err = c.habits.Refresh(cmd.Context()); err != nil {
			return explain(err)
		}
		printHabits(c.habits.Snapshot())
		return nil
	},
}

var addCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Create a habit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		frequency, _ := cmd.Flags().GetString("frequency")
		target, _ := cmd.Flags().GetInt("target")
		desc, _ := cmd.Flags().GetString("desc")
		c, err := newClient(cmd.Context())
		if err != nil {
			return err
		}
		habit, err := c.habits.CreateHabit(cmd.Context(), &service.CreateHabitRequest{
			Name:        args[0],
			Description: desc,
			Frequency:   frequency,
			TargetDays:  target,
		})
		if err != nil {
			return explain(err)
		}
		fmt.Printf("Created %s (%s)\n", habit.Name, habit.ID)
		return nil
	},
}

var doneCmd = &cobra.Command{
	Use:   "done HABIT_ID",
	Short: "Toggle completion of a habit for today or --date",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		habitID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid habit id: %w", err)
		}
		var date time.Time
		if value, _ := cmd.Flags().GetString("date"); value != "" {
			if date, err = time.Parse(time.DateOnly, value); err != nil {
				return fmt.Errorf("date must look like %s", time.DateOnly)
			}
		}
		c, err := newClient(cmd.Context())
		if err != nil {
			return err
		}
		updates := make(chan []*entity.Habit, 1)
		unsubscribe := c.habits.Subscribe(func(habits []*entity.Habit) {
			select {
			case updates <- habits:
			default:
			}
		})
		defer unsubscribe()
		habit, err := c.habits.ToggleCompletion(cmd.Context(), habitID, date)
		if err != nil {
			return explain(err)
		}
		state := "undone"
		if habit.TodayCompleted {
			state = "done"
		}
		fmt.Printf("%s marked %s, streak %d (best %d)\n", habit.Name, state, habit.CurrentStreak, habit.LongestStreak)
		select {
		case habits := <-updates:
			printHabits(habits)
		default:
		}
		return nil
	},
}

var archiveCmd = &cobra.Command{
	Use:   "archive HABIT_ID",
	Short: "Archive a habit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		habitID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid habit id: %w", err)
		}
		c, err := newClient(cmd.Context())
		if err != nil {
			return err
		}
		if err = c.habits.DeleteHabit(cmd.Context(), habitID); err != nil {
			return explain(err)
		}
		fmt.Println("Archived")
		return nil
	},
}

// completionState reports the toggled period's state, today's when date is zero.
func completionState(habit *entity.Habit, date time.Time) string {
	done := habit.TodayCompleted
	if !date.IsZero() {
		done = streak.CompletedOn(habit.Frequency, habit.Records, date)
	}
	if done {
		return "done"
	}
	return "undone"
}

func explain(err error) error {
	if errors.Is(err, errorvalues.ErrNotAuthenticated) {
		return errors.New("not signed in, run habitctl login first")
	}
	return err
}

func printHabits(habits []*entity.Habit) {
	if len(habits) == 0 {
		fmt.Println("No habits yet")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tFREQUENCY\tSTREAK\tBEST\tTODAY")
	for _, h := range habits {
		today := ""
		if h.TodayCompleted {
			today = "x"
		}
		fmt.Fprintln(w, h.ID.String()+"\t"+h.Name+"\t"+string(h.Frequency)+"\t"+
			strconv.Itoa(h.CurrentStreak)+"/"+strconv.Itoa(h.TargetDays)+"\t"+
			strconv.Itoa(h.LongestStreak)+"\t"+today)
	}
	w.Flush()
}

func init() {
	loginCmd.Flags().StringP("password", "p", "", "Account password")
	addCmd.Flags().StringP("frequency", "f", string(entity.FrequencyDaily), "daily or weekly")
	addCmd.Flags().IntP("target", "t", 30, "Target number of periods")
	addCmd.Flags().String("desc", "", "Description")
	doneCmd.Flags().StringP("date", "d", "", "Day to toggle, YYYY-MM-DD")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(doneCmd)
	rootCmd.AddCommand(archiveCmd)
}

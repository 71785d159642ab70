package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"dietledger/internal/core"
)

var flagDays int

var progressCmd = &cobra.Command{
	Use:     "progress [DATE]",
	Aliases: []string{"snapshot"},
	Short:   "Show per-category completion and the day's target",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := tracker().GetProgress(cmd.Context(), dateArg(args))
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(p)
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
		fmt.Fprintf(tw, "CATEGORY\tCONSUMED\tREQUIRED\tUNIT\t%%\n")
		for _, c := range p.Categories {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.0f\n", c.Category,
				core.FormatAmount(c.Consumed), core.FormatAmount(c.Required), c.Unit, c.Percentage)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Printf("\n%s  weighted %.0f%% (%s), target %.0f%%", p.Date, p.Snapshot.WeightedCompletion, p.Band, p.Target)
		if p.TimeLeft != "" {
			fmt.Printf(", %s left", p.TimeLeft)
		}
		fmt.Println()
		return nil
	},
}

var suggestCmd = &cobra.Command{
	Use:   "suggest [DATE]",
	Short: "Print what is still missing today",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := tracker().GetSuggestions(cmd.Context(), dateArg(args))
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(s)
		}
		for _, line := range s.Lines {
			fmt.Println(line)
		}
		return nil
	},
}

var monthCmd = &cobra.Command{
	Use:   "month YEAR MONTH",
	Short: "Show daily completion for a month",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		year, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("%w: year %q", core.ErrInvalidDate, args[0])
		}
		month, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("%w: month %q", core.ErrInvalidDate, args[1])
		}
		view, err := tracker().GetMonth(cmd.Context(), year, month)
		if err != nil && !errors.Is(err, core.ErrFetch) {
			return err
		}
		if flagJSON {
			if perr := printJSON(view); perr != nil {
				return perr
			}
			return err
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
		for _, d := range view.Days {
			if d.Percentage == nil {
				fmt.Fprintf(tw, "%02d\t-\t\n", d.Day)
				continue
			}
			fmt.Fprintf(tw, "%02d\t%.0f%%\t%s\n", d.Day, *d.Percentage, d.Band)
		}
		if ferr := tw.Flush(); ferr != nil {
			return ferr
		}
		// A failed refresh still prints whatever was cached before reporting.
		return err
	},
}

var challengingCmd = &cobra.Command{
	Use:   "challenging [END]",
	Short: "List categories averaging below target over recent days",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		end := ""
		if len(args) > 0 {
			end = args[0]
		}
		avgs, err := tracker().Challenging(cmd.Context(), end, flagDays)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(avgs)
		}
		if len(avgs) == 0 {
			fmt.Println("No challenging categories.")
			return nil
		}
		for _, a := range avgs {
			fmt.Printf("%-14s %.0f%%\n", a.Category, a.Average)
		}
		return nil
	},
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Print the daily requirement per category",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		reqs := tracker().Categories()
		if flagJSON {
			return printJSON(reqs)
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
		for _, r := range reqs {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Category, core.FormatAmount(r.Amount), r.Unit)
		}
		return tw.Flush()
	},
}

var recommendCmd = &cobra.Command{
	Use:   "recommend [DATE]",
	Short: "Ask for meal ideas covering what is still missing",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := tracker().Recommendations(cmd.Context(), dateArg(args))
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(res)
		}
		fmt.Printf("[%s]\n%s\n", res.MealTime, res.Text)
		return nil
	},
}

func init() {
	challengingCmd.Flags().IntVar(&flagDays, "days", 7, "Number of days to average")
	rootCmd.AddCommand(progressCmd, suggestCmd, monthCmd, challengingCmd, catalogCmd, recommendCmd)
}

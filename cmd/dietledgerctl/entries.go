package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"dietledger/internal/core"
	"dietledger/internal/services"
)

var (
	flagDate     string
	flagFoodItem string
	flagUnit     string
	flagNotes    string
)

var addCmd = &cobra.Command{
	Use:   "add CATEGORY AMOUNT",
	Short: "Record the amount eaten for a category",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := tracker().AddEntry(cmd.Context(), dateOrToday(), services.EntryInput{
			Category: args[0],
			Amount:   args[1],
			FoodItem: flagFoodItem,
			Unit:     flagUnit,
			Notes:    flagNotes,
		})
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(e)
		}
		fmt.Printf("%s  %s = %s %s\n", e.Date, e.Category, core.FormatAmount(e.Amount), e.Unit)
		return nil
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch CATEGORY=AMOUNT...",
	Short: "Record several categories at once",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		inputs := make([]services.EntryInput, 0, len(args))
		for _, arg := range args {
			category, amount, ok := strings.Cut(arg, "=")
			if !ok {
				return fmt.Errorf("%w: %q is not CATEGORY=AMOUNT", core.ErrInvalidAmount, arg)
			}
			inputs = append(inputs, services.EntryInput{Category: category, Amount: amount})
		}
		entries, err := tracker().AddEntriesBatch(cmd.Context(), dateOrToday(), inputs)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(entries)
		}
		return printEntries(entries)
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset [DATE]",
	Short: "Set every category of a date back to zero",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		date := dateArg(args)
		if err := tracker().ResetDay(cmd.Context(), date); err != nil {
			return err
		}
		fmt.Println("reset", date)
		return nil
	},
}

var dayCmd = &cobra.Command{
	Use:   "day [DATE]",
	Short: "List the entries of a date",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := tracker().GetDay(cmd.Context(), dateArg(args))
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(entries)
		}
		return printEntries(entries)
	},
}

var rangeCmd = &cobra.Command{
	Use:   "range START END",
	Short: "List entries between two dates inclusive",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		byDate, err := tracker().GetRange(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(byDate)
		}
		start, end, _ := core.ParseRange(args[0], args[1])
		for d := start; !d.After(end.Time); d = d.AddDays(1) {
			entries, ok := byDate[d.String()]
			if !ok {
				continue
			}
			if err := printEntries(entries); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{addCmd, batchCmd} {
		c.Flags().StringVarP(&flagDate, "date", "d", "", "Date as YYYY-MM-DD (default today)")
	}
	addCmd.Flags().StringVar(&flagFoodItem, "food", "", "Food item eaten")
	addCmd.Flags().StringVar(&flagUnit, "unit", "", "exchange or grams (default from catalog)")
	addCmd.Flags().StringVar(&flagNotes, "notes", "", "Free-form notes")

	rootCmd.AddCommand(addCmd, batchCmd, resetCmd, dayCmd, rangeCmd)
}

func dateOrToday() string {
	if flagDate != "" {
		return flagDate
	}
	return tracker().Today().String()
}

func printEntries(entries []core.Entry) error {
	tw := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Date, e.Category, core.FormatAmount(e.Amount), e.Unit, e.FoodItem, e.Notes)
	}
	return tw.Flush()
}

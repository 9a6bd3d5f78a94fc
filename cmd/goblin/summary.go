package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/InViSiB0B/TreasureGoblin/internal/cli"
	"github.com/InViSiB0B/TreasureGoblin/internal/model"
)

func summaryCmd() *cobra.Command {
	var monthFlag string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show a monthly income/expense summary",
		Long:  `Totals per category for one calendar month, plus overall income, expense, and net.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			year, month := time.Now().Year(), time.Now().Month()
			if monthFlag != "" {
				parts := strings.SplitN(monthFlag, "-", 2)
				if len(parts) != 2 {
					return fmt.Errorf("invalid month %q, expected YYYY-MM", monthFlag)
				}
				y, err := strconv.Atoi(parts[0])
				if err != nil {
					return fmt.Errorf("invalid month %q, expected YYYY-MM", monthFlag)
				}
				m, err := strconv.Atoi(parts[1])
				if err != nil || m < 1 || m > 12 {
					return fmt.Errorf("invalid month %q, expected YYYY-MM", monthFlag)
				}
				year, month = y, time.Month(m)
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			summary, err := store.MonthSummary(ctx, year, month)
			if err != nil {
				return fmt.Errorf("failed to build summary: %w", err)
			}

			fmt.Println(cli.FormatTitle(fmt.Sprintf("%s %d", month, year)))

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				cli.TableHeaderStyle.Render("Category"),
				cli.TableHeaderStyle.Render("Kind"),
				cli.TableHeaderStyle.Render("Count"),
				cli.TableHeaderStyle.Render("Total"))
			for _, row := range summary.ByCategory {
				total := formatAmount(row.Total)
				if row.Kind == model.KindIncome {
					total = cli.IncomeStyle.Render("+" + total)
				} else {
					total = cli.ExpenseStyle.Render("-" + total)
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", row.Name, row.Kind, row.Count, total)
			}
			w.Flush()

			net := summary.TotalIncome - summary.TotalExpense
			fmt.Println()
			fmt.Printf("  Income:  %s\n", cli.IncomeStyle.Render("+"+formatAmount(summary.TotalIncome)))
			fmt.Printf("  Expense: %s\n", cli.ExpenseStyle.Render("-"+formatAmount(summary.TotalExpense)))
			if net >= 0 {
				fmt.Printf("  Net:     %s\n", cli.IncomeStyle.Render("+"+formatAmount(net)))
			} else {
				fmt.Printf("  Net:     %s\n", cli.ExpenseStyle.Render("-"+formatAmount(-net)))
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&monthFlag, "month", "", "month to summarize (YYYY-MM, default current)")

	return cmd
}

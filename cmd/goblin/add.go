package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/InViSiB0B/TreasureGoblin/internal/cli"
	"github.com/InViSiB0B/TreasureGoblin/internal/model"
)

func addCmd() *cobra.Command {
	var (
		dateFlag string
		kindFlag string
		noteFlag string
		tagsFlag []string
	)

	cmd := &cobra.Command{
		Use:   "add <amount> <category>",
		Short: "Record a transaction",
		Long: `Record a transaction under a category. The amount is a positive decimal
like 12.50; whether it counts as income or expense comes from the
category's kind.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			amount, err := parseAmount(args[0])
			if err != nil {
				return err
			}

			date := time.Now()
			if dateFlag != "" {
				date, err = parseDate(dateFlag)
				if err != nil {
					return err
				}
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			category, err := resolveCategory(ctx, store, args[1], model.CategoryKind(kindFlag))
			if err != nil {
				return err
			}

			txn, err := store.AddTransaction(ctx, &model.Transaction{
				Date:       date,
				Amount:     amount,
				CategoryID: category.ID,
				Note:       noteFlag,
				Tags:       tagsFlag,
			})
			if err != nil {
				return fmt.Errorf("failed to record transaction: %w", err)
			}

			style := cli.ExpenseStyle
			if category.Kind == model.KindIncome {
				style = cli.IncomeStyle
			}
			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Recorded %s under %s (ID: %d)",
				style.Render(formatAmount(txn.Amount)), category.Name, txn.ID)))
			checkAutoSync(ctx, store)
			return nil
		},
	}

	cmd.Flags().StringVar(&dateFlag, "date", "", "transaction date (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&kindFlag, "kind", "", "category kind when the name is ambiguous (income or expense)")
	cmd.Flags().StringVar(&noteFlag, "note", "", "free-form note")
	cmd.Flags().StringSliceVar(&tagsFlag, "tag", nil, "tag to attach (repeatable)")

	return cmd
}

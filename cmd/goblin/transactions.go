package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/InViSiB0B/TreasureGoblin/internal/cli"
	"github.com/InViSiB0B/TreasureGoblin/internal/model"
	"github.com/InViSiB0B/TreasureGoblin/internal/service"
)

func transactionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "transactions",
		Aliases: []string{"txns"},
		Short:   "Browse and edit recorded transactions",
	}

	cmd.AddCommand(listTransactionsCmd())
	cmd.AddCommand(editTransactionCmd())
	cmd.AddCommand(deleteTransactionCmd())

	return cmd
}

func listTransactionsCmd() *cobra.Command {
	var (
		fromFlag     string
		toFlag       string
		tagFlag      string
		categoryFlag string
		limitFlag    int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			filter := service.TransactionFilter{Tag: tagFlag, Limit: limitFlag}
			if fromFlag != "" {
				from, err := parseDate(fromFlag)
				if err != nil {
					return err
				}
				filter.StartDate = &from
			}
			if toFlag != "" {
				to, err := parseDate(toFlag)
				if err != nil {
					return err
				}
				filter.EndDate = &to
			}
			if categoryFlag != "" {
				category, err := resolveCategory(ctx, store, categoryFlag, "")
				if err != nil {
					return err
				}
				filter.CategoryID = category.ID
			}

			txns, err := store.ListTransactions(ctx, filter)
			if err != nil {
				return fmt.Errorf("failed to list transactions: %w", err)
			}

			categories, err := store.GetCategories(ctx)
			if err != nil {
				return fmt.Errorf("failed to get categories: %w", err)
			}
			catByID := make(map[int64]model.Category, len(categories))
			for _, cat := range categories {
				catByID[cat.ID] = cat
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer w.Flush()

			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				cli.TableHeaderStyle.Render("ID"),
				cli.TableHeaderStyle.Render("Date"),
				cli.TableHeaderStyle.Render("Amount"),
				cli.TableHeaderStyle.Render("Category"),
				cli.TableHeaderStyle.Render("Tags"),
				cli.TableHeaderStyle.Render("Note"))

			for i := range txns {
				txn := txns[i]
				cat := catByID[txn.CategoryID]

				amount := formatAmount(txn.Amount)
				if cat.Kind == model.KindIncome {
					amount = cli.IncomeStyle.Render("+" + amount)
				} else {
					amount = cli.ExpenseStyle.Render("-" + amount)
				}

				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
					txn.ID,
					txn.Date.Format(dateLayout),
					amount,
					cat.Name,
					strings.Join(txn.Tags, ","),
					txn.Note)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&fromFlag, "from", "", "earliest date to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&toFlag, "to", "", "latest date to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&tagFlag, "tag", "", "only transactions carrying this tag")
	cmd.Flags().StringVar(&categoryFlag, "category", "", "only transactions in this category")
	cmd.Flags().IntVar(&limitFlag, "limit", 50, "maximum rows to show (0 for all)")

	return cmd
}

func editTransactionCmd() *cobra.Command {
	var (
		amountFlag   string
		dateFlag     string
		categoryFlag string
		kindFlag     string
		noteFlag     string
		tagsFlag     []string
	)

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a transaction",
		Long:  `Change any field of an existing transaction. Flags not passed keep their current value.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid transaction id %q", args[0])
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			existing, err := store.ListTransactions(ctx, service.TransactionFilter{})
			if err != nil {
				return fmt.Errorf("failed to load transactions: %w", err)
			}
			var txn *model.Transaction
			for i := range existing {
				if existing[i].ID == id {
					txn = &existing[i]
					break
				}
			}
			if txn == nil {
				return fmt.Errorf("transaction %d not found", id)
			}

			if amountFlag != "" {
				txn.Amount, err = parseAmount(amountFlag)
				if err != nil {
					return err
				}
			}
			if dateFlag != "" {
				txn.Date, err = parseDate(dateFlag)
				if err != nil {
					return err
				}
			}
			if categoryFlag != "" {
				category, err := resolveCategory(ctx, store, categoryFlag, model.CategoryKind(kindFlag))
				if err != nil {
					return err
				}
				txn.CategoryID = category.ID
			}
			if cmd.Flags().Changed("note") {
				txn.Note = noteFlag
			}
			if cmd.Flags().Changed("tag") {
				txn.Tags = tagsFlag
			}

			if err := store.EditTransaction(ctx, txn); err != nil {
				return fmt.Errorf("failed to edit transaction: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Updated transaction %d", id)))
			checkAutoSync(ctx, store)
			return nil
		},
	}

	cmd.Flags().StringVar(&amountFlag, "amount", "", "new amount")
	cmd.Flags().StringVar(&dateFlag, "date", "", "new date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&categoryFlag, "category", "", "new category name")
	cmd.Flags().StringVar(&kindFlag, "kind", "", "category kind when the name is ambiguous")
	cmd.Flags().StringVar(&noteFlag, "note", "", "new note")
	cmd.Flags().StringSliceVar(&tagsFlag, "tag", nil, "replacement tag set (repeatable)")

	return cmd
}

func deleteTransactionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid transaction id %q", args[0])
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.DeleteTransaction(ctx, id); err != nil {
				return fmt.Errorf("failed to delete transaction: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Deleted transaction %d", id)))
			checkAutoSync(ctx, store)
			return nil
		},
	}
}

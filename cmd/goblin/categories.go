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
)

func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Manage income and expense categories",
		Long:  `List, add, and delete the categories transactions are filed under.`,
	}

	cmd.AddCommand(listCategoriesCmd())
	cmd.AddCommand(addCategoryCmd())
	cmd.AddCommand(deleteCategoryCmd())

	return cmd
}

func listCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all categories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			categories, err := store.GetCategories(ctx)
			if err != nil {
				return fmt.Errorf("failed to get categories: %w", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer w.Flush()

			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				cli.TableHeaderStyle.Render("ID"),
				cli.TableHeaderStyle.Render("Kind"),
				cli.TableHeaderStyle.Render("Name"),
				cli.TableHeaderStyle.Render("Origin"))
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				strings.Repeat("-", 4),
				strings.Repeat("-", 8),
				strings.Repeat("-", 24),
				strings.Repeat("-", 6))

			for _, cat := range categories {
				origin := string(cat.Origin)
				if cat.IsSystem() {
					origin = cli.StyleSubtle(origin)
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", cat.ID, cat.Kind, cat.Name, origin)
			}

			return nil
		},
	}
}

func addCategoryCmd() *cobra.Command {
	var kindFlag string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a new category",
		Long:  `Create a new user category. The same name may exist once as income and once as expense.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			kind := model.CategoryKind(kindFlag)
			if !kind.Valid() {
				return fmt.Errorf("invalid kind %q, expected income or expense", kindFlag)
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			category, err := store.AddCategory(ctx, args[0], kind)
			if err != nil {
				return fmt.Errorf("failed to create category: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Created %s category %q (ID: %d)", category.Kind, category.Name, category.ID)))
			checkAutoSync(ctx, store)
			return nil
		},
	}

	cmd.Flags().StringVar(&kindFlag, "kind", "expense", "category kind (income or expense)")

	return cmd
}

func deleteCategoryCmd() *cobra.Command {
	var reassign bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a category",
		Long: `Delete a user category by id. A category still referenced by transactions
is only deleted with --reassign, which moves its transactions to the
built-in fallback category of the same kind.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid category id %q", args[0])
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.DeleteCategory(ctx, id, reassign); err != nil {
				return fmt.Errorf("failed to delete category: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Deleted category %d", id)))
			checkAutoSync(ctx, store)
			return nil
		},
	}

	cmd.Flags().BoolVar(&reassign, "reassign", false, "move the category's transactions to the fallback category")

	return cmd
}

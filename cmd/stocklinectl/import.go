package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stockline/stockline/internal/app"
	"github.com/stockline/stockline/internal/importer"
	"github.com/stockline/stockline/internal/store"
)

type importOptions struct {
	file     string
	entity   string
	tenantID int64
	shopID   int64
}

// contentTypeFor picks the parser for path. Anything that is not .json is
// read as CSV.
func contentTypeFor(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return "application/json"
	}
	return "text/csv"
}

// importTable accepts a coded catalog table or sales-history.
func importTable(name string) (store.Table, error) {
	t, err := store.ParseTable(name)
	if err != nil {
		return 0, fmt.Errorf("unknown entity %q", name)
	}
	return t, nil
}

func newImportCmd() *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a CSV or JSON file into a shop",
		Args:  cobra.NoArgs,
		PreRunE: func(_ *cobra.Command, _ []string) error {
			if _, err := importTable(opts.entity); err != nil {
				return err
			}
			if opts.tenantID <= 0 || opts.shopID <= 0 {
				return fmt.Errorf("--tenant and --shop must be positive ids")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			body, err := os.ReadFile(opts.file)
			if err != nil {
				return fmt.Errorf("reading %s: %w", opts.file, err)
			}
			rows, err := importer.Parse(contentTypeFor(opts.file), body)
			if err != nil {
				return err
			}

			return withApp(cmd.Context(), func(a *app.App) error {
				res, err := runImport(cmd.Context(), a, opts, rows)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}

	cmd.Flags().StringVar(&opts.file, "file", "", "Path to a .csv or .json file (required)")
	cmd.Flags().StringVar(&opts.entity, "entity", "", "brands, categories, skus, marketplaces, warehouses, suppliers or sales-history (required)")
	cmd.Flags().Int64Var(&opts.tenantID, "tenant", 0, "Tenant id (required)")
	cmd.Flags().Int64Var(&opts.shopID, "shop", 0, "Shop id (required)")

	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("entity")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("shop")

	return cmd
}

func runImport(ctx context.Context, a *app.App, opts importOptions, rows []importer.Row) (*importer.Result, error) {
	ok, err := a.Tenants.ShopBelongsTo(ctx, opts.shopID, opts.tenantID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("shop %d does not belong to tenant %d", opts.shopID, opts.tenantID)
	}

	table, err := importTable(opts.entity)
	if err != nil {
		return nil, err
	}

	if table == store.SalesHistory {
		return importer.Run(ctx, importer.SalesDefinition(a.Sales), a.Resolvers, opts.tenantID, opts.shopID, rows)
	}

	s, err := a.Catalog.Get(table)
	if err != nil {
		return nil, err
	}
	return importer.Run(ctx, importer.CatalogDefinition(table.String(), s), a.Resolvers, opts.tenantID, opts.shopID, rows)
}

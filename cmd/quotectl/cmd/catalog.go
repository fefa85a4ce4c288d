package cmd

import (
	"context"

	"github.com/spf13/cobra"

	hclcatalog "model-quote/adapters/catalog"
	core "model-quote/core/catalog"
	"model-quote/core/ui"
	qerrors "model-quote/internal/errors"
)

func newCatalogCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the product catalog",
	}
	cmd.AddCommand(newCatalogListCmd(opts), newCatalogValidateCmd(opts))
	return cmd
}

func newCatalogListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List products with their regional prices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				products, err := a.catalog.List(ctx)
				if err != nil {
					return err
				}
				return a.formatter.Products(a.out, products)
			})
		},
	}
}

func newCatalogValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Check a catalog file (default: the configured catalog)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			} else {
				cfg, err := opts.loadConfig()
				if err != nil {
					return err
				}
				path = cfg.Catalog.Path
			}
			c, err := hclcatalog.LoadHCL(path)
			if err != nil {
				return err
			}
			products, err := c.List(cmd.Context())
			if err != nil {
				return err
			}
			w := ui.NewWriter(cmd.OutOrStdout(), opts.noColor)
			if errs := c.Validate(core.DefaultValidationRules()); len(errs) > 0 {
				for _, e := range errs {
					w.Error("%s", qerrors.UserMessage(e))
				}
				return qerrors.Configuration("%s: %d of %d products failed validation", path, len(errs), len(products))
			}
			w.Success("%s: %d products", path, len(products))
			return w.Err()
		},
	}
}

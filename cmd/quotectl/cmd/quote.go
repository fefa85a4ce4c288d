package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"model-quote/adapters/storage"
	"model-quote/core/output"
	"model-quote/core/quote"
	"model-quote/core/service"
	qerrors "model-quote/internal/errors"
)

const dateLayout = "2006-01-02"

func newQuoteCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "quote",
		Aliases: []string{"quotes", "q"},
		Short:   "Create, edit and inspect versioned quotes",
	}
	cmd.AddCommand(
		newQuoteCreateCmd(opts),
		newQuoteShowCmd(opts),
		newQuoteAddItemCmd(opts),
		newQuoteAddItemsCmd(opts),
		newQuoteRemoveItemCmd(opts),
		newQuoteReorderCmd(opts),
		newQuoteDiscountCmd(opts),
		newQuoteUpdateCmd(opts),
		newQuoteStatusCmd(opts, "finalize", "Confirm a draft quote", (*service.Service).FinalizeQuote),
		newQuoteStatusCmd(opts, "cancel", "Cancel a draft quote", (*service.Service).CancelQuote),
		newQuoteDeleteCmd(opts),
		newQuoteCloneCmd(opts),
		newQuoteRevertCmd(opts),
		newQuoteListCmd(opts),
		newQuoteVersionsCmd(opts),
		newQuoteTotalsCmd(opts),
		newQuoteExpireCmd(opts),
	)
	return cmd
}

// parseDate reads a calendar date as the end of that day in UTC
func parseDate(field, s string) (time.Time, error) {
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, qerrors.Validation(field, "%q is not a date (YYYY-MM-DD)", s)
	}
	return d.Add(24*time.Hour - time.Second), nil
}

func showSheet(a *app, sheet *quote.Sheet) error {
	return a.formatter.Quote(a.out, sheet.View())
}

type infoFlags struct {
	customer string
	project  string
	sales    string
	contact  string
	email    string
	remarks  string
	terms    string
	validTo  string
}

func (f *infoFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.customer, "customer", "", "customer name")
	fl.StringVar(&f.project, "project", "", "project name")
	fl.StringVar(&f.sales, "sales", "", "sales representative")
	fl.StringVar(&f.contact, "contact", "", "customer contact")
	fl.StringVar(&f.email, "email", "", "customer email")
	fl.StringVar(&f.remarks, "remarks", "", "remarks")
	fl.StringVar(&f.terms, "terms", "", "terms and conditions")
	fl.StringVar(&f.validTo, "valid-until", "", "last valid day, YYYY-MM-DD")
}

func newQuoteCreateCmd(opts *rootOptions) *cobra.Command {
	info := &infoFlags{}
	var currency, createdBy string
	cmd := &cobra.Command{
		Use:     "create",
		Short:   "Open a new draft quote",
		Example: `  quotectl quote create --customer "Acme Corp" --project "Support bot" --email buyer@acme.example`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := service.CreateRequest{
				CustomerName:    info.customer,
				ProjectName:     info.project,
				SalesName:       info.sales,
				CustomerContact: info.contact,
				CustomerEmail:   info.email,
				Remarks:         info.remarks,
				Terms:           info.terms,
				Currency:        currency,
				CreatedBy:       createdBy,
			}
			if info.validTo != "" {
				t, err := parseDate("valid_until", info.validTo)
				if err != nil {
					return err
				}
				req.ValidUntil = &t
			}
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				sheet, err := a.svc.CreateQuote(ctx, req)
				if err != nil {
					return err
				}
				return showSheet(a, sheet)
			})
		},
	}
	info.register(cmd)
	cmd.Flags().StringVar(&currency, "currency", "", "quote currency (default from config)")
	cmd.Flags().StringVar(&createdBy, "created-by", os.Getenv("USER"), "author of the quote")
	_ = cmd.MarkFlagRequired("customer")
	return cmd
}

func newQuoteShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <quote-no>",
		Short: "Show a quote with its items and totals",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				v, err := a.svc.ExportQuote(ctx, args[0])
				if err != nil {
					return err
				}
				return a.formatter.Quote(a.out, v)
			})
		},
	}
}

func newQuoteAddItemCmd(opts *rootOptions) *cobra.Command {
	usage := &usageFlags{}
	var itemID, mode string
	cmd := &cobra.Command{
		Use:   "add-item <quote-no>",
		Short: "Add a priced item, or reprice an existing one with --item-id",
		Example: `  quotectl quote add-item QT202603010001 --product qwen-plus --input-tokens 1000000 --discount 0.85
  quotectl quote add-item QT202603010001 --item-id 3f1c... --product qwen-plus --input-tokens 2000000`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := usage.request(cmd)
			if err != nil {
				return err
			}
			req := service.ItemRequest{ItemID: itemID, InferenceMode: mode, UsageRequest: u}
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				sheet, err := a.svc.AddOrUpdateItem(ctx, args[0], req)
				if err != nil {
					return err
				}
				return showSheet(a, sheet)
			})
		},
	}
	usage.register(cmd)
	cmd.Flags().StringVar(&itemID, "item-id", "", "existing item to reprice")
	cmd.Flags().StringVar(&mode, "mode", "", "inference mode label, e.g. thinking or non-thinking")
	return cmd
}

// readItems decodes a JSON or YAML list of item requests
func readItems(path string) ([]service.ItemRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, qerrors.Wrap(qerrors.TypeValidation, "read items file", err)
	}
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, qerrors.Wrap(qerrors.TypeValidation, "parse items file", err)
	}
	// decimals and pointers decode through their JSON forms
	js, err := json.Marshal(raw)
	if err != nil {
		return nil, qerrors.Wrap(qerrors.TypeValidation, "parse items file", err)
	}
	var items []service.ItemRequest
	if err := json.Unmarshal(js, &items); err != nil {
		return nil, qerrors.Wrap(qerrors.TypeValidation, "items file must hold a list of items", err)
	}
	return items, nil
}

func newQuoteAddItemsCmd(opts *rootOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "add-items <quote-no>",
		Short: "Add many items from a JSON or YAML file in one version",
		Example: `  quotectl quote add-items QT202603010001 --file items.yaml

items.yaml:
  - product_code: qwen-plus
    input_tokens: 1000000
    discount_rate: "0.9"
  - product_code: wanx-v1
    units: 200`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := readItems(file)
			if err != nil {
				return err
			}
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				res, err := a.svc.AddItems(ctx, args[0], items)
				if err != nil {
					return err
				}
				return a.formatter.Batch(a.out, res)
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "JSON or YAML file with a list of items")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newQuoteRemoveItemCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove-item <quote-no> <item-id>",
		Short: "Remove an item from a draft quote",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				sheet, err := a.svc.RemoveItem(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return showSheet(a, sheet)
			})
		},
	}
}

func newQuoteReorderCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reorder <quote-no> <item-id>...",
		Short: "Set the display order of every item",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				sheet, err := a.svc.ReorderItems(ctx, args[0], args[1:])
				if err != nil {
					return err
				}
				return showSheet(a, sheet)
			})
		},
	}
}

func newQuoteDiscountCmd(opts *rootOptions) *cobra.Command {
	var remark string
	cmd := &cobra.Command{
		Use:     "discount <quote-no> <rate>",
		Short:   "Set the quote-wide discount rate, 1 removes it",
		Example: `  quotectl quote discount QT202603010001 0.95 --remark "annual commitment"`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				sheet, err := a.svc.SetGlobalDiscount(ctx, args[0], args[1], remark)
				if err != nil {
					return err
				}
				return showSheet(a, sheet)
			})
		},
	}
	cmd.Flags().StringVar(&remark, "remark", "", "reason for the discount")
	return cmd
}

func newQuoteUpdateCmd(opts *rootOptions) *cobra.Command {
	info := &infoFlags{}
	cmd := &cobra.Command{
		Use:     "update <quote-no>",
		Short:   "Edit descriptive fields of a draft quote",
		Example: `  quotectl quote update QT202603010001 --project "Support bot v2" --valid-until 2026-12-31`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := info.update(cmd)
			if err != nil {
				return err
			}
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				sheet, err := a.svc.UpdateInfo(ctx, args[0], u)
				if err != nil {
					return err
				}
				return showSheet(a, sheet)
			})
		},
	}
	info.register(cmd)
	return cmd
}

// update keeps only the flags given on the command line
func (f *infoFlags) update(cmd *cobra.Command) (quote.InfoUpdate, error) {
	var u quote.InfoUpdate
	changed := cmd.Flags().Changed
	fields := []struct {
		flag  string
		value string
		dst   **string
	}{
		{"customer", f.customer, &u.CustomerName},
		{"project", f.project, &u.ProjectName},
		{"sales", f.sales, &u.SalesName},
		{"contact", f.contact, &u.CustomerContact},
		{"email", f.email, &u.CustomerEmail},
		{"remarks", f.remarks, &u.Remarks},
		{"terms", f.terms, &u.Terms},
	}
	for _, fl := range fields {
		if changed(fl.flag) {
			*fl.dst = ptr(fl.value)
		}
	}
	if changed("valid-until") {
		t, err := parseDate("valid_until", f.validTo)
		if err != nil {
			return u, err
		}
		u.ValidUntil = &t
	}
	return u, nil
}

type statusFunc func(*service.Service, context.Context, string) (*quote.Sheet, error)

func newQuoteStatusCmd(opts *rootOptions, use, short string, fn statusFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <quote-no>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				sheet, err := fn(a.svc, ctx, args[0])
				if err != nil {
					return err
				}
				return showSheet(a, sheet)
			})
		},
	}
}

func newQuoteDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <quote-no>",
		Short: "Delete a quote with its items and history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				if err := a.svc.DeleteQuote(ctx, args[0]); err != nil {
					return err
				}
				return writeResult(a, map[string]string{"deleted": args[0]}, "Deleted quote %s\n", args[0])
			})
		},
	}
}

func newQuoteCloneCmd(opts *rootOptions) *cobra.Command {
	var createdBy string
	cmd := &cobra.Command{
		Use:   "clone <quote-no>",
		Short: "Copy a quote into a new draft with a new number",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				sheet, err := a.svc.CloneQuote(ctx, args[0], createdBy)
				if err != nil {
					return err
				}
				return showSheet(a, sheet)
			})
		},
	}
	cmd.Flags().StringVar(&createdBy, "created-by", os.Getenv("USER"), "author of the copy")
	return cmd
}

func newQuoteRevertCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "revert <quote-no> <version>",
		Short: "Restore a draft to the content of an earlier version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := versionArg(args[1])
			if err != nil {
				return err
			}
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				sheet, err := a.svc.RevertToVersion(ctx, args[0], n)
				if err != nil {
					return err
				}
				return showSheet(a, sheet)
			})
		},
	}
}

func versionArg(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, qerrors.Validation("version", "%q is not a version number", s)
	}
	return n, nil
}

func newQuoteListCmd(opts *rootOptions) *cobra.Command {
	var (
		filter storage.ListFilter
		status string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List quotes, newest first",
		Example: `  quotectl quote list --customer acme --status draft
  quotectl quote list --page 2 --page-size 50`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if status != "" {
				st, err := quote.ParseStatus(status)
				if err != nil {
					return err
				}
				filter.Status = st
			}
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				page, err := a.svc.ListQuotes(ctx, filter)
				if err != nil {
					return err
				}
				return a.formatter.Quotes(a.out, page)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&filter.CustomerName, "customer", "", "customer name contains")
	f.StringVar(&status, "status", "", "draft, confirmed, expired or cancelled")
	f.StringVar(&filter.CreatedBy, "created-by", "", "author of the quote")
	f.IntVar(&filter.Page, "page", 1, "page number")
	f.IntVar(&filter.PageSize, "page-size", 20, fmt.Sprintf("quotes per page, at most %d", storage.MaxPageSize))
	return cmd
}

func newQuoteVersionsCmd(opts *rootOptions) *cobra.Command {
	var number int
	cmd := &cobra.Command{
		Use:   "versions <quote-no>",
		Short: "List the version history, or show one version with --number",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				if number == 0 {
					versions, err := a.svc.ListVersions(ctx, args[0])
					if err != nil {
						return err
					}
					return a.formatter.Versions(a.out, args[0], versions)
				}
				v, err := a.svc.GetVersion(ctx, args[0], number)
				if err != nil {
					return err
				}
				sheet, err := v.Restore()
				if err != nil {
					return err
				}
				return showSheet(a, sheet)
			})
		},
	}
	cmd.Flags().IntVarP(&number, "number", "n", 0, "version to show")
	return cmd
}

func newQuoteTotalsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "totals <quote-no>",
		Short: "Show the quote totals",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				t, err := a.svc.GetQuoteTotals(ctx, args[0])
				if err != nil {
					return err
				}
				return a.formatter.Totals(a.out, args[0], t)
			})
		},
	}
}

func newQuoteExpireCmd(opts *rootOptions) *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "expire",
		Short: "Expire drafts whose validity has passed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now().UTC()
			if at != "" {
				t, err := parseDate("at", at)
				if err != nil {
					return err
				}
				now = t
			}
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				expired, err := a.svc.ExpireQuotes(ctx, now)
				if err != nil {
					return err
				}
				if expired == nil {
					expired = []string{}
				}
				return writeResult(a, map[string][]string{"expired": expired}, "Expired %d quote(s) %v\n", len(expired), expired)
			})
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "evaluate as of the end of this day, YYYY-MM-DD (default now)")
	return cmd
}

// writeResult prints a short outcome as JSON or text depending on the format
func writeResult(a *app, v interface{}, format string, args ...interface{}) error {
	if a.formatter.Format() == output.FormatJSON {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintf(a.out, format, args...)
	return err
}

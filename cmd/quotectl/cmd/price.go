package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

func newPriceCmd(opts *rootOptions) *cobra.Command {
	usage := &usageFlags{}
	cmd := &cobra.Command{
		Use:   "price",
		Short: "Price usage of one product without saving anything",
		Example: `  quotectl price --product qwen-plus --input-tokens 1000000 --output-tokens 200000
  quotectl price --product qwen-max --input-tokens 500000 --thinking-ratio 0.3 --discount 0.9
  quotectl price --product wanx-v1 --units 100 --months 12`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := usage.request(cmd)
			if err != nil {
				return err
			}
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				p, err := a.svc.Quote(ctx, req)
				if err != nil {
					return err
				}
				return a.formatter.Price(a.out, p)
			})
		},
	}
	usage.register(cmd)
	return cmd
}

package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/habedi/portal/client"
	"github.com/habedi/portal/pkg/clierr"
	"github.com/habedi/portal/pkg/pool"
	"github.com/habedi/portal/pkg/validation"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// batchCmd fetches several endpoints concurrently and summarizes the outcome of each.
func batchCmd(a *app) *cobra.Command {
	var workers int

	cmd := &cobra.Command{
		Use:     "batch ENDPOINT...",
		Short:   "GET several endpoints concurrently and summarize the results",
		Example: "  portal batch /job-offers /courses /municipalities --workers 3",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validation.ValidateWorkerCount(workers); err != nil {
				return clierr.New(clierr.Validation, err.Error(), err)
			}
			for _, endpoint := range args {
				if err := validation.ValidateEndpoint(endpoint); err != nil {
					return clierr.New(clierr.Validation, err.Error(), err)
				}
			}

			c, err := a.session()
			if err != nil {
				return err
			}

			results := pool.Map(cmd.Context(), args, workers, func(ctx context.Context, endpoint string) (*client.Response, error) {
				return c.Call(ctx, client.Request{Endpoint: endpoint})
			})

			table := newTable(cmd, []string{"Endpoint", "Status", "Source", "Bytes", "Error"})
			failed := 0
			for _, r := range results {
				endpoint := args[r.Index]
				switch {
				case r.Skipped:
					failed++
					table.Append([]string{endpoint, "-", "-", "-", "skipped"})
				case r.Err != nil:
					failed++
					status := "-"
					if code := client.StatusCode(r.Err); code != 0 {
						status = strconv.Itoa(code)
					}
					table.Append([]string{endpoint, status, "-", "-", toCLIError(r.Err).Message})
				default:
					status, source := strconv.Itoa(r.Value.Status), "backend"
					if r.Value.Fallback {
						status, source = "-", "placeholder"
					}
					table.Append([]string{endpoint, status, source, strconv.Itoa(len(r.Value.Body)), ""})
				}
			}
			table.Render()

			log.Info().Int("requests", len(args)).Int("failed", failed).Msg("Batch finished")
			if failed > 0 {
				return clierr.New(clierr.HTTP, fmt.Sprintf("%d of %d requests failed.", failed, len(args)), nil)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "w", 4, "Number of concurrent requests [1-20]")

	return cmd
}

package cmd

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/habedi/portal/client"
	"github.com/habedi/portal/pkg/clierr"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type resource struct {
	endpoint string
	columns  []string // JSON keys shown as table columns
}

var resources = map[string]resource{
	"jobs":           {"/job-offers", []string{"id", "title", "company", "location", "contractType", "status"}},
	"applications":   {"/applications", []string{"id", "jobOfferId", "userId", "status", "appliedAt"}},
	"municipalities": {"/municipalities", []string{"id", "name", "province", "population", "active"}},
	"courses":        {"/courses", []string{"id", "title", "category", "modality", "hours", "status"}},
	"enrollments":    {"/enrollments", []string{"id", "courseId", "userId", "status", "enrolledAt"}},
	"users":          {"/users", []string{"id", "name", "email", "role"}},
	"notifications":  {"/notifications", []string{"id", "title", "read", "createdAt"}},
}

func resourceNames() []string {
	names := make([]string, 0, len(resources))
	for name := range resources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// listCmd shows a collection of the platform as a table.
func listCmd(a *app) *cobra.Command {
	var query []string

	cmd := &cobra.Command{
		Use:       "list RESOURCE",
		Short:     "List a collection as a table",
		Long:      "List a collection as a table. Resources: " + strings.Join(resourceNames(), ", ") + ".",
		Args:      cobra.ExactArgs(1),
		ValidArgs: resourceNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, ok := resources[strings.ToLower(args[0])]
			if !ok {
				return clierr.New(clierr.Validation,
					fmt.Sprintf("Unknown resource %q. Use one of: %s.", args[0], strings.Join(resourceNames(), ", ")), nil)
			}
			endpoint, err := withQuery(res.endpoint, query)
			if err != nil {
				return err
			}

			c, err := a.session()
			if err != nil {
				return err
			}
			resp, err := c.Get(cmd.Context(), endpoint, nil)
			if err != nil {
				return err
			}
			warnFallback(cmd, resp)

			rows, err := decodeRows(resp.Body)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				cmd.Println("Nothing found.")
				return nil
			}

			table := newTable(cmd, res.columns)
			for _, row := range rows {
				line := make([]string, len(res.columns))
				for i, col := range res.columns {
					line[i] = cell(row[col])
				}
				table.Append(line)
			}
			table.Render()

			log.Info().Str("endpoint", endpoint).Int("rows", len(rows)).Msg("Listed collection")
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&query, "query", "q", nil, "Query parameter as key=value (repeatable)")

	return cmd
}

func withQuery(endpoint string, pairs []string) (string, error) {
	values, err := parsePairs(pairs)
	if err != nil || len(values) == 0 {
		return endpoint, err
	}
	q := url.Values{}
	for _, k := range sortedKeys(values) {
		q.Set(k, values[k])
	}
	return endpoint + "?" + q.Encode(), nil
}

// decodeRows accepts a JSON array of objects, a single object, or an object wrapping the
// array under "data" or "items".
func decodeRows(body json.RawMessage) ([]map[string]interface{}, error) {
	if len(body) == 0 {
		return nil, nil
	}
	var rows []map[string]interface{}
	if err := json.Unmarshal(body, &rows); err == nil {
		return rows, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, fmt.Errorf("%w: expected a JSON array or object", client.ErrInvalidResponse)
	}
	for _, key := range []string{"data", "items"} {
		if inner, ok := obj[key]; ok {
			if err := json.Unmarshal(inner, &rows); err == nil {
				return rows, nil
			}
		}
	}
	var single map[string]interface{}
	if err := json.Unmarshal(body, &single); err != nil {
		return nil, fmt.Errorf("%w: %w", client.ErrInvalidResponse, err)
	}
	return []map[string]interface{}{single}, nil
}

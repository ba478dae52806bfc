package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/habedi/portal/client"
	"github.com/habedi/portal/pkg/clierr"
	"github.com/habedi/portal/pkg/validation"
	"github.com/spf13/cobra"
)

// callCmd sends one request and prints the JSON answer.
func callCmd(a *app) *cobra.Command {
	var data string
	var fields, files, headers []string
	var noContentType bool

	cmd := &cobra.Command{
		Use:   "call METHOD ENDPOINT",
		Short: "Send an authenticated request to the API",
		Long: "Send an authenticated request to the API and print the JSON response.\n\n" +
			"The body is --data (JSON, or @file), or the --field values as a JSON object.\n" +
			"With --file the fields and files are sent as multipart form data.",
		Example: "  portal call GET /job-offers\n" +
			"  portal call POST /courses --field title=Welding --field hours=40\n" +
			"  portal call PUT /users/3 --data @user.json\n" +
			"  portal call POST /cv/upload --file cv=./cv.pdf",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			method, err := validation.ValidateMethod(args[0])
			if err != nil {
				return clierr.New(clierr.Validation, err.Error(), err)
			}
			endpoint := args[1]
			if err := validation.ValidateEndpoint(endpoint); err != nil {
				return clierr.New(clierr.Validation, err.Error(), err)
			}

			body, err := buildBody(data, fields, files)
			if err != nil {
				return err
			}
			header, err := parseHeaders(headers)
			if err != nil {
				return err
			}

			c, err := a.session()
			if err != nil {
				return err
			}
			resp, err := c.Call(cmd.Context(), client.Request{
				Method:             method,
				Endpoint:           endpoint,
				Header:             header,
				Body:               body,
				ExcludeContentType: noContentType,
			})
			if err != nil {
				return err
			}
			warnFallback(cmd, resp)
			return printJSON(cmd, resp.Body)
		},
	}

	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON request body, or @path to read it from a file")
	cmd.Flags().StringArrayVarP(&fields, "field", "f", nil, "Body field as key=value (repeatable)")
	cmd.Flags().StringArrayVar(&files, "file", nil, "File to upload as field=path (repeatable); sends multipart form data")
	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "Extra request header as Name=value (repeatable)")
	cmd.Flags().BoolVar(&noContentType, "no-content-type", false, "Do not send the JSON Content-Type header")

	return cmd
}

// buildBody turns the body flags into a request body. No flags means no body.
func buildBody(data string, fields, files []string) (client.Body, error) {
	if data != "" && (len(fields) > 0 || len(files) > 0) {
		return nil, clierr.New(clierr.Validation, "--data cannot be combined with --field or --file.", nil)
	}

	if data != "" {
		raw := []byte(data)
		if strings.HasPrefix(data, "@") {
			var err error
			if raw, err = os.ReadFile(strings.TrimPrefix(data, "@")); err != nil {
				return nil, clierr.New(clierr.Validation, fmt.Sprintf("Cannot read %s.", strings.TrimPrefix(data, "@")), err)
			}
		}
		if !json.Valid(raw) {
			return nil, clierr.New(clierr.Validation, "--data is not valid JSON.", nil)
		}
		return client.JSONBody(json.RawMessage(raw)), nil
	}

	values, err := parsePairs(fields)
	if err != nil {
		return nil, err
	}

	if len(files) > 0 {
		body := &client.MultipartBody{Fields: values}
		paths, err := parsePairs(files)
		if err != nil {
			return nil, err
		}
		for _, field := range sortedKeys(paths) {
			if _, err := os.Stat(paths[field]); err != nil {
				return nil, clierr.New(clierr.Validation, fmt.Sprintf("Cannot read %s.", paths[field]), err)
			}
			body.Files = append(body.Files, client.FileFromPath(field, paths[field]))
		}
		return body, nil
	}

	if len(values) > 0 {
		return client.JSONBody(values), nil
	}
	return nil, nil
}

func parsePairs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, err := validation.ParseKeyValue(p)
		if err != nil {
			return nil, clierr.New(clierr.Validation, err.Error(), err)
		}
		out[k] = v
	}
	return out, nil
}

func parseHeaders(pairs []string) (http.Header, error) {
	values, err := parsePairs(pairs)
	if err != nil || len(values) == 0 {
		return nil, err
	}
	header := make(http.Header, len(values))
	for k, v := range values {
		header.Set(k, v)
	}
	return header, nil
}

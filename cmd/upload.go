package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/habedi/portal/client"
	"github.com/habedi/portal/pkg/clierr"
	"github.com/habedi/portal/pkg/hasher"
	"github.com/habedi/portal/pkg/pool"
	"github.com/habedi/portal/pkg/validation"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

// hashWorkers bounds how many files are hashed at once.
const hashWorkers = 4

// uploadCmd sends files as multipart form data with a progress bar.
func uploadCmd(a *app) *cobra.Command {
	var files, fields []string
	var method, checksum string
	var rate int64
	var quiet bool

	cmd := &cobra.Command{
		Use:     "upload ENDPOINT",
		Short:   "Upload files as multipart form data",
		Example: "  portal upload /cv/upload --file cv=./cv.pdf --checksum sha256",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			endpoint := args[0]
			if err := validation.ValidateEndpoint(endpoint); err != nil {
				return clierr.New(clierr.Validation, err.Error(), err)
			}
			m, err := validation.ValidateMethod(method)
			if err != nil || m == http.MethodGet || m == http.MethodDelete {
				return clierr.New(clierr.Validation, "Upload method must be POST, PUT or PATCH.", err)
			}
			if len(files) == 0 {
				return clierr.New(clierr.Validation, "At least one --file field=path is required.", nil)
			}
			if checksum != "" && !hasher.IsValidHashAlgo(checksum) {
				return clierr.New(clierr.Validation, fmt.Sprintf("Unsupported checksum algorithm %q.", checksum), nil)
			}

			body, err := buildBody("", fields, files)
			if err != nil {
				return err
			}
			form := body.(*client.MultipartBody)
			if form.Fields == nil {
				form.Fields = map[string]string{}
			}

			var total int64
			paths := filePaths(files)
			for _, f := range form.Files {
				info, err := os.Stat(paths[f.Field])
				if err != nil {
					return clierr.New(clierr.Validation, fmt.Sprintf("Cannot read %s.", paths[f.Field]), err)
				}
				total += info.Size()
			}
			if checksum != "" {
				sums, err := checksumFields(cmd.Context(), form.Files, paths, checksum)
				if err != nil {
					return err
				}
				for k, v := range sums {
					form.Fields[k] = v
				}
			}

			c, err := a.session()
			if err != nil {
				return err
			}

			var bar *progressbar.ProgressBar
			if !quiet {
				bar = progressbar.NewOptions64(total,
					progressbar.OptionSetDescription("Uploading"),
					progressbar.OptionShowBytes(true),
					progressbar.OptionSetWriter(cmd.ErrOrStderr()),
					progressbar.OptionThrottle(100*time.Millisecond),
					progressbar.OptionClearOnFinish(),
				)
				form = withProgress(form, bar)
			}
			form = client.NewRateLimiter(rate).Limit(form)

			resp, err := c.Call(cmd.Context(), client.Request{Method: m, Endpoint: endpoint, Body: form})
			if bar != nil {
				_ = bar.Finish()
			}
			if err != nil {
				return err
			}
			warnFallback(cmd, resp)
			cmd.Printf("Uploaded %d file(s), %d bytes.\n", len(form.Files), total)
			return printJSON(cmd, resp.Body)
		},
	}

	cmd.Flags().StringArrayVar(&files, "file", nil, "File to upload as field=path (repeatable)")
	cmd.Flags().StringArrayVarP(&fields, "field", "f", nil, "Form field as key=value (repeatable)")
	cmd.Flags().StringVarP(&method, "method", "X", http.MethodPost, "HTTP method [POST, PUT, PATCH]")
	cmd.Flags().StringVarP(&checksum, "checksum", "c", "", "Add a <field>_<algo> checksum field per file [md5, sha1, sha256, sha512]")
	cmd.Flags().Int64Var(&rate, "rate", 0, "Upload bandwidth limit in bytes per second; 0 means unlimited")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not show a progress bar")

	return cmd
}

// checksumFields hashes every file concurrently and returns one <field>_<algo> form field per file.
func checksumFields(ctx context.Context, parts []client.FilePart, paths map[string]string, algo string) (map[string]string, error) {
	var mu sync.Mutex
	sums := make(map[string]string, len(parts))
	errs := pool.Run(ctx, parts, hashWorkers, func(ctx context.Context, f client.FilePart) error {
		path := paths[f.Field]
		sum, err := hasher.HashFile(path, algo)
		if err != nil {
			return fmt.Errorf("failed to hash %s: %w", path, err)
		}
		mu.Lock()
		sums[f.Field+"_"+algo] = sum
		mu.Unlock()
		log.Info().Str("file", filepath.Base(path)).Str("algo", algo).Str("sum", sum).Msg("Computed checksum")
		return nil
	})
	if len(errs) > 0 {
		return nil, clierr.New(clierr.Internal, errs[0].Error(), errors.Join(errs...))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return sums, nil
}

func filePaths(files []string) map[string]string {
	paths, _ := parsePairs(files)
	return paths
}

// withProgress reports the bytes read from every file to bar. The bar restarts when the
// form is sent again after a token refresh.
func withProgress(form *client.MultipartBody, bar *progressbar.ProgressBar) *client.MultipartBody {
	out := &client.MultipartBody{Fields: form.Fields, Files: make([]client.FilePart, len(form.Files))}
	for i, f := range form.Files {
		open := f.Open
		first := i == 0
		f.Open = func() (io.ReadCloser, error) {
			if first {
				bar.Reset()
			}
			rc, err := open()
			if err != nil {
				return nil, err
			}
			return struct {
				io.Reader
				io.Closer
			}{io.TeeReader(rc, bar), rc}, nil
		}
		out.Files[i] = f
	}
	return out
}

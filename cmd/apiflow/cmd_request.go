package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	apiflow "github.com/Mohammad-abdo/DR-LOW-sub002"
)

type requestFlags struct {
	data    string
	forms   []string
	files   []string
	headers []string
	queries []string
	attempt int
	repeat  int
}

func newRequestCmd(method string) *cobra.Command {
	flags := &requestFlags{}
	cmd := &cobra.Command{
		Use:   strings.ToLower(method) + " [path]",
		Short: fmt.Sprintf("Send a %s request", method),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequest(cmd, method, args[0], flags)
		},
	}

	cmd.Flags().StringVarP(&flags.data, "data", "d", "", "Request body; sent as JSON when it parses as JSON")
	cmd.Flags().StringArrayVarP(&flags.forms, "form", "F", nil, "Multipart field key=value (repeatable)")
	cmd.Flags().StringArrayVar(&flags.files, "file", nil, "Multipart file field=path (repeatable)")
	cmd.Flags().StringArrayVarP(&flags.headers, "header", "H", nil, "Header 'Key: Value' (repeatable)")
	cmd.Flags().StringArrayVarP(&flags.queries, "query", "q", nil, "Query parameter key=value (repeatable)")
	cmd.Flags().IntVar(&flags.attempt, "attempts", 0, "Attempt ceiling for this request")
	cmd.Flags().IntVar(&flags.repeat, "repeat", 1, "Issue the request this many times concurrently")
	return cmd
}

func runRequest(cmd *cobra.Command, method, path string, flags *requestFlags) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	opts, err := flags.requestOptions()
	if err != nil {
		return err
	}

	client := apiflow.New(
		apiflow.WithConfig(cfg),
		apiflow.WithCredentialStore(store),
		apiflow.WithLogger(apiflow.NewZapLogger(logger)),
		apiflow.WithCurrentRoute(func() string { return route }),
		apiflow.WithNavigator(apiflow.NavigatorFunc(func(loginPath string) {
			fmt.Fprintf(cmd.ErrOrStderr(), "session expired; sign in again at %s\n", loginPath)
		})),
	)
	defer client.Close()
	if !client.IsValid() {
		return client.ValidationError()
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	repeat := flags.repeat
	if repeat < 1 {
		repeat = 1
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < repeat; i++ {
		g.Go(func() error {
			resp, err := client.Do(ctx, method, path, opts...)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				var clientErr *apiflow.ClientError
				if errors.As(err, &clientErr) {
					if verbose {
						fmt.Fprint(cmd.ErrOrStderr(), clientErr.DebugInfo())
					}
					if clientErr.Response != nil && len(clientErr.Response.Body) > 0 {
						fmt.Fprintln(cmd.OutOrStdout(), clientErr.Response.String())
					}
				}
				return err
			}
			if repeat > 1 {
				fmt.Fprintf(cmd.OutOrStdout(), "#%d %d (attempts: %d)\n", i+1, resp.StatusCode, resp.Attempts)
			}
			if i == 0 || repeat == 1 {
				fmt.Fprintln(cmd.OutOrStdout(), resp.String())
			}
			return nil
		})
	}
	return g.Wait()
}

func (f *requestFlags) requestOptions() ([]apiflow.RequestOption, error) {
	var opts []apiflow.RequestOption

	for _, h := range f.headers {
		key, value, ok := strings.Cut(h, ":")
		if !ok {
			return nil, fmt.Errorf("header %q must be 'Key: Value'", h)
		}
		opts = append(opts, apiflow.WithHeader(strings.TrimSpace(key), strings.TrimSpace(value)))
	}

	for _, q := range f.queries {
		key, value, ok := strings.Cut(q, "=")
		if !ok {
			return nil, fmt.Errorf("query %q must be key=value", q)
		}
		opts = append(opts, apiflow.WithQuery(key, value))
	}

	if f.attempt > 0 {
		opts = append(opts, apiflow.WithAttempts(f.attempt))
	}

	if len(f.forms) > 0 || len(f.files) > 0 {
		if f.data != "" {
			return nil, fmt.Errorf("--data cannot be combined with --form or --file")
		}
		form, err := buildMultipart(f.forms, f.files)
		if err != nil {
			return nil, err
		}
		return append(opts, apiflow.WithMultipart(form)), nil
	}

	if f.data != "" {
		opts = append(opts, apiflow.WithBody(bodyFromData(f.data)))
	}
	return opts, nil
}

func buildMultipart(fields, files []string) (*apiflow.Multipart, error) {
	form := apiflow.NewMultipart()
	for _, field := range fields {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			return nil, fmt.Errorf("form field %q must be key=value", field)
		}
		form.AddField(key, value)
	}
	for _, file := range files {
		key, path, ok := strings.Cut(file, "=")
		if !ok {
			return nil, fmt.Errorf("file %q must be field=path", file)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		form.AddFile(key, filepath.Base(path), data)
	}
	return form, nil
}

// bodyFromData sends valid JSON untouched with a JSON content type; anything
// else goes out as text.
func bodyFromData(data string) any {
	if json.Valid([]byte(data)) {
		return json.RawMessage(data)
	}
	return data
}

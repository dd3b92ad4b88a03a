package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"
	"strings"

	"github.com/kroma-labs/httprequester/requester"
	"github.com/kroma-labs/httprequester/uritemplate"
	"github.com/spf13/cobra"
)

// requestFlags are shared by every request command.
type requestFlags struct {
	params  []string
	headers []string
	auth    string
	retries int
	include bool
	fail    bool
}

func (f *requestFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringArrayVarP(&f.params, "param", "p", nil, "template or query parameter as name=value (repeatable)")
	flags.StringArrayVarP(&f.headers, "header", "H", nil, "request header as 'Name: value' (repeatable)")
	flags.StringVar(&f.auth, "auth", "", "Authorization value, e.g. 'Bearer <token>'")
	flags.IntVarP(&f.retries, "retries", "r", -1, "retry count; -1 uses retry.max_retries")
	flags.BoolVarP(&f.include, "include", "i", false, "print the status line and response headers")
	flags.BoolVarP(&f.fail, "fail", "f", false, "exit non-zero on a 4xx or 5xx status")
}

// spec turns the flags into a RequestSpec for target.
func (f *requestFlags) spec(method, target string) (requester.RequestSpec, error) {
	spec := requester.NewRequestSpec(method, target)

	if len(f.params) > 0 {
		params := uritemplate.Params{}
		for _, raw := range f.params {
			name, value, ok := strings.Cut(raw, "=")
			if !ok || name == "" {
				return spec, fmt.Errorf("invalid --param %q: want name=value", raw)
			}
			params = params.Add(name, value)
		}
		spec = spec.WithParams(params)
	}

	for _, raw := range f.headers {
		name, value, ok := strings.Cut(raw, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return spec, fmt.Errorf("invalid --header %q: want 'Name: value'", raw)
		}
		spec = spec.WithHeader(strings.TrimSpace(name), strings.TrimSpace(value))
	}

	if f.auth != "" {
		spec = spec.WithAuthorization(f.auth)
	}
	return spec, nil
}

// send sends spec once, unless --retries asks for more attempts.
func (f *requestFlags) send(ctx context.Context, r *requester.Requester, spec requester.RequestSpec) (*http.Response, error) {
	if f.retries > 0 {
		return r.SendMessageWithRetries(ctx, spec, uint(f.retries))
	}
	return r.SendMessage(ctx, spec)
}

// write prints resp to out and applies --fail.
func (f *requestFlags) write(out io.Writer, resp *http.Response) error {
	if resp == nil {
		return nil
	}
	defer resp.Body.Close()

	if f.include {
		fmt.Fprintf(out, "%s %s\n", resp.Proto, resp.Status)
		names := make([]string, 0, len(resp.Header))
		for name := range resp.Header {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			for _, v := range resp.Header[name] {
				fmt.Fprintf(out, "%s: %s\n", name, v)
			}
		}
		fmt.Fprintln(out)
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if f.fail && resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("server returned %s", resp.Status)
	}
	return nil
}

func (a *app) newGetCommand() *cobra.Command {
	var f requestFlags

	cmd := &cobra.Command{
		Use:   "get <path>",
		Short: "Send a GET request with retries",
		Long: `Send a GET request. The path may be a template such as "users/{id}";
parameters not consumed by the template become the query string.`,
		Example: `  httprequester get --base-url https://api.example.com users/{id} -p id=42 -p expand=orders
  httprequester get /status -r 3 --fail`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := f.spec(http.MethodGet, args[0])
			if err != nil {
				return err
			}

			client, r, err := a.newRequester()
			if err != nil {
				return err
			}
			defer client.Close()

			retries := r.Policy().MaxRetries()
			if f.retries >= 0 {
				retries = uint(f.retries)
			}

			resp, err := r.SendMessageWithRetries(cmd.Context(), spec, retries)
			if err != nil {
				return err
			}
			return f.write(cmd.OutOrStdout(), resp)
		},
	}
	f.register(cmd)
	return cmd
}

func (a *app) newSendCommand(use, method string) *cobra.Command {
	var (
		f           requestFlags
		data        string
		contentType string
	)

	cmd := &cobra.Command{
		Use:   use + " <path>",
		Short: fmt.Sprintf("Send a %s request", method),
		Long: fmt.Sprintf(`Send a %s request with a body. The request is sent once unless
--retries is given. Use --data @file to read the body from a file, or
--data @- for stdin.`, method),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := f.spec(method, args[0])
			if err != nil {
				return err
			}

			body, err := readData(cmd.InOrStdin(), data)
			if err != nil {
				return err
			}
			spec = spec.WithBody(requester.Bytes(body, contentType))

			client, r, err := a.newRequester()
			if err != nil {
				return err
			}
			defer client.Close()

			resp, err := f.send(cmd.Context(), r, spec)
			if err != nil {
				return err
			}
			return f.write(cmd.OutOrStdout(), resp)
		},
	}
	f.register(cmd)
	cmd.Flags().StringVarP(&data, "data", "d", "", "request body, @file or @- for stdin")
	cmd.Flags().StringVarP(&contentType, "content-type", "t", "application/json", "Content-Type of the body")
	return cmd
}

func (a *app) newDeleteCommand() *cobra.Command {
	var f requestFlags

	cmd := &cobra.Command{
		Use:   "delete <path>",
		Short: "Send a DELETE request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := f.spec(http.MethodDelete, args[0])
			if err != nil {
				return err
			}

			client, r, err := a.newRequester()
			if err != nil {
				return err
			}
			defer client.Close()

			resp, err := f.send(cmd.Context(), r, spec)
			if err != nil {
				return err
			}
			return f.write(cmd.OutOrStdout(), resp)
		},
	}
	f.register(cmd)
	return cmd
}

func readData(stdin io.Reader, data string) ([]byte, error) {
	switch {
	case data == "@-":
		return io.ReadAll(stdin)
	case strings.HasPrefix(data, "@"):
		return os.ReadFile(data[1:])
	default:
		return []byte(data), nil
	}
}

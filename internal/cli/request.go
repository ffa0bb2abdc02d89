package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/kroma-labs/outbound/httpclient"
)

func (a *app) newRequestCommand(use, method string, withBody bool) *cobra.Command {
	var data string

	cmd := &cobra.Command{
		Use:   use + " URL",
		Short: "Send a " + method + " request and print the response body",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var body any
			if withBody && data != "" {
				raw, err := readBody(data)
				if err != nil {
					return err
				}
				body = raw
			}

			reqOpts, err := a.requestOptions()
			if err != nil {
				return err
			}

			s, err := a.newSession(cmd, false)
			if err != nil {
				return err
			}
			defer s.close(context.WithoutCancel(cmd.Context()))

			payload, err := s.client.Do(cmd.Context(), method, args[0], body, reqOpts...)
			if err != nil {
				a.printError(err)
				return err
			}
			return printPayload(a.out, payload)
		},
	}

	if withBody {
		cmd.Flags().StringVarP(&data, "data", "d", "", "JSON request body, or @file to read it from a file")
	}
	return cmd
}

// readBody returns the JSON body given inline or as @path. The body is
// validated here so a typo fails before any request is sent.
func readBody(data string) (json.RawMessage, error) {
	raw := []byte(data)
	if path, ok := strings.CutPrefix(data, "@"); ok {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		raw = b
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("request body is not valid JSON")
	}
	return json.RawMessage(raw), nil
}

// printPayload writes a structured body indented and a text body as-is.
func printPayload(w io.Writer, p *httpclient.Payload) error {
	if p.IsStructured() {
		var buf bytes.Buffer
		if err := json.Indent(&buf, p.Bytes(), "", "  "); err == nil {
			buf.WriteByte('\n')
			_, err = w.Write(buf.Bytes())
			return err
		}
	}
	text := p.Text()
	if text != "" && !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	_, err := io.WriteString(w, text)
	return err
}

// printError describes a failed call on errOut, including the response
// body of status errors.
func (a *app) printError(err error) {
	herr, ok := httpclient.AsError(err)
	if !ok {
		return
	}
	fmt.Fprintf(a.errOut, "%s: %s\n", herr.Code(), herr.Message)

	last := herr
	if herr.Kind == httpclient.KindRetriesExhausted {
		if cause, ok := httpclient.AsError(herr.Cause); ok {
			last = cause
		}
	}
	if last.Kind == httpclient.KindStatus && last.Body != nil && last.Body != "" {
		b, mErr := json.MarshalIndent(last.Body, "", "  ")
		if mErr == nil {
			fmt.Fprintf(a.errOut, "%s\n", b)
		}
	}
}

// formatDuration rounds d for log output.
func formatDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}

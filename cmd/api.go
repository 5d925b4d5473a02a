package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/desertthunder/vinyl/internal/shared"
	"github.com/urfave/cli/v3"
)

// APIRaw sends an arbitrary request to the facade with the stored session and prints the response.
func (r *Runner) APIRaw(ctx context.Context, cmd *cli.Command) error {
	method := strings.ToUpper(cmd.StringArg("method"))
	path := cmd.StringArg("path")
	if method == "" || path == "" {
		return fmt.Errorf("%w: usage: vinyl api raw <method> <path>", shared.ErrMissingArgument)
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	var body []byte
	if data := cmd.String("data"); data != "" {
		var jsonTest any
		if err := json.Unmarshal([]byte(data), &jsonTest); err != nil {
			return fmt.Errorf("%w: data is not valid JSON: %v", shared.ErrInvalidInput, err)
		}
		body = []byte(data)
	}

	r.logger.Info("raw request", "method", method, "path", path)

	resp, err := r.api.Raw(ctx, method, path, body)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrProviderError, err)
	}

	if resp.IsJSON {
		if err := r.writeJSON(resp.JSONData, cmd.Bool("pretty")); err != nil {
			return err
		}
	} else if len(resp.Body) > 0 {
		r.output.Write(resp.Body)
		r.output.Write([]byte("\n"))
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: status %d", shared.ErrProviderError, resp.StatusCode)
	}
	return nil
}

package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"inferd/internal/runner"
)

// httpError maps a non-2xx response onto a runner error code.
func httpError(resp *http.Response) *runner.Error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := serverMessage(b)
	var code runner.Code
	switch {
	case resp.StatusCode == http.StatusBadRequest, resp.StatusCode == http.StatusUnprocessableEntity:
		code = runner.CodeInvalidParameter
	case resp.StatusCode == http.StatusNotFound:
		code = runner.CodeModelLoadFailed
	case resp.StatusCode == http.StatusRequestTimeout, resp.StatusCode == http.StatusGatewayTimeout:
		code = runner.CodeTimeout
	case resp.StatusCode == http.StatusTooManyRequests:
		code = runner.CodeRunnerBusy
	case resp.StatusCode == http.StatusServiceUnavailable:
		code = runner.CodeHardwareUnavailable
	default:
		code = runner.CodeProcessingFailed
	}
	return runner.NewError(code, fmt.Sprintf("server returned %s: %s", resp.Status, msg))
}

// serverMessage extracts {"error":{"message":...}} or falls back to the body.
func serverMessage(b []byte) string {
	var env struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(b, &env) == nil && len(env.Error) > 0 {
		var obj struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(env.Error, &obj) == nil && obj.Message != "" {
			return obj.Message
		}
		var s string
		if json.Unmarshal(env.Error, &s) == nil && s != "" {
			return s
		}
	}
	return strings.TrimSpace(string(b))
}

// transportError classifies a failed round trip. Context errors keep their
// CANCELLED/TIMEOUT meaning.
func transportError(ctx context.Context, err error) *runner.Error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return runner.AsError(ctxErr)
	}
	return runner.Wrap(runner.CodeNetworkError, "request failed", err)
}

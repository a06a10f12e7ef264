package httpapi

import (
	"encoding/json"
	"net/http"

	"inferd/internal/runner"
	"inferd/pkg/types"
)

// statusFor maps an error code to the HTTP status returned before any
// streamed bytes are written.
func statusFor(code runner.Code) int {
	switch code {
	case runner.CodeSessionConflict:
		return http.StatusConflict
	case runner.CodeRunnerBusy:
		return http.StatusTooManyRequests
	case runner.CodeTimeout:
		return http.StatusGatewayTimeout
	case runner.CodeCancelled:
		return 499
	}
	switch code.Class() {
	case runner.ClassValidation:
		return http.StatusBadRequest
	case runner.ClassSelection, runner.ClassResource:
		return http.StatusServiceUnavailable
	}
	if code == runner.CodeInternal {
		return http.StatusInternalServerError
	}
	return http.StatusBadGateway
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string, code runner.Code) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status, ErrorCode: string(code)})
}

// writeEventError writes the error carried by a terminal event.
func writeEventError(w http.ResponseWriter, body *types.ErrorBody) int {
	code := runner.Code(body.Code)
	status := statusFor(code)
	if status == http.StatusTooManyRequests {
		IncrementBackpressure(string(code))
	}
	writeJSONError(w, status, body.Message, code)
	return status
}

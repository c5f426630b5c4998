package core

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"lawnwatch/internal/types"
)

const errCodeNotFoundRoute types.ErrorCode = "not_found_route"

type APIErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

// JSON writes data with the given status. Marshal failures become a 500.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(APIErrorResponse{Error: ErrorDetail{
			Code:      string(types.ErrCodeInternalUnexpected),
			Message:   "failed to marshal response",
			RequestID: types.GetRequestID(r.Context()),
		}})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Error writes err as an APIErrorResponse. Errors that are not AppErrors are
// reported as a generic 500 without leaking their text.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	detail := ErrorDetail{
		Code:      string(types.ErrCodeInternalUnexpected),
		Message:   "an unexpected error occurred",
		RequestID: types.GetRequestID(r.Context()),
	}
	status := http.StatusInternalServerError

	var appErr *types.AppError
	if errors.As(err, &appErr) {
		detail.Code, detail.Message, detail.Details = string(appErr.Code), appErr.Message, appErr.Details
		status = httpStatus(appErr.Code)
	}
	JSON(w, r, status, APIErrorResponse{Error: detail})
}

// httpStatus derives the status from the code's category prefix.
func httpStatus(code types.ErrorCode) int {
	c := string(code)
	switch {
	case strings.HasPrefix(c, "validation_"):
		return http.StatusBadRequest
	case strings.HasPrefix(c, "not_found_"):
		return http.StatusNotFound
	case code == types.ErrCodeUpstreamRateLimited:
		return http.StatusTooManyRequests
	case strings.HasPrefix(c, "upstream_"):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

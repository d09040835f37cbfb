package api

import "net/http"

const (
	ErrorCodeNotFound = "not_found"
	ErrorCodeUpstream = "upstream_error"
	ErrorCodeInternal = "internal_error"
)

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func JSONError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]ErrorResponse{
		"error": {Code: code, Message: message},
	})
}

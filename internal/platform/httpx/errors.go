package httpx

import (
	"errors"
	"net/http"
)

// Sentinels wrapped by handlers so RespondError can pick a status.
var (
	ErrNotFound    = errors.New("resource not found")
	ErrValidation  = errors.New("validation failed")
	ErrUnavailable = errors.New("upstream unavailable")
)

type errorMapping struct {
	target error
	status int
	title  string
}

var errorMappings = []errorMapping{
	{ErrValidation, http.StatusBadRequest, "Validation Failed"},
	{ErrNotFound, http.StatusNotFound, "Not Found"},
	{ErrUnavailable, http.StatusServiceUnavailable, "Service Unavailable"},
}

// StatusFor returns the HTTP status RespondError would use for err.
func StatusFor(err error) int {
	if m, ok := lookup(err); ok {
		return m.status
	}
	return http.StatusInternalServerError
}

// RespondError writes err as a problem document. Unmapped errors become a
// 500 with no detail so internal messages never reach the client.
func RespondError(w http.ResponseWriter, err error) {
	m, ok := lookup(err)
	if !ok {
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	Problem(w, m.status, m.title, err.Error())
}

func lookup(err error) (errorMapping, bool) {
	if err == nil {
		return errorMapping{}, false
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m, true
		}
	}
	return errorMapping{}, false
}

package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/passlink/internal/common"
)

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders a service error. Anything that is not a *common.Error
// is treated as internal so unexpected failures never leak details.
func writeError(w http.ResponseWriter, err error) {
	var ce *common.Error
	if !errors.As(err, &ce) {
		ce = common.ErrorInternal
	}
	var res errorResponse
	res.Error.Message = ce.Message
	writeJSON(w, ce.Status, res)
}

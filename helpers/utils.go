package helpers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/microcosm-cc/bluemonday"
	"github.com/ninja-software/terror/v2"
)

// EncodeJSON will encode json to response writer and return status ok.
func EncodeJSON(w http.ResponseWriter, result interface{}) (int, error) {
	err := json.NewEncoder(w).Encode(result)
	if err != nil {
		return http.StatusInternalServerError, terror.Error(err, "")
	}
	return http.StatusOK, nil
}

// SearchArgInt returns a URL search argument as an int, falling back to
// defaultValue when absent or malformed.
func SearchArgInt(r *http.Request, key string, defaultValue int) int {
	str := r.URL.Query().Get(key)
	if str == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(str)
	if err != nil {
		return defaultValue
	}
	return i
}

// Sanitise strips markup from user-supplied text
func Sanitise(s string, sp *bluemonday.Policy) string {
	return sp.Sanitize(s)
}

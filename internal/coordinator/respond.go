package coordinator

import (
	"encoding/json"
	"net/http"
)

func writeJSONBody(w http.ResponseWriter, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

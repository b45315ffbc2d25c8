package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"AgriDataHub/api/constants"
	"AgriDataHub/internal/schema"
	"AgriDataHub/internal/store"
)

// kinded is implemented by every typed error that names itself in the
// response envelope.
type kinded interface {
	Kind() string
}

// badRequestKinds are the kinds the caller can fix by changing the request
// or the uploaded file.
var badRequestKinds = map[string]bool{
	"UnreadableWorkbookError":   true,
	"HeaderNotFoundError":       true,
	"IncompleteRowError":        true,
	"InvalidFieldFormatError":   true,
	"DuplicateRowsInBatchError": true,
	"DateParseError":            true,
	constants.KindBadRequest:    true,
}

// Classify maps an error onto its HTTP status and envelope kind.
func Classify(err error) (int, string) {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, schema.ErrUnknownModule):
		return http.StatusNotFound, constants.KindNotFound
	}
	var k kinded
	if errors.As(err, &k) {
		if badRequestKinds[k.Kind()] {
			return http.StatusBadRequest, k.Kind()
		}
		return http.StatusInternalServerError, k.Kind()
	}
	return http.StatusInternalServerError, constants.KindInternal
}

func writeJSON(w http.ResponseWriter, status int, body map[string]interface{}) {
	w.Header().Set(constants.ContentTypeText, constants.ContentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Println("[ERROR] encode response:", err)
	}
}

// Error response helper
func RespondWithError(w http.ResponseWriter, status int, kind, errMsg string) {
	log.Println("[ERROR]", kind, errMsg)
	writeJSON(w, status, map[string]interface{}{
		constants.KeySuccess: false,
		constants.KeyError:   kind,
		constants.KeyMessage: errMsg,
	})
}

// RespondWithErr classifies err and writes the error envelope. Extra keys
// are merged into the envelope.
func RespondWithErr(w http.ResponseWriter, err error, extra map[string]interface{}) {
	status, kind := Classify(err)
	msg := err.Error()
	if status == http.StatusInternalServerError && kind == constants.KindInternal {
		msg = constants.ErrUnexpected
	}
	log.Println("[ERROR]", kind, err)
	body := map[string]interface{}{
		constants.KeySuccess: false,
		constants.KeyError:   kind,
		constants.KeyMessage: msg,
	}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, status, body)
}

// RespondWithPayload sends {success: true} merged with payload.
func RespondWithPayload(w http.ResponseWriter, status int, payload map[string]interface{}) {
	body := map[string]interface{}{constants.KeySuccess: true}
	for k, v := range payload {
		body[k] = v
	}
	writeJSON(w, status, body)
}

// LogInfo logs an informational message (wrapper for consistent logging)
func LogInfo(msg string, args ...interface{}) {
	if len(args) > 0 {
		log.Printf("[INFO] "+msg, args...)
	} else {
		log.Println("[INFO]", msg)
	}
}

// LogError logs an error message (wrapper for consistent logging)
func LogError(msg string, args ...interface{}) {
	if len(args) > 0 {
		log.Printf("[ERROR] "+msg, args...)
	} else {
		log.Println("[ERROR]", msg)
	}
}

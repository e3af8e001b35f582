package httpx

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrEmptyBody is returned by DecodeJSON when the request has no body.
	ErrEmptyBody = errors.New("request body is empty")
	// ErrBadJSON is returned by DecodeJSON when the body is not valid JSON.
	ErrBadJSON = errors.New("request body is not valid json")
	// ErrBadID is returned by ParseID for missing or non-numeric ids.
	ErrBadID = errors.New("bad id")
)

// Status codes shared across modules.
const (
	CodeValidation    = "validation_error"
	CodeNotFound      = "not_found"
	CodeDatabaseError = "database_error"
)

// ValidationFailed writes a 422 with one message per failing field.
func ValidationFailed(w http.ResponseWriter, err error) {
	Fail(w, http.StatusUnprocessableEntity, CodeValidation, FieldErrors(err))
}

// FieldErrors flattens validator errors into field -> message. Any other
// error becomes a single "body" entry.
func FieldErrors(err error) map[string]string {
	out := make(map[string]string)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			out[fe.Field()] = fieldMessage(fe)
		}
		return out
	}
	out["body"] = err.Error()
	return out
}

// BadID writes a 400 for an unparsable path id.
func BadID(w http.ResponseWriter) {
	Fail(w, http.StatusBadRequest, "invalid_id", "The id must be a positive integer")
}

// Internal writes a 500 database_error envelope. The cause is not exposed.
func Internal(w http.ResponseWriter) {
	Fail(w, http.StatusInternalServerError, CodeDatabaseError, "An error has arisen, please try again later")
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "eqfield":
		return "must match " + fe.Param()
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

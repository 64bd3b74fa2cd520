package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/putto11262002/chatter-client/pkg/router"
)

// DecodeJson decodes a request body into v and validates it.
// Malformed bodies and validation failures are returned as a 400 router.JsonError.
func (a *Api) DecodeJson(r io.Reader, v any) error {
	decoder := json.NewDecoder(r)
	if err := decoder.Decode(v); err != nil {
		return router.NewJsonError(http.StatusBadRequest, "malformed request body")
	}

	if err := a.validate.Struct(v); err != nil {
		return router.NewJsonError(http.StatusBadRequest, a.formatValidationErrors(err))
	}

	return nil
}

func (a *Api) formatValidationErrors(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(errs))
	for _, fe := range errs {
		if a.trans != nil {
			msgs = append(msgs, fe.Translate(a.trans))
			continue
		}
		msgs = append(msgs, fe.Error())
	}
	return strings.Join(msgs, "; ")
}

func WriteJsonResponse(w http.ResponseWriter, v any) error {
	w.Header().Set("Content-Type", "application/json")
	encoder := json.NewEncoder(w)
	err := encoder.Encode(v)
	if err != nil {
		return err
	}
	return nil
}

func WriteJsonResponseWithStatusCode(w http.ResponseWriter, v any, code int) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	encoder := json.NewEncoder(w)
	err := encoder.Encode(v)
	if err != nil {
		return err
	}
	return nil
}

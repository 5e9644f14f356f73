package httputil

import (
	"errors"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
)

const maxBodySize = 1 << 20

type ErrorResponse struct {
	Code    int      `json:"code"`
	Message string   `json:"message"`
	Details string   `json:"details,omitempty"`
	Fields  []string `json:"fields,omitempty"`
}

func WriteErrorResponse(w http.ResponseWriter, statusCode int, message string, details error) {
	WriteFieldsErrorResponse(w, statusCode, message, details, nil)
}

// WriteFieldsErrorResponse is WriteErrorResponse naming the request fields at fault.
func WriteFieldsErrorResponse(w http.ResponseWriter, statusCode int, message string, details error, fields []string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := ErrorResponse{
		Code:    statusCode,
		Message: message,
		Fields:  fields,
	}

	if details != nil {
		resp.Details = details.Error()
	}

	sonic.ConfigFastest.NewEncoder(w).Encode(resp)
}

func WriteJSONResponse(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if body != nil {
		sonic.ConfigDefault.NewEncoder(w).Encode(body)
	}
}

// ReadJSON decodes a request body of at most 1MB into v.
func ReadJSON(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return errors.New("reading body error: " + err.Error())
	}
	if len(body) == 0 {
		return errors.New("empty body")
	}
	if err = sonic.Unmarshal(body, v); err != nil {
		return errors.New("decoding body error: " + err.Error())
	}
	return nil
}

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrChatNotFound distinguishes a missing conversation from other HTTP
// failures so callers can offer starting a new chat instead of a dead end.
var ErrChatNotFound = errors.New("chat not found")

// APIError is any non-2xx response from the chat service. Detail is the
// normalized human-readable message from the structured error body.
type APIError struct {
	StatusCode int
	Status     string
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("api: %s", e.Status)
	}
	return fmt.Sprintf("api: %s: %s", e.Status, e.Detail)
}

// NotFoundError is returned for a conversation fetch that hit a 404.
type NotFoundError struct {
	Detail string
}

func (e *NotFoundError) Error() string {
	if e.Detail == "" {
		return ErrChatNotFound.Error()
	}
	return fmt.Sprintf("%v: %s", ErrChatNotFound, e.Detail)
}

func (e *NotFoundError) Unwrap() error { return ErrChatNotFound }

// errorBody is the service's error envelope: detail is either a plain
// string or a list of field-level {"msg": ...} objects.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

func errorFromResponse(resp *http.Response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode, Status: resp.Status}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apiErr
	}
	var envelope errorBody
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return apiErr
	}

	var detail string
	if err := json.Unmarshal(envelope.Detail, &detail); err == nil {
		apiErr.Detail = detail
		return apiErr
	}
	var fields []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(envelope.Detail, &fields); err == nil {
		msgs := make([]string, 0, len(fields))
		for _, f := range fields {
			msgs = append(msgs, f.Msg)
		}
		apiErr.Detail = strings.Join(msgs, ", ")
	}
	return apiErr
}

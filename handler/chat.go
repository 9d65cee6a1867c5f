package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"willows-assistant/internal/usecase"
)

const (
	ChatPath = "/api/worker"

	headerCorrelationID = "X-Correlation-Id"
	headerAllowOrigin   = "Access-Control-Allow-Origin"
	headerAllowMethods  = "Access-Control-Allow-Methods"
	headerAllowHeaders  = "Access-Control-Allow-Headers"

	allowOrigin  = "*"
	allowMethods = "POST, GET, OPTIONS"
	allowHeaders = "Content-Type"

	messageRequired = "Message is required"
)

// ReplyUseCase is the completion proxy as seen by the gateway.
type ReplyUseCase interface {
	Reply(ctx context.Context, in usecase.ReplyInput) (usecase.ReplyOutput, error)
	Absorb(ctx context.Context, err error) usecase.ReplyOutput
}

type chatResponse struct {
	Response string `json:"response"`
}

type errorResponse struct {
	Error string `json:"error"`
}

var errMessageRequired = errors.New("handler: message is required")

// decodeChatRequest separates a missing or falsy message (a validation
// failure) from a body that is not a JSON object or whose message is not a
// string. Field names match exactly: {"Message":"hi"} has no message.
func decodeChatRequest(body []byte) (string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return "", usecase.NewMalformedRequestError(err)
	}
	if fields == nil {
		return "", usecase.NewMalformedRequestError(errors.New("request body is null"))
	}
	raw, ok := fields["message"]
	if !ok || falsy(raw) {
		return "", errMessageRequired
	}
	var message string
	if err := json.Unmarshal(raw, &message); err != nil {
		return "", usecase.NewMalformedRequestError(err)
	}
	return message, nil
}

// falsy reports whether raw is null, false, 0, "", [] or {}.
func falsy(raw json.RawMessage) bool {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch x := v.(type) {
	case nil:
		return true
	case bool:
		return !x
	case float64:
		return x == 0
	case string:
		return x == ""
	case []any:
		return len(x) == 0
	case map[string]any:
		return len(x) == 0
	}
	return false
}

// serveChat runs one exchange and returns the status and JSON payload. Only a
// missing message yields a non-200 status.
func serveChat(ctx context.Context, uc ReplyUseCase, body []byte, readErr error) (int, any) {
	if readErr != nil {
		out := uc.Absorb(ctx, usecase.NewMalformedRequestError(readErr))
		return http.StatusOK, chatResponse{Response: out.Response}
	}

	message, err := decodeChatRequest(body)
	if errors.Is(err, errMessageRequired) {
		return http.StatusBadRequest, errorResponse{Error: messageRequired}
	}
	if err != nil {
		out := uc.Absorb(ctx, err)
		return http.StatusOK, chatResponse{Response: out.Response}
	}

	out, err := uc.Reply(ctx, usecase.ReplyInput{Message: message})
	if err != nil {
		var ucErr *usecase.Error
		if errors.As(err, &ucErr) && ucErr.Code == usecase.ErrorInvalidInput {
			return http.StatusBadRequest, errorResponse{Error: messageRequired}
		}
		out = uc.Absorb(ctx, err)
	}
	return http.StatusOK, chatResponse{Response: out.Response}
}

func correlationID(provided string) string {
	if id := strings.TrimSpace(provided); id != "" {
		return id
	}
	return newCorrelationID()
}

var newCorrelationID = func() string {
	return uuid.NewString()
}

package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"willows-assistant/internal/logging"
)

// Handler serves the chat endpoint behind an API Gateway proxy integration.
// Static assets are served elsewhere; every path but the chat endpoint is 404.
type Handler struct {
	uc     ReplyUseCase
	logger *slog.Logger
}

// NewHandler creates a Handler. A nil logger means slog.Default().
func NewHandler(uc ReplyUseCase, logger *slog.Logger) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: reply use case must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{uc: uc, logger: logger}, nil
}

// Handle serves one API Gateway proxy request.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	corrID := correlationID(headerValue(req.Headers, headerCorrelationID))
	ctx = logging.WithCorrelationID(ctx, corrID)

	headers := map[string]string{
		headerAllowOrigin:   allowOrigin,
		headerCorrelationID: corrID,
	}

	switch {
	case req.HTTPMethod == http.MethodOptions:
		headers[headerAllowMethods] = allowMethods
		headers[headerAllowHeaders] = allowHeaders
		return events.APIGatewayProxyResponse{StatusCode: http.StatusOK, Headers: headers}, nil
	case req.HTTPMethod != http.MethodPost || req.Path != ChatPath:
		h.logger.InfoContext(ctx, "route not found", "method", req.HTTPMethod, "path", req.Path)
		return events.APIGatewayProxyResponse{StatusCode: http.StatusNotFound, Headers: headers}, nil
	}

	body, readErr := requestBody(req)
	status, payload := serveChat(ctx, h.uc, body, readErr)

	raw, err := json.Marshal(payload)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	headers["Content-Type"] = "application/json"
	h.logger.InfoContext(ctx, "chat request served", "status", status)
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    headers,
		Body:       string(raw),
	}, nil
}

func requestBody(req events.APIGatewayProxyRequest) ([]byte, error) {
	if !req.IsBase64Encoded {
		return []byte(req.Body), nil
	}
	return base64.StdEncoding.DecodeString(req.Body)
}

func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

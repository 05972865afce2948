package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
)

// Handler serves API Gateway proxy events.
type Handler struct {
	chat         ChatUseCase
	observer     Observer
	allowOrigins []string
}

type Option func(*Handler)

func WithObserver(o Observer) Option {
	return func(h *Handler) {
		if o != nil {
			h.observer = o
		}
	}
}

// WithAllowOrigins sets the origins granted CORS access. "*" allows any.
func WithAllowOrigins(origins ...string) Option {
	return func(h *Handler) {
		h.allowOrigins = origins
	}
}

func NewHandler(chat ChatUseCase, opts ...Option) (*Handler, error) {
	if chat == nil {
		return nil, errors.New("handler: chat use case must not be nil")
	}
	h := &Handler{
		chat:         chat,
		observer:     nopObserver{},
		allowOrigins: []string{"*"},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Handle routes by method and path suffix so the function works behind any
// stage or base path.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := headerValue(req.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	headers := h.responseHeaders(correlationID, headerValue(req.Headers, "Origin"))

	path := strings.TrimRight(req.Path, "/")
	switch {
	case req.HTTPMethod == http.MethodOptions:
		headers["Access-Control-Allow-Methods"] = "GET, POST, OPTIONS"
		headers["Access-Control-Allow-Headers"] = "Content-Type, " + correlationHeader
		return events.APIGatewayProxyResponse{StatusCode: http.StatusNoContent, Headers: headers}, nil

	case strings.HasSuffix(path, "/chat"):
		if req.HTTPMethod != http.MethodPost {
			return jsonResponse(http.StatusMethodNotAllowed, headers, errorResponse{Error: errorMethodNotAllowed, Message: "Use POST."})
		}
		body := []byte(req.Body)
		if req.IsBase64Encoded {
			decoded, err := base64.StdEncoding.DecodeString(req.Body)
			if err != nil {
				body = nil
			} else {
				body = decoded
			}
		}
		status, payload := serveChat(ctx, h.chat, h.observer, correlationID, body)
		return jsonResponse(status, headers, payload)

	case strings.HasSuffix(path, "/health"):
		if req.HTTPMethod != http.MethodGet {
			return jsonResponse(http.StatusMethodNotAllowed, headers, errorResponse{Error: errorMethodNotAllowed, Message: "Use GET."})
		}
		return jsonResponse(http.StatusOK, headers, healthy)

	default:
		slog.Debug("no route", "method", req.HTTPMethod, "path", req.Path, "correlation_id", correlationID)
		return jsonResponse(http.StatusNotFound, headers, errorResponse{Error: errorNotFound, Message: "Not found."})
	}
}

func (h *Handler) responseHeaders(correlationID, origin string) map[string]string {
	headers := map[string]string{
		"Content-Type":    "application/json",
		correlationHeader: correlationID,
	}
	switch {
	case slices.Contains(h.allowOrigins, "*"):
		headers["Access-Control-Allow-Origin"] = "*"
	case origin != "" && slices.Contains(h.allowOrigins, origin):
		headers["Access-Control-Allow-Origin"] = origin
		headers["Vary"] = "Origin"
	}
	return headers
}

func jsonResponse(status int, headers map[string]string, payload any) (events.APIGatewayProxyResponse, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		slog.Error("failed to encode response", "err", err)
		b = []byte(`{"error":"INTERNAL_ERROR","message":"` + internalErrorMessage + `"}`)
		status = http.StatusInternalServerError
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    headers,
		Body:       string(b),
	}, nil
}

// headerValue looks key up case-insensitively.
func headerValue(headers map[string]string, key string) string {
	if v, ok := headers[key]; ok {
		return strings.TrimSpace(v)
	}
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

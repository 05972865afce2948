package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"portfolio-chat/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

// Error codes produced by the serving layer itself.
const (
	errorNotFound         = "NOT_FOUND"
	errorMethodNotAllowed = "METHOD_NOT_ALLOWED"
)

// ChatUseCase answers one chat message.
type ChatUseCase interface {
	Chat(ctx context.Context, in usecase.ChatInput) (usecase.ChatOutput, error)
}

// Observer is told about every finished chat request.
type Observer interface {
	ChatServed(status int, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ChatServed(int, time.Duration) {}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

type chatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type healthResponse struct {
	Status string `json:"status"`
}

var healthy = healthResponse{Status: "healthy"}

// invalidInputMessages are the only reasons worth echoing to a visitor.
var invalidInputMessages = map[string]string{
	"invalid_body":     "Request body must be a JSON object with a message field.",
	"empty_message":    "Message must not be empty.",
	"message_too_long": "Message is too long.",
}

const internalErrorMessage = "An internal error occurred. Please try again later."

// mapError converts a chat failure to a status code and a body that carries
// no internal detail.
func mapError(err error) (int, errorResponse) {
	var ue *usecase.Error
	if errors.As(err, &ue) && ue.Code == usecase.ErrorInvalidInput {
		msg, ok := invalidInputMessages[ue.Reason]
		if !ok {
			msg = "Invalid request."
		}
		return http.StatusBadRequest, errorResponse{Error: string(usecase.ErrorInvalidInput), Message: msg}
	}
	return http.StatusInternalServerError, errorResponse{Error: string(usecase.ErrorInternal), Message: internalErrorMessage}
}

// serveChat decodes body, runs the chat and returns the status and payload
// to send back. It is shared by the Lambda and HTTP front ends.
func serveChat(ctx context.Context, uc ChatUseCase, obs Observer, correlationID string, body []byte) (int, any) {
	start := time.Now()
	status, payload := func() (int, any) {
		var req chatRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return mapError(&usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "invalid_body", Err: err})
		}
		out, err := uc.Chat(ctx, usecase.ChatInput{Message: req.Message, SessionID: req.SessionID})
		if err != nil {
			status, body := mapError(err)
			level := slog.LevelWarn
			if status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			slog.Log(ctx, level, "chat request failed", "correlation_id", correlationID, "status", status, "err", err)
			return status, body
		}
		return http.StatusOK, chatResponse{Response: out.Response, SessionID: out.SessionID}
	}()
	obs.ChatServed(status, time.Since(start))
	return status, payload
}

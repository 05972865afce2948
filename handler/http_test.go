package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/require"

	"portfolio-chat/internal/usecase"
)

func newTestServer(t *testing.T, uc ChatUseCase, opts ...ServerOption) *Server {
	t.Helper()
	s, err := NewServer(uc, opts...)
	require.NoError(t, err)
	return s
}

func do(t *testing.T, s *Server, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestNewServer_ValidatesDependency(t *testing.T) {
	_, err := NewServer(nil)
	require.Error(t, err)
}

func TestServer_Chat(t *testing.T) {
	uc := &stubUseCase{out: usecase.ChatOutput{Response: "Hi there!", SessionID: "generated"}}
	obs := &recordingObserver{}
	s := newTestServer(t, uc, WithServerObserver(obs))

	rec := do(t, s, http.MethodPost, "/chat", `{"message":"Hi"}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	out := parseBody[chatResponse](t, rec.Body.String())
	require.Equal(t, "Hi there!", out.Response)
	require.Equal(t, "generated", out.SessionID)
	require.Equal(t, usecase.ChatInput{Message: "Hi"}, uc.in)
	require.NotEmpty(t, rec.Header().Get("X-Correlation-Id"))
	require.Equal(t, []int{http.StatusOK}, obs.statuses)
}

func TestServer_ChatEchoesCorrelationID(t *testing.T) {
	s := newTestServer(t, &stubUseCase{out: usecase.ChatOutput{Response: "ok", SessionID: "s"}})
	rec := do(t, s, http.MethodPost, "/chat", `{"message":"Hi"}`, map[string]string{"X-Correlation-Id": "corr-9"})
	require.Equal(t, "corr-9", rec.Header().Get("X-Correlation-Id"))
}

func TestServer_ChatErrors(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		err    error
		status int
		code   string
	}{
		{"bad json", `{`, nil, http.StatusBadRequest, string(usecase.ErrorInvalidInput)},
		{"invalid input", `{"message":""}`, &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "empty_message"}, http.StatusBadRequest, string(usecase.ErrorInvalidInput)},
		{"internal", `{"message":"hi"}`, errors.New("redis: connection refused"), http.StatusInternalServerError, string(usecase.ErrorInternal)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(t, &stubUseCase{err: tc.err})
			rec := do(t, s, http.MethodPost, "/chat", tc.body, nil)
			require.Equal(t, tc.status, rec.Code)
			out := parseBody[errorResponse](t, rec.Body.String())
			require.Equal(t, tc.code, out.Error)
			require.NotContains(t, rec.Body.String(), "redis")
		})
	}
}

type panickingUseCase struct{}

func (p *panickingUseCase) Chat(_ context.Context, _ usecase.ChatInput) (usecase.ChatOutput, error) {
	panic("unexpected")
}

func TestServer_PanicBecomes500(t *testing.T) {
	s := newTestServer(t, &panickingUseCase{})
	rec := do(t, s, http.MethodPost, "/chat", `{"message":"hi"}`, nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	out := parseBody[errorResponse](t, rec.Body.String())
	require.Equal(t, string(usecase.ErrorInternal), out.Error)
}

func TestServer_Health(t *testing.T) {
	s := newTestServer(t, &stubUseCase{})
	rec := do(t, s, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestServer_NotFound(t *testing.T) {
	s := newTestServer(t, &stubUseCase{})
	rec := do(t, s, http.MethodGet, "/nope", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	var out errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, errorNotFound, out.Error)
}

func TestServer_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "portfolio_chat_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	s := newTestServer(t, &stubUseCase{}, WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	rec := do(t, s, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "portfolio_chat_test_total 1")
}

func TestServer_MetricsRouteOptional(t *testing.T) {
	s := newTestServer(t, &stubUseCase{})
	rec := do(t, s, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_CORS(t *testing.T) {
	s := newTestServer(t, &stubUseCase{}, WithServerAllowOrigins("https://portfolio.dev"))

	rec := do(t, s, http.MethodOptions, "/chat", "", map[string]string{
		"Origin":                        "https://portfolio.dev",
		"Access-Control-Request-Method": http.MethodPost,
	})
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "https://portfolio.dev", rec.Header().Get("Access-Control-Allow-Origin"))
}

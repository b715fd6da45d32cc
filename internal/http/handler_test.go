package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lexgate/lexgate/internal/domain"
	lexhttp "github.com/lexgate/lexgate/internal/http"
	"github.com/lexgate/lexgate/internal/provider/echo"
	"github.com/lexgate/lexgate/internal/provider/registry"
)

// echoPlanner routes every request to the echo provider's model.
type echoPlanner struct{}

func (echoPlanner) Primary(_ context.Context, _ *domain.GenerationRequest) string { return "echo4" }

func (echoPlanner) Fallbacks(_ context.Context, _ string) []string { return nil }

func newTestHandler(t *testing.T) (*lexhttp.Handler, *domain.InMemoryLedger) {
	t.Helper()

	reg := registry.NewRegistry()
	require.NoError(t, reg.Register(context.Background(), echo.NewProvider()))

	ledger := domain.NewInMemoryLedger()

	pipeline := domain.NewPipelineService(
		reg,
		echoPlanner{},
		domain.NewQueryAnalyzer(),
		domain.NewPromptResolver(nil),
		nil,
		domain.NewUsageMeter(nil, nil),
		nil,
		ledger,
		nil,
	)

	return lexhttp.NewHandler(pipeline, reg), ledger
}

func TestHandleGenerate(t *testing.T) {
	handler, ledger := newTestHandler(t)
	ledger.Credit(context.Background(), "user-1", 100)

	t.Run("successful generation", func(t *testing.T) {
		body := `{"user_id":"user-1","prompt":"What is a lien"}`
		req := httptest.NewRequest(http.MethodPost, "/v1/generate", strings.NewReader(body))
		rec := httptest.NewRecorder()

		handler.HandleGenerate(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var result domain.GenerationResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		require.Contains(t, result.Text, "What is a lien")
		require.Equal(t, "echo", result.Provider)
		require.Positive(t, result.Cost.Cost)
		require.Equal(t, domain.ModeAdvice, result.Analysis.Mode)
	})

	t.Run("method not allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/generate", nil)
		rec := httptest.NewRecorder()

		handler.HandleGenerate(rec, req)

		require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})

	t.Run("invalid body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/generate", strings.NewReader("{broken"))
		rec := httptest.NewRecorder()

		handler.HandleGenerate(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty prompt", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/generate", strings.NewReader(`{"user_id":"user-1","prompt":""}`))
		rec := httptest.NewRecorder()

		handler.HandleGenerate(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown mode", func(t *testing.T) {
		body := `{"user_id":"user-1","prompt":"question","mode":"poetry"}`
		req := httptest.NewRequest(http.MethodPost, "/v1/generate", strings.NewReader(body))
		rec := httptest.NewRecorder()

		handler.HandleGenerate(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("insufficient funds", func(t *testing.T) {
		body := `{"user_id":"pauper","prompt":"question"}`
		req := httptest.NewRequest(http.MethodPost, "/v1/generate", strings.NewReader(body))
		rec := httptest.NewRecorder()

		handler.HandleGenerate(rec, req)

		require.Equal(t, http.StatusPaymentRequired, rec.Code)
	})
}

func TestHandleGenerateStream(t *testing.T) {
	handler, ledger := newTestHandler(t)
	ledger.Credit(context.Background(), "user-1", 100)

	t.Run("sse event sequence", func(t *testing.T) {
		body := `{"user_id":"user-1","prompt":"short question"}`
		req := httptest.NewRequest(http.MethodPost, "/v1/generate/stream", strings.NewReader(body))
		rec := httptest.NewRecorder()

		handler.HandleGenerateStream(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

		output := rec.Body.String()
		require.Contains(t, output, "event: analysis\n")
		require.Contains(t, output, "data: ")
		require.Contains(t, output, "event: billing\n")

		// Analysis is emitted before any fragment, billing after all of them.
		require.Less(t, strings.Index(output, "event: analysis"), strings.Index(output, `"delta"`))
		require.Greater(t, strings.Index(output, "event: billing"), strings.LastIndex(output, `"delta"`))
	})

	t.Run("method not allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/generate/stream", nil)
		rec := httptest.NewRecorder()

		handler.HandleGenerateStream(rec, req)

		require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})

	t.Run("validation failure before streaming", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/generate/stream", strings.NewReader(`{"user_id":"user-1","prompt":""}`))
		rec := httptest.NewRecorder()

		handler.HandleGenerateStream(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleProviders(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/providers", nil)
	rec := httptest.NewRecorder()

	handler.HandleProviders(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Providers []struct {
			Name   string   `json:"name"`
			Models []string `json:"models"`
		} `json:"providers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Len(t, payload.Providers, 1)
	require.Equal(t, "echo", payload.Providers[0].Name)
	require.Equal(t, []string{"echo4"}, payload.Providers[0].Models)
}

func TestHandleHealth(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	handler.HandleHealth(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/intent-router/internal/cache"
	"github.com/mikey/intent-router/internal/classifier"
	"github.com/mikey/intent-router/internal/connections"
	"github.com/mikey/intent-router/internal/core"
	"github.com/mikey/intent-router/internal/textproc"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := zap.NewNop()

	store, err := cache.NewStore(cache.DefaultNamespaces(), nil, time.Minute, logger)
	require.NoError(t, err)
	t.Cleanup(store.Stop)

	registry := connections.NewRegistry(map[string][]string{
		"alice": {"whatsapp"},
	}, logger)

	tp := textproc.NewTextProcessor(logger)
	router := core.NewRouterService(
		store,
		classifier.NewPatternMatcher(classifier.DefaultTemplates(), logger),
		classifier.NewKeywordClassifier(tp, logger),
		nil,
		registry,
		tp,
		logger,
		cache.NamespaceResults,
		cache.NamespaceAPIData,
		time.Second,
	)

	return NewServer("127.0.0.1:0", router, store, registry, logger)
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(t)
	rec := doJSON(t, server.Handler(), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestClassifyEndpoint(t *testing.T) {
	server := newTestServer(t)

	t.Run("classifies request text", func(t *testing.T) {
		rec := doJSON(t, server.Handler(), http.MethodPost, "/v1/classify",
			`{"text": "debug this python error"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Category     string  `json:"category"`
			Provider     string  `json:"provider"`
			Confidence   float64 `json:"confidence"`
			Source       string  `json:"source"`
			ProcessingID string  `json:"processing_id"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "coding", resp.Category)
		assert.Equal(t, "code-assistant", resp.Provider)
		assert.Equal(t, "ml", resp.Source)
		assert.NotEmpty(t, resp.ProcessingID)
	})

	t.Run("passes caller context through", func(t *testing.T) {
		rec := doJSON(t, server.Handler(), http.MethodPost, "/v1/classify",
			`{"text": "xylophone quandary flibbertigibbet", "context": {"preferred_provider": "media-controller"}}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Provider string `json:"provider"`
			Source   string `json:"source"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "media-controller", resp.Provider)
		assert.Equal(t, "fallback", resp.Source)
	})

	t.Run("rejects empty text", func(t *testing.T) {
		rec := doJSON(t, server.Handler(), http.MethodPost, "/v1/classify", `{"text": ""}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		rec := doJSON(t, server.Handler(), http.MethodPost, "/v1/classify", `{"text": `)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestDetectEndpoint(t *testing.T) {
	server := newTestServer(t)

	t.Run("complete automation", func(t *testing.T) {
		rec := doJSON(t, server.Handler(), http.MethodPost, "/v1/automation/detect",
			`{"text": "send a message to Bob saying running late", "user_id": "alice"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Match *core.AutomationMatch `json:"match"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.NotNil(t, resp.Match)
		assert.Equal(t, "message-schedule", resp.Match.Type)
		assert.Equal(t, "Bob", resp.Match.Params["recipient"])
		assert.False(t, resp.Match.NeedsConnection)
	})

	t.Run("missing required parameters are reported", func(t *testing.T) {
		rec := doJSON(t, server.Handler(), http.MethodPost, "/v1/automation/detect",
			`{"text": "book me a ride", "user_id": "alice"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Match         *core.AutomationMatch `json:"match"`
			MissingParams []string              `json:"missing_params"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.NotNil(t, resp.Match)
		assert.Equal(t, []string{"destination"}, resp.MissingParams)
	})

	t.Run("conversational text yields a null match", func(t *testing.T) {
		rec := doJSON(t, server.Handler(), http.MethodPost, "/v1/automation/detect",
			`{"text": "how do volcanoes form", "user_id": "alice"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Match *core.AutomationMatch `json:"match"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Nil(t, resp.Match)
	})

	t.Run("unconnected user sees required services", func(t *testing.T) {
		rec := doJSON(t, server.Handler(), http.MethodPost, "/v1/automation/detect",
			`{"text": "send a message to Bob saying running late", "user_id": "carol"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Match *core.AutomationMatch `json:"match"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.NotNil(t, resp.Match)
		assert.True(t, resp.Match.NeedsConnection)
		assert.Equal(t, []string{"whatsapp"}, resp.Match.MissingServices)
	})
}

func TestStateEndpoints(t *testing.T) {
	server := newTestServer(t)
	handler := server.Handler()

	t.Run("round trip", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodPut, "/v1/state/sidebar", `{"collapsed": true}`)
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = doJSON(t, handler, http.MethodGet, "/v1/state/sidebar", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"collapsed": true}`, rec.Body.String())
	})

	t.Run("missing key is a 404", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodGet, "/v1/state/nonexistent", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("non-JSON value is rejected", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodPut, "/v1/state/bad", `not json at all`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("delete removes the key", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodPut, "/v1/state/temp", `"value"`)
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = doJSON(t, handler, http.MethodDelete, "/v1/state/temp", "")
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = doJSON(t, handler, http.MethodGet, "/v1/state/temp", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestConnectEndpoint(t *testing.T) {
	server := newTestServer(t)
	handler := server.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/v1/connections/dave/uber", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	// The new connection is visible to automation detection.
	rec = doJSON(t, handler, http.MethodPost, "/v1/automation/detect",
		`{"text": "book me a ride to the airport", "user_id": "dave"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Match *core.AutomationMatch `json:"match"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Match)
	assert.Equal(t, "ride-request", resp.Match.Type)
	assert.Equal(t, "the airport", resp.Match.Params["destination"])
	assert.False(t, resp.Match.NeedsConnection)
}

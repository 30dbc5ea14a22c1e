package handler_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/workbox-dev/workbox/internal/auth"
	"github.com/workbox-dev/workbox/internal/config"
	"github.com/workbox-dev/workbox/internal/handler"
	"github.com/workbox-dev/workbox/internal/logger"
	"github.com/workbox-dev/workbox/internal/objstore"
	"github.com/workbox-dev/workbox/internal/sandbox"
	"github.com/workbox-dev/workbox/internal/sandbox/mock"
)

var errTest = errors.New("remote unavailable")

type testEnv struct {
	handler    *handler.Handler
	store      *objstore.Memory
	provider   *mock.Provider
	authority  *auth.Authority
	controller *sandbox.Controller
	cfg        *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		TerminalPort:        9000,
		TerminalSettleDelay: time.Millisecond,
	}
	log := logger.NewNop()
	store := objstore.NewMemory()
	provider := mock.NewProvider()
	authority := auth.NewAuthority(cfg, store, log)
	controller := sandbox.NewController(cfg, provider, log)

	return &testEnv{
		handler:    handler.New(cfg, log, objstore.NewGateway(store), authority, controller, provider),
		store:      store,
		provider:   provider,
		authority:  authority,
		controller: controller,
		cfg:        cfg,
	}
}

func postJSON(t *testing.T, h http.HandlerFunc, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func getRequest(t *testing.T, h http.HandlerFunc, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return body
}

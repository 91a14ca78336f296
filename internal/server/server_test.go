package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"stockledger/internal/config"
	"stockledger/internal/handler"
	"stockledger/internal/infra/memory"
	"stockledger/internal/server"
	"stockledger/internal/usecase"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"
)

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

type ids struct{ n atomic.Int64 }

func (g *ids) NewID() string { return fmt.Sprintf("e2e-%d", g.n.Add(1)) }

func newServer(t *testing.T) (*echo.Echo, config.Config) {
	t.Helper()
	cfg := config.Config{JWTSecret: "e2e-secret", ServiceName: "inventory-service", ServiceVersion: "test"}
	logger := zaptest.NewLogger(t)
	store := memory.NewStore()
	clock := realClock{}

	coord := usecase.NewStockCoordinator(store, store.Reservations(), nil, clock, &ids{}, logger,
		usecase.CoordinatorConfig{MaxAttempts: 3})
	e := server.New(cfg, logger, server.Handlers{
		Home:      handler.NewHomeHandler(cfg),
		Inventory: handler.NewInventoryHandler(usecase.NewInventoryUsecase(coord, store.Inventory(), store.Reservations(), store.Movements(), store.AuditLogs(), nil, usecase.InventoryConfig{}, logger)),
		Reservation: handler.NewReservationHandler(usecase.NewReservationUsecase(coord, store.Reservations(), usecase.ReservationConfig{
			DefaultTTL: time.Minute,
			MaxTTL:     time.Hour,
		})),
	})
	return e, cfg
}

func bearer(t *testing.T, cfg config.Config) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "e2e", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(cfg.JWTSecret))
	require.NoError(t, err)
	return "Bearer " + s
}

func post(t *testing.T, client *http.Client, url, authz string, body interface{}) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(b))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", authz)
	res, err := client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Body.Close() })
	return res
}

func TestServer_ReserveAndConfirmOverHTTP(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	e, cfg := newServer(t)
	ts := httptest.NewServer(e)
	defer ts.Close()
	authz := bearer(t, cfg)

	res := post(t, ts.Client(), ts.URL+"/inventory/sku-1/wh-1/adjustments", authz, handler.AdjustmentRequest{
		Delta: 10, Type: "INBOUND", Reason: "po-1",
	})
	require.Equal(t, http.StatusOK, res.StatusCode)

	res = post(t, ts.Client(), ts.URL+"/reservations", authz, handler.CreateReservationRequest{
		ProductID: "sku-1", WarehouseID: "wh-1", Quantity: 4, OrderReference: "order-1",
	})
	require.Equal(t, http.StatusCreated, res.StatusCode)
	var r struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&r))

	res = post(t, ts.Client(), ts.URL+"/reservations/"+r.ID+"/confirm", authz, struct{}{})
	require.Equal(t, http.StatusOK, res.StatusCode)

	spanNames := func() map[string]bool {
		names := map[string]bool{}
		for _, s := range exporter.GetSpans() {
			names[s.Name] = true
		}
		return names
	}
	names := spanNames()
	assert.True(t, names["stock.adjust"])
	assert.True(t, names["stock.hold"])
	assert.True(t, names["stock.confirm"])
	//HTTPのspanはレスポンスの後に閉じる
	assert.Eventually(t, func() bool {
		return spanNames()["POST /reservations/:id/confirm"]
	}, time.Second, 5*time.Millisecond)
}

func TestServer_Run_StopsOnCancel(t *testing.T) {
	e, _ := newServer(t)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Run(ctx, e, addr) }()

	assert.Eventually(t, func() bool {
		res, err := http.Get("http://" + addr + "/version")
		if err != nil {
			return false
		}
		_ = res.Body.Close()
		return res.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

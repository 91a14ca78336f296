package alert

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"stockledger/internal/domain/model"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var sample = model.LowStockAlert{
	ProductID:   "sku-1",
	WarehouseID: "wh-tokyo",
	Available:   2,
	Threshold:   5,
	DetectedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
}

type captureWriter struct {
	msgs []kafka.Message
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func TestKafkaSink_Notify(t *testing.T) {
	w := &captureWriter{}
	s := NewKafkaSink(w)

	require.NoError(t, s.Notify(context.Background(), sample))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "sku-1@wh-tokyo", string(w.msgs[0].Key))

	var got model.LowStockAlert
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, sample, got)
}

func TestRoutingKey(t *testing.T) {
	assert.Equal(t, "inventory.low_stock.wh-tokyo.sku-1", RoutingKey(sample))
}

func TestLogSink_Notify(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	s := NewLogSink(zap.New(core))

	require.NoError(t, s.Notify(context.Background(), sample))
	entries := logs.FilterMessage("low stock").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(2), entries[0].ContextMap()["available"])
}

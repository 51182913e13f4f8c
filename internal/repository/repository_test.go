package repository

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"KlineScope/internal/domain/models"
	pkgkafka "KlineScope/pkg/kafka"

	"github.com/segmentio/kafka-go"
)

type recordingWriter struct {
	msgs []kafka.Message
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func TestKafkaCandlePublisher(t *testing.T) {
	w := &recordingWriter{}
	pub := NewKafkaCandlePublisher(pkgkafka.NewProducerWithWriter(w, "klines", "gzip", nil))

	candles := []*models.StreamCandle{
		{Symbol: "BTCUSDT", Interval: "1m", Time: 60_000, Close: 101, IsClosed: true},
		nil,
		{Symbol: "ETHUSDT", Interval: "1m", Time: 60_000, Close: 3, IsClosed: true},
	}
	if err := pub.PublishBatch(context.Background(), candles); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(w.msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(w.msgs))
	}
	if string(w.msgs[0].Key) != "BTCUSDT" {
		t.Fatalf("unexpected key %q", w.msgs[0].Key)
	}
	var got models.StreamCandle
	if err := json.Unmarshal(w.msgs[1].Value, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Symbol != "ETHUSDT" || got.Close != 3 || !got.IsClosed {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestCandleRows(t *testing.T) {
	rows := candleRows([]*models.StreamCandle{
		{Symbol: "BTCUSDT", Interval: "1m", Time: 1_700_000_000_000, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10, EventTime: 1_700_000_059_999},
		{Symbol: "", Time: 1},
		nil,
	})
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	row := rows[0]
	if len(row) != strings.Count(insertQuery("klines"), "?") {
		t.Fatalf("row has %d values for %d placeholders", len(row), strings.Count(insertQuery("klines"), "?"))
	}
	if ts, ok := row[2].(time.Time); !ok || ts.UnixMilli() != 1_700_000_000_000 {
		t.Fatalf("unexpected open_time %v", row[2])
	}
	if row[6] != 1.5 {
		t.Fatalf("unexpected close %v", row[6])
	}
}

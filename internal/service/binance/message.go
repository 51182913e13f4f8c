package binance

import (
	"encoding/json"
	"errors"
	"fmt"

	"KlineScope/internal/domain/models"
	"KlineScope/pkg/util"
)

var errNotKline = errors.New("not a kline event")

type klineEvent struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	Kline     *struct {
		StartTime int64  `json:"t"`
		CloseTime int64  `json:"T"`
		Interval  string `json:"i"`
		Open      string `json:"o"`
		Close     string `json:"c"`
		High      string `json:"h"`
		Low       string `json:"l"`
		Volume    string `json:"v"`
		IsClosed  bool   `json:"x"`
	} `json:"k"`
}

// combined streams wrap the event as {"stream": "...", "data": {...}}
type streamEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// ParseKlineMessage decodes one kline frame, raw or wrapped in a combined stream envelope.
func ParseKlineMessage(b []byte) (models.StreamCandle, error) {
	var out models.StreamCandle

	var env streamEnvelope
	if err := json.Unmarshal(b, &env); err == nil && len(env.Data) > 0 {
		b = env.Data
	}

	var ev klineEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		return out, fmt.Errorf("decode kline: %w", err)
	}
	if ev.EventType != "kline" || ev.Kline == nil {
		return out, errNotKline
	}

	k := ev.Kline
	out = models.StreamCandle{
		Symbol:    ev.Symbol,
		Interval:  k.Interval,
		Time:      k.StartTime,
		IsClosed:  k.IsClosed,
		EventTime: ev.EventTime,
	}
	fields := []struct {
		src string
		dst *float64
	}{
		{k.Open, &out.Open}, {k.High, &out.High}, {k.Low, &out.Low},
		{k.Close, &out.Close}, {k.Volume, &out.Volume},
	}
	for _, f := range fields {
		v, err := util.ParseFloat(f.src)
		if err != nil {
			return out, fmt.Errorf("decode kline: %w", err)
		}
		*f.dst = v
	}
	return out, nil
}

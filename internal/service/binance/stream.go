package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"KlineScope/internal/domain/models"
	drepo "KlineScope/internal/domain/repository"
	applogger "KlineScope/pkg/logger"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// controlWait bounds writes of ping and pong control frames.
const controlWait = 5 * time.Second

// State is the lifecycle position of a Subscription.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateClosed
	StateErrored
	StateReconnecting
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	case StateErrored:
		return "errored"
	case StateReconnecting:
		return "reconnecting"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Timer is the subset of *time.Timer a subscription needs.
type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

// Clock creates reconnect timers.
type Clock interface {
	NewTimer(d time.Duration) Timer
}

type realClock struct{}

type realTimer struct{ t *time.Timer }

func (realClock) NewTimer(d time.Duration) Timer { return realTimer{t: time.NewTimer(d)} }

func (r realTimer) C() <-chan time.Time { return r.t.C }

func (r realTimer) Stop() bool { return r.t.Stop() }

// Dialer opens WebSocket connections. *websocket.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

type StreamConfig struct {
	BaseURL      string
	Interval     string
	MaxAttempts  int
	BaseDelay    time.Duration
	PingInterval time.Duration
}

// Streamer opens independent kline subscriptions.
type Streamer struct {
	cfg     StreamConfig
	dialer  Dialer
	clock   Clock
	logger  *applogger.Logger
	metrics drepo.Metrics
}

type StreamOption func(*Streamer)

// WithDialer replaces the WebSocket dialer.
func WithDialer(d Dialer) StreamOption {
	return func(s *Streamer) { s.dialer = d }
}

// WithClock replaces the clock used for reconnect delays.
func WithClock(c Clock) StreamOption {
	return func(s *Streamer) { s.clock = c }
}

func NewStreamer(cfg StreamConfig, logger *applogger.Logger, metrics drepo.Metrics, opts ...StreamOption) *Streamer {
	if cfg.Interval == "" {
		cfg.Interval = "1m"
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	s := &Streamer{
		cfg:     cfg,
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second, Proxy: http.ProxyFromEnvironment},
		clock:   realClock{},
		logger:  logger.With(applogger.String("component", "binance_stream")),
		metrics: metrics,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ drepo.KlineStream = (*Streamer)(nil)

// Subscribe opens a subscription on the configured interval.
func (s *Streamer) Subscribe(ctx context.Context, symbol string, onCandle func(models.StreamCandle), onFatal func(error)) (drepo.Unsubscriber, error) {
	sub, err := s.SubscribeInterval(ctx, symbol, s.cfg.Interval, onCandle, onFatal)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// SubscribeInterval starts a subscription to <symbol>@kline_<interval>. The
// connection is opened in the background; failures are retried with linear
// backoff. Cancelling ctx has the same effect as Unsubscribe.
func (s *Streamer) SubscribeInterval(ctx context.Context, symbol, interval string, onCandle func(models.StreamCandle), onFatal func(error)) (*Subscription, error) {
	if symbol == "" {
		return nil, errors.New("subscribe: symbol is required")
	}
	if onCandle == nil {
		return nil, errors.New("subscribe: onCandle is required")
	}
	tf, err := drepo.NormalizeTimeframe(interval)
	if err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	if string(tf) != interval {
		s.logger.Warn("unsupported interval, using nearest supported",
			applogger.String("from", interval), applogger.String("to", string(tf)))
	}

	runCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		ID:           uuid.NewString(),
		symbol:       strings.ToUpper(symbol),
		interval:     string(tf),
		url:          fmt.Sprintf("%s/%s@kline_%s", strings.TrimRight(s.cfg.BaseURL, "/"), strings.ToLower(symbol), tf),
		onCandle:     onCandle,
		onFatal:      onFatal,
		dialer:       s.dialer,
		clock:        s.clock,
		metrics:      s.metrics,
		backoff:      NewLinearBackOff(s.cfg.BaseDelay, s.cfg.MaxAttempts),
		pingInterval: s.cfg.PingInterval,
		cancel:       cancel,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	sub.logger = s.logger.With(
		applogger.String("symbol", sub.symbol),
		applogger.String("interval", sub.interval),
		applogger.String("subscription", sub.ID),
	)

	go func() {
		<-runCtx.Done()
		sub.Unsubscribe()
	}()
	go sub.run(runCtx)

	return sub, nil
}

// Subscription is one live kline feed. It owns at most one connection or one
// pending reconnect timer at a time.
type Subscription struct {
	ID string

	symbol       string
	interval     string
	url          string
	onCandle     func(models.StreamCandle)
	onFatal      func(error)
	dialer       Dialer
	clock        Clock
	logger       *applogger.Logger
	metrics      drepo.Metrics
	backoff      *LinearBackOff // touched only by run
	pingInterval time.Duration
	cancel       context.CancelFunc

	mu    sync.Mutex
	state State
	conn  *websocket.Conn
	timer Timer

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

var errStopped = errors.New("subscription stopped")

// State returns the current lifecycle state.
func (s *Subscription) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Symbol returns the upper-case symbol.
func (s *Subscription) Symbol() string { return s.symbol }

// Done is closed once the subscription has stopped and will issue no more callbacks.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Unsubscribe cancels a pending reconnect, closes the connection and moves
// to Stopped. Safe to call repeatedly and from inside onCandle.
func (s *Subscription) Unsubscribe() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		wasStopped := s.state == StateStopped
		s.state = StateStopped
		if s.timer != nil {
			s.timer.Stop()
			s.timer = nil
		}
		conn := s.conn
		s.conn = nil
		s.mu.Unlock()

		close(s.stop)
		s.cancel()
		if conn != nil {
			_ = conn.Close()
		}
		s.metrics.RecordStreamState(s.symbol, int(StateStopped))
		if !wasStopped {
			s.logger.Info("unsubscribed")
		}
	})
}

// transition moves to next unless the subscription is already stopped.
func (s *Subscription) transition(next State) bool {
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return false
	}
	s.state = next
	s.mu.Unlock()
	s.metrics.RecordStreamState(s.symbol, int(next))
	return true
}

func (s *Subscription) run(ctx context.Context) {
	defer close(s.done)
	defer s.cancel()

	for {
		err := s.connectAndRead(ctx)
		if errors.Is(err, errStopped) || s.State() == StateStopped {
			return
		}

		delay := s.backoff.NextBackOff()
		if delay == backoff.Stop {
			s.transition(StateStopped)
			s.metrics.RecordError("stream_exhausted")
			fail := &models.ConnectionFailure{Symbol: s.symbol, Attempts: s.backoff.Attempts(), Err: err}
			s.logger.Error("stream retry budget exhausted", applogger.Error(fail))
			if s.onFatal != nil {
				s.onFatal(fail)
			}
			return
		}

		if !s.transition(StateReconnecting) {
			return
		}
		s.metrics.RecordReconnect(s.symbol)
		s.logger.Warn("stream reconnect scheduled",
			applogger.Int("attempt", s.backoff.Attempts()),
			applogger.Duration("delay_ms", delay),
			applogger.Error(err),
		)
		if !s.wait(ctx, delay) {
			return
		}
	}
}

// wait blocks for d unless the subscription stops first.
func (s *Subscription) wait(ctx context.Context, d time.Duration) bool {
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return false
	}
	t := s.clock.NewTimer(d)
	s.timer = t
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.timer = nil
		s.mu.Unlock()
	}()

	select {
	case <-t.C():
		return true
	case <-s.stop:
		t.Stop()
		return false
	case <-ctx.Done():
		t.Stop()
		return false
	}
}

func (s *Subscription) connectAndRead(ctx context.Context) error {
	if !s.transition(StateConnecting) {
		return errStopped
	}

	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		s.transition(StateErrored)
		return fmt.Errorf("dial %s: %w", s.url, err)
	}

	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		_ = conn.Close()
		return errStopped
	}
	s.conn = conn
	s.state = StateConnected
	s.mu.Unlock()
	s.metrics.RecordStreamState(s.symbol, int(StateConnected))
	s.logger.Info("stream connected")

	pingDone := make(chan struct{})
	if s.pingInterval > 0 {
		go s.pingLoop(conn, pingDone)
	}
	err = s.readLoop(conn)
	close(pingDone)

	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	stopped := s.state == StateStopped
	s.mu.Unlock()
	_ = conn.Close()

	if stopped {
		return errStopped
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		s.transition(StateClosed)
	} else {
		s.transition(StateErrored)
	}
	return err
}

// readLoop delivers every parsed kline to onCandle in arrival order. Each
// delivered message clears the consecutive failure count.
//
// With a ping interval set, the read deadline is two intervals ahead and moves
// on every frame, pong and server ping, so a peer that stops answering fails
// the read and triggers a reconnect.
func (s *Subscription) readLoop(conn *websocket.Conn) error {
	wait := 2 * s.pingInterval
	extend := func() {
		if wait > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(wait))
		}
	}
	extend()
	conn.SetPongHandler(func(string) error {
		extend()
		return nil
	})
	conn.SetPingHandler(func(data string) error {
		extend()
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(controlWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		extend()
		candle, err := ParseKlineMessage(msg)
		if err != nil {
			s.logger.Debug("skipping frame", applogger.Error(err))
			continue
		}
		select {
		case <-s.stop:
			return errStopped
		default:
		}
		s.onCandle(candle)
		s.backoff.Reset()
	}
}

func (s *Subscription) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(controlWait)); err != nil {
				s.logger.Debug("ping failed", applogger.Error(err))
				return
			}
		}
	}
}

package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/agamariel/orderflow/internal/models"
)

// Notifier принимает события жизненного цикла заказа. Вызов не должен блокировать движок.
type Notifier interface {
	Notify(ctx context.Context, event models.OrderEvent)
}

// NopNotifier отбрасывает события.
type NopNotifier struct{}

// Notify ничего не делает.
func (NopNotifier) Notify(context.Context, models.OrderEvent) {}

// Sink доставляет событие адресату.
type Sink interface {
	Send(ctx context.Context, event models.OrderEvent) error
}

// AsyncNotifier доставляет события в фоне. Ошибки доставки пишутся в лог
// и на результат команды не влияют.
type AsyncNotifier struct {
	sinks  []Sink
	logger *slog.Logger

	events chan models.OrderEvent
	wg     sync.WaitGroup
	cancel context.CancelFunc
	mu     sync.Mutex
}

// NewAsyncNotifier создаёт диспетчер с очередью заданной ёмкости.
func NewAsyncNotifier(logger *slog.Logger, buffer int, sinks ...Sink) *AsyncNotifier {
	if buffer <= 0 {
		buffer = 1
	}
	return &AsyncNotifier{
		sinks:  sinks,
		logger: logger,
		events: make(chan models.OrderEvent, buffer),
	}
}

// Notify ставит событие в очередь. При переполнении событие отбрасывается.
func (n *AsyncNotifier) Notify(_ context.Context, event models.OrderEvent) {
	select {
	case n.events <- event:
	default:
		n.logger.Warn("notification queue is full, event dropped",
			slog.String("type", string(event.Type)),
			slog.Int64("order_id", event.OrderID))
	}
}

// Start запускает доставку событий.
func (n *AsyncNotifier) Start(ctx context.Context) {
	n.mu.Lock()
	defer n.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	n.cancel = cancel

	n.wg.Add(1)
	go n.run(runCtx)
}

// Stop останавливает доставку и дожидается её завершения. Оставшиеся в очереди
// события доставляются перед выходом.
func (n *AsyncNotifier) Stop() {
	n.mu.Lock()
	if n.cancel != nil {
		n.cancel()
		n.cancel = nil
	}
	n.mu.Unlock()

	n.wg.Wait()
}

func (n *AsyncNotifier) run(ctx context.Context) {
	defer n.wg.Done()
	for {
		select {
		case <-ctx.Done():
			n.drain()
			return
		case event := <-n.events:
			n.deliver(ctx, event)
		}
	}
}

func (n *AsyncNotifier) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case event := <-n.events:
			n.deliver(ctx, event)
		default:
			return
		}
	}
}

func (n *AsyncNotifier) deliver(ctx context.Context, event models.OrderEvent) {
	for _, sink := range n.sinks {
		if err := sink.Send(ctx, event); err != nil {
			n.logger.Error("notification delivery failed",
				slog.String("type", string(event.Type)),
				slog.Int64("order_id", event.OrderID),
				slog.String("error", err.Error()))
		}
	}
}

// LogSink пишет события в журнал аудита.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink создаёт приёмник поверх логгера.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Send записывает событие.
func (s *LogSink) Send(ctx context.Context, event models.OrderEvent) error {
	attrs := []any{
		slog.String("type", string(event.Type)),
		slog.Int64("order_id", event.OrderID),
		slog.String("actor_id", event.ActorID.String()),
		slog.String("actor_role", string(event.ActorRole)),
		slog.Time("occurred_at", event.OccurredAt),
	}
	if event.RequestID != 0 {
		attrs = append(attrs, slog.Int64("request_id", event.RequestID))
	}
	if event.FromStatus != event.ToStatus {
		attrs = append(attrs, slog.String("from", string(event.FromStatus)), slog.String("to", string(event.ToStatus)))
	}
	s.logger.InfoContext(ctx, "order event", attrs...)
	return nil
}

// WebhookSink отправляет события POST-запросом в формате JSON.
type WebhookSink struct {
	url        string
	httpClient *http.Client
}

// NewWebhookSink создаёт приёмник для указанного адреса.
func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{
		url: url,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// Send отправляет событие. Любой ответ вне 2xx считается ошибкой.
func (s *WebhookSink) Send(ctx context.Context, event models.OrderEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded with status %d", resp.StatusCode)
	}
	return nil
}

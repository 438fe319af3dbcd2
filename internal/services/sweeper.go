package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/agamariel/orderflow/internal/models"
	"github.com/robfig/cron/v3"
)

// DefaultPurgeSchedule — ежедневный запуск очистки в 02:00.
const DefaultPurgeSchedule = "0 2 * * *"

// Purger — часть движка, нужная для очистки просроченных удалений.
type Purger interface {
	ExpiredOrders(ctx context.Context, actor models.Actor, afterID int64, limit int) ([]int64, error)
	Purge(ctx context.Context, actor models.Actor, orderID int64) error
}

// SweepResult — итог одного прохода очистки.
type SweepResult struct {
	Purged int
	Failed int
}

// ExpirySweeper по расписанию удаляет заказы с истёкшим сроком хранения.
type ExpirySweeper struct {
	purger    Purger
	schedule  cron.Schedule
	batchSize int
	logger    *slog.Logger
	clock     func() time.Time

	wg     sync.WaitGroup
	cancel context.CancelFunc
	mu     sync.Mutex
}

// NewExpirySweeper создаёт очистку с расписанием в формате cron из пяти полей.
func NewExpirySweeper(purger Purger, expr string, batchSize int, logger *slog.Logger) (*ExpirySweeper, error) {
	if expr == "" {
		expr = DefaultPurgeSchedule
	}
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid purge schedule %q: %w", expr, err)
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &ExpirySweeper{
		purger:    purger,
		schedule:  schedule,
		batchSize: batchSize,
		logger:    logger,
		clock:     time.Now,
	}, nil
}

// Start выполняет первый проход сразу, затем работает по расписанию до Stop или отмены ctx.
func (s *ExpirySweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.loop(runCtx)
}

// Stop останавливает очистку и дожидается текущего прохода.
func (s *ExpirySweeper) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *ExpirySweeper) loop(ctx context.Context) {
	defer s.wg.Done()

	s.runLogged(ctx)
	for {
		next := s.schedule.Next(s.clock())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.runLogged(ctx)
		}
	}
}

func (s *ExpirySweeper) runLogged(ctx context.Context) {
	result, err := s.RunOnce(ctx)
	if err != nil {
		s.logger.Error("expiry sweep failed", slog.String("error", err.Error()))
		return
	}
	if result.Purged > 0 || result.Failed > 0 {
		s.logger.Info("expiry sweep finished",
			slog.Int("purged", result.Purged),
			slog.Int("failed", result.Failed))
	}
}

// RunOnce удаляет все заказы, срок хранения которых истёк к текущему моменту.
// Ошибка по отдельному заказу пишется в лог и не прерывает проход:
// выборка идёт по возрастанию ID, и каждый заказ рассматривается один раз.
func (s *ExpirySweeper) RunOnce(ctx context.Context) (SweepResult, error) {
	var (
		result  SweepResult
		afterID int64
	)
	for {
		ids, err := s.purger.ExpiredOrders(ctx, models.SystemActor, afterID, s.batchSize)
		if err != nil {
			return result, fmt.Errorf("list expired orders: %w", err)
		}

		for _, id := range ids {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			if err := s.purger.Purge(ctx, models.SystemActor, id); err != nil {
				result.Failed++
				s.logger.Error("purge order failed", slog.Int64("order_id", id), slog.String("error", err.Error()))
				continue
			}
			result.Purged++
		}

		if len(ids) < s.batchSize {
			return result, nil
		}
		afterID = ids[len(ids)-1]
	}
}

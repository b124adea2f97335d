package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const effectTimeout = 30 * time.Second

// Effect is a secondary action that runs after the primary write commits.
// Its failure is logged and never reaches the caller.
type Effect struct {
	Name string
	Run  func(ctx context.Context) error
}

// Effects runs post-commit effects, each isolated from the others
type Effects struct {
	async  bool
	wg     sync.WaitGroup
	logger *zap.Logger
}

// NewEffects creates an effect runner. With async set, each batch runs on its own goroutine.
func NewEffects(async bool, logger *zap.Logger) *Effects {
	return &Effects{async: async, logger: logger}
}

// Run executes the effects. It never blocks on effect failures.
func (e *Effects) Run(effects ...Effect) {
	if len(effects) == 0 {
		return
	}
	if !e.async {
		e.runAll(effects)
		return
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.runAll(effects)
	}()
}

// Wait blocks until in-flight effects finish or ctx is done
func (e *Effects) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Effects) runAll(effects []Effect) {
	for _, effect := range effects {
		e.runOne(effect)
	}
}

func (e *Effects) runOne(effect Effect) {
	ctx, cancel := context.WithTimeout(context.Background(), effectTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Effect panicked", zap.String("effect", effect.Name), zap.String("panic", fmt.Sprint(r)))
		}
	}()

	if err := effect.Run(ctx); err != nil {
		e.logger.Warn("Effect failed", zap.String("effect", effect.Name), zap.Error(err))
		return
	}
	e.logger.Debug("Effect completed", zap.String("effect", effect.Name))
}

package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeSweeper struct {
	expired int
	err     error
	calls   int
}

func (f *fakeSweeper) ExpireStale(context.Context) (int, error) {
	f.calls++
	return f.expired, f.err
}

func TestHandleSweep(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sweeper := &fakeSweeper{expired: 3}
	handler := HandleSweep(sweeper, zap.New(core))

	err := handler(context.Background(), asynq.NewTask(TypeMaintenanceSweep, nil))
	assert.NoError(t, err)
	assert.Equal(t, 1, sweeper.calls)
	assert.Equal(t, 1, logs.FilterMessage("Expired stale group requests").Len())
}

func TestHandleSweepQuietWhenNothingExpired(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	handler := HandleSweep(&fakeSweeper{}, zap.New(core))

	assert.NoError(t, handler(context.Background(), asynq.NewTask(TypeMaintenanceSweep, nil)))
	assert.Equal(t, 0, logs.Len())
}

func TestHandleSweepReturnsErrorForRetry(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	boom := errors.New("mongo down")
	handler := HandleSweep(&fakeSweeper{err: boom}, zap.New(core))

	err := handler(context.Background(), asynq.NewTask(TypeMaintenanceSweep, nil))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, logs.FilterMessage("Maintenance sweep failed").Len())
}

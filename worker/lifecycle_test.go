package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWorkersStopOnContextCancel(t *testing.T) {
	db := openTestDB(t)
	seedSendingConfig(t, db, nil)

	tw := newTransmissionWorker(db, newFakeMailer())
	tw.Interval = 10 * time.Millisecond
	fw := newFunnelWorker(db, newFakeMailer())
	fw.Interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{}, 2)
	go func() {
		tw.Start(ctx)
		done <- struct{}{}
	}()
	go func() {
		fw.Start(ctx)
		done <- struct{}{}
	}()

	// Let both tick at least once, then shut down
	time.Sleep(50 * time.Millisecond)
	cancel()

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			require.Fail(t, "worker did not stop after context cancellation")
		}
	}
}

func TestWorkerRestartsCleanly(t *testing.T) {
	db := openTestDB(t)
	seedSendingConfig(t, db, nil)

	tw := newTransmissionWorker(db, newFakeMailer())
	tw.Interval = 10 * time.Millisecond

	for i := 0; i < 2; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			tw.Start(ctx)
			close(done)
		}()
		time.Sleep(30 * time.Millisecond)
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			require.Failf(t, "worker did not stop", "run %d", i)
		}
	}
}

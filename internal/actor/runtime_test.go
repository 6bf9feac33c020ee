package actor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ClusterCockpit/cc-dataplane/internal/tag"
)

type countingStage struct {
	tg    tag.Tag
	polls atomic.Int32
}

func (s *countingStage) Tag() tag.Tag { return s.tg }

func (s *countingStage) Poll(ctx context.Context) error {
	s.polls.Add(1)
	select {
	case <-ctx.Done():
	case <-time.After(time.Millisecond):
	}
	return nil
}

func TestRuntimeRepollsUntilCanceled(t *testing.T) {
	stage := &countingStage{tg: tag.New(tag.Pipe, "counter")}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	rt := NewRuntime()
	rt.Run(ctx, []Stage{stage})

	if stage.polls.Load() < 2 {
		t.Fatalf("expected Poll to be invoked repeatedly, got %d calls", stage.polls.Load())
	}
	if got := rt.StateOf(stage.tg); got != Terminated {
		t.Fatalf("expected Terminated after Run returns, got %v", got)
	}
}

type erroringStage struct {
	tg tag.Tag
}

func (s *erroringStage) Tag() tag.Tag { return s.tg }

func (s *erroringStage) Poll(ctx context.Context) error {
	return context.DeadlineExceeded
}

func TestRuntimeStopsOnFatalError(t *testing.T) {
	stage := &erroringStage{tg: tag.New(tag.Inbound, "bad")}

	rt := NewRuntime()
	rt.Run(context.Background(), []Stage{stage})

	if got := rt.StateOf(stage.tg); got != Terminated {
		t.Fatalf("expected Terminated after a fatal Poll error, got %v", got)
	}
}

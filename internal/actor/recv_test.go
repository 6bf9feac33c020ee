package actor

import (
	"context"
	"testing"
	"time"

	"github.com/ClusterCockpit/cc-dataplane/internal/dag"
	"github.com/ClusterCockpit/cc-dataplane/internal/perr"
	"github.com/ClusterCockpit/cc-dataplane/internal/record"
	"github.com/ClusterCockpit/cc-dataplane/internal/tag"
)

func TestRecvReturnsFirstAvailable(t *testing.T) {
	b1 := dag.NewBroadcast(tag.New(tag.Inbound, "a"), 4)
	b2 := dag.NewBroadcast(tag.New(tag.Inbound, "b"), 4)
	s1 := b1.Subscribe()
	s2 := b2.Subscribe()

	rec := record.New()
	b2.Publish(rec)

	got, err := Recv(context.Background(), tag.New(tag.Pipe, "p"), []*dag.Subscriber{s1, s2}, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if got != rec {
		t.Fatalf("expected the published record back, got %v", got)
	}
}

func TestRecvTimeout(t *testing.T) {
	b := dag.NewBroadcast(tag.New(tag.Inbound, "a"), 4)
	s := b.Subscribe()

	_, err := Recv(context.Background(), tag.New(tag.Pipe, "p"), []*dag.Subscriber{s}, 20*time.Millisecond)
	if _, ok := err.(*perr.TimeoutError); !ok {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
}

func TestRecvBatchAccumulatesUntilTarget(t *testing.T) {
	b := dag.NewBroadcast(tag.New(tag.Inbound, "a"), 8)
	s := b.Subscribe()

	b.Publish(record.New())
	b.Publish(record.New())
	b.Publish(record.New())

	batch, err := RecvBatch(context.Background(), tag.New(tag.Pipe, "p"), []*dag.Subscriber{s}, time.Second, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(batch) != 3 {
		t.Fatalf("expected 3 records, got %d", len(batch))
	}
}

func TestRecvBatchReturnsPartialOnTimeout(t *testing.T) {
	b := dag.NewBroadcast(tag.New(tag.Inbound, "a"), 8)
	s := b.Subscribe()
	b.Publish(record.New())

	batch, err := RecvBatch(context.Background(), tag.New(tag.Pipe, "p"), []*dag.Subscriber{s}, 20*time.Millisecond, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(batch) != 1 {
		t.Fatalf("expected partial batch of 1, got %d", len(batch))
	}
}

func TestRecvChannelClosed(t *testing.T) {
	b := dag.NewBroadcast(tag.New(tag.Inbound, "a"), 4)
	s := b.Subscribe()
	b.Close()

	_, err := Recv(context.Background(), tag.New(tag.Pipe, "p"), []*dag.Subscriber{s}, time.Second)
	if _, ok := err.(*perr.ChannelClosedError); !ok {
		t.Fatalf("expected ChannelClosedError, got %v", err)
	}
}

func TestRecvCanceled(t *testing.T) {
	b := dag.NewBroadcast(tag.New(tag.Inbound, "a"), 4)
	s := b.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Recv(ctx, tag.New(tag.Pipe, "p"), []*dag.Subscriber{s}, time.Second)
	if _, ok := err.(*perr.CanceledError); !ok {
		t.Fatalf("expected CanceledError, got %v", err)
	}
}

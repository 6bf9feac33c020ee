package tracing

import (
	"testing"
	"time"

	"github.com/ClusterCockpit/cc-dataplane/internal/tag"
)

func TestDisabledIsNoop(t *testing.T) {
	Enable(false)
	ctx := NewRoot()
	ctx.Mark(tag.New(tag.Inbound, "in"), Incoming)
	ctx.Record()
	if len(globalHistogram.summarize()) != 0 {
		t.Fatal("expected no histogram entries while tracing disabled")
	}
}

func TestRecordPopulatesHistogram(t *testing.T) {
	Enable(true)
	defer Enable(false)
	globalHistogram.clear()

	ctx := NewRoot()
	ctx.Mark(tag.New(tag.Inbound, "in"), Incoming)
	time.Sleep(time.Millisecond)
	ctx.Mark(tag.New(tag.Outbound, "out"), Outgoing)
	ctx.Record()

	rows := globalHistogram.summarize()
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows (one per timepoint), got %d", len(rows))
	}
}

func TestInheritCollectsParentTimepoints(t *testing.T) {
	Enable(true)
	defer Enable(false)
	globalHistogram.clear()

	root := NewRoot()
	root.Mark(tag.New(tag.Inbound, "in"), Incoming)

	child := Inherit(root)
	child.Mark(tag.New(tag.Pipe, "split"), Incoming)
	child.Record()

	rows := globalHistogram.summarize()
	if len(rows) != 2 {
		t.Fatalf("expected child.Record to also flush parent timepoints, got %d rows", len(rows))
	}
}

package dag

import (
	"testing"

	"github.com/ClusterCockpit/cc-dataplane/internal/perr"
	"github.com/ClusterCockpit/cc-dataplane/internal/tag"
)

func TestBuildOrdersUpstreamFirst(t *testing.T) {
	in := tag.New(tag.Inbound, "in")
	split := tag.New(tag.Pipe, "split")
	out := tag.New(tag.Outbound, "out")

	g, err := Build([]Node{
		{Tag: out, Upstreams: []tag.Tag{split}},
		{Tag: split, Upstreams: []tag.Tag{in}},
		{Tag: in},
	})
	if err != nil {
		t.Fatal(err)
	}

	order := g.Order()
	pos := map[tag.Tag]int{}
	for i, tg := range order {
		pos[tg] = i
	}
	if pos[in] > pos[split] || pos[split] > pos[out] {
		t.Fatalf("expected topological order in<split<out, got %v", order)
	}
}

func TestBuildDuplicateTag(t *testing.T) {
	in := tag.New(tag.Inbound, "x")
	_, err := Build([]Node{{Tag: in}, {Tag: in}})
	if _, ok := err.(*perr.DuplicateTagError); !ok {
		t.Fatalf("expected DuplicateTagError, got %v", err)
	}
}

func TestBuildUnknownUpstream(t *testing.T) {
	split := tag.New(tag.Pipe, "split")
	missing := tag.New(tag.Inbound, "ghost")
	_, err := Build([]Node{{Tag: split, Upstreams: []tag.Tag{missing}}})
	if _, ok := err.(*perr.UnknownTagRequiredError); !ok {
		t.Fatalf("expected UnknownTagRequiredError, got %v", err)
	}
}

func TestBuildCycle(t *testing.T) {
	a := tag.New(tag.Pipe, "a")
	b := tag.New(tag.Pipe, "b")
	_, err := Build([]Node{
		{Tag: a, Upstreams: []tag.Tag{b}},
		{Tag: b, Upstreams: []tag.Tag{a}},
	})
	if _, ok := err.(*perr.CycleError); !ok {
		t.Fatalf("expected CycleError, got %v", err)
	}
}

func TestDownstreams(t *testing.T) {
	in := tag.New(tag.Inbound, "in")
	split := tag.New(tag.Pipe, "split")
	out := tag.New(tag.Outbound, "out")

	g, err := Build([]Node{
		{Tag: in},
		{Tag: split, Upstreams: []tag.Tag{in}},
		{Tag: out, Upstreams: []tag.Tag{split}},
	})
	if err != nil {
		t.Fatal(err)
	}

	down := g.Downstreams(in)
	if len(down) != 1 || down[0] != split {
		t.Fatalf("expected [split], got %v", down)
	}
}

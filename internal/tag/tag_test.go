package tag

import "testing"

func TestString(t *testing.T) {
	tg := New(Pipe, "split_cpu")
	if got := tg.String(); got != "pipe:split_cpu" {
		t.Fatalf("got %q", got)
	}
}

func TestIsZero(t *testing.T) {
	var zero Tag
	if !zero.IsZero() {
		t.Fatal("expected zero value Tag to report IsZero")
	}
	if New(Outbound, "prom").IsZero() {
		t.Fatal("did not expect a populated Tag to report IsZero")
	}
}

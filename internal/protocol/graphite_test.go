package protocol

import (
	"strings"
	"testing"

	"github.com/ClusterCockpit/cc-dataplane/internal/perr"
	"github.com/ClusterCockpit/cc-dataplane/internal/value"
)

func TestGraphiteReadNext(t *testing.T) {
	p := NewGraphiteProtocol(strings.NewReader("cpu.load 0.42 1620000000 host=a\n"), GraphiteConfig{})

	rec, err := p.ReadNext()
	if err != nil {
		t.Fatal(err)
	}

	name, _ := rec.GetString("name")
	s, _ := name.AsString()
	if s != "cpu.load" {
		t.Fatalf("got %q", s)
	}

	v, _ := rec.GetString("value")
	f, _ := v.AsFloat()
	if f != 0.42 {
		t.Fatalf("got %v", f)
	}

	host, _ := rec.GetString("host")
	hs, _ := host.AsString()
	if hs != "a" {
		t.Fatalf("got %q", hs)
	}
}

func TestGraphiteTimestampDigitDispatch(t *testing.T) {
	cases := map[string]bool{
		"1620000000":          true,
		"1620000000123":       true,
		"1620000000123456":    true,
		"1620000000123456789": true,
		"16200000001":         false,
	}
	for ts, wantOK := range cases {
		p := NewGraphiteProtocol(strings.NewReader("m 1 "+ts+"\n"), GraphiteConfig{})
		_, err := p.ReadNext()
		if wantOK && err != nil {
			t.Fatalf("ts=%s: unexpected error %v", ts, err)
		}
		if !wantOK && err == nil {
			t.Fatalf("ts=%s: expected error", ts)
		}
	}
}

func TestGraphiteTypedAttribute(t *testing.T) {
	p := NewGraphiteProtocol(strings.NewReader("m 1 1620000000 n=42\n"), GraphiteConfig{
		Attributes: map[string]value.DataType{"n": value.TypeInt},
	})
	rec, err := p.ReadNext()
	if err != nil {
		t.Fatal(err)
	}
	v, _ := rec.GetString("n")
	i, ok := v.AsInt()
	if !ok || i != 42 {
		t.Fatalf("got %v", v)
	}
}

func TestGraphiteMalformedLine(t *testing.T) {
	p := NewGraphiteProtocol(strings.NewReader("onlytwo fields\n"), GraphiteConfig{})
	_, err := p.ReadNext()
	if _, ok := err.(*perr.ProtocolMismatchError); !ok {
		t.Fatalf("expected ProtocolMismatchError, got %v", err)
	}
}

package protocol

import (
	"strings"
	"testing"

	"github.com/ClusterCockpit/cc-dataplane/internal/perr"
	"github.com/ClusterCockpit/cc-dataplane/internal/value"
)

func TestCSVReadNext(t *testing.T) {
	p := NewCSVProtocol(strings.NewReader("host,42,1.5\nhost2,7,2.5\n"), CSVConfig{
		Fields: []CSVField{
			{Index: 0, Name: "host", Type: value.TypeString},
			{Index: 1, Name: "count", Type: value.TypeInt},
			{Index: 2, Name: "load", Type: value.TypeFloat},
		},
	})

	rec, err := p.ReadNext()
	if err != nil {
		t.Fatal(err)
	}
	v, _ := rec.GetString("host")
	s, _ := v.AsString()
	if s != "host" {
		t.Fatalf("got %q", s)
	}

	rec2, err := p.ReadNext()
	if err != nil {
		t.Fatal(err)
	}
	v2, _ := rec2.GetString("count")
	i, _ := v2.AsInt()
	if i != 7 {
		t.Fatalf("got %d", i)
	}

	if _, err := p.ReadNext(); err == nil {
		t.Fatal("expected EOF on third read")
	}
}

func TestCSVSkipsHeader(t *testing.T) {
	p := NewCSVProtocol(strings.NewReader("host,count\nhost,42\n"), CSVConfig{
		HasHeader: true,
		Fields: []CSVField{
			{Index: 0, Name: "host", Type: value.TypeString},
			{Index: 1, Name: "count", Type: value.TypeInt},
		},
	})

	rec, err := p.ReadNext()
	if err != nil {
		t.Fatal(err)
	}
	v, _ := rec.GetString("host")
	s, _ := v.AsString()
	if s != "host" {
		t.Fatalf("expected header to be skipped, got %q", s)
	}
}

func TestCSVRejectsEmptyRequiredField(t *testing.T) {
	p := NewCSVProtocol(strings.NewReader(",42\n"), CSVConfig{
		Fields: []CSVField{
			{Index: 0, Name: "host", Type: value.TypeString},
			{Index: 1, Name: "count", Type: value.TypeInt},
		},
	})

	_, err := p.ReadNext()
	if _, ok := err.(*perr.ProtocolMismatchError); !ok {
		t.Fatalf("expected ProtocolMismatchError, got %v", err)
	}
}

func TestCSVRejectsOverWideRow(t *testing.T) {
	p := NewCSVProtocol(strings.NewReader("host,42,extra\n"), CSVConfig{
		Fields: []CSVField{
			{Index: 0, Name: "host", Type: value.TypeString},
			{Index: 1, Name: "count", Type: value.TypeInt},
		},
	})

	_, err := p.ReadNext()
	if _, ok := err.(*perr.ProtocolMismatchError); !ok {
		t.Fatalf("expected ProtocolMismatchError, got %v", err)
	}
}

func TestCSVOptionalEmptyField(t *testing.T) {
	p := NewCSVProtocol(strings.NewReader("host,\n"), CSVConfig{
		Fields: []CSVField{
			{Index: 0, Name: "host", Type: value.TypeString},
			{Index: 1, Name: "count", Type: value.TypeInt, Optional: true},
		},
	})

	rec, err := p.ReadNext()
	if err != nil {
		t.Fatal(err)
	}
	v, ok := rec.GetString("count")
	if !ok || !v.IsNull() {
		t.Fatalf("expected optional empty field to parse as Null, got %v", v)
	}
}

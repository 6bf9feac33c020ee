package value

import "testing"

func TestParseEmptyIsNull(t *testing.T) {
	for _, ty := range []DataType{TypeString, TypeInt, TypeFloat, TypeBool, TypeDateTime} {
		v, err := Parse("", ty)
		if err != nil {
			t.Fatalf("Parse(\"\", %v) returned error: %v", ty, err)
		}
		if !v.IsNull() {
			t.Fatalf("Parse(\"\", %v) = %v, want Null", ty, v)
		}
	}
}

func TestParseIntWithUnit(t *testing.T) {
	v, err := Parse("42 ms", TypeInt)
	if err != nil {
		t.Fatal(err)
	}
	i, ok := v.AsInt()
	if !ok || i != 42 {
		t.Fatalf("got %v", v)
	}
	unit, ok := v.Unit()
	if !ok || unit != "ms" {
		t.Fatalf("unit = %q, %v", unit, ok)
	}
}

func TestParseIntRejectsThreeTokens(t *testing.T) {
	if _, err := Parse("1 2 3", TypeInt); err == nil {
		t.Fatal("expected error for three-token int")
	}
}

func TestParseBoolVariants(t *testing.T) {
	for _, s := range []string{"true", "T", "yes", "Y", "on", "active", "1"} {
		v, err := Parse(s, TypeBool)
		if err != nil {
			t.Fatalf("Parse(%q): %v", s, err)
		}
		if b, _ := v.AsBool(); !b {
			t.Fatalf("Parse(%q) = false, want true", s)
		}
	}
	for _, s := range []string{"false", "no", "off", "inactive", "not active", "0"} {
		v, err := Parse(s, TypeBool)
		if err != nil {
			t.Fatalf("Parse(%q): %v", s, err)
		}
		if b, _ := v.AsBool(); b {
			t.Fatalf("Parse(%q) = true, want false", s)
		}
	}
	if _, err := Parse("maybe", TypeBool); err == nil {
		t.Fatal("expected error for unrecognized bool word")
	}
}

// Scenario F from spec.md section 8.
func TestParseDateTimeDigitLengths(t *testing.T) {
	v, err := Parse("1620000000", TypeDateTime)
	if err != nil {
		t.Fatal(err)
	}
	dt, _ := v.AsDateTime()
	if got := dt.Format("2006-01-02T15:04:05Z"); got != "2021-05-03T00:00:00Z" {
		t.Fatalf("got %s", got)
	}

	v2, err := Parse("1620000000123", TypeDateTime)
	if err != nil {
		t.Fatal(err)
	}
	dt2, _ := v2.AsDateTime()
	if got := dt2.Format("2006-01-02T15:04:05.000Z"); got != "2021-05-03T00:00:00.123Z" {
		t.Fatalf("got %s", got)
	}

	if _, err := Parse("16200000001", TypeDateTime); err == nil {
		t.Fatal("expected error for 11-digit timestamp")
	}
}

func TestParseDateTimeRFC3339(t *testing.T) {
	v, err := Parse("2021-05-03T00:00:00Z", TypeDateTime)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := v.AsDateTime(); !ok {
		t.Fatal("expected datetime value")
	}
}

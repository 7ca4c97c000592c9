package contentkey

import "testing"

func TestOfDeterministic(t *testing.T) {
	body := []byte("hello, realm")
	k1 := Of(body)
	k2 := Of(body)
	if k1 != k2 {
		t.Fatalf("same body produced different keys: %v != %v", k1, k2)
	}
}

func TestOfDistinctBodies(t *testing.T) {
	a := Of([]byte("alpha"))
	b := Of([]byte("beta"))
	if a == b {
		t.Fatalf("distinct bodies collided: %v", a)
	}
}

func TestStringParseRoundTrip(t *testing.T) {
	k := Of([]byte("round trip me"))
	s := k.String()
	parsed, err := Parse(s)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed != k {
		t.Fatalf("round trip mismatch: %v != %v", parsed, k)
	}
	if parsed.String() != s {
		t.Fatalf("inverse mismatch: %q != %q", parsed.String(), s)
	}
}

func TestParseRejectsBadLength(t *testing.T) {
	if _, err := Parse("abcd"); err == nil {
		t.Fatal("expected error for short hex string")
	}
}

func TestParseRejectsBadHex(t *testing.T) {
	if _, err := Parse("not-valid-hex-zzzzzzzzzzzzzzzzzzzzzzzzzzzzzz"); err == nil {
		t.Fatal("expected error for invalid hex")
	}
}

func TestZeroIsZero(t *testing.T) {
	var k Key
	if !k.IsZero() {
		t.Fatal("default Key value should be zero")
	}
	if Of([]byte("x")).IsZero() {
		t.Fatal("non-zero body should not hash to zero key (overwhelmingly)")
	}
}

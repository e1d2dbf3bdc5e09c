package cursor

import (
	"testing"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	token, err := Encode(Cursor{Seq: 42, FilterHash: HashFilter("actor_id = 'a'")})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if token == "" {
		t.Fatal("Encode() returned empty token")
	}

	got, err := Decode(token)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got.Seq != 42 {
		t.Fatalf("Decode() Seq = %d, want 42", got.Seq)
	}
	if got.FilterHash != HashFilter("actor_id = 'a'") {
		t.Fatalf("Decode() FilterHash = %q", got.FilterHash)
	}
}

func TestDecode_RejectsMalformedTokens(t *testing.T) {
	cases := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "not base64", token: "!!!not-base64!!!"},
		{name: "not json", token: "bm90LWpzb24="},
		{name: "zero seq", token: mustEncode(t, Cursor{Seq: 0})},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Decode(tc.token); err == nil {
				t.Fatalf("Decode(%q) expected error", tc.token)
			}
		})
	}
}

func TestValidateFilterHash_DetectsFilterChange(t *testing.T) {
	c := Cursor{Seq: 7, FilterHash: HashFilter("kind = 'daily'")}
	if err := ValidateFilterHash(c, "kind = 'daily'"); err != nil {
		t.Fatalf("ValidateFilterHash() same filter error = %v", err)
	}
	if err := ValidateFilterHash(c, "kind = 'pack'"); err == nil {
		t.Fatal("ValidateFilterHash() expected error for changed filter")
	}
}

func TestHashFilter_EmptyFilterHasNoHash(t *testing.T) {
	if got := HashFilter(""); got != "" {
		t.Fatalf("HashFilter(\"\") = %q, want empty", got)
	}
	if HashFilter("a") == HashFilter("b") {
		t.Fatal("distinct filters must hash differently")
	}
}

func mustEncode(t *testing.T, c Cursor) string {
	t.Helper()
	token, err := Encode(c)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	return token
}

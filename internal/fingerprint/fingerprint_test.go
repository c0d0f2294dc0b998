package fingerprint

import (
	"regexp"
	"testing"
)

// TestCompute_Deterministic は同一入力に対する決定性を検証する。
func TestCompute_Deterministic(t *testing.T) {
	first := Compute("user-1", "삼성전자 주가 알려줘", "2025-09-22T14:30:00+09:00")

	for i := 0; i < 10; i++ {
		got := Compute("user-1", "삼성전자 주가 알려줘", "2025-09-22T14:30:00+09:00")
		if got != first {
			t.Fatalf("Compute is not deterministic: %q vs %q", got, first)
		}
	}
}

// TestCompute_Format は出力が32文字の小文字16進であることを検証する。
func TestCompute_Format(t *testing.T) {
	got := Compute("user-1", "content", "2025-09-22T14:30:00+09:00")

	if len(got) != 32 {
		t.Errorf("fingerprint length = %d, want 32", len(got))
	}
	if !regexp.MustCompile(`^[a-f0-9]{32}$`).MatchString(got) {
		t.Errorf("fingerprint %q is not lowercase hex", got)
	}
}

// TestCompute_DiffersOnAnyField はいずれかのフィールドの差異が
// 異なるフィンガープリントを生むことを検証する。
func TestCompute_DiffersOnAnyField(t *testing.T) {
	base := Compute("user-1", "content", "2025-09-22T14:30:00+09:00")

	tests := []struct {
		name string
		got  string
	}{
		{"user_idの差異", Compute("user-2", "content", "2025-09-22T14:30:00+09:00")},
		{"contentの差異", Compute("user-1", "content2", "2025-09-22T14:30:00+09:00")},
		{"dateの差異", Compute("user-1", "content", "2025-09-22T14:30:01+09:00")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got == base {
				t.Errorf("fingerprint should differ from base, both are %q", base)
			}
		})
	}
}

// TestComputePtr_NilUserID はNULLのuser_idが空文字列として扱われることを検証する。
func TestComputePtr_NilUserID(t *testing.T) {
	want := Compute("", "content", "2025-09-22T14:30:00+09:00")
	got := ComputePtr(nil, "content", "2025-09-22T14:30:00+09:00")

	if got != want {
		t.Errorf("ComputePtr(nil, ...) = %q, want %q", got, want)
	}
}

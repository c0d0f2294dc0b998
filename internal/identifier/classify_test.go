package identifier

import "testing"

// TestClassify はconv_id分類の代表ケースを検証する。
func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		convID string
		want   Class
	}{
		{
			name:   "正規形式",
			convID: "20250922_00002",
			want:   ClassWellFormed,
		},
		{
			name:   "フィンガープリント混入形式",
			convID: "20250922_oITQ3kOOniCWCOUpyWz6CQkAcHuJ5i8ARoOBarJjnB0nqTOJgfIi3g8z0SFRO71xFlNGX0EzlRsPDBdj09JmLw==_2a75cec4",
			want:   ClassHashCorrupted,
		},
		{
			name:   "その他の不正形式",
			convID: "invalid_format",
			want:   ClassOtherMalformed,
		},
		{
			name:   "連番が4桁しかない",
			convID: "20250922_0002",
			want:   ClassOtherMalformed,
		},
		{
			name:   "日付部が8桁でない",
			convID: "2025092_verylongmiddlepart_2a75cec4",
			want:   ClassOtherMalformed,
		},
		{
			name:   "中間部が10文字以下",
			convID: "20250922_short_2a75cec4",
			want:   ClassOtherMalformed,
		},
		{
			name:   "末尾部が16進でない",
			convID: "20250922_verylongmiddlepart_ZZZZ",
			want:   ClassOtherMalformed,
		},
		{
			name:   "空文字列",
			convID: "",
			want:   ClassOtherMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.convID); got != tt.want {
				t.Errorf("Classify(%q) = %q, want %q", tt.convID, got, tt.want)
			}
		})
	}
}

// TestFormat は連番のゼロ埋め書式を検証する。
func TestFormat(t *testing.T) {
	tests := []struct {
		partition string
		seq       int
		want      string
	}{
		{"20250922", 0, "20250922_00000"},
		{"20250922", 3, "20250922_00003"},
		{"20250922", 12345, "20250922_12345"},
	}

	for _, tt := range tests {
		if got := Format(tt.partition, tt.seq); got != tt.want {
			t.Errorf("Format(%q, %d) = %q, want %q", tt.partition, tt.seq, got, tt.want)
		}
	}
}

// TestFormat_RoundTrip はFormatの出力が必ず正規形式に分類されることを検証する。
func TestFormat_RoundTrip(t *testing.T) {
	for _, seq := range []int{0, 1, 99, 99999} {
		id := Format("20250101", seq)
		if got := Classify(id); got != ClassWellFormed {
			t.Errorf("Classify(Format(...)) = %q, want %q (id=%q)", got, ClassWellFormed, id)
		}
	}
}

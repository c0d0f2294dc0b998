// Package identifier はconv_id（日付パーティション付き連番識別子）の
// 生成・書式検証・分類を提供する。
//
// conv_idの正規形式は "YYYYMMDD_NNNNN"（8桁の日付、アンダースコア、
// 5桁ゼロ埋め連番）。過去のパイプライン版がフィンガープリントを
// conv_idに混入させた不正行が残存しており、その検出が分類の主目的。
package identifier

import (
	"fmt"
	"regexp"
	"strings"
)

// Class はconv_idの分類結果を表す。分類は全域的かつ排他的で、
// すべてのconv_idは必ずいずれか1つに分類される。
type Class string

const (
	// ClassWellFormed は正規形式（YYYYMMDD_NNNNN）を表す。
	ClassWellFormed Class = "well_formed"
	// ClassHashCorrupted はフィンガープリントが混入した不正形式を表す。
	// 例: "20250922_<長いトークン>_2a75cec4"
	ClassHashCorrupted Class = "hash_corrupted"
	// ClassOtherMalformed は上記いずれにも該当しない不正形式を表す。
	ClassOtherMalformed Class = "other_malformed"
)

var (
	wellFormedPattern = regexp.MustCompile(`^\d{8}_\d{5}$`)
	datePartPattern   = regexp.MustCompile(`^\d{8}$`)
	hexPartPattern    = regexp.MustCompile(`^[a-f0-9]+$`)
)

// IsWellFormed はconv_idが正規形式かどうかを返す。
func IsWellFormed(convID string) bool {
	return wellFormedPattern.MatchString(convID)
}

// Classify はconv_idを3値に分類する。
// 判定の優先順位:
//  1. 正規形式に一致すれば well_formed
//  2. アンダースコアでちょうど3分割でき、第1部が8桁数字、
//     第2部が10文字超、第3部が小文字16進なら hash_corrupted
//  3. それ以外は other_malformed
func Classify(convID string) Class {
	if IsWellFormed(convID) {
		return ClassWellFormed
	}

	parts := strings.Split(convID, "_")
	if len(parts) == 3 &&
		datePartPattern.MatchString(parts[0]) &&
		len(parts[1]) > 10 &&
		hexPartPattern.MatchString(parts[2]) {
		return ClassHashCorrupted
	}

	return ClassOtherMalformed
}

// Format はパーティションキーと連番からconv_idを生成する。
// 連番は5桁ゼロ埋め。
func Format(partition string, seq int) string {
	return fmt.Sprintf("%s_%05d", partition, seq)
}

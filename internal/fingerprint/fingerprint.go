// Package fingerprint は会話ログの内容フィンガープリント計算を提供する。
// フィンガープリントは重複排除のキーとQ/A連結の参照キーの両方に使用される。
package fingerprint

import (
	"crypto/md5"
	"fmt"
)

// Compute は (user_id, content, date) の順序付きタプルから
// 128ビットのフィンガープリントを計算し、32文字の小文字16進で返す。
// 純粋関数であり、同一入力に対して常に同一の値を返す。
// dateにはKST変換後のRFC3339文字列（dateカラムの保存値）を渡すこと。
// 取り込み時とバックフィル時で入力が一致しないと重複排除が機能しない。
//
// MD5は暗号学的強度のためではなく、既存行との互換性と低い衝突確率の
// ために選択されている。識別子には絶対に埋め込まないこと。
func Compute(userID, content, date string) string {
	sum := md5.Sum([]byte(userID + "_" + content + "_" + date))
	return fmt.Sprintf("%x", sum)
}

// ComputePtr はuser_idがNULL（nil）の場合を空文字列として扱うCompute。
// フィードはuser_idなしのログを許容するため、nilをエラーにしない。
func ComputePtr(userID *string, content, date string) string {
	uid := ""
	if userID != nil {
		uid = *userID
	}
	return Compute(uid, content, date)
}

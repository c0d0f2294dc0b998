// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService は会話ログの発話テキストをサニタイズし、
// HTMLタグやスクリプトの混入からデータストアと下流の帳票出力を保護する。
// bluemondayライブラリの厳格ポリシーで、タグを一切許可せず
// プレーンテキストのみを通過させる。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService は発話テキストのサニタイズ機能のインターフェースを定義する。
// 会話レコードの保存前に使用される。
type ContentSanitizerService interface {
	// Sanitize は発話テキストをサニタイズしてプレーンテキストを返す。
	// 全てのHTMLタグ（script, iframe, style, on*イベント属性を含む）を除去し、
	// 前後の空白をトリムする。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// 会話ログの発話はHTMLを含まない前提のため、StrictPolicyで
// 全てのタグを除去しテキストのみを残す。
func NewContentSanitizer() *contentSanitizer {
	return &contentSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は発話テキストをサニタイズしてプレーンテキストを返す。
func (s *contentSanitizer) Sanitize(raw string) string {
	return strings.TrimSpace(s.policy.Sanitize(raw))
}

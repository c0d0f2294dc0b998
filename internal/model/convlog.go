// Package model はドメインモデルを定義する。
package model

import "time"

// Role は会話ログの発話種別（質問/応答）を表す。
type Role string

const (
	// RoleQuestion はユーザーの質問を表す。
	RoleQuestion Role = "Q"
	// RoleAnswer はチャットボットの応答を表す。
	RoleAnswer Role = "A"
)

// FeedLog はチャット管理APIから受信する1往復分の生データを表す。
// 1件のFeedLogはQ/Aの2レコードに展開される。
// user_id と tenant_id はAPI側でNULLになり得るためポインタで受ける。
type FeedLog struct {
	Date     string  `json:"date"`
	Q        string  `json:"Q"`
	A        string  `json:"A"`
	UserID   *string `json:"user_id"`
	TenantID *string `json:"tenant_id"`
}

// Record は正規化後の会話ログ1行を表す。永続化の単位。
// ConvID・Fingerprint・PairRef はパイプラインの各段階で順に付与される。
// Fingerprint が空のレコードは旧バージョンのパイプラインが残したレガシー行。
type Record struct {
	ConvID      string
	Fingerprint string // 空はNULL（レガシー行）
	PairRef     string // Aレコードのみ。対応するQのFingerprint。空はNULL
	Date        time.Time
	Role        Role
	Content     string
	UserID      string // 空はNULL
	TenantID    string
	CreatedAt   time.Time
}

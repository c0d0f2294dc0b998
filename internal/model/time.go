package model

import (
	"fmt"
	"time"
)

// LocationKST は日付バケット計算に使用する固定タイムゾーン（UTC+9）。
// フィードのタイムスタンプはこのゾーンに変換した上でconv_idの日付部と
// dateカラムに反映される。
var LocationKST = time.FixedZone("KST", 9*60*60)

// feedTimeLayouts はフィードが返すタイムスタンプ形式の候補。
// オフセット付きISO-8601を優先し、オフセットなし（naive）はUTCとみなす。
var feedTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseFeedTime はフィードのタイムスタンプ文字列をパースする。
// オフセット情報がない場合はUTCの時刻として解釈する。
func ParseFeedTime(s string) (time.Time, error) {
	for i, layout := range feedTimeLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		// 先頭2つはオフセット付きレイアウト。それ以外はnaiveなのでUTC扱い。
		if i >= 2 {
			t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("タイムスタンプのパースに失敗しました: %q", s)
}

// ToKST は時刻をKSTに変換する。
// すでにKSTの時刻を再変換しても同一の瞬間を指す（冪等）。
func ToKST(t time.Time) time.Time {
	return t.In(LocationKST)
}

// PartitionKey は時刻からconv_idの日付パーティションキー（YYYYMMDD）を算出する。
// KST変換後のカレンダー日付を使用する。
func PartitionKey(t time.Time) string {
	return t.In(LocationKST).Format("20060102")
}

// FeedTimeString は永続化・フィンガープリント計算に使用する正規化済み
// タイムスタンプ文字列（KSTのRFC3339）を返す。
// 取り込み時とレガシー修復時で同一のバイト列になることが重複排除の前提。
func FeedTimeString(t time.Time) string {
	return t.In(LocationKST).Format(time.RFC3339)
}

package identifier

import (
	"context"
	"fmt"
)

// SequenceSeeder はパーティションごとの採番シード取得インターフェース。
// 永続ストアの該当パーティション内の最大連番を返す。行が存在しない
// 場合は-1を返す（最初の採番が0になる）。
type SequenceSeeder interface {
	MaxSequence(ctx context.Context, partition string) (int, error)
}

// Assigner は日付パーティションごとの連番採番器。
// 1回の取り込み実行ごとに生成し、実行をまたいで保持しない。
// パーティション初出時に永続ストアの最大値をシードとして読み込み、
// 以降は実行内のローカルカウンタで採番する。
//
// 並行実行には対応しない。同一パーティションに対して複数の取り込みが
// 同時に走るとシードが競合しconv_idが衝突するため、呼び出し側
// （スケジューラ）が同時実行を1つに制限すること。
type Assigner struct {
	seeder   SequenceSeeder
	counters map[string]int
}

// NewAssigner はAssignerの新しいインスタンスを生成する。
func NewAssigner(seeder SequenceSeeder) *Assigner {
	return &Assigner{
		seeder:   seeder,
		counters: make(map[string]int),
	}
}

// Next は指定パーティションの次のconv_idを採番する。
// パーティション初出時はストアの最大連番をシードとして取得し、
// その+1から採番を開始する。既存行との衝突を避けるため、シード取得に
// 失敗した場合は0から始めたりせず必ずエラーを返す（呼び出し側は
// 実行全体を中断すること）。
func (a *Assigner) Next(ctx context.Context, partition string) (string, error) {
	seq, ok := a.counters[partition]
	if !ok {
		max, err := a.seeder.MaxSequence(ctx, partition)
		if err != nil {
			return "", fmt.Errorf("パーティション %s の採番シード取得に失敗しました: %w", partition, err)
		}
		seq = max
	}

	seq++
	a.counters[partition] = seq

	return Format(partition, seq), nil
}

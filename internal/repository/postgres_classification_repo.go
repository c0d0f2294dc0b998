package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresClassificationRepo はPostgreSQLを使用した質問分類結果リポジトリ。
type PostgresClassificationRepo struct {
	db *sql.DB
}

// NewPostgresClassificationRepo はPostgresClassificationRepoを生成する。
func NewPostgresClassificationRepo(db *sql.DB) *PostgresClassificationRepo {
	return &PostgresClassificationRepo{db: db}
}

// ExistsStockCls は指定conv_idの銘柄分類結果が既に存在するかを返す。
func (r *PostgresClassificationRepo) ExistsStockCls(ctx context.Context, convID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM stock_cls WHERE conv_id = $1)`,
		convID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("銘柄分類結果の存在確認に失敗しました: %w", err)
	}
	return exists, nil
}

// InsertStockCls は銘柄分類結果（o/x）を1件挿入する。
func (r *PostgresClassificationRepo) InsertStockCls(ctx context.Context, convID, label string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO stock_cls (conv_id, label, created_at) VALUES ($1, $2, $3)`,
		convID, label, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("銘柄分類結果の挿入に失敗しました: %w", err)
	}
	return nil
}

// InsertClicked は銘柄コードクリックの検出結果（o/x）を1件挿入する。
func (r *PostgresClassificationRepo) InsertClicked(ctx context.Context, convID, label string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO clicked_logs (conv_id, label, created_at) VALUES ($1, $2, $3)`,
		convID, label, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("クリック検出結果の挿入に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ClassificationRepository = (*PostgresClassificationRepo)(nil)

package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/convlog/internal/model"
)

// PostgresConvLogRepo はPostgreSQLを使用した会話ログリポジトリ。
type PostgresConvLogRepo struct {
	db *sql.DB
}

// NewPostgresConvLogRepo はPostgresConvLogRepoを生成する。
func NewPostgresConvLogRepo(db *sql.DB) *PostgresConvLogRepo {
	return &PostgresConvLogRepo{db: db}
}

// ExistsByFingerprint は指定フィンガープリントのレコードが既に存在するかを返す。
func (r *PostgresConvLogRepo) ExistsByFingerprint(ctx context.Context, fingerprint string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM conv_logs WHERE fingerprint = $1)`,
		fingerprint,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("フィンガープリントの存在確認に失敗しました: %w", err)
	}
	return exists, nil
}

// MaxSequence は指定パーティション内の連番の最大値を返す。
// conv_idの先頭9文字（YYYYMMDD_）を除いた残りを整数として集計する。
// パーティションにレコードが存在しない場合は-1を返す。
// 連番部が整数に変換できない行が混在している場合、CASTが失敗しエラーになる。
func (r *PostgresConvLogRepo) MaxSequence(ctx context.Context, partition string) (int, error) {
	var max sql.NullInt64
	err := r.db.QueryRowContext(ctx,
		`SELECT MAX(CAST(SUBSTRING(conv_id FROM 10) AS INTEGER))
		 FROM conv_logs WHERE conv_id LIKE $1`,
		partition+"_%",
	).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("パーティション %s の連番最大値の取得に失敗しました: %w", partition, err)
	}
	if !max.Valid {
		return -1, nil
	}
	return int(max.Int64), nil
}

// Insert は会話レコードを1件挿入する。
func (r *PostgresConvLogRepo) Insert(ctx context.Context, record *model.Record) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO conv_logs (conv_id, fingerprint, pair_ref, date, qa,
		                        content, user_id, tenant_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		record.ConvID, nullString(record.Fingerprint), nullString(record.PairRef),
		record.Date, string(record.Role), record.Content,
		nullString(record.UserID), record.TenantID, record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("会話レコードの挿入に失敗しました: %w", err)
	}
	return nil
}

// ListAll は全レコードをconv_id昇順で取得する。
func (r *PostgresConvLogRepo) ListAll(ctx context.Context) ([]*model.Record, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT conv_id, fingerprint, pair_ref, date, qa,
		        content, user_id, tenant_id, created_at
		 FROM conv_logs ORDER BY conv_id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("会話レコードの全件取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// ListIdentifiers は全レコードのconv_idをconv_id昇順で取得する。
func (r *PostgresConvLogRepo) ListIdentifiers(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT conv_id FROM conv_logs ORDER BY conv_id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("conv_id一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("conv_idの読み取りに失敗しました: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conv_id一覧の走査に失敗しました: %w", err)
	}
	return ids, nil
}

// ListMissingFingerprint はフィンガープリントがNULLのレコードを取得する。
func (r *PostgresConvLogRepo) ListMissingFingerprint(ctx context.Context) ([]*model.Record, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT conv_id, fingerprint, pair_ref, date, qa,
		        content, user_id, tenant_id, created_at
		 FROM conv_logs WHERE fingerprint IS NULL ORDER BY conv_id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("フィンガープリント欠落レコードの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// ListFingerprints はNULLでない全フィンガープリントを取得する。
func (r *PostgresConvLogRepo) ListFingerprints(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT fingerprint FROM conv_logs WHERE fingerprint IS NOT NULL`,
	)
	if err != nil {
		return nil, fmt.Errorf("フィンガープリント一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var fps []string
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, fmt.Errorf("フィンガープリントの読み取りに失敗しました: %w", err)
		}
		fps = append(fps, fp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("フィンガープリント一覧の走査に失敗しました: %w", err)
	}
	return fps, nil
}

// UpdateFingerprint は指定conv_idのレコードにフィンガープリントを設定する。
func (r *PostgresConvLogRepo) UpdateFingerprint(ctx context.Context, convID, fingerprint string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE conv_logs SET fingerprint = $2 WHERE conv_id = $1`,
		convID, fingerprint,
	)
	if err != nil {
		return fmt.Errorf("フィンガープリントの更新に失敗しました: %w", err)
	}
	return nil
}

// DeleteByIDs は指定conv_idのレコード群を単一トランザクションで削除する。
func (r *PostgresConvLogRepo) DeleteByIDs(ctx context.Context, convIDs []string) error {
	if len(convIDs) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("削除トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM conv_logs WHERE conv_id = ANY($1)`,
		pq.Array(convIDs),
	); err != nil {
		return fmt.Errorf("会話レコードの削除に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("削除トランザクションのコミットに失敗しました: %w", err)
	}
	return nil
}

// ListQuestionsByPartition は指定パーティションの質問レコードをconv_id昇順で取得する。
func (r *PostgresConvLogRepo) ListQuestionsByPartition(ctx context.Context, partition string) ([]*model.Record, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT conv_id, fingerprint, pair_ref, date, qa,
		        content, user_id, tenant_id, created_at
		 FROM conv_logs
		 WHERE qa = 'Q' AND conv_id LIKE $1
		 ORDER BY conv_id ASC`,
		partition+"_%",
	)
	if err != nil {
		return nil, fmt.Errorf("パーティション %s の質問レコードの取得に失敗しました: %w", partition, err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// scanRecords は会話レコードのカラム順で結果セットを走査する。
func scanRecords(rows *sql.Rows) ([]*model.Record, error) {
	var records []*model.Record
	for rows.Next() {
		record := &model.Record{}
		var fingerprint, pairRef, userID sql.NullString
		var role string

		if err := rows.Scan(
			&record.ConvID, &fingerprint, &pairRef, &record.Date, &role,
			&record.Content, &userID, &record.TenantID, &record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("会話レコードの読み取りに失敗しました: %w", err)
		}

		record.Fingerprint = nullStringValue(fingerprint)
		record.PairRef = nullStringValue(pairRef)
		record.UserID = nullStringValue(userID)
		record.Role = model.Role(role)

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("会話レコードの走査に失敗しました: %w", err)
	}
	return records, nil
}

// nullString は空文字列をsql.NullStringに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// compile-time interface check
var _ ConvLogRepository = (*PostgresConvLogRepo)(nil)

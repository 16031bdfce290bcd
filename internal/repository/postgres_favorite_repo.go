package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresFavoriteRepo はPostgreSQLを使用したお気に入りリポジトリ。
// 変更は即時に永続化され、メモリ上の状態を持たない。
type PostgresFavoriteRepo struct {
	db *sql.DB
}

// NewPostgresFavoriteRepo はPostgresFavoriteRepoを生成する。
func NewPostgresFavoriteRepo(db *sql.DB) *PostgresFavoriteRepo {
	return &PostgresFavoriteRepo{db: db}
}

// ListByUserID はユーザーのお気に入り論文IDを登録順で返す。
func (r *PostgresFavoriteRepo) ListByUserID(ctx context.Context, userID int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT paper_id FROM favorites
		 WHERE user_id = $1
		 ORDER BY created_at, paper_id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan favorite: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate favorites: %w", err)
	}

	return ids, nil
}

// Toggle はお気に入りの対称的な追加/削除を行い、呼び出し後の状態を返す。
// 未登録ならINSERT、登録済みならDELETEとなるため、2回連続の呼び出しは必ず元に戻る。
func (r *PostgresFavoriteRepo) Toggle(ctx context.Context, userID int64, paperID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO favorites (user_id, paper_id, created_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, paper_id) DO NOTHING`,
		userID, paperID, time.Now(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to add favorite: %w", err)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if inserted > 0 {
		return true, nil
	}

	// 既に登録済みだったため削除する
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM favorites WHERE user_id = $1 AND paper_id = $2`,
		userID, paperID,
	); err != nil {
		return false, fmt.Errorf("failed to remove favorite: %w", err)
	}

	return false, nil
}

// compile-time interface check
var _ FavoriteRepository = (*PostgresFavoriteRepo)(nil)

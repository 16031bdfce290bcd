// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/kuresearch/internal/model"
)

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
}

// FavoriteRepository はユーザーごとのお気に入り論文IDの永続化インターフェース。
// 論文本体はバックエンドが所有するため、参照整合性は張らない。
// 削除済み論文のIDが残っていても無害として扱う。
type FavoriteRepository interface {
	// ListByUserID はユーザーのお気に入り論文IDを登録順で返す。
	ListByUserID(ctx context.Context, userID int64) ([]string, error)
	// Toggle はお気に入りの対称的な追加/削除を行い、呼び出し後の状態を返す。
	// 2回連続の呼び出しで元の状態に戻る。
	Toggle(ctx context.Context, userID int64, paperID string) (bool, error)
}

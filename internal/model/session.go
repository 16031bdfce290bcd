// Package model はドメインモデルを定義する。
package model

import "time"

// Session はバックエンド発行のbearerトークンを包むログインセッションを表す。
// ExpiresAtはバックエンドJWTの有効期限で、now < ExpiresAt の間のみ有効。
type Session struct {
	ID           string
	UserID       int64
	UserLevelID  int64
	AccessToken  string // バックエンド発行のJWT
	GoogleToken  string // Google OAuthのアクセストークン（Driveアップロード用）
	ExpiresAt    time.Time
	CreatedAt    time.Time
}

// IsValid はセッションが有効期限内かどうかを返す。
func (s *Session) IsValid(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}

// UserProfile はバックエンドから取得するユーザープロフィールを表す。
// セッション具現化のたびに再取得され、リクエストを超えてキャッシュされない。
type UserProfile struct {
	UserID      int64  `json:"user_id"`
	UserLevelID int64  `json:"user_level_id"`
	AvatarURL   string `json:"avatar_url"`
	Name        string `json:"name"`
	Nickname    string `json:"nickname"`
	Role        string `json:"role"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	Birthday    string `json:"birthday"`
}

// Package auth はGoogleサインインからバックエンドbearerトークンへの交換と
// セッションのライフサイクル管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/kuresearch/internal/backend"
	"github.com/hitoshi/kuresearch/internal/model"
	"github.com/hitoshi/kuresearch/internal/repository"
)

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをアクセストークンに交換する。
	ExchangeCode(ctx context.Context, code string) (*GoogleToken, error)
}

// BackendAuthClient はセッション確立に必要なバックエンドAPIのインターフェース。
// backend.Clientの部分集合として定義する。
type BackendAuthClient interface {
	// SignInWithGoogle はGoogleアクセストークンをバックエンドJWTに交換する。
	SignInWithGoogle(ctx context.Context, googleAccessToken string) (*backend.SignInToken, error)
	// GetUserProfile はユーザープロフィールを取得する。
	GetUserProfile(ctx context.Context, userID int64, accessToken string) (*model.UserProfile, error)
}

// Service は認証に関するビジネスロジックを提供する。
// リトライは行わず、失敗はサインイン画面へそのまま表面化させる。
type Service struct {
	oauth       OAuthProvider
	backend     BackendAuthClient
	sessionRepo repository.SessionRepository
}

// NewService はServiceを生成する。
func NewService(oauth OAuthProvider, backendClient BackendAuthClient, sessionRepo repository.SessionRepository) *Service {
	return &Service{
		oauth:       oauth,
		backend:     backendClient,
		sessionRepo: sessionRepo,
	}
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	return s.oauth.GetLoginURL(state)
}

// HandleCallback はOAuthコールバックを処理し、セッションを発行する。
// 認可コード → Googleアクセストークン → バックエンドJWT の2段階交換を行い、
// JWTのクレームとプロフィールからセッションを構築する。
// セッションの有効期限はバックエンドJWTの有効期限に一致させる。
func (s *Service) HandleCallback(ctx context.Context, code string) (*model.Session, error) {
	// 1. 認可コードをGoogleアクセストークンに交換
	googleToken, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	// 2. Googleアクセストークンをバックエンドのbearerトークンに交換
	signIn, err := s.backend.SignInWithGoogle(ctx, googleToken.AccessToken)
	if err != nil {
		return nil, err
	}

	// 3. バックエンドJWTからユーザーIDを取り出す
	claims, err := DecodeAccessToken(signIn.AccessToken)
	if err != nil {
		return nil, model.NewAuthFailedError(err.Error())
	}

	// 4. プロフィールを取得（user_level_id等の確定値はプロフィールを正とする）
	profile, err := s.backend.GetUserProfile(ctx, claims.UserID, signIn.AccessToken)
	if err != nil {
		return nil, err
	}

	// 5. セッションを発行
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	session := &model.Session{
		ID:          sessionID,
		UserID:      profile.UserID,
		UserLevelID: profile.UserLevelID,
		AccessToken: signIn.AccessToken,
		GoogleToken: googleToken.AccessToken,
		ExpiresAt:   time.Unix(signIn.ExpiresAt, 0),
		CreatedAt:   time.Now(),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	slog.Info("user signed in",
		slog.Int64("user_id", session.UserID),
		slog.Time("expires_at", session.ExpiresAt),
	)

	return session, nil
}

// CurrentSession はセッションを具現化し、最新のプロフィールとともに返す。
// プロフィールはセッション読み取りのたびにバックエンドから再取得するため、
// 表示名やアバターは最大でも1往復分しか古くならない。
// 期限切れセッションはセッション終了として扱い、ゲートへ戻す。
func (s *Service) CurrentSession(ctx context.Context, sessionID string) (*model.Session, *model.UserProfile, error) {
	if sessionID == "" {
		return nil, nil, model.NewUnauthorizedError()
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, nil, model.NewSessionExpiredError()
	}
	if !session.IsValid(time.Now()) {
		return nil, nil, model.NewSessionExpiredError()
	}

	profile, err := s.backend.GetUserProfile(ctx, session.UserID, session.AccessToken)
	if err != nil {
		return nil, nil, err
	}

	return session, profile, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

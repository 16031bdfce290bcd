package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/kuresearch/internal/backend"
	"github.com/hitoshi/kuresearch/internal/model"
	"github.com/hitoshi/kuresearch/internal/repository"
)

// --- モック定義 ---

type mockOAuthProvider struct {
	getLoginURLFn  func(state string) string
	exchangeCodeFn func(ctx context.Context, code string) (*GoogleToken, error)
}

func (m *mockOAuthProvider) GetLoginURL(state string) string {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(state)
	}
	return ""
}

func (m *mockOAuthProvider) ExchangeCode(ctx context.Context, code string) (*GoogleToken, error) {
	if m.exchangeCodeFn != nil {
		return m.exchangeCodeFn(ctx, code)
	}
	return nil, nil
}

type mockBackendClient struct {
	signInFn     func(ctx context.Context, googleAccessToken string) (*backend.SignInToken, error)
	getProfileFn func(ctx context.Context, userID int64, accessToken string) (*model.UserProfile, error)
}

func (m *mockBackendClient) SignInWithGoogle(ctx context.Context, googleAccessToken string) (*backend.SignInToken, error) {
	if m.signInFn != nil {
		return m.signInFn(ctx, googleAccessToken)
	}
	return nil, nil
}

func (m *mockBackendClient) GetUserProfile(ctx context.Context, userID int64, accessToken string) (*model.UserProfile, error) {
	if m.getProfileFn != nil {
		return m.getProfileFn(ctx, userID, accessToken)
	}
	return nil, nil
}

type mockSessionRepo struct {
	createFn     func(ctx context.Context, session *model.Session) error
	findByIDFn   func(ctx context.Context, id string) (*model.Session, error)
	deleteByIDFn func(ctx context.Context, id string) error
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	if m.createFn != nil {
		return m.createFn(ctx, session)
	}
	return nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

// --- compile-time interface checks ---
var _ OAuthProvider = (*mockOAuthProvider)(nil)
var _ BackendAuthClient = (*mockBackendClient)(nil)
var _ repository.SessionRepository = (*mockSessionRepo)(nil)

// --- テスト ---

func TestGetLoginURL_ReturnsOAuthURL(t *testing.T) {
	provider := &mockOAuthProvider{
		getLoginURLFn: func(state string) string {
			return "https://accounts.google.com/o/oauth2/auth?state=" + state
		},
	}
	svc := NewService(provider, nil, nil)

	url := svc.GetLoginURL("test-state")

	if url != "https://accounts.google.com/o/oauth2/auth?state=test-state" {
		t.Errorf("unexpected login URL: %s", url)
	}
}

// コールバック成功時にバックエンドJWTの内容からセッションが構築されることを検証
func TestHandleCallback_CreatesSession(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	backendJWT := makeBackendJWT(t, 42, 2, exp)

	provider := &mockOAuthProvider{
		exchangeCodeFn: func(ctx context.Context, code string) (*GoogleToken, error) {
			if code != "auth-code" {
				t.Errorf("code = %q, want auth-code", code)
			}
			return &GoogleToken{AccessToken: "google-token"}, nil
		},
	}

	backendClient := &mockBackendClient{
		signInFn: func(ctx context.Context, googleAccessToken string) (*backend.SignInToken, error) {
			if googleAccessToken != "google-token" {
				t.Errorf("googleAccessToken = %q, want google-token", googleAccessToken)
			}
			return &backend.SignInToken{AccessToken: backendJWT, ExpiresAt: exp.Unix()}, nil
		},
		getProfileFn: func(ctx context.Context, userID int64, accessToken string) (*model.UserProfile, error) {
			if userID != 42 {
				t.Errorf("userID = %d, want 42", userID)
			}
			return &model.UserProfile{UserID: 42, UserLevelID: 2, Name: "Test User"}, nil
		},
	}

	var created *model.Session
	sessionRepo := &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.Session) error {
			created = session
			return nil
		},
	}

	svc := NewService(provider, backendClient, sessionRepo)

	session, err := svc.HandleCallback(context.Background(), "auth-code")
	if err != nil {
		t.Fatalf("HandleCallback error = %v", err)
	}

	if session.UserID != 42 {
		t.Errorf("UserID = %d, want 42", session.UserID)
	}
	if session.UserLevelID != 2 {
		t.Errorf("UserLevelID = %d, want 2", session.UserLevelID)
	}
	if session.AccessToken != backendJWT {
		t.Error("AccessToken should be the backend JWT")
	}
	if session.GoogleToken != "google-token" {
		t.Errorf("GoogleToken = %q, want google-token", session.GoogleToken)
	}
	if !session.ExpiresAt.Equal(time.Unix(exp.Unix(), 0)) {
		t.Errorf("ExpiresAt = %v, want %v", session.ExpiresAt, exp)
	}
	if session.ID == "" {
		t.Error("session ID should be generated")
	}
	if created == nil {
		t.Fatal("session should be persisted")
	}
	if created.ID != session.ID {
		t.Error("persisted session should match returned session")
	}
}

// アカウント未登録エラーがそのまま呼び出し元へ伝播することを検証
func TestHandleCallback_AccountNotFoundPropagates(t *testing.T) {
	provider := &mockOAuthProvider{
		exchangeCodeFn: func(ctx context.Context, code string) (*GoogleToken, error) {
			return &GoogleToken{AccessToken: "google-token"}, nil
		},
	}
	backendClient := &mockBackendClient{
		signInFn: func(ctx context.Context, googleAccessToken string) (*backend.SignInToken, error) {
			return nil, model.NewAccountNotFoundError()
		},
	}
	svc := NewService(provider, backendClient, &mockSessionRepo{})

	_, err := svc.HandleCallback(context.Background(), "auth-code")
	if err == nil {
		t.Fatal("expected error")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %T", err)
	}
	if apiErr.Code != model.ErrCodeAccountNotFound {
		t.Errorf("code = %s, want %s", apiErr.Code, model.ErrCodeAccountNotFound)
	}
}

// OAuth交換失敗時にセッションが作成されないことを検証
func TestHandleCallback_ExchangeFailure(t *testing.T) {
	provider := &mockOAuthProvider{
		exchangeCodeFn: func(ctx context.Context, code string) (*GoogleToken, error) {
			return nil, errors.New("exchange failed")
		},
	}

	createCalled := false
	sessionRepo := &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.Session) error {
			createCalled = true
			return nil
		},
	}
	svc := NewService(provider, &mockBackendClient{}, sessionRepo)

	_, err := svc.HandleCallback(context.Background(), "bad-code")
	if err == nil {
		t.Fatal("expected error")
	}
	if createCalled {
		t.Error("session should not be created on exchange failure")
	}
}

// セッション具現化のたびにプロフィールが再取得されることを検証
func TestCurrentSession_RefreshesProfile(t *testing.T) {
	profileCalls := 0
	backendClient := &mockBackendClient{
		getProfileFn: func(ctx context.Context, userID int64, accessToken string) (*model.UserProfile, error) {
			profileCalls++
			return &model.UserProfile{UserID: userID, Name: "Fresh Name"}, nil
		},
	}
	sessionRepo := &mockSessionRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			return &model.Session{
				ID:          id,
				UserID:      42,
				AccessToken: "backend-jwt",
				ExpiresAt:   time.Now().Add(time.Hour),
			}, nil
		},
	}
	svc := NewService(&mockOAuthProvider{}, backendClient, sessionRepo)

	for i := 0; i < 3; i++ {
		_, profile, err := svc.CurrentSession(context.Background(), "session-1")
		if err != nil {
			t.Fatalf("CurrentSession error = %v", err)
		}
		if profile.Name != "Fresh Name" {
			t.Errorf("profile.Name = %q", profile.Name)
		}
	}

	if profileCalls != 3 {
		t.Errorf("profile fetch count = %d, want 3 (refresh on every read)", profileCalls)
	}
}

// 存在しない（または期限切れの）セッションはSESSION_EXPIREDになることを検証
func TestCurrentSession_ExpiredSession(t *testing.T) {
	sessionRepo := &mockSessionRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			return nil, nil
		},
	}
	svc := NewService(&mockOAuthProvider{}, &mockBackendClient{}, sessionRepo)

	_, _, err := svc.CurrentSession(context.Background(), "expired-session")
	if err == nil {
		t.Fatal("expected error")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %T", err)
	}
	if apiErr.Code != model.ErrCodeSessionExpired {
		t.Errorf("code = %s, want %s", apiErr.Code, model.ErrCodeSessionExpired)
	}
}

// リポジトリが期限切れ直後のセッションを返しても弾かれることを検証
func TestCurrentSession_JustExpiredRow(t *testing.T) {
	sessionRepo := &mockSessionRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			return &model.Session{
				ID:        id,
				UserID:    42,
				ExpiresAt: time.Now().Add(-time.Second),
			}, nil
		},
	}
	svc := NewService(&mockOAuthProvider{}, &mockBackendClient{}, sessionRepo)

	_, _, err := svc.CurrentSession(context.Background(), "session-1")
	if err == nil {
		t.Fatal("expected error for expired session")
	}
}

// プロフィール取得のUNAUTHORIZEDが伝播することを検証
func TestCurrentSession_UnauthorizedProfile(t *testing.T) {
	backendClient := &mockBackendClient{
		getProfileFn: func(ctx context.Context, userID int64, accessToken string) (*model.UserProfile, error) {
			return nil, model.NewUnauthorizedError()
		},
	}
	sessionRepo := &mockSessionRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			return &model.Session{
				ID:          id,
				UserID:      42,
				AccessToken: "stale-jwt",
				ExpiresAt:   time.Now().Add(time.Hour),
			}, nil
		},
	}
	svc := NewService(&mockOAuthProvider{}, backendClient, sessionRepo)

	_, _, err := svc.CurrentSession(context.Background(), "session-1")
	if err == nil {
		t.Fatal("expected error")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %T", err)
	}
	if apiErr.Code != model.ErrCodeUnauthorized {
		t.Errorf("code = %s, want %s", apiErr.Code, model.ErrCodeUnauthorized)
	}
}

func TestLogout_DeletesSession(t *testing.T) {
	deleted := ""
	sessionRepo := &mockSessionRepo{
		deleteByIDFn: func(ctx context.Context, id string) error {
			deleted = id
			return nil
		},
	}
	svc := NewService(&mockOAuthProvider{}, &mockBackendClient{}, sessionRepo)

	if err := svc.Logout(context.Background(), "session-1"); err != nil {
		t.Fatalf("Logout error = %v", err)
	}
	if deleted != "session-1" {
		t.Errorf("deleted session = %q, want session-1", deleted)
	}
}

func TestLogout_EmptySessionID(t *testing.T) {
	svc := NewService(&mockOAuthProvider{}, &mockBackendClient{}, &mockSessionRepo{})

	if err := svc.Logout(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty session ID")
	}
}

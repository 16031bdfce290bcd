package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/kuresearch/internal/model"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func newTestClient(serverURL string, httpClient *http.Client) *Client {
	var buf bytes.Buffer
	return NewClient(httpClient, newTestLogger(&buf), serverURL, "test-app-secret")
}

func TestClient_SignInWithGoogle_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/authentications/sign/google" {
			t.Errorf("path = %s, want /authentications/sign/google", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.Header.Get("App-Secret") != "test-app-secret" {
			t.Errorf("App-Secret header = %q", r.Header.Get("App-Secret"))
		}

		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}
		if body["access_token"] != "google-token" {
			t.Errorf("access_token = %q, want google-token", body["access_token"])
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": map[string]interface{}{"code": 200, "message": "OK"},
			"data": map[string]interface{}{
				"access_token": "backend-jwt",
				"expires_at":   1893456000,
			},
		})
	}))
	defer server.Close()

	c := newTestClient(server.URL, server.Client())

	token, err := c.SignInWithGoogle(context.Background(), "google-token")
	if err != nil {
		t.Fatalf("SignInWithGoogle error = %v", err)
	}
	if token.AccessToken != "backend-jwt" {
		t.Errorf("AccessToken = %q, want backend-jwt", token.AccessToken)
	}
	if token.ExpiresAt != 1893456000 {
		t.Errorf("ExpiresAt = %d, want 1893456000", token.ExpiresAt)
	}
}

// バックエンドが404002を返した場合、ACCOUNT_NOT_FOUNDに変換されることを検証
func TestClient_SignInWithGoogle_AccountNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": map[string]interface{}{"code": 404002, "message": "account not found"},
		})
	}))
	defer server.Close()

	c := newTestClient(server.URL, server.Client())

	_, err := c.SignInWithGoogle(context.Background(), "unknown-google-token")
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

// その他の非2xxレスポンスはAUTH_FAILEDになることを検証
func TestClient_SignInWithGoogle_OtherFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := newTestClient(server.URL, server.Client())

	_, err := c.SignInWithGoogle(context.Background(), "google-token")
	if err == nil {
		t.Fatal("expected error")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %T", err)
	}
	if apiErr.Code != model.ErrCodeAuthFailed {
		t.Errorf("code = %s, want %s", apiErr.Code, model.ErrCodeAuthFailed)
	}
}

func TestClient_GetUserProfile_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/42/profile" {
			t.Errorf("path = %s, want /users/42/profile", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer backend-jwt" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": map[string]interface{}{"code": 200, "message": "OK"},
			"data": map[string]interface{}{
				"user_id":       42,
				"user_level_id": 2,
				"name":          "Test User",
				"email":         "test@example.com",
				"avatar_url":    "https://example.com/avatar.png",
			},
		})
	}))
	defer server.Close()

	c := newTestClient(server.URL, server.Client())

	profile, err := c.GetUserProfile(context.Background(), 42, "backend-jwt")
	if err != nil {
		t.Fatalf("GetUserProfile error = %v", err)
	}
	if profile.UserID != 42 {
		t.Errorf("UserID = %d, want 42", profile.UserID)
	}
	if profile.Email != "test@example.com" {
		t.Errorf("Email = %q", profile.Email)
	}
}

// 期限切れトークンでのプロフィール取得がUNAUTHORIZEDになることを検証
func TestClient_GetUserProfile_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c := newTestClient(server.URL, server.Client())

	_, err := c.GetUserProfile(context.Background(), 42, "expired-jwt")
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

func TestClient_GetResearch_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/get-research" {
			t.Errorf("path = %s, want /get-research", r.URL.Path)
		}

		var body map[string]int64
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}
		if body["userId"] != 42 {
			t.Errorf("userId = %d, want 42", body["userId"])
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"papers": []map[string]interface{}{
				{"id": "1", "title": "Quantum Computing", "field": "Computer Science"},
				{"id": "2", "title": "Climate Change", "field": "Environmental Science"},
			},
		})
	}))
	defer server.Close()

	c := newTestClient(server.URL, server.Client())

	papers, err := c.GetResearch(context.Background(), 42)
	if err != nil {
		t.Fatalf("GetResearch error = %v", err)
	}
	if len(papers) != 2 {
		t.Fatalf("len(papers) = %d, want 2", len(papers))
	}
	if papers[0].ID != "1" || papers[1].ID != "2" {
		t.Errorf("papers order not preserved: %v, %v", papers[0].ID, papers[1].ID)
	}
}

// papersがnullでも空リストになることを検証
func TestClient_GetResearch_NullPapers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"papers": null}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL, server.Client())

	papers, err := c.GetResearch(context.Background(), 42)
	if err != nil {
		t.Fatalf("GetResearch error = %v", err)
	}
	if papers == nil {
		t.Fatal("papers should not be nil")
	}
	if len(papers) != 0 {
		t.Errorf("len(papers) = %d, want 0", len(papers))
	}
}

func TestClient_GetResearch_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := newTestClient(server.URL, server.Client())

	_, err := c.GetResearch(context.Background(), 42)
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestClient_AddPaper_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/add-paper" {
			t.Errorf("path = %s, want /add-paper", r.URL.Path)
		}

		var draft model.PaperDraft
		if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
			t.Fatalf("failed to decode draft: %v", err)
		}
		if draft.Title != "New Paper" {
			t.Errorf("title = %q, want New Paper", draft.Title)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"paper": map[string]interface{}{
				"id":              "backend-assigned-id",
				"title":           draft.Title,
				"field":           draft.Field,
				"classifications": draft.Classifications,
			},
		})
	}))
	defer server.Close()

	c := newTestClient(server.URL, server.Client())

	paper, err := c.AddPaper(context.Background(), model.PaperDraft{
		Title:           "New Paper",
		Authors:         "Dr. Test",
		Field:           "Physics",
		Classifications: []string{"Quantum Computing"},
	})
	if err != nil {
		t.Fatalf("AddPaper error = %v", err)
	}
	if paper.ID != "backend-assigned-id" {
		t.Errorf("ID = %q, want backend-assigned-id", paper.ID)
	}
}

// IDなしレスポンスはエラーになることを検証（バックエンドの部分失敗検出）
func TestClient_AddPaper_MissingID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"paper": {"title": "No ID"}}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL, server.Client())

	_, err := c.AddPaper(context.Background(), model.PaperDraft{Title: "No ID"})
	if err == nil {
		t.Fatal("expected error for paper without id")
	}
}

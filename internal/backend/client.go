// Package backend は研究論文バックエンドAPIのクライアントを提供する。
// サインイン、プロフィール取得、論文一覧取得、論文登録の各エンドポイントを呼び出す。
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/kuresearch/internal/model"
)

// accountNotFoundCode はバックエンドが「アカウント未登録」を示すステータスコード。
const accountNotFoundCode = 404002

// SignInToken はGoogleサインイン交換の結果を表す。
// ExpiresAtはエポック秒。
type SignInToken struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"`
}

// apiStatus はバックエンドの統一レスポンスエンベロープのステータス部。
type apiStatus struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// MetricsRecorder はバックエンド呼び出しの計測インターフェース。
type MetricsRecorder interface {
	RecordBackendStatus(endpoint string, statusCode int)
	RecordBackendLatency(endpoint string, duration time.Duration)
}

// Client は研究論文バックエンドAPIのHTTPクライアント。
// リトライは行わず、失敗は即座に呼び出し元へ返す。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	appSecret  string
	metrics    MetricsRecorder
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, baseURL, appSecret string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    baseURL,
		appSecret:  appSecret,
	}
}

// SetMetricsRecorder はバックエンド呼び出しの計測先を設定する。
func (c *Client) SetMetricsRecorder(rec MetricsRecorder) {
	c.metrics = rec
}

// record はエンドポイントごとのステータスとレイテンシを記録する。
func (c *Client) record(endpoint string, statusCode int, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.RecordBackendStatus(endpoint, statusCode)
	c.metrics.RecordBackendLatency(endpoint, time.Since(start))
}

// SignInWithGoogle はGoogleのアクセストークンをバックエンドのbearerトークンに交換する。
// POST /authentications/sign/google
// アカウント未登録（ステータスコード404002）の場合はACCOUNT_NOT_FOUNDを返す。
func (c *Client) SignInWithGoogle(ctx context.Context, googleAccessToken string) (*SignInToken, error) {
	reqBody, err := json.Marshal(map[string]string{"access_token": googleAccessToken})
	if err != nil {
		return nil, fmt.Errorf("failed to encode sign-in request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/authentications/sign/google", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create sign-in request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("App-Secret", c.appSecret)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sign-in request failed: %w", err)
	}
	defer resp.Body.Close()
	c.record("sign_in", resp.StatusCode, start)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read sign-in response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		// エラーエンベロープからアカウント未登録を判別する
		var errEnvelope struct {
			Status apiStatus `json:"status"`
		}
		if err := json.Unmarshal(body, &errEnvelope); err == nil &&
			errEnvelope.Status.Code == accountNotFoundCode {
			return nil, model.NewAccountNotFoundError()
		}
		c.logger.Warn("backend sign-in failed",
			slog.Int("status", resp.StatusCode),
		)
		return nil, model.NewAuthFailedError(fmt.Sprintf("backend returned status %d", resp.StatusCode))
	}

	var envelope struct {
		Status apiStatus   `json:"status"`
		Data   SignInToken `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse sign-in response: %w", err)
	}
	if envelope.Data.AccessToken == "" {
		return nil, model.NewAuthFailedError("empty access token in response")
	}

	return &envelope.Data, nil
}

// GetUserProfile はユーザープロフィールを取得する。
// GET /users/{userId}/profile （bearer認証）
// 非2xxレスポンスはUNAUTHORIZEDとして扱う。
func (c *Client) GetUserProfile(ctx context.Context, userID int64, accessToken string) (*model.UserProfile, error) {
	url := fmt.Sprintf("%s/users/%d/profile", c.baseURL, userID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("profile request failed: %w", err)
	}
	defer resp.Body.Close()
	c.record("profile", resp.StatusCode, start)

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("profile fetch rejected",
			slog.Int64("user_id", userID),
			slog.Int("status", resp.StatusCode),
		)
		return nil, model.NewUnauthorizedError()
	}

	var envelope struct {
		Status apiStatus         `json:"status"`
		Data   model.UserProfile `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to parse profile response: %w", err)
	}

	return &envelope.Data, nil
}

// GetResearch は指定ユーザーが閲覧可能な論文一覧を取得する。
// POST /get-research、ボディは {userId}。
func (c *Client) GetResearch(ctx context.Context, userID int64) ([]model.ResearchPaper, error) {
	reqBody, err := json.Marshal(map[string]int64{"userId": userID})
	if err != nil {
		return nil, fmt.Errorf("failed to encode get-research request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/get-research", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create get-research request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get-research request failed: %w", err)
	}
	defer resp.Body.Close()
	c.record("get_research", resp.StatusCode, start)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get-research returned status %d", resp.StatusCode)
	}

	var result struct {
		Papers []model.ResearchPaper `json:"papers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse get-research response: %w", err)
	}

	// papersがnullの場合は空リストとして扱う
	if result.Papers == nil {
		result.Papers = []model.ResearchPaper{}
	}

	return result.Papers, nil
}

// AddPaper は論文ドラフトをバックエンドに登録し、採番済みの論文を返す。
// POST /add-paper
func (c *Client) AddPaper(ctx context.Context, draft model.PaperDraft) (*model.ResearchPaper, error) {
	reqBody, err := json.Marshal(draft)
	if err != nil {
		return nil, fmt.Errorf("failed to encode add-paper request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/add-paper", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create add-paper request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("add-paper request failed: %w", err)
	}
	defer resp.Body.Close()
	c.record("add_paper", resp.StatusCode, start)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("add-paper returned status %d", resp.StatusCode)
	}

	var result struct {
		Paper model.ResearchPaper `json:"paper"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse add-paper response: %w", err)
	}
	if result.Paper.ID == "" {
		return nil, fmt.Errorf("add-paper response has no paper id")
	}

	return &result.Paper, nil
}

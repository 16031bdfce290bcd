package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/kuresearch/internal/middleware"
	"github.com/hitoshi/kuresearch/internal/model"
	"github.com/hitoshi/kuresearch/internal/research"
)

// mockCatalogService はCatalogServiceのモック。
type mockCatalogService struct {
	ensureLoadedFn func(ctx context.Context, userID int64) error
	loadFn         func(ctx context.Context, userID int64) error
	papersFn       func(userID int64, filter research.FilterState) []model.ResearchPaper
	facetsFn       func(userID int64) model.Facets
	addFn          func(ctx context.Context, draft model.PaperDraft) (*model.ResearchPaper, error)
}

var _ CatalogService = (*mockCatalogService)(nil)

func (m *mockCatalogService) EnsureLoaded(ctx context.Context, userID int64) error {
	if m.ensureLoadedFn != nil {
		return m.ensureLoadedFn(ctx, userID)
	}
	return nil
}

func (m *mockCatalogService) Load(ctx context.Context, userID int64) error {
	if m.loadFn != nil {
		return m.loadFn(ctx, userID)
	}
	return nil
}

func (m *mockCatalogService) Papers(userID int64, filter research.FilterState) []model.ResearchPaper {
	if m.papersFn != nil {
		return m.papersFn(userID, filter)
	}
	return nil
}

func (m *mockCatalogService) Facets(userID int64) model.Facets {
	if m.facetsFn != nil {
		return m.facetsFn(userID)
	}
	return model.Facets{Fields: []string{}, Classifications: []string{}}
}

func (m *mockCatalogService) Add(ctx context.Context, draft model.PaperDraft) (*model.ResearchPaper, error) {
	if m.addFn != nil {
		return m.addFn(ctx, draft)
	}
	return nil, model.NewSubmitFailedError("not implemented")
}

// passthroughSanitizer は入力をそのまま返すサニタイザ。
type passthroughSanitizer struct {
	called bool
}

func (s *passthroughSanitizer) SanitizeDraft(draft model.PaperDraft) model.PaperDraft {
	s.called = true
	return draft
}

// mockURLValidator はURLValidatorのモック。
type mockURLValidator struct {
	validateFn func(rawURL string) error
}

func (m *mockURLValidator) ValidateURL(rawURL string) error {
	if m.validateFn != nil {
		return m.validateFn(rawURL)
	}
	return nil
}

// authedRequest は認証済みセッションをコンテキストに持つリクエストを生成する。
func authedRequest(method, target string, body string, userID int64) *http.Request {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	session := &model.Session{
		ID:          "sess-test",
		UserID:      userID,
		GoogleToken: "google-token",
		ExpiresAt:   time.Now().Add(time.Hour),
	}
	return req.WithContext(middleware.ContextWithSession(req.Context(), session))
}

func validDraftJSON() string {
	return `{
		"title": "量子計算の誤り訂正",
		"authors": "山田太郎, 鈴木花子",
		"abstract": "表面符号による誤り訂正の解析。",
		"field": "physics",
		"classifications": ["quantum", "theory"],
		"publishedYear": 2024
	}`
}

func TestPaperHandler_List_ReturnsFilteredPapers(t *testing.T) {
	var gotFilter research.FilterState
	var gotUserID int64
	catalog := &mockCatalogService{
		papersFn: func(userID int64, filter research.FilterState) []model.ResearchPaper {
			gotUserID = userID
			gotFilter = filter
			return []model.ResearchPaper{
				{ID: "p1", Title: "量子もつれ", Field: "physics"},
				{ID: "p2", Title: "量子計算", Field: "physics"},
			}
		},
	}
	h := NewPaperHandler(catalog, &passthroughSanitizer{}, &mockURLValidator{}, nil)

	req := authedRequest(http.MethodGet, "/api/papers?query=quantum&field=physics&classifications=theory,ml", "", 42)
	rec := httptest.NewRecorder()
	h.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body = %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	if gotUserID != 42 {
		t.Errorf("userID = %d, want 42", gotUserID)
	}
	if gotFilter.Query != "quantum" || gotFilter.Field != "physics" {
		t.Errorf("filter = %+v, want query=quantum field=physics", gotFilter)
	}
	if len(gotFilter.Classifications) != 2 || gotFilter.Classifications[0] != "theory" || gotFilter.Classifications[1] != "ml" {
		t.Errorf("classifications = %v, want [theory ml]", gotFilter.Classifications)
	}

	var body listPapersResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("レスポンスの解析に失敗: %v", err)
	}
	if body.Total != 2 || len(body.Papers) != 2 {
		t.Errorf("total = %d, papers = %d, want 2", body.Total, len(body.Papers))
	}
}

func TestPaperHandler_List_EnsuresLoadedByDefault(t *testing.T) {
	var ensureCalls, loadCalls int
	catalog := &mockCatalogService{
		ensureLoadedFn: func(ctx context.Context, userID int64) error {
			ensureCalls++
			return nil
		},
		loadFn: func(ctx context.Context, userID int64) error {
			loadCalls++
			return nil
		},
	}
	h := NewPaperHandler(catalog, &passthroughSanitizer{}, &mockURLValidator{}, nil)

	rec := httptest.NewRecorder()
	h.List(rec, authedRequest(http.MethodGet, "/api/papers", "", 42))

	if ensureCalls != 1 || loadCalls != 0 {
		t.Errorf("ensure = %d, load = %d, want 1, 0", ensureCalls, loadCalls)
	}
}

func TestPaperHandler_List_ReloadForcesLoad(t *testing.T) {
	var ensureCalls, loadCalls int
	catalog := &mockCatalogService{
		ensureLoadedFn: func(ctx context.Context, userID int64) error {
			ensureCalls++
			return nil
		},
		loadFn: func(ctx context.Context, userID int64) error {
			loadCalls++
			return nil
		},
	}
	h := NewPaperHandler(catalog, &passthroughSanitizer{}, &mockURLValidator{}, nil)

	rec := httptest.NewRecorder()
	h.List(rec, authedRequest(http.MethodGet, "/api/papers?reload=true", "", 42))

	if ensureCalls != 0 || loadCalls != 1 {
		t.Errorf("ensure = %d, load = %d, want 0, 1", ensureCalls, loadCalls)
	}
}

func TestPaperHandler_List_FetchFailure(t *testing.T) {
	catalog := &mockCatalogService{
		ensureLoadedFn: func(ctx context.Context, userID int64) error {
			return model.NewFetchFailedError("backend unavailable")
		},
	}
	h := NewPaperHandler(catalog, &passthroughSanitizer{}, &mockURLValidator{}, nil)

	rec := httptest.NewRecorder()
	h.List(rec, authedRequest(http.MethodGet, "/api/papers", "", 42))

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadGateway)
	}

	var body middleware.ErrorResponseBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("レスポンスの解析に失敗: %v", err)
	}
	if body.Code != model.ErrCodeFetchFailed {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeFetchFailed)
	}
}

func TestPaperHandler_List_WithoutSession(t *testing.T) {
	h := NewPaperHandler(&mockCatalogService{}, &passthroughSanitizer{}, &mockURLValidator{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/papers", nil)
	rec := httptest.NewRecorder()
	h.List(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestPaperHandler_Facets(t *testing.T) {
	catalog := &mockCatalogService{
		facetsFn: func(userID int64) model.Facets {
			return model.Facets{
				Fields:          []string{"physics", "biology"},
				Classifications: []string{"quantum", "ml"},
			}
		},
	}
	h := NewPaperHandler(catalog, &passthroughSanitizer{}, &mockURLValidator{}, nil)

	rec := httptest.NewRecorder()
	h.Facets(rec, authedRequest(http.MethodGet, "/api/papers/facets", "", 42))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var facets model.Facets
	if err := json.Unmarshal(rec.Body.Bytes(), &facets); err != nil {
		t.Fatalf("レスポンスの解析に失敗: %v", err)
	}
	if len(facets.Fields) != 2 || len(facets.Classifications) != 2 {
		t.Errorf("facets = %+v, want 2 fields and 2 classifications", facets)
	}
}

func TestPaperHandler_Create_Success(t *testing.T) {
	var gotDraft model.PaperDraft
	catalog := &mockCatalogService{
		addFn: func(ctx context.Context, draft model.PaperDraft) (*model.ResearchPaper, error) {
			gotDraft = draft
			return &model.ResearchPaper{
				ID:              "p-new",
				Title:           draft.Title,
				Authors:         draft.Authors,
				Field:           draft.Field,
				Classifications: draft.Classifications,
			}, nil
		},
	}
	sanitizer := &passthroughSanitizer{}
	h := NewPaperHandler(catalog, sanitizer, &mockURLValidator{}, nil)

	rec := httptest.NewRecorder()
	h.Create(rec, authedRequest(http.MethodPost, "/api/papers", validDraftJSON(), 42))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d, body = %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	if !sanitizer.called {
		t.Error("サニタイザが呼ばれていません")
	}
	// 投稿者IDはセッションから設定される
	if gotDraft.UserID != 42 {
		t.Errorf("draft.UserID = %d, want 42", gotDraft.UserID)
	}

	var body struct {
		Paper model.ResearchPaper `json:"paper"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("レスポンスの解析に失敗: %v", err)
	}
	if body.Paper.ID != "p-new" {
		t.Errorf("paper.ID = %q, want %q", body.Paper.ID, "p-new")
	}
}

func TestPaperHandler_Create_ValidationErrors(t *testing.T) {
	catalog := &mockCatalogService{
		addFn: func(ctx context.Context, draft model.PaperDraft) (*model.ResearchPaper, error) {
			t.Error("検証エラー時にAddが呼ばれるべきではない")
			return nil, nil
		},
	}
	h := NewPaperHandler(catalog, &passthroughSanitizer{}, &mockURLValidator{}, nil)

	tests := []struct {
		name string
		body string
	}{
		{
			"タイトルなし",
			`{"authors": "山田", "field": "physics", "classifications": ["quantum"]}`,
		},
		{
			"著者なし",
			`{"title": "t", "field": "physics", "classifications": ["quantum"]}`,
		},
		{
			"分野なし",
			`{"title": "t", "authors": "山田", "classifications": ["quantum"]}`,
		},
		{
			"分類なし",
			`{"title": "t", "authors": "山田", "field": "physics", "classifications": []}`,
		},
		{
			"公開なのに公開範囲なし",
			`{"title": "t", "authors": "山田", "field": "physics", "classifications": ["quantum"], "isPublic": true}`,
		},
		{
			"ワークスペース公開なのにワークスペースIDなし",
			`{"title": "t", "authors": "山田", "field": "physics", "classifications": ["quantum"], "isPublic": true, "publicOption": "workspace"}`,
		},
		{
			"空白のみのタイトル",
			`{"title": "   ", "authors": "山田", "field": "physics", "classifications": ["quantum"]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Create(rec, authedRequest(http.MethodPost, "/api/papers", tt.body, 42))

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}

			var body middleware.ErrorResponseBody
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("レスポンスの解析に失敗: %v", err)
			}
			if body.Code != model.ErrCodeValidationFailed {
				t.Errorf("code = %q, want %q", body.Code, model.ErrCodeValidationFailed)
			}
		})
	}
}

func TestPaperHandler_Create_WorkspaceWithIDSucceeds(t *testing.T) {
	catalog := &mockCatalogService{
		addFn: func(ctx context.Context, draft model.PaperDraft) (*model.ResearchPaper, error) {
			return &model.ResearchPaper{ID: "p-ws"}, nil
		},
	}
	h := NewPaperHandler(catalog, &passthroughSanitizer{}, &mockURLValidator{}, nil)

	body := `{"title": "t", "authors": "山田", "field": "physics", "classifications": ["quantum"],
		"isPublic": true, "publicOption": "workspace", "workspaceSiteID": 7}`
	rec := httptest.NewRecorder()
	h.Create(rec, authedRequest(http.MethodPost, "/api/papers", body, 42))

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d, body = %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
}

func TestPaperHandler_Create_InvalidJSON(t *testing.T) {
	h := NewPaperHandler(&mockCatalogService{}, &passthroughSanitizer{}, &mockURLValidator{}, nil)

	rec := httptest.NewRecorder()
	h.Create(rec, authedRequest(http.MethodPost, "/api/papers", "{invalid", 42))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestPaperHandler_Create_BlockedCoverURL(t *testing.T) {
	guard := &mockURLValidator{
		validateFn: func(rawURL string) error {
			return model.NewSSRFBlockedError()
		},
	}
	h := NewPaperHandler(&mockCatalogService{}, &passthroughSanitizer{}, guard, nil)

	body := `{"title": "t", "authors": "山田", "field": "physics", "classifications": ["quantum"],
		"coverImage": "http://169.254.169.254/latest/meta-data"}`
	rec := httptest.NewRecorder()
	h.Create(rec, authedRequest(http.MethodPost, "/api/papers", body, 42))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	var resp middleware.ErrorResponseBody
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("レスポンスの解析に失敗: %v", err)
	}
	if resp.Code != model.ErrCodeSSRFBlocked {
		t.Errorf("code = %q, want %q", resp.Code, model.ErrCodeSSRFBlocked)
	}
}

func TestPaperHandler_Create_SubmitFailure(t *testing.T) {
	catalog := &mockCatalogService{
		addFn: func(ctx context.Context, draft model.PaperDraft) (*model.ResearchPaper, error) {
			return nil, model.NewSubmitFailedError("backend rejected")
		},
	}
	h := NewPaperHandler(catalog, &passthroughSanitizer{}, &mockURLValidator{}, nil)

	rec := httptest.NewRecorder()
	h.Create(rec, authedRequest(http.MethodPost, "/api/papers", validDraftJSON(), 42))

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadGateway)
	}

	var resp middleware.ErrorResponseBody
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("レスポンスの解析に失敗: %v", err)
	}
	if resp.Code != model.ErrCodeSubmitFailed {
		t.Errorf("code = %q, want %q", resp.Code, model.ErrCodeSubmitFailed)
	}
}

func TestValidateDraft_SiteAndEveryoneNeedNoExtra(t *testing.T) {
	base := model.PaperDraft{
		Title:           "t",
		Authors:         "a",
		Field:           "physics",
		Classifications: []string{"quantum"},
		IsPublic:        true,
	}

	for _, option := range []model.PublicOption{model.PublicOptionSite, model.PublicOptionEveryone} {
		draft := base
		draft.PublicOption = option
		if err := validateDraft(draft); err != nil {
			t.Errorf("publicOption=%q: 予期しない検証エラー: %v", option, err)
		}
	}
}

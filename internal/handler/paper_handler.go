package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/kuresearch/internal/metrics"
	"github.com/hitoshi/kuresearch/internal/middleware"
	"github.com/hitoshi/kuresearch/internal/model"
	"github.com/hitoshi/kuresearch/internal/research"
)

// CatalogService は論文カタログハンドラーが必要とするサービスインターフェース。
type CatalogService interface {
	EnsureLoaded(ctx context.Context, userID int64) error
	Load(ctx context.Context, userID int64) error
	Papers(userID int64, filter research.FilterState) []model.ResearchPaper
	Facets(userID int64) model.Facets
	Add(ctx context.Context, draft model.PaperDraft) (*model.ResearchPaper, error)
}

// DraftSanitizer は論文入力のサニタイズインターフェース。
type DraftSanitizer interface {
	SanitizeDraft(draft model.PaperDraft) model.PaperDraft
}

// URLValidator はカバー画像URLの検証インターフェース。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// PaperHandler は論文カタログ関連のHTTPハンドラー。
type PaperHandler struct {
	catalog   CatalogService
	sanitizer DraftSanitizer
	urlGuard  URLValidator
	metrics   metrics.MetricsCollector
}

// NewPaperHandler はPaperHandlerを生成する。
func NewPaperHandler(catalog CatalogService, sanitizer DraftSanitizer, urlGuard URLValidator, collector metrics.MetricsCollector) *PaperHandler {
	return &PaperHandler{
		catalog:   catalog,
		sanitizer: sanitizer,
		urlGuard:  urlGuard,
		metrics:   collector,
	}
}

// listPapersResponse は論文一覧のレスポンス。
type listPapersResponse struct {
	Papers []model.ResearchPaper `json:"papers"`
	Total  int                   `json:"total"`
}

// List はフィルタ適用済みの論文一覧を返す。
// GET /api/papers?query=xxx&field=yyy&classifications=a,b&reload=true
func (h *PaperHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	// reload=true は明示的な再読込。それ以外は初回のみバックエンドから取得する。
	if r.URL.Query().Get("reload") == "true" {
		err = h.catalog.Load(r.Context(), userID)
	} else {
		err = h.catalog.EnsureLoaded(r.Context(), userID)
	}
	if err != nil {
		slog.Error("failed to load catalog",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
		middleware.WriteAPIError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordCatalogLoad()
	}

	filter := filterFromQuery(r)
	papers := h.catalog.Papers(userID, filter)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(listPapersResponse{
		Papers: papers,
		Total:  len(papers),
	})
}

// filterFromQuery はクエリパラメータからフィルタ条件を組み立てる。
// classificationsはカンマ区切り。空要素は無視する。
func filterFromQuery(r *http.Request) research.FilterState {
	filter := research.FilterState{
		Query: r.URL.Query().Get("query"),
		Field: r.URL.Query().Get("field"),
	}
	if raw := r.URL.Query().Get("classifications"); raw != "" {
		for _, c := range strings.Split(raw, ",") {
			if c = strings.TrimSpace(c); c != "" {
				filter.Classifications = append(filter.Classifications, c)
			}
		}
	}
	return filter
}

// Facets は現在のカタログから導出したフィルタ候補を返す。
// GET /api/papers/facets
func (h *PaperHandler) Facets(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	if err := h.catalog.EnsureLoaded(r.Context(), userID); err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.catalog.Facets(userID))
}

// Create は新しい論文を登録する。
// POST /api/papers
func (h *PaperHandler) Create(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var draft model.PaperDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("JSONの解析に失敗しました"))
		return
	}

	// 1. テキストフィールドのサニタイズ
	draft = h.sanitizer.SanitizeDraft(draft)

	// 2. 入力検証
	if err := validateDraft(draft); err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	// 3. 直接指定されたカバー画像URLのSSRF検証
	if draft.CoverImage != "" {
		if err := h.urlGuard.ValidateURL(draft.CoverImage); err != nil {
			middleware.WriteAPIError(w, err)
			return
		}
	}

	// 投稿者はセッションのユーザーで固定する
	draft.UserID = session.UserID

	paper, err := h.catalog.Add(r.Context(), draft)
	if err != nil {
		slog.Error("failed to add paper",
			slog.Int64("user_id", session.UserID),
			slog.String("error", err.Error()),
		)
		middleware.WriteAPIError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordPaperSubmitted()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{"paper": paper})
}

// validateDraft は論文入力の必須項目と公開設定の整合性を検証する。
func validateDraft(draft model.PaperDraft) error {
	if strings.TrimSpace(draft.Title) == "" {
		return model.NewValidationError("タイトルは必須です")
	}
	if strings.TrimSpace(draft.Authors) == "" {
		return model.NewValidationError("著者は必須です")
	}
	if strings.TrimSpace(draft.Field) == "" {
		return model.NewValidationError("分野は必須です")
	}
	if len(draft.Classifications) == 0 {
		return model.NewValidationError("分類を1つ以上指定してください")
	}

	if draft.IsPublic {
		switch draft.PublicOption {
		case model.PublicOptionWorkspace:
			if draft.WorkspaceSiteID == 0 {
				return model.NewValidationError("ワークスペース公開にはワークスペースIDが必要です")
			}
		case model.PublicOptionSite, model.PublicOptionEveryone:
			// 追加条件なし
		default:
			return model.NewValidationError("公開論文には公開範囲の指定が必要です")
		}
	}

	return nil
}

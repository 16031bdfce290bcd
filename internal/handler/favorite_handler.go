package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/kuresearch/internal/middleware"
	"github.com/hitoshi/kuresearch/internal/model"
)

// FavoriteService はお気に入りハンドラーが必要とするサービスインターフェース。
type FavoriteService interface {
	ToggleFavorite(ctx context.Context, userID int64, paperID string) (bool, error)
	Favorites(ctx context.Context, userID int64) ([]string, error)
}

// FavoriteHandler はお気に入り関連のHTTPハンドラー。
type FavoriteHandler struct {
	service FavoriteService
}

// NewFavoriteHandler はFavoriteHandlerを生成する。
func NewFavoriteHandler(service FavoriteService) *FavoriteHandler {
	return &FavoriteHandler{service: service}
}

// toggleFavoriteResponse はトグル結果のレスポンス。
type toggleFavoriteResponse struct {
	PaperID  string `json:"paperId"`
	Favorite bool   `json:"favorite"`
}

// Toggle は論文のお気に入り状態を反転する。
// PUT /api/papers/{id}/favorite
// 同じ論文への2回の呼び出しは元の状態に戻る。
func (h *FavoriteHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	paperID := chi.URLParam(r, "id")
	if paperID == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("論文IDが指定されていません"))
		return
	}

	favorite, err := h.service.ToggleFavorite(r.Context(), userID, paperID)
	if err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toggleFavoriteResponse{
		PaperID:  paperID,
		Favorite: favorite,
	})
}

// List はユーザーのお気に入り論文ID一覧を返す。
// GET /api/favorites
func (h *FavoriteHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	favorites, err := h.service.Favorites(r.Context(), userID)
	if err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	if favorites == nil {
		favorites = []string{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string][]string{"favorites": favorites})
}

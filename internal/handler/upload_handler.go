package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/hitoshi/kuresearch/internal/metrics"
	"github.com/hitoshi/kuresearch/internal/middleware"
	"github.com/hitoshi/kuresearch/internal/model"
	"github.com/hitoshi/kuresearch/internal/uploader"
)

// defaultMaxUploadSize はカバー画像の最大サイズのデフォルト値（5MB）。
const defaultMaxUploadSize = 5 << 20

// CoverDetector はWebページからのカバー画像検出インターフェース。
type CoverDetector interface {
	DetectCoverURL(ctx context.Context, inputURL string) (string, error)
}

// UploadHandler はカバー画像アップロード関連のHTTPハンドラー。
type UploadHandler struct {
	uploader uploader.Uploader
	detector CoverDetector
	metrics  metrics.MetricsCollector
	maxSize  int64
}

// NewUploadHandler はUploadHandlerを生成する。
// maxSizeが0以下の場合はデフォルトの5MBを使用する。
func NewUploadHandler(u uploader.Uploader, detector CoverDetector, collector metrics.MetricsCollector, maxSize int64) *UploadHandler {
	if maxSize <= 0 {
		maxSize = defaultMaxUploadSize
	}
	return &UploadHandler{
		uploader: u,
		detector: detector,
		metrics:  collector,
		maxSize:  maxSize,
	}
}

// Upload はマルチパートで受け取った画像をGoogle Driveへアップロードし、
// 公開サムネイルURLを返す。
// POST /api/uploads
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	// Driveへのアップロードにはサインイン時のGoogleトークンを使う
	if session.GoogleToken == "" {
		middleware.WriteErrorResponse(w, http.StatusBadGateway,
			model.NewUploadFailedError("Googleアカウントの認証情報がありません。再度サインインしてください"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxSize)
	if err := r.ParseMultipartForm(h.maxSize); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("画像のサイズが上限を超えています"))
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("imageフィールドが必要です"))
		return
	}
	defer file.Close()

	mimeType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(mimeType, "image/") {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("画像ファイルのみアップロードできます"))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("画像の読み込みに失敗しました"))
		return
	}

	// 共有フォルダ内でのファイル名衝突を避けるためUUIDで採番する
	filename := uuid.New().String() + filepath.Ext(header.Filename)

	url, err := h.uploader.Upload(r.Context(), session.GoogleToken, filename, mimeType, data)
	if err != nil {
		slog.Error("cover upload failed",
			slog.Int64("user_id", session.UserID),
			slog.String("filename", header.Filename),
			slog.String("error", err.Error()),
		)
		middleware.WriteAPIError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordCoverUploaded()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"url": url})
}

// detectCoverRequest はカバー検出リクエスト。
type detectCoverRequest struct {
	URL string `json:"url"`
}

// Detect はWebページのog:imageなどからカバー画像URLを検出する。
// POST /api/uploads/detect
func (h *UploadHandler) Detect(w http.ResponseWriter, r *http.Request) {
	var req detectCoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("JSONの解析に失敗しました"))
		return
	}

	coverURL, err := h.detector.DetectCoverURL(r.Context(), req.URL)
	if err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"url": coverURL})
}

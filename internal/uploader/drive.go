// Package uploader はカバー画像のGoogle Driveへのアップロード機能を提供する。
package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/kuresearch/internal/model"
)

// Uploader は画像アップロード機能のインターフェース。
type Uploader interface {
	// Upload は画像をアップロードし、公開参照可能なURLを返す。
	Upload(ctx context.Context, googleToken, filename, mimeType string, data []byte) (string, error)
}

// DriveUploader はGoogle Drive APIを使用したUploaderの実装。
// ユーザー自身のGoogleアクセストークン（drive.fileスコープ）でアップロードするため、
// ファイルの所有者はユーザーになる。
type DriveUploader struct {
	httpClient *http.Client
	logger     *slog.Logger
	folderID   string

	// テストで差し替えるためのエンドポイント
	apiBaseURL    string
	uploadBaseURL string
}

// NewDriveUploader はDriveUploaderを生成する。
// folderIDはアップロード先の共有フォルダID。
func NewDriveUploader(httpClient *http.Client, logger *slog.Logger, folderID string) *DriveUploader {
	return &DriveUploader{
		httpClient:    httpClient,
		logger:        logger,
		folderID:      folderID,
		apiBaseURL:    "https://www.googleapis.com/drive/v3",
		uploadBaseURL: "https://www.googleapis.com/upload/drive/v3",
	}
}

// Upload は画像をGoogle Driveにアップロードし、サムネイルURLを返す。
// 3段階のDrive API呼び出しを順に行う:
//  1. メタデータ作成（ファイル名と親フォルダ）
//  2. コンテンツのアップロード（uploadType=media）
//  3. 全体公開のパーミッション付与（anyone/reader）
//
// いずれかの段階で失敗した場合はUPLOAD_FAILEDを返す。
// 途中で作成されたファイルのクリーンアップは行わず、失敗はそのまま表面化させる。
func (u *DriveUploader) Upload(ctx context.Context, googleToken, filename, mimeType string, data []byte) (string, error) {
	// 1. メタデータ作成
	fileID, err := u.createFile(ctx, googleToken, filename)
	if err != nil {
		u.logger.Warn("drive file creation failed", slog.String("filename", filename))
		return "", model.NewUploadFailedError(err.Error())
	}

	// 2. コンテンツのアップロード
	if err := u.uploadContent(ctx, googleToken, fileID, mimeType, data); err != nil {
		u.logger.Warn("drive content upload failed", slog.String("file_id", fileID))
		return "", model.NewUploadFailedError(err.Error())
	}

	// 3. 公開パーミッション付与
	if err := u.makePublic(ctx, googleToken, fileID); err != nil {
		u.logger.Warn("drive permission grant failed", slog.String("file_id", fileID))
		return "", model.NewUploadFailedError(err.Error())
	}

	u.logger.Info("cover image uploaded",
		slog.String("file_id", fileID),
		slog.String("filename", filename),
		slog.Int("size", len(data)),
	)

	return fmt.Sprintf("https://drive.google.com/thumbnail?id=%s&sz=w1000", fileID), nil
}

// createFile はファイル名と親フォルダを指定してメタデータのみのファイルを作成する。
func (u *DriveUploader) createFile(ctx context.Context, googleToken, filename string) (string, error) {
	metadata := map[string]any{
		"name": filename,
	}
	if u.folderID != "" {
		metadata["parents"] = []string{u.folderID}
	}

	reqBody, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("failed to encode file metadata: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		u.apiBaseURL+"/files", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create metadata request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+googleToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("metadata request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("drive file creation returned status %d", resp.StatusCode)
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to parse file creation response: %w", err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("drive file creation returned no file id")
	}

	return result.ID, nil
}

// uploadContent は作成済みファイルに画像データを書き込む。
func (u *DriveUploader) uploadContent(ctx context.Context, googleToken, fileID, mimeType string, data []byte) error {
	url := fmt.Sprintf("%s/files/%s?uploadType=media", u.uploadBaseURL, fileID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+googleToken)
	req.Header.Set("Content-Type", mimeType)

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("drive content upload returned status %d", resp.StatusCode)
	}

	return nil
}

// makePublic はファイルに「リンクを知っている全員が閲覧可」のパーミッションを付与する。
// サムネイルURLを認証なしで参照できるようにするために必要。
func (u *DriveUploader) makePublic(ctx context.Context, googleToken, fileID string) error {
	reqBody, err := json.Marshal(map[string]string{
		"role": "reader",
		"type": "anyone",
	})
	if err != nil {
		return fmt.Errorf("failed to encode permission request: %w", err)
	}

	url := fmt.Sprintf("%s/files/%s/permissions", u.apiBaseURL, fileID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("failed to create permission request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+googleToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("permission request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("drive permission grant returned status %d", resp.StatusCode)
	}

	return nil
}

// compile-time interface check
var _ Uploader = (*DriveUploader)(nil)

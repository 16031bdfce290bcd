// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, catalog, upload, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeAuthFailed       = "AUTH_FAILED"
	ErrCodeAccountNotFound  = "ACCOUNT_NOT_FOUND"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeSessionExpired   = "SESSION_EXPIRED"
	ErrCodeFetchFailed      = "FETCH_FAILED"
	ErrCodeSubmitFailed     = "SUBMIT_FAILED"
	ErrCodeValidationFailed = "VALIDATION_FAILED"
	ErrCodeUploadFailed     = "UPLOAD_FAILED"
	ErrCodePaperNotFound    = "PAPER_NOT_FOUND"
	ErrCodeInvalidURL       = "INVALID_URL"
	ErrCodeSSRFBlocked      = "SSRF_BLOCKED"
	ErrCodeCoverNotFound    = "COVER_NOT_DETECTED"
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeInternal         = "INTERNAL_ERROR"
)

// NewAuthFailedError はGoogle認証またはバックエンドサインイン失敗のエラーを生成する。
func NewAuthFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeAuthFailed,
		Message:  fmt.Sprintf("ログインに失敗しました: %s", reason),
		Category: "auth",
		Action:   "再度サインインをお試しください。",
	}
}

// NewAccountNotFoundError はバックエンドにGoogleアカウントが未登録の場合のエラーを生成する。
// バックエンドのステータスコード404002に対応する。
func NewAccountNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeAccountNotFound,
		Message:  "お使いのGoogleアカウントが見つかりませんでした。",
		Category: "auth",
		Action:   "登録済みのGoogleアカウントでサインインしてください。",
	}
}

// NewUnauthorizedError はbearerトークンが無効または期限切れの場合のエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewSessionExpiredError はセッション有効期限切れのエラーを生成する。
func NewSessionExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionExpired,
		Message:  "セッションの有効期限が切れました。",
		Category: "auth",
		Action:   "再度ログインしてください。",
	}
}

// NewFetchFailedError は論文カタログの取得失敗エラーを生成する。
func NewFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("論文一覧の取得に失敗しました: %s", reason),
		Category: "catalog",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewSubmitFailedError は論文登録の失敗エラーを生成する。
func NewSubmitFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeSubmitFailed,
		Message:  fmt.Sprintf("論文の登録に失敗しました: %s", reason),
		Category: "catalog",
		Action:   "入力内容はそのまま保持されています。再度送信してください。",
	}
}

// NewValidationError は必須項目不足などの入力検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  fmt.Sprintf("入力内容に誤りがあります: %s", reason),
		Category: "validation",
		Action:   "必須項目を確認して再度送信してください。",
	}
}

// NewUploadFailedError はカバー画像アップロードの失敗エラーを生成する。
func NewUploadFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeUploadFailed,
		Message:  fmt.Sprintf("画像のアップロードに失敗しました: %s", reason),
		Category: "upload",
		Action:   "フォームの内容は保持されています。画像を再度アップロードしてください。",
	}
}

// NewPaperNotFoundError は論文未検出エラーを生成する。
func NewPaperNotFoundError(paperID string) *APIError {
	return &APIError{
		Code:     ErrCodePaperNotFound,
		Message:  fmt.Sprintf("指定された論文が見つかりません: %s", paperID),
		Category: "catalog",
		Action:   "論文IDを確認してください。",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "正しいURL形式（http:// または https:// で始まるURL）を入力してください。",
	}
}

// NewCoverNotFoundError はカバー画像が検出できなかった場合のエラーを生成する。
func NewCoverNotFoundError(pageURL string) *APIError {
	return &APIError{
		Code:     ErrCodeCoverNotFound,
		Message:  fmt.Sprintf("指定されたページからカバー画像を検出できませんでした: %s", pageURL),
		Category: "upload",
		Action:   "画像を直接アップロードするか、別のURLをお試しください。",
	}
}

// NewInvalidRequestError はリクエスト形式不正のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストの形式が不正です: %s", reason),
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
	}
}

// NewInternalError は予期しないサーバーエラーを生成する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "サーバー内部でエラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているWebサイトのURLを入力してください。ローカルネットワークやプライベートIPへのアクセスは許可されていません。",
	}
}

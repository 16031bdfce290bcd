// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService は論文登録フォームのテキスト入力をサニタイズし、
// XSS攻撃などのセキュリティリスクからユーザーを保護する。
// タイトル・著者・要旨は平文として扱うため、bluemondayの
// StrictPolicyで全てのHTMLタグを除去する。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hitoshi/kuresearch/internal/model"
)

// ContentSanitizerService はテキスト入力のサニタイズ機能のインターフェースを定義する。
// 論文ドラフトの登録前に使用される。
type ContentSanitizerService interface {
	// SanitizeText はテキストから全てのHTMLタグを除去して返す。
	// script, iframe, style等のタグおよびon*イベント属性はタグごと除去される。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	SanitizeText(raw string) string

	// SanitizeDraft は論文ドラフトの全テキストフィールドをサニタイズした
	// コピーを返す。入力のドラフトは変更しない。
	SanitizeDraft(draft model.PaperDraft) model.PaperDraft
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicy（許可タグなし）を使用し、全てのHTMLを除去する。
func NewContentSanitizer() *contentSanitizer {
	return &contentSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// SanitizeText はテキストから全てのHTMLタグを除去して返す。
func (s *contentSanitizer) SanitizeText(raw string) string {
	return strings.TrimSpace(s.policy.Sanitize(raw))
}

// SanitizeDraft は論文ドラフトの全テキストフィールドをサニタイズしたコピーを返す。
func (s *contentSanitizer) SanitizeDraft(draft model.PaperDraft) model.PaperDraft {
	sanitized := draft
	sanitized.Title = s.SanitizeText(draft.Title)
	sanitized.Authors = s.SanitizeText(draft.Authors)
	sanitized.Abstract = s.SanitizeText(draft.Abstract)
	sanitized.Field = s.SanitizeText(draft.Field)
	sanitized.Journal = s.SanitizeText(draft.Journal)
	sanitized.DOI = s.SanitizeText(draft.DOI)

	if len(draft.Classifications) > 0 {
		sanitized.Classifications = make([]string, 0, len(draft.Classifications))
		for _, c := range draft.Classifications {
			if cleaned := s.SanitizeText(c); cleaned != "" {
				sanitized.Classifications = append(sanitized.Classifications, cleaned)
			}
		}
	}

	return sanitized
}

// compile-time interface check
var _ ContentSanitizerService = (*contentSanitizer)(nil)

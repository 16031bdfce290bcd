// Package model はドメインモデルを定義する。
package model

// PublicOption は公開論文のアクセス範囲を表す。
type PublicOption string

const (
	// PublicOptionWorkspace は特定ワークスペース内のみ公開。
	PublicOptionWorkspace PublicOption = "workspace"
	// PublicOptionSite はサイト内のみ公開。
	PublicOptionSite PublicOption = "site"
	// PublicOptionEveryone は全体公開。
	PublicOptionEveryone PublicOption = "everyone"
	// PublicOptionNone は非公開（isPublic=falseの場合）。
	PublicOptionNone PublicOption = ""
)

// ResearchPaper は研究論文を表す。
// IDはバックエンドが採番し、クライアント側では追加後にイミュータブルとして扱う。
type ResearchPaper struct {
	ID              string       `json:"id"`
	Title           string       `json:"title"`
	Authors         string       `json:"authors"`
	Abstract        string       `json:"abstract"`
	CoverImage      string       `json:"coverImage"`
	PublishedYear   int          `json:"publishedYear"`
	Field           string       `json:"field"`
	Classifications []string     `json:"classifications"`
	DOI             string       `json:"doi,omitempty"`
	Journal         string       `json:"journal,omitempty"`
	UserID          int64        `json:"userId,omitempty"`
	IsPublic        bool         `json:"isPublic"`
	PublicOption    PublicOption `json:"publicOption,omitempty"`
	WorkspaceSiteID int64        `json:"workspaceSiteID,omitempty"`
}

// PaperDraft はバックエンド採番前の論文入力データを表す。
// IDを持たない点以外はResearchPaperと同一のフィールドを持つ。
type PaperDraft struct {
	Title           string       `json:"title"`
	Authors         string       `json:"authors"`
	Abstract        string       `json:"abstract"`
	CoverImage      string       `json:"coverImage"`
	PublishedYear   int          `json:"publishedYear"`
	Field           string       `json:"field"`
	Classifications []string     `json:"classifications"`
	DOI             string       `json:"doi,omitempty"`
	Journal         string       `json:"journal,omitempty"`
	UserID          int64        `json:"userId"`
	IsPublic        bool         `json:"isPublic"`
	PublicOption    PublicOption `json:"publicOption,omitempty"`
	WorkspaceSiteID int64        `json:"workspaceSiteID,omitempty"`
}

// Facets はフィルタUI用の派生値リストを表す。
// 現在の論文リストから毎回再計算され、永続化されない。
type Facets struct {
	Fields          []string `json:"fields"`
	Classifications []string `json:"classifications"`
}

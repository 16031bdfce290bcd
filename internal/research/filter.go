// Package research は論文カタログのインメモリ状態とフィルタリングを提供する。
package research

import (
	"strings"

	"github.com/hitoshi/kuresearch/internal/model"
)

// FieldAll は分野フィルタの「すべて」を表す番兵値。
const FieldAll = "all"

// FilterState はカタログに適用するフィルタ条件を表す。
// ゼロ値はフィルタなし（全件一致）を意味する。
type FilterState struct {
	// Query はタイトル・著者・要旨に対する部分一致検索語。
	Query string
	// Field は分野の完全一致条件。空または"all"なら全分野に一致する。
	Field string
	// Classifications は選択された分類の集合。
	// 空なら全件一致、非空なら論文の分類と共通要素があれば一致する。
	Classifications []string
}

// FilterPapers はフィルタ条件に一致する論文のみを返す純粋関数。
// 3つの述語（検索語・分野・分類）のANDで評価し、入力の相対順序を保つ。
// 入力スライスは変更しない。
func FilterPapers(papers []model.ResearchPaper, filter FilterState) []model.ResearchPaper {
	query := strings.ToLower(strings.TrimSpace(filter.Query))

	result := make([]model.ResearchPaper, 0, len(papers))
	for _, paper := range papers {
		if !matchesQuery(paper, query) {
			continue
		}
		if !matchesField(paper, filter.Field) {
			continue
		}
		if !matchesClassifications(paper, filter.Classifications) {
			continue
		}
		result = append(result, paper)
	}

	return result
}

// matchesQuery はタイトル・著者・要旨のいずれかに検索語が含まれるかを返す。
// 大文字小文字は区別しない。
func matchesQuery(paper model.ResearchPaper, query string) bool {
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(paper.Title), query) ||
		strings.Contains(strings.ToLower(paper.Authors), query) ||
		strings.Contains(strings.ToLower(paper.Abstract), query)
}

// matchesField は分野の完全一致を判定する。
func matchesField(paper model.ResearchPaper, field string) bool {
	if field == "" || field == FieldAll {
		return true
	}
	return paper.Field == field
}

// matchesClassifications は選択された分類との共通要素の有無を判定する。
func matchesClassifications(paper model.ResearchPaper, selected []string) bool {
	if len(selected) == 0 {
		return true
	}
	for _, want := range selected {
		for _, have := range paper.Classifications {
			if want == have {
				return true
			}
		}
	}
	return false
}

// ComputeFacets は論文リストから分野と分類の一覧を導出する。
// 重複を除き、初出順を保つ。
func ComputeFacets(papers []model.ResearchPaper) model.Facets {
	facets := model.Facets{
		Fields:          []string{},
		Classifications: []string{},
	}

	seenFields := map[string]bool{}
	seenClassifications := map[string]bool{}

	for _, paper := range papers {
		if paper.Field != "" && !seenFields[paper.Field] {
			seenFields[paper.Field] = true
			facets.Fields = append(facets.Fields, paper.Field)
		}
		for _, c := range paper.Classifications {
			if c != "" && !seenClassifications[c] {
				seenClassifications[c] = true
				facets.Classifications = append(facets.Classifications, c)
			}
		}
	}

	return facets
}

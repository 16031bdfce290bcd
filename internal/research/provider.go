package research

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hitoshi/kuresearch/internal/model"
	"github.com/hitoshi/kuresearch/internal/repository"
)

// CatalogBackend はカタログ操作に必要なバックエンドAPIのインターフェース。
// backend.Clientの部分集合として定義する。
type CatalogBackend interface {
	// GetResearch は指定ユーザーが閲覧可能な論文一覧を取得する。
	GetResearch(ctx context.Context, userID int64) ([]model.ResearchPaper, error)
	// AddPaper は論文ドラフトを登録し、採番済みの論文を返す。
	AddPaper(ctx context.Context, draft model.PaperDraft) (*model.ResearchPaper, error)
}

// userState はユーザーごとのカタログ状態を保持する。
// 全フィールドはmuで保護される。
type userState struct {
	mu     sync.Mutex
	papers []model.ResearchPaper
	facets model.Facets
	loaded bool

	// nextGen はロード開始ごとに増える世代番号。
	// appliedGen は最後に反映されたロードの世代番号で、
	// これより古い世代の結果は反映せずに破棄する。
	nextGen    uint64
	appliedGen uint64
}

// Provider はユーザーごとの論文カタログのインメモリ状態を管理する。
// カタログの正本はバックエンドで、ここはリクエスト間の作業コピーにすぎない。
// お気に入りのみFavoriteRepositoryで永続化する。
type Provider struct {
	backend   CatalogBackend
	favorites repository.FavoriteRepository
	logger    *slog.Logger

	mu     sync.Mutex
	states map[int64]*userState
}

// NewProvider はProviderを生成する。
func NewProvider(backendClient CatalogBackend, favorites repository.FavoriteRepository, logger *slog.Logger) *Provider {
	return &Provider{
		backend:   backendClient,
		favorites: favorites,
		logger:    logger,
		states:    map[int64]*userState{},
	}
}

// state はユーザーの状態を返す。未作成なら空の状態を作る。
func (p *Provider) state(userID int64) *userState {
	p.mu.Lock()
	defer p.mu.Unlock()

	st, ok := p.states[userID]
	if !ok {
		st = &userState{
			papers: []model.ResearchPaper{},
			facets: model.Facets{Fields: []string{}, Classifications: []string{}},
		}
		p.states[userID] = st
	}
	return st
}

// Load はバックエンドから論文一覧を取得し、カタログを丸ごと置き換える。
// 取得失敗時は既存の状態に一切触れず、FETCH_FAILEDを返す。
// 同一ユーザーのロードが並行した場合、古い世代の結果は破棄される。
func (p *Provider) Load(ctx context.Context, userID int64) error {
	st := p.state(userID)

	st.mu.Lock()
	st.nextGen++
	gen := st.nextGen
	st.mu.Unlock()

	// バックエンド呼び出し中はロックを保持しない
	papers, err := p.backend.GetResearch(ctx, userID)
	if err != nil {
		return model.NewFetchFailedError(err.Error())
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if gen <= st.appliedGen {
		// より新しいロードが既に反映済み
		p.logger.Debug("discarding stale catalog load",
			slog.Int64("user_id", userID),
			slog.Uint64("generation", gen),
		)
		return nil
	}

	st.papers = papers
	st.facets = ComputeFacets(papers)
	st.loaded = true
	st.appliedGen = gen

	p.logger.Info("catalog loaded",
		slog.Int64("user_id", userID),
		slog.Int("papers", len(papers)),
	)

	return nil
}

// EnsureLoaded は未ロードのユーザーに対してのみLoadを実行する。
func (p *Provider) EnsureLoaded(ctx context.Context, userID int64) error {
	st := p.state(userID)

	st.mu.Lock()
	loaded := st.loaded
	st.mu.Unlock()

	if loaded {
		return nil
	}
	return p.Load(ctx, userID)
}

// Papers はフィルタ適用後の論文一覧のコピーを返す。
func (p *Provider) Papers(userID int64, filter FilterState) []model.ResearchPaper {
	st := p.state(userID)

	st.mu.Lock()
	snapshot := make([]model.ResearchPaper, len(st.papers))
	copy(snapshot, st.papers)
	st.mu.Unlock()

	return FilterPapers(snapshot, filter)
}

// Facets は現在のカタログから導出した分野・分類一覧を返す。
func (p *Provider) Facets(userID int64) model.Facets {
	st := p.state(userID)

	st.mu.Lock()
	defer st.mu.Unlock()

	facets := model.Facets{
		Fields:          append([]string{}, st.facets.Fields...),
		Classifications: append([]string{}, st.facets.Classifications...),
	}
	return facets
}

// Add は論文ドラフトをバックエンドに登録し、成功時のみカタログ末尾に追加する。
// 登録失敗時はカタログに一切触れず、SUBMIT_FAILEDを返す。
// 追加された論文の分野・分類はファセットに合流する。
func (p *Provider) Add(ctx context.Context, draft model.PaperDraft) (*model.ResearchPaper, error) {
	paper, err := p.backend.AddPaper(ctx, draft)
	if err != nil {
		return nil, model.NewSubmitFailedError(err.Error())
	}

	st := p.state(draft.UserID)
	st.mu.Lock()
	defer st.mu.Unlock()

	st.papers = append(st.papers, *paper)
	st.facets = mergeFacets(st.facets, *paper)

	p.logger.Info("paper added to catalog",
		slog.Int64("user_id", draft.UserID),
		slog.String("paper_id", paper.ID),
	)

	return paper, nil
}

// ToggleFavorite はお気に入りを反転し、反転後の状態を返す。
// 論文本体の存在は確認しない。カタログから消えた論文のIDも
// そのまま反転でき、残ったお気に入りは無害として扱う。
func (p *Provider) ToggleFavorite(ctx context.Context, userID int64, paperID string) (bool, error) {
	return p.favorites.Toggle(ctx, userID, paperID)
}

// Favorites はユーザーのお気に入り論文IDを返す。
func (p *Provider) Favorites(ctx context.Context, userID int64) ([]string, error) {
	return p.favorites.ListByUserID(ctx, userID)
}

// mergeFacets は追加された論文の分野・分類を既存ファセットに合流させる。
// 既出の値は追加しない。
func mergeFacets(facets model.Facets, paper model.ResearchPaper) model.Facets {
	if paper.Field != "" && !contains(facets.Fields, paper.Field) {
		facets.Fields = append(facets.Fields, paper.Field)
	}
	for _, c := range paper.Classifications {
		if c != "" && !contains(facets.Classifications, c) {
			facets.Classifications = append(facets.Classifications, c)
		}
	}
	return facets
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}

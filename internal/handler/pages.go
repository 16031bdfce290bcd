package handler

import (
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/kuresearch/internal/middleware"
)

// PageHandler はサーバーレンダリングされるページのHTTPハンドラー。
// サインインページ以外のページはセッションミドルウェアでゲートされる。
type PageHandler struct {
	sessions middleware.SessionFinder
	sign     *template.Template
	home     *template.Template
	addPaper *template.Template
}

// NewPageHandler はPageHandlerを生成する。
func NewPageHandler(sessions middleware.SessionFinder) *PageHandler {
	return &PageHandler{
		sessions: sessions,
		sign:     template.Must(template.New("sign").Parse(signPageHTML)),
		home:     template.Must(template.New("home").Parse(homePageHTML)),
		addPaper: template.Must(template.New("add").Parse(addPaperPageHTML)),
	}
}

// Root は認証状態に応じてホームまたはサインインページへリダイレクトする。
// GET /
func (h *PageHandler) Root(w http.ResponseWriter, r *http.Request) {
	if h.authenticated(r) {
		http.Redirect(w, r, "/home", http.StatusFound)
		return
	}
	http.Redirect(w, r, "/sign", http.StatusFound)
}

// Sign はサインインページを表示する。認証済みのユーザーはホームへ戻す。
// GET /sign?error=xxx
func (h *PageHandler) Sign(w http.ResponseWriter, r *http.Request) {
	if h.authenticated(r) {
		http.Redirect(w, r, "/home", http.StatusFound)
		return
	}
	data := map[string]string{
		"ErrorReason": r.URL.Query().Get("error"),
	}
	h.render(w, h.sign, data)
}

// authenticated はリクエストが有効なセッションCookieを持つかを返す。
func (h *PageHandler) authenticated(r *http.Request) bool {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err != nil || cookie.Value == "" {
		return false
	}
	session, err := h.sessions.FindByID(r.Context(), cookie.Value)
	return err == nil && session != nil && session.IsValid(time.Now())
}

// Home はホームページ（論文カタログ）を表示する。
// GET /home
func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	h.render(w, h.home, nil)
}

// AddPaper は論文登録フォームページを表示する。
// GET /home/add-research
func (h *PageHandler) AddPaper(w http.ResponseWriter, r *http.Request) {
	h.render(w, h.addPaper, nil)
}

func (h *PageHandler) render(w http.ResponseWriter, tmpl *template.Template, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, data); err != nil {
		slog.Error("failed to render page", slog.String("error", err.Error()))
	}
}

const signPageHTML = `<!DOCTYPE html>
<html lang="ja">
<head>
<meta charset="utf-8">
<title>KuResearch - サインイン</title>
</head>
<body>
<main>
<h1>KuResearch</h1>
{{if eq .ErrorReason "account_not_found"}}
<p class="error">お使いのGoogleアカウントが見つかりませんでした。登録済みのアカウントでサインインしてください。</p>
{{else if eq .ErrorReason "auth_failed"}}
<p class="error">ログインに失敗しました。再度お試しください。</p>
{{end}}
<a href="/auth/google/login">Googleでサインイン</a>
</main>
</body>
</html>
`

const homePageHTML = `<!DOCTYPE html>
<html lang="ja">
<head>
<meta charset="utf-8">
<title>KuResearch - ホーム</title>
</head>
<body>
<main>
<h1>論文カタログ</h1>
<div id="app" data-page="home"></div>
<a href="/home/add-research">論文を登録する</a>
</main>
</body>
</html>
`

const addPaperPageHTML = `<!DOCTYPE html>
<html lang="ja">
<head>
<meta charset="utf-8">
<title>KuResearch - 論文登録</title>
</head>
<body>
<main>
<h1>論文登録</h1>
<div id="app" data-page="add-research"></div>
<a href="/home">ホームへ戻る</a>
</main>
</body>
</html>
`

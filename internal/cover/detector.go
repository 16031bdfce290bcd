// Package cover は論文の掲載ページからカバー画像URLを検出する機能を提供する。
package cover

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/hitoshi/kuresearch/internal/model"
)

// SSRFValidator はSSRF検証のインターフェース。
// security.SSRFGuardServiceを抽象化してテスタビリティを向上させる。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration) *http.Client
}

// Detector は掲載ページのカバー画像自動検出機能を提供する。
type Detector struct {
	ssrfGuard SSRFValidator
	timeout   time.Duration
}

// NewDetector はDetectorの新しいインスタンスを生成する。
func NewDetector(ssrfGuard SSRFValidator, timeout time.Duration) *Detector {
	return &Detector{
		ssrfGuard: ssrfGuard,
		timeout:   timeout,
	}
}

// coverMetaNames は優先順にカバー画像として認識するmetaタグの名前。
var coverMetaNames = []string{
	"og:image",
	"og:image:url",
	"twitter:image",
	"twitter:image:src",
}

// maxBodySize はレスポンスボディの読み取り上限（5MB）。
const maxBodySize = 5 * 1024 * 1024

// DetectCoverURL はURLが画像かHTMLかを判定し、カバー画像URLを返す。
// 1. SSRF検証を実行
// 2. URLにHTTPリクエストを送信
// 3. レスポンスが画像ならそのURL自身を返す
// 4. HTMLの場合はmetaタグ（og:image / twitter:image）から画像URLを検出
// 5. 画像未検出の場合はエラー（原因カテゴリ + 対処方法）を返す
func (d *Detector) DetectCoverURL(ctx context.Context, inputURL string) (string, error) {
	if inputURL == "" {
		return "", model.NewInvalidURLError("URLが入力されていません")
	}

	// SSRF検証（INVALID_URL / SSRF_BLOCKEDをそのまま返す）
	if d.ssrfGuard != nil {
		if err := d.ssrfGuard.ValidateURL(inputURL); err != nil {
			return "", err
		}
	}

	client := d.getHTTPClient()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, inputURL, nil)
	if err != nil {
		return "", model.NewInvalidURLError(err.Error())
	}
	req.Header.Set("User-Agent", "KuResearch/1.0 Cover Detector")
	req.Header.Set("Accept", "text/html, image/*, */*")

	resp, err := client.Do(req)
	if err != nil {
		return "", model.NewFetchFailedError(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", model.NewFetchFailedError(fmt.Sprintf("ページの取得に失敗: status %d", resp.StatusCode))
	}

	contentType := resp.Header.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.Split(contentType, ";")[0])
	}
	mediaType = strings.ToLower(mediaType)

	// 画像URLが直接指定された場合はそのまま採用する
	if strings.HasPrefix(mediaType, "image/") {
		return inputURL, nil
	}

	if !strings.Contains(mediaType, "html") {
		return "", model.NewCoverNotFoundError(inputURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", model.NewFetchFailedError(fmt.Sprintf("レスポンスの読み取りに失敗: %v", err))
	}

	coverURL := d.ParseCoverFromHTML(body, inputURL)
	if coverURL == "" {
		return "", model.NewCoverNotFoundError(inputURL)
	}

	return coverURL, nil
}

// ParseCoverFromHTML はHTMLのmetaタグからカバー画像URLを解析・検出する。
// og:image系を優先し、見つからなければtwitter:image系にフォールバックする。
// 相対URLはbaseURLを基準に絶対URLに解決される。
func (d *Detector) ParseCoverFromHTML(htmlBody []byte, baseURL string) string {
	baseU, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}

	// metaName → content のマップを構築し、優先順で選択する
	found := map[string]string{}

	tokenizer := html.NewTokenizer(bytes.NewReader(htmlBody))
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return selectCover(found, baseU)

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			tagName := string(tn)

			if tagName == "body" {
				// og:image系metaはheadに置かれるため、bodyに入ったら解析を終了
				return selectCover(found, baseU)
			}

			if tagName != "meta" || !hasAttr {
				continue
			}

			// meta要素の属性を解析
			var property, name, content string
			for {
				key, val, more := tokenizer.TagAttr()
				k := strings.ToLower(string(key))
				v := string(val)
				switch k {
				case "property":
					property = strings.ToLower(v)
				case "name":
					name = strings.ToLower(v)
				case "content":
					content = v
				}
				if !more {
					break
				}
			}

			if content == "" {
				continue
			}

			// og:系はproperty属性、twitter:系はname属性で指定されることが多いが、
			// 実際のページでは混在するため両方を受け入れる
			metaName := property
			if metaName == "" {
				metaName = name
			}
			if isCoverMetaName(metaName) {
				if _, ok := found[metaName]; !ok {
					found[metaName] = content
				}
			}
		}
	}
}

// isCoverMetaName はカバー画像として認識するmetaタグ名かを返す。
func isCoverMetaName(name string) bool {
	for _, want := range coverMetaNames {
		if name == want {
			return true
		}
	}
	return false
}

// selectCover は検出済みのmetaタグから優先順位に従って画像URLを選択する。
func selectCover(found map[string]string, base *url.URL) string {
	for _, name := range coverMetaNames {
		if content, ok := found[name]; ok {
			if resolved := resolveURL(base, content); resolved != "" {
				return resolved
			}
		}
	}
	return ""
}

// resolveURL は相対URLをベースURLを基準に絶対URLに解決する。
func resolveURL(base *url.URL, rawRef string) string {
	ref, err := url.Parse(rawRef)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return resolved.String()
}

// getHTTPClient はHTTPクライアントを取得する。
// SSRFGuardが設定されている場合はSSRF防止付きクライアントを返す。
func (d *Detector) getHTTPClient() *http.Client {
	if d.ssrfGuard != nil {
		return d.ssrfGuard.NewSafeClient(d.timeout)
	}
	return &http.Client{Timeout: d.timeout}
}

package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"fontguard/pkg/types"
)

const (
	DefaultCSSEndpoint = "https://fonts.googleapis.com/css2"
	// 不带浏览器 UA 时 Google Fonts 返回 TTF 而不是 WOFF2
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	// 单个字体文件的大小上限
	DefaultMaxSize = 10 << 20
)

var (
	// 优先选择 latin 子集；没有子集注释时退回第一个 woff2 链接
	latinURLPattern = regexp.MustCompile(`/\*\s*latin\s*\*/\s*@font-face\s*\{[^}]*?url\(\s*['"]?(https?://[^)'"\s]+\.woff2)['"]?\s*\)`)
	anyURLPattern   = regexp.MustCompile(`url\(\s*['"]?(https?://[^)'"\s]+\.woff2)['"]?\s*\)`)
)

// Options 配置 GoogleFonts
type Options struct {
	Client      *http.Client
	CSSEndpoint string
	UserAgent   string
	MaxSize     int64
}

// GoogleFonts 通过 Google Fonts CSS2 API 获取 WOFF2 字体
// 流程：请求 CSS -> 提取 woff2 URL -> 下载
type GoogleFonts struct {
	client      *http.Client
	cssEndpoint string
	userAgent   string
	maxSize     int64
}

var (
	_ Fetcher    = (*GoogleFonts)(nil)
	_ Resolver   = (*GoogleFonts)(nil)
	_ Downloader = (*GoogleFonts)(nil)
)

func NewGoogleFonts(opts Options) *GoogleFonts {
	g := &GoogleFonts{
		client:      opts.Client,
		cssEndpoint: opts.CSSEndpoint,
		userAgent:   opts.UserAgent,
		maxSize:     opts.MaxSize,
	}
	if g.client == nil {
		// 单次请求的超时由调用方的 ctx 控制，这里只是兜底
		g.client = &http.Client{Timeout: 2 * time.Minute}
	}
	if g.cssEndpoint == "" {
		g.cssEndpoint = DefaultCSSEndpoint
	}
	if g.userAgent == "" {
		g.userAgent = DefaultUserAgent
	}
	if g.maxSize <= 0 {
		g.maxSize = DefaultMaxSize
	}
	return g
}

// Fetch 解析并下载一个资产
func (g *GoogleFonts) Fetch(ctx context.Context, id types.AssetID) ([]byte, error) {
	return Chain(g, g).Fetch(ctx, id)
}

// CSSURL 返回某个资产对应的 CSS 请求地址
// Example: {"Roboto Slab", "700"} -> ".../css2?display=swap&family=Roboto+Slab%3Awght%40700"
func (g *GoogleFonts) CSSURL(id types.AssetID) string {
	family := strings.ReplaceAll(strings.TrimSpace(id.Family), "+", " ")
	q := url.Values{}
	q.Set("family", family+":wght@"+strings.TrimSpace(id.Weight))
	q.Set("display", "swap")
	return g.cssEndpoint + "?" + q.Encode()
}

// Resolve 请求 CSS 并提取 woff2 链接
func (g *GoogleFonts) Resolve(ctx context.Context, id types.AssetID) (string, error) {
	css, err := g.get(ctx, g.CSSURL(id), "text/css,*/*;q=0.1")
	if err != nil {
		return "", fmt.Errorf("%w: %s: css request: %w", ErrFetch, id, err)
	}
	u, ok := ExtractFontURL(string(css))
	if !ok {
		return "", fmt.Errorf("%w: %s: no woff2 url in css", ErrFetch, id)
	}
	return u, nil
}

// Download 下载字体文件本体
func (g *GoogleFonts) Download(ctx context.Context, u string) ([]byte, error) {
	data, err := g.get(ctx, u, "font/woff2,*/*;q=0.1")
	if err != nil {
		return nil, fmt.Errorf("%w: download: %w", ErrFetch, err)
	}
	return data, nil
}

func (g *GoogleFonts) get(ctx context.Context, u, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", g.userAgent)
	req.Header.Set("Accept", accept)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// 读掉剩余 body 以便复用连接
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, &HTTPError{URL: u, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, g.maxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > g.maxSize {
		return nil, fmt.Errorf("response from %s exceeds %d bytes", u, g.maxSize)
	}
	return data, nil
}

// ExtractFontURL 从 CSS 中提取 woff2 链接
func ExtractFontURL(css string) (string, bool) {
	if m := latinURLPattern.FindStringSubmatch(css); m != nil {
		return m[1], true
	}
	if m := anyURLPattern.FindStringSubmatch(css); m != nil {
		return m[1], true
	}
	return "", false
}

package mediawiki

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/jinford/wiki-keepalive/internal/module/keepalive/domain"
)

const (
	defaultScheme    = "https"
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "wiki-keepalive/1.0 (MediaWiki keep-alive bot)"
)

// Client はMediaWiki Action APIへのセッションを作成します
type Client struct {
	scheme    string
	timeout   time.Duration
	userAgent string
	transport http.RoundTripper
	logger    *slog.Logger
}

// Option は Client のオプション
type Option func(*Client)

// WithScheme はURLスキーム（https / http）を指定する
func WithScheme(scheme string) Option {
	return func(c *Client) {
		if scheme != "" {
			c.scheme = scheme
		}
	}
}

// WithTimeout はHTTPリクエストのタイムアウトを指定する
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithUserAgent はUser-Agentヘッダーを指定する
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		if userAgent != "" {
			c.userAgent = userAgent
		}
	}
}

// WithTransport はHTTPトランスポートを差し替える
func WithTransport(transport http.RoundTripper) Option {
	return func(c *Client) {
		c.transport = transport
	}
}

// WithLogger はロガーを差し替える
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient は新しいClientを作成します
func NewClient(opts ...Option) *Client {
	c := &Client{
		scheme:    defaultScheme,
		timeout:   defaultTimeout,
		userAgent: defaultUserAgent,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint はホストとパスから api.php のURLを組み立てます
func Endpoint(scheme, host, path string) string {
	path = strings.TrimSpace(path)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	return fmt.Sprintf("%s://%s%sapi.php", scheme, host, path)
}

// Authenticate はログインしてセッションを返します
//
// セッションごとに独立したCookie Jarを持ち、他のセッションと共有しません。
func (c *Client) Authenticate(ctx context.Context, host, path string, creds domain.Credentials) (domain.Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	s := &Session{
		endpoint:  Endpoint(c.scheme, host, path),
		userAgent: c.userAgent,
		http: &http.Client{
			Timeout:   c.timeout,
			Jar:       jar,
			Transport: c.transport,
		},
	}

	if err := s.login(ctx, creds); err != nil {
		return nil, err
	}

	c.logger.Debug("MediaWikiにログインしました", "endpoint", s.endpoint, "user", creds.Username)
	return s, nil
}

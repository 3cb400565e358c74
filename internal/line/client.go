package line

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/uma-arai/sbcntr-pickup/internal/retry"
)

const (
	DefaultAPIBaseURL = "https://api.line.me"

	// MaxMulticastRecipients はマルチキャスト1回あたりの送信先の上限です
	MaxMulticastRecipients = 500
	// MaxMessagesPerRequest は1リクエストで送信できるメッセージ数の上限です
	MaxMessagesPerRequest = 5
)

// ErrNotConfigured はチャネルアクセストークンが設定されていない場合に返します
var ErrNotConfigured = errors.New("line channel access token is not configured")

// APIError はMessaging APIがエラーレスポンスを返した場合のエラーです
type APIError struct {
	StatusCode int
	Message    string `json:"message"`
	Details    []struct {
		Message  string `json:"message"`
		Property string `json:"property"`
	} `json:"details"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("line api error: status=%d message=%s", e.StatusCode, e.Message)
}

// Retryable は再試行で回復しうるエラーかどうかを判定します
// 5xxと429、ネットワークエラーは再試行し、それ以外の4xxや認証エラーは再試行しません
func Retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500 || apiErr.StatusCode == http.StatusTooManyRequests
	}
	if errors.Is(err, ErrNotConfigured) {
		return false
	}
	return retry.IsNetworkError(err)
}

// StatusCode はエラーに含まれるHTTPステータスコードを返します
func StatusCode(err error) (int, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode, true
	}
	return 0, false
}

// Client はMessaging APIのクライアントです
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

type ClientOption func(*Client)

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTracing はHTTPリクエストをX-Rayでトレースします
func WithTracing() ClientOption {
	return func(c *Client) {
		c.httpClient = xray.Client(c.httpClient)
	}
}

func NewClient(baseURL, channelAccessToken string, timeout time.Duration, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIBaseURL
	}
	c := &Client{
		baseURL:    baseURL,
		token:      channelAccessToken,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type pushRequest struct {
	To       string    `json:"to"`
	Messages []Message `json:"messages"`
}

type multicastRequest struct {
	To       []string  `json:"to"`
	Messages []Message `json:"messages"`
}

// PushMessage は1ユーザーにメッセージを送信します
// retryKeyを指定すると、同じキーでの再送はLINE側で重複排除されます
func (c *Client) PushMessage(ctx context.Context, retryKey string, to string, messages ...Message) error {
	if to == "" {
		return &APIError{StatusCode: http.StatusBadRequest, Message: "recipient is empty"}
	}
	return c.post(ctx, "/v2/bot/message/push", retryKey, pushRequest{To: to, Messages: messages})
}

// Multicast は複数ユーザーに同じメッセージを送信します
func (c *Client) Multicast(ctx context.Context, retryKey string, to []string, messages ...Message) error {
	if len(to) == 0 || len(to) > MaxMulticastRecipients {
		return &APIError{
			StatusCode: http.StatusBadRequest,
			Message:    fmt.Sprintf("recipients must be between 1 and %d, got %d", MaxMulticastRecipients, len(to)),
		}
	}
	return c.post(ctx, "/v2/bot/message/multicast", retryKey, multicastRequest{To: to, Messages: messages})
}

func (c *Client) post(ctx context.Context, path, retryKey string, payload any) error {
	if c.token == "" {
		return ErrNotConfigured
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal line request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create line request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	if retryKey != "" {
		req.Header.Set("X-Line-Retry-Key", retryKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call line api: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	// 409は同じリトライキーで既に受理済みのため成功として扱う
	if resp.StatusCode/100 == 2 || (resp.StatusCode == http.StatusConflict && retryKey != "") {
		return nil
	}

	apiErr := &APIError{StatusCode: resp.StatusCode}
	if err := json.Unmarshal(respBody, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

package internal

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

const (
	conversationsPath = "/api/admin/conversations"
	conversationPath  = "/api/admin/conversations/{id}"
	messagesPath      = "/api/admin/conversations/{id}/messages"
	healthPath        = "/api/health"
)

// ListOptions filters and paginates the admin conversation list
type ListOptions struct {
	Page     int
	PageSize int
	Query    string
	UserID   string
}

// Client talks to the conversation admin API
type Client struct {
	http    *resty.Client
	baseURL string
	hasKey  bool
}

var _ ConversationFetcher = (*Client)(nil)

// NewClient builds a client from the console configuration
func NewClient(cfg *Config) *Client {
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.APIBaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		httpClient.SetAuthToken(cfg.APIKey)
	}
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		req.SetHeader("X-Request-ID", uuid.NewString())
		return nil
	})

	return &Client{
		http:    httpClient,
		baseURL: cfg.APIBaseURL,
		hasKey:  cfg.APIKey != "",
	}
}

// BaseURL returns the API base URL the client was configured with
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListConversations fetches one page of the conversation list
func (c *Client) ListConversations(ctx context.Context, opts ListOptions) (*ConversationList, error) {
	if !c.hasKey {
		return nil, ErrMissingAPIKey
	}
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PageSize < 1 {
		opts.PageSize = DefaultPageSize
	}

	req := c.http.R().
		SetContext(ctx).
		SetQueryParam("page", strconv.Itoa(opts.Page)).
		SetQueryParam("page_size", strconv.Itoa(opts.PageSize))
	if opts.Query != "" {
		req.SetQueryParam("q", opts.Query)
	}
	if opts.UserID != "" {
		req.SetQueryParam("user_id", opts.UserID)
	}

	resp, err := req.Get(conversationsPath)
	if err := checkResponse("list", resp, err); err != nil {
		return nil, err
	}
	list, err := ParseConversationList("list", resp.Body())
	if err != nil {
		return nil, err
	}
	if list.Page == 0 {
		list.Page = opts.Page
	}
	if list.PageSize == 0 {
		list.PageSize = opts.PageSize
	}
	return list, nil
}

// GetConversation fetches a conversation with its first page of messages
func (c *Client) GetConversation(ctx context.Context, conversationID string, pageSize int) (*ConversationDetail, error) {
	if !c.hasKey {
		return nil, ErrMissingAPIKey
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", conversationID).
		SetQueryParam("page", "1").
		SetQueryParam("page_size", strconv.Itoa(pageSize)).
		Get(conversationPath)
	if err := checkResponse("detail", resp, err); err != nil {
		return nil, err
	}
	return ParseConversationDetail("detail", resp.Body())
}

// FetchMessagePage fetches one page of a conversation's messages
func (c *Client) FetchMessagePage(ctx context.Context, conversationID string, page, pageSize int) (*MessagePage, error) {
	if !c.hasKey {
		return nil, ErrMissingAPIKey
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", conversationID).
		SetQueryParam("page", strconv.Itoa(page)).
		SetQueryParam("page_size", strconv.Itoa(pageSize)).
		Get(messagesPath)
	if err := checkResponse("page", resp, err); err != nil {
		return nil, err
	}
	return ParseMessagePage("page", resp.Body())
}

// DeleteConversation removes a conversation (moderation)
func (c *Client) DeleteConversation(ctx context.Context, conversationID string) error {
	if !c.hasKey {
		return ErrMissingAPIKey
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", conversationID).
		Delete(conversationPath)
	return checkResponse("delete", resp, err)
}

// Ping checks that the backend is reachable
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get(healthPath)
	return checkResponse("ping", resp, err)
}

func checkResponse(op string, resp *resty.Response, err error) error {
	if err != nil {
		return &APIError{Op: op, Err: err}
	}
	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return &APIError{Op: op, Status: resp.StatusCode(), Err: ErrNotFound}
	case resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden:
		return &APIError{Op: op, Status: resp.StatusCode(), Body: "check the configured api key"}
	case resp.IsError():
		return &APIError{Op: op, Status: resp.StatusCode(), Body: truncate(resp.String(), 200)}
	}
	LogDebug("%s %s -> %d in %s", resp.Request.Method, resp.Request.URL, resp.StatusCode(), resp.Time())
	return nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

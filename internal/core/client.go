package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/codingsoft/community-hub/internal/auth"
	"github.com/codingsoft/community-hub/internal/store"
)

// Client is the typed gateway the host application calls instead of talking
// to the hub directly. Every method reads the stored connection key, attaches
// it as a bearer token, and normalizes the outcome into a response struct
// whose Success/Error pair mirrors the wire envelope. Transport and parse
// failures never escape as errors; they surface as Success=false.
type Client struct {
	baseURL  string
	settings SettingsStore
	http     *http.Client
	demoMode bool
}

// NewClient builds a gateway for the hub at baseURL. Demo mode is an
// explicit construction choice, not ambient process state, so concurrent
// tests cannot contaminate each other.
func NewClient(baseURL string, settings SettingsStore, httpClient *http.Client, demoMode bool) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: baseURL, settings: settings, http: httpClient, demoMode: demoMode}
}

// ItemGroup mirrors one type bucket of the explore response.
type ItemGroup struct {
	Items      []store.Item `json:"items"`
	HasMore    bool         `json:"hasMore"`
	TotalCount int          `json:"totalCount"`
}

type SettingsResponse struct {
	Success       bool   `json:"success"`
	ConnectionKey string `json:"connectionKey"`
	Error         string `json:"error,omitempty"`
}

type ExploreResponse struct {
	Success bool                 `json:"success"`
	Groups  map[string]ItemGroup `json:"groups"`
	Error   string               `json:"error,omitempty"`
}

type PullResponse struct {
	Success bool        `json:"success"`
	Item    *store.Item `json:"item"`
	URL     string      `json:"url,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type CreateResponse struct {
	Success bool        `json:"success"`
	Item    *store.Item `json:"item"`
	Error   string      `json:"error,omitempty"`
}

type VoteResponse struct {
	Success  bool        `json:"success"`
	Item     *store.Item `json:"item"`
	UserVote int         `json:"userVote"`
	Error    string      `json:"error,omitempty"`
}

type UserVoteResponse struct {
	Success  bool   `json:"success"`
	UserVote int    `json:"userVote"`
	Error    string `json:"error,omitempty"`
}

type AuthResponse struct {
	Success bool       `json:"success"`
	Valid   bool       `json:"valid"`
	User    *auth.User `json:"user,omitempty"`
	Error   string     `json:"error,omitempty"`
}

type UserItemsResponse struct {
	Success     bool                 `json:"success"`
	CreatedByMe map[string]ItemGroup `json:"createdByMe"`
	TeamItems   []store.Item         `json:"teamItems"`
	Error       string               `json:"error,omitempty"`
}

// GetSettings reports the currently stored connection key.
func (c *Client) GetSettings() SettingsResponse {
	key, err := c.settings.ConnectionKey()
	if err != nil {
		return SettingsResponse{Success: false, Error: err.Error()}
	}
	return SettingsResponse{Success: true, ConnectionKey: key}
}

// UpdateSettings saves a new connection key.
func (c *Client) UpdateSettings(connectionKey string) SettingsResponse {
	if err := c.settings.SetConnectionKey(connectionKey); err != nil {
		return SettingsResponse{Success: false, Error: err.Error()}
	}
	return SettingsResponse{Success: true, ConnectionKey: connectionKey}
}

// Disconnect clears the stored connection key.
func (c *Client) Disconnect() SettingsResponse {
	if err := c.settings.SetConnectionKey(""); err != nil {
		return SettingsResponse{Success: false, Error: err.Error()}
	}
	return SettingsResponse{Success: true}
}

// connectionKey resolves the bearer token for outgoing requests. In demo
// mode the well-known demo key stands in when nothing is stored.
func (c *Client) connectionKey() string {
	key, err := c.settings.ConnectionKey()
	if err != nil || key == "" {
		if c.demoMode {
			return auth.DemoKey
		}
		return ""
	}
	return key
}

// do performs one hub request and decodes the body into out. A non-2xx
// status is not an error here; the decoded envelope carries the failure.
func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reqBody *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key := c.connectionKey(); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("hub request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode hub response: %w", err)
	}
	return nil
}

// wireError is the error field shared by every hub response body.
type wireError struct {
	Error *string `json:"error"`
}

func (w wireError) message() string {
	if w.Error == nil {
		return ""
	}
	return *w.Error
}

// Explore lists the public catalog grouped by type.
func (c *Client) Explore(ctx context.Context) ExploreResponse {
	var wire struct {
		wireError
		SystemPrompts *ItemGroup `json:"systemprompts"`
		SlashCommands *ItemGroup `json:"slashcommands"`
		AgentSkills   *ItemGroup `json:"agentskills"`
		AgentFlows    *ItemGroup `json:"agentflows"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/explore", nil, &wire); err != nil {
		return ExploreResponse{Success: false, Error: err.Error()}
	}
	if msg := wire.message(); msg != "" {
		return ExploreResponse{Success: false, Error: msg}
	}
	groups := map[string]ItemGroup{}
	for key, g := range map[string]*ItemGroup{
		store.PluralTypeKey(store.TypeSystemPrompt): wire.SystemPrompts,
		store.PluralTypeKey(store.TypeSlashCommand): wire.SlashCommands,
		store.PluralTypeKey(store.TypeAgentSkill):   wire.AgentSkills,
		store.PluralTypeKey(store.TypeAgentFlow):    wire.AgentFlows,
	} {
		if g != nil {
			groups[key] = *g
		}
	}
	return ExploreResponse{Success: true, Groups: groups}
}

// PullItem fetches one item by (itemType, id).
func (c *Client) PullItem(ctx context.Context, itemType, id string) PullResponse {
	var wire struct {
		wireError
		Item *store.Item `json:"item"`
		URL  *string     `json:"url"`
	}
	path := fmt.Sprintf("/v1/%s/%s/pull", itemType, id)
	if err := c.do(ctx, http.MethodGet, path, nil, &wire); err != nil {
		return PullResponse{Success: false, Error: err.Error()}
	}
	if msg := wire.message(); msg != "" || wire.Item == nil {
		if msg == "" {
			msg = "hub returned no item"
		}
		return PullResponse{Success: false, Error: msg}
	}
	resp := PullResponse{Success: true, Item: wire.Item}
	if wire.URL != nil {
		resp.URL = *wire.URL
	}
	return resp
}

// ValidateKey asks the hub whether a connection key is valid.
func (c *Client) ValidateKey(ctx context.Context, connectionKey string) AuthResponse {
	var wire struct {
		wireError
		Valid bool       `json:"valid"`
		User  *auth.User `json:"user"`
	}
	body := map[string]string{"connectionKey": connectionKey}
	if err := c.do(ctx, http.MethodPost, "/v1/auth", body, &wire); err != nil {
		return AuthResponse{Success: false, Error: err.Error()}
	}
	return AuthResponse{Success: true, Valid: wire.Valid, User: wire.User, Error: wire.message()}
}

// CreateItem publishes a new item to the hub.
func (c *Client) CreateItem(ctx context.Context, itemType string, patch store.ItemPatch) CreateResponse {
	var wire struct {
		wireError
		Item *store.Item `json:"item"`
	}
	path := fmt.Sprintf("/v1/%s/create", itemType)
	if err := c.do(ctx, http.MethodPost, path, patch, &wire); err != nil {
		return CreateResponse{Success: false, Error: err.Error()}
	}
	if msg := wire.message(); msg != "" || wire.Item == nil {
		if msg == "" {
			msg = "hub returned no item"
		}
		return CreateResponse{Success: false, Error: msg}
	}
	return CreateResponse{Success: true, Item: wire.Item}
}

// VoteItem casts the pressed vote value on an item. The hub decides whether
// that toggles an existing vote off.
func (c *Client) VoteItem(ctx context.Context, itemType, id string, vote int) VoteResponse {
	var wire struct {
		wireError
		Item *struct {
			store.Item
			UserVote int `json:"userVote"`
		} `json:"item"`
	}
	path := fmt.Sprintf("/v1/%s/%s/vote", itemType, id)
	if err := c.do(ctx, http.MethodPost, path, map[string]int{"vote": vote}, &wire); err != nil {
		return VoteResponse{Success: false, Error: err.Error()}
	}
	if msg := wire.message(); msg != "" || wire.Item == nil {
		if msg == "" {
			msg = "hub returned no item"
		}
		return VoteResponse{Success: false, Error: msg}
	}
	item := wire.Item.Item
	return VoteResponse{Success: true, Item: &item, UserVote: wire.Item.UserVote}
}

// GetUserVote reports the caller's recorded vote on an item.
func (c *Client) GetUserVote(ctx context.Context, itemType, id string) UserVoteResponse {
	var wire struct {
		wireError
		UserVote int `json:"userVote"`
	}
	path := fmt.Sprintf("/v1/%s/%s/vote", itemType, id)
	if err := c.do(ctx, http.MethodGet, path, nil, &wire); err != nil {
		return UserVoteResponse{Success: false, Error: err.Error()}
	}
	if msg := wire.message(); msg != "" {
		return UserVoteResponse{Success: false, Error: msg}
	}
	return UserVoteResponse{Success: true, UserVote: wire.UserVote}
}

// FetchUserItems lists the caller's own and team items.
func (c *Client) FetchUserItems(ctx context.Context) UserItemsResponse {
	var wire struct {
		wireError
		CreatedByMe map[string]ItemGroup `json:"createdByMe"`
		TeamItems   []store.Item         `json:"teamItems"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/items", nil, &wire); err != nil {
		return UserItemsResponse{Success: false, Error: err.Error()}
	}
	if msg := wire.message(); msg != "" {
		return UserItemsResponse{Success: false, Error: msg}
	}
	return UserItemsResponse{Success: true, CreatedByMe: wire.CreatedByMe, TeamItems: wire.TeamItems}
}

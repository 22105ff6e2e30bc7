// Package facebook integrates with the Facebook Graph API: it exchanges
// short-lived user tokens for long-lived ones, lists the pages a user
// manages, and persists per-page credentials encrypted at rest.
package facebook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/GogiGunia/Toolidol/internal/obs"
)

// ErrProvider indicates the Graph API rejected a call or returned an
// unusable body. The raw provider response is logged, never surfaced.
var ErrProvider = errors.New("facebook: provider request failed")

// PageAccount is one manageable page as reported by the provider,
// including its long-lived page access token. Returned unmodified;
// persistence is the caller's concern.
type PageAccount struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	AccessToken string   `json:"access_token"`
	Category    string   `json:"category,omitempty"`
	Tasks       []string `json:"tasks,omitempty"`
}

// Settings carries the app registration used for server-to-server calls.
type Settings struct {
	AppID       string
	AppSecret   string
	GraphAPIURL string
}

// Client performs the credential-exchange pipeline against the Graph API.
// Stateless and safe for concurrent use.
type Client struct {
	settings Settings
	http     *http.Client
}

// NewClient constructs a Client. httpClient may be nil, in which case the
// default client is used; timeouts are the injected client's concern.
func NewClient(settings Settings, httpClient *http.Client) (*Client, error) {
	if strings.TrimSpace(settings.AppID) == "" || strings.TrimSpace(settings.AppSecret) == "" {
		return nil, errors.New("facebook: app id and secret are required")
	}
	if strings.TrimSpace(settings.GraphAPIURL) == "" {
		return nil, errors.New("facebook: graph api url is required")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{settings: settings, http: httpClient}, nil
}

// ExchangeAndListPages runs the two-step pipeline: exchange the short-lived
// user token for a long-lived one, then list the pages that token manages.
// The steps are strictly sequential; a failure in the exchange never
// attempts the listing, and neither step is retried here.
func (c *Client) ExchangeAndListPages(ctx context.Context, shortLivedToken string) ([]PageAccount, error) {
	if strings.TrimSpace(shortLivedToken) == "" {
		return nil, fmt.Errorf("%w: short-lived token is empty", ErrProvider)
	}

	longLived, err := c.exchangeToken(ctx, shortLivedToken)
	if err != nil {
		return nil, err
	}
	return c.listPages(ctx, longLived)
}

// exchangeToken trades a short-lived user token for a long-lived one.
func (c *Client) exchangeToken(ctx context.Context, shortLivedToken string) (string, error) {
	params := url.Values{}
	params.Set("grant_type", "fb_exchange_token")
	params.Set("client_id", c.settings.AppID)
	params.Set("client_secret", c.settings.AppSecret)
	params.Set("fb_exchange_token", shortLivedToken)

	body, err := c.get(ctx, "exchange_token", "/oauth/access_token", params)
	if err != nil {
		return "", err
	}

	var resp struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || resp.AccessToken == "" {
		obs.LogEvent("error", "facebook.exchange_token.bad_body", map[string]any{"parse_error": fmt.Sprint(err)})
		obs.ProviderCall("exchange_token", "error")
		return "", fmt.Errorf("%w: long-lived token missing from response", ErrProvider)
	}
	return resp.AccessToken, nil
}

// listPages fetches the pages manageable by the long-lived user token.
// Every server-to-server call carries an appsecret_proof so a leaked token
// cannot be replayed from an untrusted client.
func (c *Client) listPages(ctx context.Context, longLivedToken string) ([]PageAccount, error) {
	params := url.Values{}
	params.Set("access_token", longLivedToken)
	params.Set("appsecret_proof", c.appSecretProof(longLivedToken))

	body, err := c.get(ctx, "list_pages", "/me/accounts", params)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data []PageAccount `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		obs.LogEvent("error", "facebook.list_pages.bad_body", map[string]any{"parse_error": err.Error()})
		obs.ProviderCall("list_pages", "error")
		return nil, fmt.Errorf("%w: page list missing from response", ErrProvider)
	}
	return resp.Data, nil
}

// appSecretProof is the lowercase hex HMAC-SHA256 of the token keyed by the
// app secret, required by the provider on server-to-server calls.
func (c *Client) appSecretProof(accessToken string) string {
	mac := hmac.New(sha256.New, []byte(c.settings.AppSecret))
	mac.Write([]byte(accessToken))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) get(ctx context.Context, op, path string, params url.Values) ([]byte, error) {
	endpoint := strings.TrimSuffix(c.settings.GraphAPIURL, "/") + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("facebook: build request: %w", err)
	}

	res, err := c.http.Do(req)
	if err != nil {
		obs.ProviderCall(op, "error")
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		obs.ProviderCall(op, "error")
		return nil, fmt.Errorf("%w: read response: %v", ErrProvider, err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		// Status and body are logged for operators; the caller only sees
		// a generic provider failure.
		obs.LogEvent("error", "facebook."+op+".rejected", map[string]any{
			"status": res.StatusCode,
			"body":   string(body),
		})
		obs.ProviderCall(op, "error")
		return nil, fmt.Errorf("%w: status %d", ErrProvider, res.StatusCode)
	}
	obs.ProviderCall(op, "ok")
	return body, nil
}

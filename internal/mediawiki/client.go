package mediawiki

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dghubble/oauth1"

	"github.com/atlwiki/wikilink/internal/config"
)

// MediaWiki mounts its OAuth1a endpoints under Special:OAuth.
const (
	initiatePath  = "/Special:OAuth/initiate"
	authorizePath = "/Special:OAuth/authorize"
	tokenPath     = "/Special:OAuth/token"
)

// Client drives the OAuth1a handshake against a MediaWiki instance and the
// two API lookups the linker needs: who the access token belongs to, and
// whether a named account is autoconfirmed.
type Client struct {
	oauthConfig  *oauth1.Config
	apiURL       string
	authorizeURL string
	consumerKey  string
	httpClient   *http.Client
}

// NewClient creates a MediaWiki client for the configured consumer. The
// callback URL must match the one the consumer was registered with.
func NewClient(cfg config.MediaWikiConfig, callbackURL string) *Client {
	return &Client{
		oauthConfig: &oauth1.Config{
			ConsumerKey:    cfg.ConsumerKey,
			ConsumerSecret: cfg.ConsumerSecret,
			CallbackURL:    callbackURL,
			Endpoint: oauth1.Endpoint{
				RequestTokenURL: cfg.BaseURL + initiatePath,
				AuthorizeURL:    cfg.BaseURL + authorizePath,
				AccessTokenURL:  cfg.BaseURL + tokenPath,
			},
		},
		apiURL:       cfg.APIURL,
		authorizeURL: cfg.BaseURL + authorizePath,
		consumerKey:  cfg.ConsumerKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// RequestToken fetches a temporary request-token pair from the provider
func (c *Client) RequestToken() (key, secret string, err error) {
	key, secret, err = c.oauthConfig.RequestToken()
	if err != nil {
		return "", "", fmt.Errorf("request token fetch failed: %w", err)
	}
	return key, secret, nil
}

// AuthorizationURL returns the provider page where the user approves the
// request token. MediaWiki additionally wants the consumer key as a query
// parameter.
func (c *Client) AuthorizationURL(requestToken string) (string, error) {
	u, err := url.Parse(c.authorizeURL)
	if err != nil {
		return "", fmt.Errorf("invalid authorize URL: %w", err)
	}
	q := u.Query()
	q.Set("oauth_token", requestToken)
	q.Set("oauth_consumer_key", c.consumerKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Exchange trades an approved request token and verifier for an access
// credential.
func (c *Client) Exchange(requestToken, requestSecret, verifier string) (*oauth1.Token, error) {
	accessToken, accessSecret, err := c.oauthConfig.AccessToken(requestToken, requestSecret, verifier)
	if err != nil {
		return nil, fmt.Errorf("access token exchange failed: %w", err)
	}
	return oauth1.NewToken(accessToken, accessSecret), nil
}

// Identify fetches the wiki username the access credential belongs to
func (c *Client) Identify(ctx context.Context, token *oauth1.Token) (string, error) {
	signed := c.oauthConfig.Client(ctx, token)
	signed.Timeout = 30 * time.Second

	params := url.Values{}
	params.Set("action", "query")
	params.Set("meta", "userinfo")
	params.Set("format", "json")

	resp, err := signed.Get(c.apiURL + "?" + params.Encode())
	if err != nil {
		return "", fmt.Errorf("userinfo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("userinfo request returned status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Query struct {
			UserInfo struct {
				ID   int64  `json:"id"`
				Name string `json:"name"`
				Anon *any   `json:"anon"`
			} `json:"userinfo"`
		} `json:"query"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode userinfo response: %w", err)
	}

	if result.Query.UserInfo.Name == "" || result.Query.UserInfo.Anon != nil {
		return "", fmt.Errorf("userinfo response carries no logged-in user")
	}

	return result.Query.UserInfo.Name, nil
}

// IsAutoconfirmed reports whether the named wiki account has reached the
// autoconfirmed trust tier. Uses the public API; no credential needed.
func (c *Client) IsAutoconfirmed(ctx context.Context, username string) (bool, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "users")
	params.Set("ususers", username)
	params.Set("usprop", "groups|implicitgroups")
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return false, fmt.Errorf("failed to create users request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("users request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return false, fmt.Errorf("users request returned status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Query struct {
			Users []struct {
				Name           string   `json:"name"`
				Groups         []string `json:"groups"`
				ImplicitGroups []string `json:"implicitgroups"`
				Missing        *string  `json:"missing"`
			} `json:"users"`
		} `json:"query"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, fmt.Errorf("failed to decode users response: %w", err)
	}

	if len(result.Query.Users) == 0 || result.Query.Users[0].Missing != nil {
		return false, nil
	}

	user := result.Query.Users[0]
	for _, g := range user.ImplicitGroups {
		if g == "autoconfirmed" {
			return true, nil
		}
	}
	for _, g := range user.Groups {
		if g == "autoconfirmed" {
			return true, nil
		}
	}
	return false, nil
}

package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// tokenResponse is the body of /api/v1/access_token.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Error       string `json:"error"`
	ExpiresIn   int    `json:"expires_in"`
}

// Login forces a password grant so that credential problems surface early.
func (c *Client) Login(ctx context.Context) error {
	if c.static {
		return nil
	}

	c.invalidateToken()
	_, err := c.accessToken(ctx)

	return err
}

// accessToken returns a valid bearer token, fetching a new one when needed.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.static {
		return c.token, nil
	}

	if c.token != "" && c.now().Before(c.expiry) {
		return c.token, nil
	}

	if err := c.site.ValidateCredentials(); err != nil {
		return "", err
	}

	tok, err := c.passwordGrant(ctx)
	if err != nil {
		return "", err
	}

	c.token = tok.AccessToken
	// Refresh a minute early so in-flight requests do not race the expiry
	c.expiry = c.now().Add(time.Duration(tok.ExpiresIn)*time.Second - time.Minute)

	c.logger.Debug("obtained access token", "user", c.site.Username, "expires_in", tok.ExpiresIn)

	return c.token, nil
}

func (c *Client) invalidateToken() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.static {
		c.token = ""
	}
}

func (c *Client) passwordGrant(ctx context.Context) (*tokenResponse, error) {
	form := url.Values{
		"grant_type": {"password"},
		"username":   {c.site.Username},
		"password":   {c.site.Password},
	}

	endpoint := strings.TrimRight(c.site.AuthURL, "/") + "/api/v1/access_token"

	// a repeated password grant only issues another token
	req, err := http.NewRequestWithContext(resendable(ctx), http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}

	req.SetBasicAuth(c.site.ClientID, c.site.ClientSecret)
	req.Header.Set("User-Agent", c.site.UserAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{
			Method:     http.MethodPost,
			URL:        "/api/v1/access_token",
			StatusCode: resp.StatusCode,
			Body:       truncate(string(data), 200),
		}
	}

	var tok tokenResponse
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}

	if tok.Error != "" {
		return nil, &APIError{Code: tok.Error, Message: "password grant rejected"}
	}

	if tok.AccessToken == "" {
		return nil, ErrNoToken
	}

	return &tok, nil
}

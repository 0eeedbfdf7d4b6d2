/**
 * @description
 * This package provides a client for communicating with the Algoan platform:
 * OAuth authentication, customer reads/updates, analysis updates and webhook
 * event acknowledgements.
 *
 * Key features:
 * - Client-credentials authentication with proactive renewal: the expiry of
 *   the issued access token is read from its JWT `exp` claim so the client
 *   re-authenticates ahead of time instead of reacting to 401s.
 * - Non-2xx responses are returned as *APIError; the orchestrator relies on
 *   the type to classify a failure as platform-origin.
 *
 * @dependencies
 * - github.com/golang-jwt/jwt/v5: Unverified claim inspection of the token.
 * - github.com/algoan/bridge-connector/internal/domain: Algoan API structs.
 */
package algoanclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/algoan/bridge-connector/internal/domain"
)

// tokenExpiryMargin renews the access token slightly before it expires.
const tokenExpiryMargin = 30 * time.Second

// APIError is returned for any non-2xx Algoan response.
type APIError struct {
	StatusCode int
	URL        string
	Body       string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("algoan API request failed with status %d: %s", e.StatusCode, e.Body)
}

// Client is a client for interacting with the Algoan platform API.
type Client struct {
	BaseURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client

	mutex       sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewClient creates a new Algoan API client.
func NewClient(baseURL, clientID, clientSecret string) *Client {
	return &Client{
		BaseURL:      baseURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// Authenticate obtains an access token from Algoan using the client
// credentials grant. Safe to call eagerly; the token is cached until close
// to its expiry.
func (c *Client) Authenticate(ctx context.Context) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.authenticateLocked(ctx)
}

func (c *Client) authenticateLocked(ctx context.Context) error {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)

	fullURL := c.BaseURL + "/v1/oauth/token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewBufferString(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send token request to Algoan: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return newAPIError(resp, fullURL)
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return fmt.Errorf("failed to decode token response: %w", err)
	}

	c.accessToken = token.AccessToken
	c.tokenExpiry = tokenExpiry(token)

	return nil
}

// tokenExpiry reads the expiry from the token's JWT claims, falling back to
// the advertised expires_in when the token is opaque.
func tokenExpiry(token tokenResponse) time.Time {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token.AccessToken, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}

	return time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
}

// token returns a valid access token, re-authenticating when the cached one
// is absent or about to expire.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.accessToken == "" || time.Now().After(c.tokenExpiry.Add(-tokenExpiryMargin)) {
		if err := c.authenticateLocked(ctx); err != nil {
			return "", err
		}
	}

	return c.accessToken, nil
}

// GetCustomer retrieves a customer by id.
func (c *Client) GetCustomer(ctx context.Context, customerID string) (*domain.Customer, error) {
	var customer domain.Customer
	uri := fmt.Sprintf("/v2/customers/%s", url.PathEscape(customerID))
	if err := c.doJSON(ctx, http.MethodGet, uri, nil, &customer); err != nil {
		return nil, err
	}

	return &customer, nil
}

// UpdateCustomer patches a customer, typically to attach the generated
// aggregation redirect URL.
func (c *Client) UpdateCustomer(ctx context.Context, customerID string, update domain.CustomerUpdate) error {
	uri := fmt.Sprintf("/v2/customers/%s", url.PathEscape(customerID))

	return c.doJSON(ctx, http.MethodPatch, uri, update, nil)
}

// UpdateAnalysis reports the outcome of a synchronization for the given
// customer and analysis: either the mapped accounts or an error record.
func (c *Client) UpdateAnalysis(ctx context.Context, customerID, analysisID string, update domain.AnalysisUpdate) error {
	uri := fmt.Sprintf("/v2/customers/%s/analyses/%s", url.PathEscape(customerID), url.PathEscape(analysisID))

	return c.doJSON(ctx, http.MethodPatch, uri, update, nil)
}

// UpdateEventStatus acknowledges a webhook event with its processing outcome.
func (c *Client) UpdateEventStatus(ctx context.Context, subscriptionID, eventID string, status domain.EventStatus) error {
	uri := fmt.Sprintf("/v1/subscriptions/%s/events/%s", url.PathEscape(subscriptionID), url.PathEscape(eventID))
	payload := struct {
		Status domain.EventStatus `json:"status"`
	}{Status: status}

	return c.doJSON(ctx, http.MethodPatch, uri, payload, nil)
}

// doJSON performs an authenticated Algoan request and decodes the JSON
// response into out when out is non-nil.
func (c *Client) doJSON(ctx context.Context, method, uri string, in, out interface{}) error {
	accessToken, err := c.token(ctx)
	if err != nil {
		return err
	}

	fullURL := c.BaseURL + uri

	var body io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewBuffer(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return fmt.Errorf("failed to create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to Algoan: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return newAPIError(resp, fullURL)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode successful response: %w", err)
	}

	return nil
}

func newAPIError(resp *http.Response, fullURL string) error {
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("Failed to read error response body: %v", err)

		return &APIError{StatusCode: resp.StatusCode, URL: fullURL}
	}

	return &APIError{StatusCode: resp.StatusCode, URL: fullURL, Body: string(bodyBytes)}
}

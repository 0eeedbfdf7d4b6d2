/**
 * @description
 * This package provides a client for interacting with the Bridge aggregation
 * API. It encapsulates the logic for making authenticated HTTP requests,
 * handling request/response bodies, and managing errors from the API.
 *
 * Key features:
 * - Every request carries the Client-Id / Client-Secret / Bankin-Version
 *   headers, taken from the per-caller ClientConfig when set and falling back
 *   to the process defaults otherwise.
 * - Transaction listing follows the pagination links embedded in Bridge
 *   responses with an iterative loop, keeping memory and stack depth bounded
 *   for users with very large histories.
 * - Reference resources (categories, banks) are resolved through a 24h TTL
 *   cache and degrade to an "UNKNOWN" sentinel instead of failing the caller.
 *
 * @dependencies
 * - net/http, encoding/json: Standard Go libraries.
 * - github.com/algoan/bridge-connector/internal/domain: Bridge API structs.
 */
package bridgeclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/algoan/bridge-connector/internal/domain"
)

// transactionsPageSize is the fixed page size requested from Bridge.
const transactionsPageSize = 100

// UnknownResourceName is returned when a reference resource cannot be
// resolved. The lookup is decorative, never load-bearing.
const UnknownResourceName = "UNKNOWN"

// APIError is returned for any non-2xx Bridge response. The orchestrator
// relies on its type to classify a failure as aggregator-origin.
type APIError struct {
	StatusCode int
	URL        string
	Body       string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("bridge API request failed with status %d: %s", e.StatusCode, e.Body)
}

// Defaults are the process-wide Bridge credentials used when a caller does
// not provide its own ClientConfig.
type Defaults struct {
	ClientID      string
	ClientSecret  string
	BankinVersion string
}

// Client is a client for interacting with the Bridge API.
type Client struct {
	BaseURL    string
	defaults   Defaults
	httpClient *http.Client
	cache      *resourceCache
}

// NewClient creates a new Bridge API client.
func NewClient(baseURL string, defaults Defaults) *Client {
	return &Client{
		BaseURL:  baseURL,
		defaults: defaults,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		cache: newResourceCache(),
	}
}

// Register creates a Bridge user for the given derived credentials.
func (c *Client) Register(ctx context.Context, credentials domain.UserCredentials, clientConfig *domain.ClientConfig) (*domain.BridgeUser, error) {
	var user domain.BridgeUser
	if err := c.doJSON(ctx, http.MethodPost, "/v2/users", "", credentials, &user, clientConfig); err != nil {
		return nil, err
	}
	log.Printf("Bridge user created with email %s", credentials.Email)

	return &user, nil
}

// Authenticate exchanges the derived credentials for a Bridge session.
func (c *Client) Authenticate(ctx context.Context, credentials domain.UserCredentials, clientConfig *domain.ClientConfig) (*domain.AuthenticationResponse, error) {
	var auth domain.AuthenticationResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v2/authenticate", "", credentials, &auth, clientConfig); err != nil {
		return nil, err
	}

	return &auth, nil
}

// ConnectItemURL asks Bridge for the funnel URL a customer is redirected to
// in order to link a bank account.
func (c *Client) ConnectItemURL(ctx context.Context, accessToken, callbackContext, prefillEmail string, clientConfig *domain.ClientConfig) (string, error) {
	uri := "/v2/connect/items/add/url?country=fr"
	if callbackContext != "" {
		uri += "&context=" + url.QueryEscape(callbackContext)
	}
	if prefillEmail != "" {
		uri += "&prefill_email=" + url.QueryEscape(prefillEmail)
	}

	var resp domain.ConnectItemResponse
	if err := c.doJSON(ctx, http.MethodGet, uri, accessToken, nil, &resp, clientConfig); err != nil {
		return "", err
	}

	return resp.RedirectURL, nil
}

// GetAccounts retrieves the accounts of the authenticated Bridge user.
func (c *Client) GetAccounts(ctx context.Context, accessToken string, clientConfig *domain.ClientConfig) ([]domain.BridgeAccount, error) {
	var list struct {
		Resources  []domain.BridgeAccount `json:"resources"`
		Pagination listPagination         `json:"pagination"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v2/accounts", accessToken, nil, &list, clientConfig); err != nil {
		return nil, err
	}

	return list.Resources, nil
}

// GetTransactions retrieves the transactions updated since the given cursor,
// following the pagination links embedded in each response until Bridge stops
// indicating a next page. Results are concatenated in server order, unsorted.
func (c *Client) GetTransactions(ctx context.Context, accessToken, lastUpdatedAt string, clientConfig *domain.ClientConfig) ([]domain.BridgeTransaction, error) {
	uri := fmt.Sprintf("/v2/transactions/updated?limit=%d", transactionsPageSize)
	if lastUpdatedAt != "" {
		uri += "&since=" + url.QueryEscape(lastUpdatedAt)
	}

	var transactions []domain.BridgeTransaction
	for uri != "" {
		var page struct {
			Resources  []domain.BridgeTransaction `json:"resources"`
			Pagination listPagination             `json:"pagination"`
		}
		if err := c.doJSON(ctx, http.MethodGet, uri, accessToken, nil, &page, clientConfig); err != nil {
			return nil, err
		}

		transactions = append(transactions, page.Resources...)

		if page.Pagination.NextURI == nil {
			break
		}
		uri = *page.Pagination.NextURI
	}

	return transactions, nil
}

// RefreshItem triggers a refresh of the given Bridge item.
func (c *Client) RefreshItem(ctx context.Context, accessToken, itemID string, clientConfig *domain.ClientConfig) error {
	uri := fmt.Sprintf("/v2/items/%s/refresh", url.PathEscape(itemID))

	return c.doJSON(ctx, http.MethodPost, uri, accessToken, nil, nil, clientConfig)
}

// GetRefreshStatus returns the current refresh state of the given item. Each
// call is a single request/response; the orchestrator owns the polling loop.
func (c *Client) GetRefreshStatus(ctx context.Context, accessToken, itemID string, clientConfig *domain.ClientConfig) (*domain.BridgeRefreshStatus, error) {
	uri := fmt.Sprintf("/v2/items/%s/refresh/status", url.PathEscape(itemID))

	var status domain.BridgeRefreshStatus
	if err := c.doJSON(ctx, http.MethodGet, uri, accessToken, nil, &status, clientConfig); err != nil {
		return nil, err
	}

	return &status, nil
}

// GetResourceName resolves a Bridge resource URI (typically a category) to
// its display name. Results are cached for 24 hours. On failure the call
// degrades to the "UNKNOWN" sentinel instead of returning an error.
func (c *Client) GetResourceName(ctx context.Context, accessToken, bridgeURI string, clientConfig *domain.ClientConfig) (string, bool) {
	cacheKey := c.BaseURL + bridgeURI
	if cached, ok := c.cache.get(cacheKey); ok {
		if name, ok := cached.(string); ok {
			return name, false
		}
	}

	var category domain.BridgeCategory
	if err := c.doJSON(ctx, http.MethodGet, bridgeURI, accessToken, nil, &category, clientConfig); err != nil {
		log.Printf("level=warn component=bridgeclient msg=\"an error occurred while retrieving %s\" err=%v", bridgeURI, err)

		return UnknownResourceName, true
	}

	c.cache.set(cacheKey, category.Name, resourceCacheTTL)

	return category.Name, false
}

// GetBankInformation resolves a Bridge bank URI to its display information.
// Results are cached for 24 hours; failures degrade to an "UNKNOWN" name.
func (c *Client) GetBankInformation(ctx context.Context, accessToken, bridgeURI string, clientConfig *domain.ClientConfig) (domain.AccountBank, bool) {
	cacheKey := c.BaseURL + bridgeURI
	if cached, ok := c.cache.get(cacheKey); ok {
		if bank, ok := cached.(domain.AccountBank); ok {
			return bank, false
		}
	}

	var bank domain.BridgeBank
	if err := c.doJSON(ctx, http.MethodGet, bridgeURI, accessToken, nil, &bank, clientConfig); err != nil {
		log.Printf("level=warn component=bridgeclient msg=\"an error occurred while retrieving %s\" err=%v", bridgeURI, err)

		return domain.AccountBank{Name: UnknownResourceName}, true
	}

	info := domain.AccountBank{Name: bank.Name, LogoURL: bank.LogoURL}
	c.cache.set(cacheKey, info, resourceCacheTTL)

	return info, false
}

// GetAccountsInformation retrieves the generic account-information records
// of the authenticated Bridge user, an alternative owner-identity source.
func (c *Client) GetAccountsInformation(ctx context.Context, accessToken string, clientConfig *domain.ClientConfig) ([]domain.BridgeAccountInformation, error) {
	var info []domain.BridgeAccountInformation
	if err := c.doJSON(ctx, http.MethodGet, "/v2/accounts-information", accessToken, nil, &info, clientConfig); err != nil {
		return nil, err
	}

	return info, nil
}

// GetUserPersonalInformation retrieves the KYC records of the authenticated
// Bridge user.
func (c *Client) GetUserPersonalInformation(ctx context.Context, accessToken string, clientConfig *domain.ClientConfig) ([]domain.BridgeUserInformation, error) {
	var info []domain.BridgeUserInformation
	if err := c.doJSON(ctx, http.MethodGet, "/v2/users/kyc", accessToken, nil, &info, clientConfig); err != nil {
		return nil, err
	}

	return info, nil
}

// DeleteUser removes the ephemeral Bridge user. The caller decides whether a
// failure here aborts anything; it should not.
func (c *Client) DeleteUser(ctx context.Context, accessToken, userID string, clientConfig *domain.ClientConfig) error {
	uri := fmt.Sprintf("/v2/users/%s/delete", url.PathEscape(userID))

	return c.doJSON(ctx, http.MethodPost, uri, accessToken, nil, nil, clientConfig)
}

type listPagination struct {
	NextURI *string `json:"next_uri"`
}

// doJSON performs a Bridge request and decodes the JSON response into out
// when out is non-nil. Non-2xx responses are returned as *APIError.
func (c *Client) doJSON(ctx context.Context, method, uri, accessToken string, in, out interface{}, clientConfig *domain.ClientConfig) error {
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
	c.setHeaders(req, accessToken, clientConfig)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to Bridge: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return c.handleErrorResponse(resp, fullURL)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode successful response: %w", err)
	}

	return nil
}

// setHeaders adds the authentication and content-type headers, taking the
// client credentials from the caller's configuration or the process defaults.
func (c *Client) setHeaders(req *http.Request, accessToken string, clientConfig *domain.ClientConfig) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	clientID := c.defaults.ClientID
	clientSecret := c.defaults.ClientSecret
	bankinVersion := c.defaults.BankinVersion
	if clientConfig != nil {
		if clientConfig.ClientID != "" {
			clientID = clientConfig.ClientID
		}
		if clientConfig.ClientSecret != "" {
			clientSecret = clientConfig.ClientSecret
		}
		if clientConfig.BankinVersion != "" {
			bankinVersion = clientConfig.BankinVersion
		}
	}
	req.Header.Set("Client-Id", clientID)
	req.Header.Set("Client-Secret", clientSecret)
	req.Header.Set("Bankin-Version", bankinVersion)

	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
}

// handleErrorResponse reads the body of a failed API call and returns a
// typed error carrying the status and response body for easier debugging.
func (c *Client) handleErrorResponse(resp *http.Response, fullURL string) error {
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("Failed to read error response body: %v", err)

		return &APIError{StatusCode: resp.StatusCode, URL: fullURL}
	}

	return &APIError{StatusCode: resp.StatusCode, URL: fullURL, Body: string(bodyBytes)}
}

package qbo

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"bitbucket.org/mmdatafocus/docsync_backend/config"
	"bitbucket.org/mmdatafocus/docsync_backend/models"
	"github.com/bsm/redislock"
)

const moduleName = "qbo"

const (
	defaultAPIBaseURL = "https://quickbooks.api.intuit.com"
	defaultTokenURL   = "https://oauth.platform.intuit.com/oauth2/v1/tokens/bearer"
	minorVersion      = "65"
)

// ValidationFaultError means the platform rejected the payload itself.
// Detail carries the platform's own message verbatim so operators can
// read the real reason instead of a rewritten one.
type ValidationFaultError struct {
	Detail string
}

func (e *ValidationFaultError) Error() string {
	return fmt.Sprintf("quickbooks validation fault: %s", e.Detail)
}

// TransportError covers every non-validation failure talking to the
// platform: network errors, auth errors, 5xx, unparseable bodies.
type TransportError struct {
	StatusCode int
	Message    string
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("quickbooks request failed with status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("quickbooks request failed: %s", e.Message)
}

// refreshMutexes serializes token refresh per tenant inside this
// process. Redis locking extends the same guarantee across replicas.
var refreshMutexes sync.Map

func refreshMutexFor(businessId string) *sync.Mutex {
	mu, _ := refreshMutexes.LoadOrStore(businessId, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Client talks to QuickBooks Online for exactly one tenant credential.
// Callers build one per pipeline run; there is no shared instance.
type Client struct {
	cred       *models.IntegrationCredential
	baseURL    string
	tokenURL   string
	httpClient *http.Client
}

func NewClient(cred *models.IntegrationCredential) *Client {
	baseURL := os.Getenv("QBO_API_BASE_URL")
	if baseURL == "" {
		baseURL = defaultAPIBaseURL
	}
	tokenURL := os.Getenv("QBO_TOKEN_URL")
	if tokenURL == "" {
		tokenURL = defaultTokenURL
	}
	return &Client{
		cred:       cred,
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokenURL:   tokenURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) entityURL(path string) string {
	return fmt.Sprintf("%s/v3/company/%s/%s?minorversion=%s",
		c.baseURL, url.PathEscape(c.cred.RealmId), path, minorVersion)
}

func (c *Client) queryURL(query string) string {
	return fmt.Sprintf("%s/v3/company/%s/query?query=%s&minorversion=%s",
		c.baseURL, url.PathEscape(c.cred.RealmId), url.QueryEscape(query), minorVersion)
}

// doJSON performs one API call with the tenant's bearer token. A 401
// triggers a single token refresh followed by one retry; any other
// failure surfaces immediately.
func (c *Client) doJSON(ctx context.Context, method string, reqURL string, body interface{}, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return &TransportError{Message: err.Error()}
		}
	}

	respBody, statusCode, err := c.execute(ctx, method, reqURL, payload)
	if err != nil {
		return err
	}
	if statusCode == http.StatusUnauthorized {
		if err := c.refreshToken(ctx); err != nil {
			return err
		}
		respBody, statusCode, err = c.execute(ctx, method, reqURL, payload)
		if err != nil {
			return err
		}
	}

	if statusCode < 200 || statusCode >= 300 {
		return faultFromResponse(statusCode, respBody)
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return &TransportError{StatusCode: statusCode, Message: "unexpected response body: " + err.Error()}
		}
	}
	return nil
}

func (c *Client) execute(ctx context.Context, method string, reqURL string, payload []byte) ([]byte, int, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return nil, 0, &TransportError{Message: err.Error()}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cred.AccessToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, &TransportError{Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, &TransportError{StatusCode: resp.StatusCode, Message: err.Error()}
	}
	return respBody, resp.StatusCode, nil
}

// faultFromResponse separates payload rejections from everything else.
// Only a fault explicitly typed ValidationFault (or VALIDATION) counts
// as a validation fault; unknown fault shapes stay transport errors.
func faultFromResponse(statusCode int, body []byte) error {
	var envelope faultEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Fault != nil && len(envelope.Fault.Errors) > 0 {
		first := envelope.Fault.Errors[0]
		detail := first.Detail
		if detail == "" {
			detail = first.Message
		}
		faultType := strings.ToUpper(envelope.Fault.Type)
		if faultType == "VALIDATIONFAULT" || faultType == "VALIDATION" {
			return &ValidationFaultError{Detail: detail}
		}
		return &TransportError{StatusCode: statusCode, Message: detail}
	}
	return &TransportError{StatusCode: statusCode, Message: strings.TrimSpace(string(body))}
}

// refreshToken exchanges the refresh token for a new pair and persists
// it. Refresh is serialized per tenant so concurrent workers cannot
// race each other into invalidating a freshly issued refresh token.
func (c *Client) refreshToken(ctx context.Context) error {
	mu := refreshMutexFor(c.cred.BusinessId)
	mu.Lock()
	defer mu.Unlock()

	if locker := config.GetRedisLock(); locker != nil {
		lockKey := "qbo:token-refresh:" + c.cred.BusinessId
		lock, err := locker.Obtain(ctx, lockKey, 30*time.Second, &redislock.Options{
			RetryStrategy: redislock.LinearBackoff(250 * time.Millisecond),
		})
		if err == nil {
			defer lock.Release(ctx)
		} else if err != redislock.ErrNotObtained {
			logger := config.GetLogger()
			config.LogError(logger, moduleName, "refreshToken", "obtain redis lock", c.cred.BusinessId, err)
		}
	}

	// Another worker may have refreshed while this one waited.
	fresh, err := models.GetConnectedCredential(ctx, c.cred.BusinessId)
	if err == nil && fresh.AccessToken != c.cred.AccessToken {
		c.cred.AccessToken = fresh.AccessToken
		c.cred.RefreshToken = fresh.RefreshToken
		c.cred.TokenExpiresAt = fresh.TokenExpiresAt
		return nil
	}

	clientId := os.Getenv("QBO_CLIENT_ID")
	clientSecret := os.Getenv("QBO_CLIENT_SECRET")
	if clientId == "" || clientSecret == "" {
		return &TransportError{Message: "QBO_CLIENT_ID and QBO_CLIENT_SECRET are required to refresh tokens"}
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", c.cred.RefreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return &TransportError{Message: err.Error()}
	}
	basic := base64.StdEncoding.EncodeToString([]byte(clientId + ":" + clientSecret))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{StatusCode: resp.StatusCode, Message: err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		return &TransportError{StatusCode: resp.StatusCode, Message: "token refresh rejected: " + strings.TrimSpace(string(respBody))}
	}

	var token tokenResponse
	if err := json.Unmarshal(respBody, &token); err != nil {
		return &TransportError{Message: "unexpected token response: " + err.Error()}
	}
	expiresAt := time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	if err := c.cred.UpdateTokens(ctx, token.AccessToken, token.RefreshToken, expiresAt); err != nil {
		return err
	}
	return nil
}

// FindCustomerByName looks up a customer by exact display name and
// returns (nil, nil) when none exists.
func (c *Client) FindCustomerByName(ctx context.Context, displayName string) (*Customer, error) {
	query := BuildSelectByName("Customer", displayName, 1, 1)
	var result queryResponse
	if err := c.doJSON(ctx, http.MethodGet, c.queryURL(query), nil, &result); err != nil {
		return nil, err
	}
	if len(result.QueryResponse.Customer) == 0 {
		return nil, nil
	}
	return &result.QueryResponse.Customer[0], nil
}

func (c *Client) FindVendorByName(ctx context.Context, displayName string) (*Vendor, error) {
	query := BuildSelectByName("Vendor", displayName, 1, 1)
	var result queryResponse
	if err := c.doJSON(ctx, http.MethodGet, c.queryURL(query), nil, &result); err != nil {
		return nil, err
	}
	if len(result.QueryResponse.Vendor) == 0 {
		return nil, nil
	}
	return &result.QueryResponse.Vendor[0], nil
}

func (c *Client) CreateCustomer(ctx context.Context, customer *Customer) (*Customer, error) {
	var result createCustomerResponse
	if err := c.doJSON(ctx, http.MethodPost, c.entityURL("customer"), customer, &result); err != nil {
		return nil, err
	}
	return &result.Customer, nil
}

func (c *Client) CreateVendor(ctx context.Context, vendor *Vendor) (*Vendor, error) {
	var result createVendorResponse
	if err := c.doJSON(ctx, http.MethodPost, c.entityURL("vendor"), vendor, &result); err != nil {
		return nil, err
	}
	return &result.Vendor, nil
}

func (c *Client) CreateInvoice(ctx context.Context, invoice *Invoice) (*Invoice, error) {
	var result createInvoiceResponse
	if err := c.doJSON(ctx, http.MethodPost, c.entityURL("invoice"), invoice, &result); err != nil {
		return nil, err
	}
	return &result.Invoice, nil
}

func (c *Client) CreatePurchase(ctx context.Context, purchase *Purchase) (*Purchase, error) {
	var result createPurchaseResponse
	if err := c.doJSON(ctx, http.MethodPost, c.entityURL("purchase"), purchase, &result); err != nil {
		return nil, err
	}
	return &result.Purchase, nil
}

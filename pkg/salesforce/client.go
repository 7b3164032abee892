// Package salesforce is a thin REST client for the Salesforce objects this
// service reads and writes. It issues SOQL reads and sobject writes over an
// authenticated HTTP session; there is no caching and no pagination handling
// beyond the literal LIMIT clauses in the queries.
package salesforce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	metricsx "github.com/warin-t/salesforce-next-best-action/pkg/metrics"
)

var (
	ErrNotAuthenticated = errors.New("salesforce session is not authenticated")
	ErrAccountNotFound  = errors.New("account not found")
	ErrInvalidRecordID  = errors.New("record id is not a valid salesforce id")
)

const (
	defaultAPIVersion    = "v59.0"
	defaultTimeout       = 30 * time.Second
	defaultMaxRetries    = 3
	defaultRetryBaseWait = 500 * time.Millisecond
	maxResponseSizeBytes = 4 << 20
)

var recordIDPattern = regexp.MustCompile(`^[a-zA-Z0-9]{15,18}$`)

type Config struct {
	Username      string        `envconfig:"USERNAME" split_words:"true"`
	Password      string        `envconfig:"PASSWORD" split_words:"true"`
	SecurityToken string        `envconfig:"SECURITY_TOKEN" split_words:"true"`
	ClientID      string        `envconfig:"CLIENT_ID" split_words:"true"`
	ClientSecret  string        `envconfig:"CLIENT_SECRET" split_words:"true"`
	Domain        string        `envconfig:"DOMAIN" split_words:"true" default:"login"`
	APIVersion    string        `envconfig:"API_VERSION" split_words:"true" default:"v59.0"`
	Timeout       time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	MaxRetries    int           `envconfig:"MAX_RETRIES" split_words:"true" default:"3"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Username) == "" {
		return errors.New("salesforce username is required")
	}
	if strings.TrimSpace(c.Password) == "" {
		return errors.New("salesforce password is required")
	}
	if strings.TrimSpace(c.ClientID) == "" || strings.TrimSpace(c.ClientSecret) == "" {
		return errors.New("salesforce connected-app client id/secret are required")
	}
	switch strings.TrimSpace(c.Domain) {
	case "", "login", "test":
	default:
		return fmt.Errorf("unsupported salesforce domain %q", c.Domain)
	}
	return nil
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLoginURL overrides the OAuth token host. Used in tests.
func WithLoginURL(loginURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimRight(strings.TrimSpace(loginURL), "/"); trimmed != "" {
			c.loginURL = trimmed
		}
	}
}

// WithRetryBaseWait sets the initial backoff delay between query retries.
func WithRetryBaseWait(d time.Duration) Option {
	return func(c *Client) {
		c.retryBaseWait = d
	}
}

// Client holds one authenticated Salesforce REST session.
type Client struct {
	cfg           Config
	httpClient    *http.Client
	loginURL      string
	retryBaseWait time.Duration

	mu          sync.RWMutex
	accessToken string
	instanceURL string
}

func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.APIVersion) == "" {
		cfg.APIVersion = defaultAPIVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}

	domain := strings.TrimSpace(cfg.Domain)
	if domain == "" {
		domain = "login"
	}

	c := &Client{
		cfg:           cfg,
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		loginURL:      fmt.Sprintf("https://%s.salesforce.com", domain),
		retryBaseWait: defaultRetryBaseWait,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c, nil
}

/* --------------------------------- session -------------------------------- */

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	InstanceURL      string `json:"instance_url"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// Login performs the username-password OAuth flow and stores the session
// token and instance URL on the client.
func (c *Client) Login(ctx context.Context) error {
	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)
	form.Set("username", c.cfg.Username)
	form.Set("password", c.cfg.Password+c.cfg.SecurityToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.loginURL+"/services/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute login request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return fmt.Errorf("read login response: %w", err)
	}

	var token tokenResponse
	if err := json.Unmarshal(raw, &token); err != nil {
		return fmt.Errorf("decode login response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || token.AccessToken == "" {
		if token.Error != "" {
			return fmt.Errorf("salesforce login failed: %s: %s", token.Error, token.ErrorDescription)
		}
		return fmt.Errorf("salesforce login failed: status=%d", resp.StatusCode)
	}

	c.mu.Lock()
	c.accessToken = token.AccessToken
	c.instanceURL = strings.TrimRight(token.InstanceURL, "/")
	c.mu.Unlock()

	log.Debug().Str("instance_url", token.InstanceURL).Msg("salesforce session established")
	return nil
}

func (c *Client) session() (token, instanceURL string, err error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.accessToken == "" || c.instanceURL == "" {
		return "", "", ErrNotAuthenticated
	}
	return c.accessToken, c.instanceURL, nil
}

/* --------------------------------- queries -------------------------------- */

type queryResponse[T any] struct {
	TotalSize int  `json:"totalSize"`
	Done      bool `json:"done"`
	Records   []T  `json:"records"`
}

// query runs one SOQL statement and decodes the records, retrying up to
// MaxRetries attempts with exponential backoff. Any error, transport or
// HTTP-level, is treated as retryable.
func query[T any](ctx context.Context, c *Client, soql string) ([]T, error) {
	var records []T
	err := c.withRetry(ctx, func() error {
		raw, err := c.do(ctx, http.MethodGet, "/query?q="+url.QueryEscape(soql), nil)
		metricsx.CRMCalls.WithLabelValues("query", callStatus(err)).Inc()
		if err != nil {
			return err
		}
		var parsed queryResponse[T]
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return fmt.Errorf("decode query response: %w", err)
		}
		records = parsed.Records
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (c *Client) withRetry(ctx context.Context, op func() error) error {
	var lastErr error
	wait := c.retryBaseWait

	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if attempt == c.cfg.MaxRetries {
			break
		}

		log.Warn().Err(lastErr).Int("attempt", attempt).Msg("salesforce query failed, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}

	return fmt.Errorf("salesforce query failed after %d attempts: %w", c.cfg.MaxRetries, lastErr)
}

// FetchAccountBundle loads the account record and its related contacts,
// opportunities, cases, and tasks in one pass.
func (c *Client) FetchAccountBundle(ctx context.Context, accountID string) (*AccountBundle, error) {
	if !recordIDPattern.MatchString(accountID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRecordID, accountID)
	}

	accounts, err := query[Account](ctx, c, fmt.Sprintf(
		`SELECT Id, Name, Type, Industry, AnnualRevenue, NumberOfEmployees, Rating, AccountSource, Description, LastActivityDate, CreatedDate, LastModifiedDate FROM Account WHERE Id = '%s'`,
		accountID))
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}

	contacts, err := query[Contact](ctx, c, fmt.Sprintf(
		`SELECT Id, Name, Title, Email, Phone, LastActivityDate FROM Contact WHERE AccountId = '%s'`,
		accountID))
	if err != nil {
		return nil, err
	}

	opportunities, err := query[Opportunity](ctx, c, fmt.Sprintf(
		`SELECT Id, Name, StageName, Amount, CloseDate, Probability, Type, LeadSource, IsClosed, IsWon FROM Opportunity WHERE AccountId = '%s' ORDER BY CloseDate DESC`,
		accountID))
	if err != nil {
		return nil, err
	}

	cases, err := query[Case](ctx, c, fmt.Sprintf(
		`SELECT Id, CaseNumber, Subject, Status, Priority, CreatedDate FROM Case WHERE AccountId = '%s' ORDER BY CreatedDate DESC LIMIT 10`,
		accountID))
	if err != nil {
		return nil, err
	}

	tasks, err := query[Task](ctx, c, fmt.Sprintf(
		`SELECT Id, Subject, Status, ActivityDate, Description FROM Task WHERE AccountId = '%s' ORDER BY ActivityDate DESC LIMIT 10`,
		accountID))
	if err != nil {
		return nil, err
	}

	return &AccountBundle{
		Account:       accounts[0],
		Contacts:      contacts,
		Opportunities: opportunities,
		Cases:         cases,
		Tasks:         tasks,
	}, nil
}

// FetchContracts loads contract records for churn/renewal insight.
func (c *Client) FetchContracts(ctx context.Context, accountID string) ([]Contract, error) {
	if !recordIDPattern.MatchString(accountID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRecordID, accountID)
	}
	return query[Contract](ctx, c, fmt.Sprintf(
		`SELECT Id, Status, EndDate, ContractTerm FROM Contract WHERE AccountId = '%s'`,
		accountID))
}

/* --------------------------------- writes --------------------------------- */

type createResponse struct {
	ID      string          `json:"id"`
	Success bool            `json:"success"`
	Errors  json.RawMessage `json:"errors"`
}

func (c *Client) CreateTask(ctx context.Context, t TaskCreate) (string, error) {
	if t.Status == "" {
		t.Status = "Not Started"
	}
	if t.Priority == "" {
		t.Priority = "Normal"
	}
	return c.createSObject(ctx, "Task", t)
}

func (c *Client) CreateCase(ctx context.Context, cs CaseCreate) (string, error) {
	if cs.Status == "" {
		cs.Status = "New"
	}
	if cs.Priority == "" {
		cs.Priority = "Medium"
	}
	return c.createSObject(ctx, "Case", cs)
}

func (c *Client) CreateOpportunity(ctx context.Context, o OpportunityCreate) (string, error) {
	if o.StageName == "" {
		o.StageName = "Prospecting"
	}
	return c.createSObject(ctx, "Opportunity", o)
}

func (c *Client) UpdateOpportunity(ctx context.Context, opportunityID string, u OpportunityUpdate) error {
	if !recordIDPattern.MatchString(opportunityID) {
		return fmt.Errorf("%w: %q", ErrInvalidRecordID, opportunityID)
	}
	_, err := c.do(ctx, http.MethodPatch, "/sobjects/Opportunity/"+opportunityID, u)
	metricsx.CRMCalls.WithLabelValues("update_opportunity", callStatus(err)).Inc()
	return err
}

func (c *Client) SendEmail(ctx context.Context, e EmailCreate) (string, error) {
	e.SaveAsActivity = true
	return c.createSObject(ctx, "EmailMessage", e)
}

func (c *Client) createSObject(ctx context.Context, objectType string, payload any) (string, error) {
	raw, err := c.do(ctx, http.MethodPost, "/sobjects/"+objectType, payload)
	metricsx.CRMCalls.WithLabelValues("create_"+strings.ToLower(objectType), callStatus(err)).Inc()
	if err != nil {
		return "", err
	}

	var created createResponse
	if err := json.Unmarshal(raw, &created); err != nil {
		return "", fmt.Errorf("decode create response: %w", err)
	}
	if !created.Success || created.ID == "" {
		return "", fmt.Errorf("create %s rejected: %s", objectType, string(created.Errors))
	}

	log.Info().Str("object", objectType).Str("id", created.ID).Msg("salesforce record created")
	return created.ID, nil
}

/* -------------------------------- transport ------------------------------- */

// do issues one REST call under /services/data/{version}. On a 401 it
// refreshes the session once and replays the request.
func (c *Client) do(ctx context.Context, method, path string, payload any) (json.RawMessage, error) {
	raw, status, err := c.send(ctx, method, path, payload)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		if err := c.Login(ctx); err != nil {
			return nil, fmt.Errorf("session refresh failed: %w", err)
		}
		raw, status, err = c.send(ctx, method, path, payload)
		if err != nil {
			return nil, err
		}
	}
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("salesforce %s %s: status=%d body=%s", method, path, status, truncate(string(raw), 512))
	}
	return raw, nil
}

func (c *Client) send(ctx context.Context, method, path string, payload any) (json.RawMessage, int, error) {
	token, instanceURL, err := c.session()
	if err != nil {
		return nil, 0, err
	}

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("marshal request payload: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	endpoint := instanceURL + "/services/data/" + c.cfg.APIVersion + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, 0, fmt.Errorf("read response: %w", err)
	}

	return raw, resp.StatusCode, nil
}

func callStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

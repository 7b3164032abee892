package server

import (
	"time"

	contractx "github.com/warin-t/salesforce-next-best-action/agent/contract"
	ensemblex "github.com/warin-t/salesforce-next-best-action/agent/ensemble"
	formatterx "github.com/warin-t/salesforce-next-best-action/agent/formatter"
	salesforcex "github.com/warin-t/salesforce-next-best-action/pkg/salesforce"
)

type createSessionRequest struct {
	Engine      string              `json:"engine"`
	Credentials *credentialsRequest `json:"credentials"`
}

// credentialsRequest carries per-session Salesforce credentials. When
// omitted the server's own connection is used.
type credentialsRequest struct {
	Username      string `json:"username" binding:"required"`
	Password      string `json:"password" binding:"required"`
	SecurityToken string `json:"security_token"`
	ClientID      string `json:"client_id" binding:"required"`
	ClientSecret  string `json:"client_secret" binding:"required"`
	Domain        string `json:"domain"`
}

func (c credentialsRequest) toConfig() salesforcex.Config {
	return salesforcex.Config{
		Username:      c.Username,
		Password:      c.Password,
		SecurityToken: c.SecurityToken,
		ClientID:      c.ClientID,
		ClientSecret:  c.ClientSecret,
		Domain:        c.Domain,
	}
}

type sessionResponse struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type loadAccountRequest struct {
	AccountID string `json:"account_id" binding:"required"`
}

type accountResponse struct {
	Account salesforcex.Account `json:"account"`
	Summary formatterx.Summary  `json:"summary"`
}

type analyzeRequest struct {
	Engine string `json:"engine"`
}

type compareResponse struct {
	Results   []ensemblex.Result  `json:"results"`
	Consensus ensemblex.Consensus `json:"consensus"`
}

type recommendationsResponse struct {
	Engine          string                     `json:"engine"`
	Recommendations []contractx.Recommendation `json:"recommendations"`
}

type selectRequest struct {
	Index int `json:"index"`
}

type planRequest struct {
	Engine   string `json:"engine"`
	Template string `json:"template"`
}

type executeRequest struct {
	ContactEmail string `json:"contact_email"`
}

type batchAnalyzeRequest struct {
	AccountIDs []string `json:"account_ids" binding:"required,min=1"`
	Engine     string   `json:"engine"`
}

type batchAnalyzeResult struct {
	AccountID   string              `json:"account_id"`
	AccountName string              `json:"account_name,omitempty"`
	TopAction   string              `json:"top_action,omitempty"`
	Analysis    *contractx.Analysis `json:"analysis,omitempty"`
	Error       string              `json:"error,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

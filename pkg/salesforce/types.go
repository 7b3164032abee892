package salesforce

// Record types mirror the Salesforce objects this service reads. JSON tags
// follow the Salesforce REST field names so query results decode directly.

type Account struct {
	ID                string  `json:"Id"`
	Name              string  `json:"Name"`
	Type              string  `json:"Type,omitempty"`
	Industry          string  `json:"Industry,omitempty"`
	AnnualRevenue     float64 `json:"AnnualRevenue,omitempty"`
	NumberOfEmployees int     `json:"NumberOfEmployees,omitempty"`
	Rating            string  `json:"Rating,omitempty"`
	AccountSource     string  `json:"AccountSource,omitempty"`
	Description       string  `json:"Description,omitempty"`
	LastActivityDate  string  `json:"LastActivityDate,omitempty"`
	CreatedDate       string  `json:"CreatedDate,omitempty"`
	LastModifiedDate  string  `json:"LastModifiedDate,omitempty"`
}

type Contact struct {
	ID               string `json:"Id"`
	Name             string `json:"Name"`
	Title            string `json:"Title,omitempty"`
	Email            string `json:"Email,omitempty"`
	Phone            string `json:"Phone,omitempty"`
	LastActivityDate string `json:"LastActivityDate,omitempty"`
}

type Opportunity struct {
	ID          string  `json:"Id"`
	Name        string  `json:"Name"`
	StageName   string  `json:"StageName"`
	Amount      float64 `json:"Amount,omitempty"`
	CloseDate   string  `json:"CloseDate,omitempty"`
	Probability float64 `json:"Probability,omitempty"`
	Type        string  `json:"Type,omitempty"`
	LeadSource  string  `json:"LeadSource,omitempty"`
	IsClosed    bool    `json:"IsClosed"`
	IsWon       bool    `json:"IsWon"`
}

type Case struct {
	ID          string `json:"Id"`
	CaseNumber  string `json:"CaseNumber,omitempty"`
	Subject     string `json:"Subject"`
	Status      string `json:"Status"`
	Priority    string `json:"Priority,omitempty"`
	CreatedDate string `json:"CreatedDate,omitempty"`
}

type Task struct {
	ID           string `json:"Id"`
	Subject      string `json:"Subject"`
	Status       string `json:"Status,omitempty"`
	ActivityDate string `json:"ActivityDate,omitempty"`
	Description  string `json:"Description,omitempty"`
}

type Contract struct {
	ID           string `json:"Id"`
	Status       string `json:"Status,omitempty"`
	EndDate      string `json:"EndDate,omitempty"`
	ContractTerm int    `json:"ContractTerm,omitempty"`
}

// AccountBundle is one account plus its related records, fetched fresh per
// analysis run. Nothing here is cached or persisted.
type AccountBundle struct {
	Account       Account       `json:"account"`
	Contacts      []Contact     `json:"contacts"`
	Opportunities []Opportunity `json:"opportunities"`
	Cases         []Case        `json:"cases"`
	Tasks         []Task        `json:"tasks"`
}

// OpenOpportunities counts opportunities that are not closed.
func (b *AccountBundle) OpenOpportunities() int {
	n := 0
	for _, o := range b.Opportunities {
		if !o.IsClosed {
			n++
		}
	}
	return n
}

// OpenPipelineValue sums the amount of all open opportunities.
func (b *AccountBundle) OpenPipelineValue() float64 {
	total := 0.0
	for _, o := range b.Opportunities {
		if !o.IsClosed {
			total += o.Amount
		}
	}
	return total
}

// OpenCases counts cases whose status is not Closed.
func (b *AccountBundle) OpenCases() int {
	n := 0
	for _, c := range b.Cases {
		if c.Status != "Closed" {
			n++
		}
	}
	return n
}

/* ------------------------------ write payloads ----------------------------- */

type TaskCreate struct {
	Subject     string `json:"Subject"`
	Description string `json:"Description,omitempty"`
	DueDate     string `json:"ActivityDate,omitempty"`
	Status      string `json:"Status,omitempty"`
	Priority    string `json:"Priority,omitempty"`
	WhatID      string `json:"WhatId,omitempty"`
}

type CaseCreate struct {
	Subject     string `json:"Subject"`
	Description string `json:"Description,omitempty"`
	AccountID   string `json:"AccountId"`
	Status      string `json:"Status,omitempty"`
	Priority    string `json:"Priority,omitempty"`
	Type        string `json:"Type,omitempty"`
	Origin      string `json:"Origin,omitempty"`
}

type OpportunityCreate struct {
	Name      string  `json:"Name"`
	AccountID string  `json:"AccountId"`
	Amount    float64 `json:"Amount,omitempty"`
	CloseDate string  `json:"CloseDate"`
	StageName string  `json:"StageName"`
}

type OpportunityUpdate struct {
	StageName string `json:"StageName,omitempty"`
	NextStep  string `json:"NextStep,omitempty"`
}

type EmailCreate struct {
	ToAddress      string `json:"ToAddress"`
	Subject        string `json:"Subject"`
	TextBody       string `json:"TextBody"`
	RelatedToID    string `json:"RelatedToId,omitempty"`
	SaveAsActivity bool   `json:"SaveAsActivity"`
}

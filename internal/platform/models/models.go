package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Client struct {
	ID              string          `json:"id"`
	CompanyName     string          `json:"company_name"`
	ContactName     string          `json:"contact_name"`
	Email           string          `json:"email"`
	Phone           string          `json:"phone,omitempty"`
	Status          ClientStatus    `json:"status"`
	PlanTier        string          `json:"plan_tier"`
	SetupFee        decimal.Decimal `json:"setup_fee"`
	MonthlyFee      decimal.Decimal `json:"monthly_fee"`
	BillingCycle    string          `json:"billing_cycle"` // monthly, yearly
	NextBillingDate *time.Time      `json:"next_billing_date,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	CreatedAt       int64           `json:"created_at"`
	UpdatedAt       int64           `json:"updated_at"`
}

type Workflow struct {
	ID                string         `json:"id"`
	ClientID          string         `json:"client_id"`
	Name              string         `json:"name"`
	ExternalID        string         `json:"external_id"`
	ExternalURL       string         `json:"external_url,omitempty"`
	Description       string         `json:"description,omitempty"`
	Status            WorkflowStatus `json:"status"`
	LastExecutionAt   *time.Time     `json:"last_execution_at,omitempty"`
	RecentSuccessRate float64        `json:"recent_success_rate"`
	ExecutionCount    int64          `json:"execution_count"`
	CreatedAt         int64          `json:"created_at"`
	UpdatedAt         int64          `json:"updated_at"`

	Client *Client `json:"client,omitempty"`
}

// Execution is the daily aggregate of engine runs for one workflow.
// At most one row exists per (workflow, execution date).
type Execution struct {
	ID            string    `json:"id"`
	WorkflowID    string    `json:"workflow_id"`
	ClientID      string    `json:"client_id"`
	ExecutionDate time.Time `json:"execution_date"`
	TotalCount    int       `json:"total_count"`
	SuccessCount  int       `json:"success_count"`
	ErrorCount    int       `json:"error_count"`
	CreatedAt     int64     `json:"created_at"`
	UpdatedAt     int64     `json:"updated_at"`
}

type Invoice struct {
	ID            string          `json:"id"`
	ClientID      string          `json:"client_id"`
	InvoiceNumber string          `json:"invoice_number"`
	Amount        decimal.Decimal `json:"amount"`
	Type          InvoiceType     `json:"type"`
	Status        InvoiceStatus   `json:"status"`
	DueDate       time.Time       `json:"due_date"`
	PaidDate      *time.Time      `json:"paid_date,omitempty"`
	CreatedAt     int64           `json:"created_at"`
	UpdatedAt     int64           `json:"updated_at"`
}

type SupportTicket struct {
	ID          string         `json:"id"`
	ClientID    string         `json:"client_id"`
	Subject     string         `json:"subject"`
	Description string         `json:"description"`
	Status      TicketStatus   `json:"status"`
	Priority    TicketPriority `json:"priority"`
	ResolvedAt  *int64         `json:"resolved_at,omitempty"`
	CreatedAt   int64          `json:"created_at"`
	UpdatedAt   int64          `json:"updated_at"`
}

// Credential stores a sealed engine API token for one client. The
// plaintext never persists and is opened only at point of use.
type Credential struct {
	ID             string           `json:"id"`
	ClientID       string           `json:"client_id"`
	ServiceName    string           `json:"service_name"`
	CredentialType string           `json:"credential_type"` // oauth, api_key, basic_auth
	EncryptedData  string           `json:"-"`
	Status         CredentialStatus `json:"status"`
	LastVerifiedAt *int64           `json:"last_verified_at,omitempty"`
	CreatedAt      int64            `json:"created_at"`
	UpdatedAt      int64            `json:"updated_at"`
}

type User struct {
	ID           string  `json:"id"`
	Email        string  `json:"email"`
	PasswordHash string  `json:"-"`
	FullName     string  `json:"full_name"`
	Role         string  `json:"role"` // admin, client
	ClientID     *string `json:"client_id,omitempty"`
	LastLoginAt  *int64  `json:"last_login_at,omitempty"`
	CreatedAt    int64   `json:"created_at"`
	UpdatedAt    int64   `json:"updated_at"`
}

/**
 * @description
 * This file defines the Algoan analysis schema: the destination-side
 * projections that mapped Bridge accounts and transactions are reported as.
 *
 * Key features:
 * - Account owns zero-or-more transactions after the grouping step; Bridge
 *   itself ships transactions in a flat, account-referencing shape.
 * - AnalysisUpdate carries either the mapped accounts on success or an error
 *   record on failure, never both.
 */
package domain

// AccountType is the destination account type enum.
type AccountType string

const (
	AccountTypeChecking   AccountType = "CHECKING"
	AccountTypeSavings    AccountType = "SAVINGS"
	AccountTypeCreditCard AccountType = "CREDIT_CARD"
	AccountTypeLoan       AccountType = "LOAN"
	AccountTypeUnknown    AccountType = "UNKNOWN"
)

// AccountUsage is the destination account usage enum.
type AccountUsage string

const (
	AccountUsagePersonal     AccountUsage = "PERSONAL"
	AccountUsageProfessional AccountUsage = "PROFESSIONAL"
)

// AccountLoanTypeOther is the only loan type the connector can assert; Bridge
// does not expose a loan taxonomy that maps onto Algoan's.
const AccountLoanTypeOther = "OTHER"

// Account is an Algoan analysis account.
type Account struct {
	Balance      float64              `json:"balance"`
	BalanceDate  string               `json:"balanceDate"`
	Currency     string               `json:"currency"`
	Type         AccountType          `json:"type"`
	Usage        AccountUsage         `json:"usage"`
	Owners       []AccountOwner       `json:"owners,omitempty"`
	IBAN         *string              `json:"iban,omitempty"`
	BIC          *string              `json:"bic,omitempty"`
	Name         string               `json:"name"`
	Bank         *AccountBank         `json:"bank,omitempty"`
	Details      *AccountDetails      `json:"details,omitempty"`
	Aggregator   AccountAggregator    `json:"aggregator"`
	Transactions []AccountTransaction `json:"transactions,omitempty"`
}

// AccountOwner is a resolved account holder.
type AccountOwner struct {
	Name string `json:"name"`
}

// AccountBank is the bank display information attached to an account.
type AccountBank struct {
	ID      string  `json:"id,omitempty"`
	Name    string  `json:"name"`
	LogoURL *string `json:"logoUrl,omitempty"`
}

// AccountDetails holds the optional savings/loan sub-records.
type AccountDetails struct {
	Savings *AccountSavingsDetails `json:"savings,omitempty"`
	Loan    *AccountLoanDetails    `json:"loan,omitempty"`
}

// AccountSavingsDetails is present (empty) for savings accounts.
type AccountSavingsDetails struct{}

// AccountLoanDetails is the mapped loan sub-record.
type AccountLoanDetails struct {
	Amount           float64 `json:"amount"`
	StartDate        string  `json:"startDate"`
	EndDate          string  `json:"endDate"`
	Payment          float64 `json:"payment"`
	InterestRate     float64 `json:"interestRate"`
	RemainingCapital float64 `json:"remainingCapital"`
	Type             string  `json:"type"`
}

// AccountAggregator carries the aggregator-side identity of an account.
type AccountAggregator struct {
	ID string `json:"id"`
}

// AccountTransaction is an Algoan analysis transaction.
type AccountTransaction struct {
	Dates       TransactionDates      `json:"dates"`
	Description string                `json:"description"`
	Amount      float64               `json:"amount"`
	Currency    string                `json:"currency"`
	IsComing    bool                  `json:"isComing"`
	Aggregator  TransactionAggregator `json:"aggregator"`
}

// TransactionDates holds the normalized transaction timestamps.
type TransactionDates struct {
	DebitedAt *string `json:"debitedAt,omitempty"`
	BookedAt  *string `json:"bookedAt,omitempty"`
}

// TransactionAggregator carries the aggregator-side identity and resolved
// category of a transaction.
type TransactionAggregator struct {
	ID       string `json:"id"`
	Category string `json:"category,omitempty"`
}

// AnalysisStatusError marks a failed analysis update.
const AnalysisStatusError = "ERROR"

// AnalysisErrorCodeInternal is the error code reported for pipeline failures.
const AnalysisErrorCodeInternal = "INTERNAL_ERROR"

// AnalysisError describes why a synchronization failed.
type AnalysisError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AnalysisUpdate is the payload sent to Algoan for a given analysis.
type AnalysisUpdate struct {
	Accounts []Account      `json:"accounts,omitempty"`
	Status   string         `json:"status,omitempty"`
	Error    *AnalysisError `json:"error,omitempty"`
}

// AggregationMode enumerates how a customer connects their bank.
type AggregationMode string

// AggregationModeRedirect is the only mode this connector supports.
const AggregationModeRedirect AggregationMode = "REDIRECT"

// AggregationDetails is the aggregation state stored on an Algoan customer.
type AggregationDetails struct {
	AggregatorName string          `json:"aggregatorName,omitempty"`
	Mode           AggregationMode `json:"mode,omitempty"`
	CallbackURL    string          `json:"callbackUrl,omitempty"`
	RedirectURL    string          `json:"redirectUrl,omitempty"`
	// ConnectionID is the Bridge item already linked to this customer. When
	// set, a synchronization starts with a refresh of that connection.
	ConnectionID string `json:"connectionId,omitempty"`
}

// CustomerContact holds the customer's contact details.
type CustomerContact struct {
	Email string `json:"email,omitempty"`
}

// CustomerPersonalDetails wraps the optional personal section of a customer.
type CustomerPersonalDetails struct {
	Contact *CustomerContact `json:"contact,omitempty"`
}

// Customer is the Algoan customer record, read-only to this connector.
type Customer struct {
	ID                 string                   `json:"id"`
	AggregationDetails AggregationDetails       `json:"aggregationDetails"`
	PersonalDetails    *CustomerPersonalDetails `json:"personalDetails,omitempty"`
}

// CustomerUpdate is the patch sent back to Algoan after generating a
// redirect URL.
type CustomerUpdate struct {
	AggregationDetails AggregationDetails `json:"aggregationDetails"`
}

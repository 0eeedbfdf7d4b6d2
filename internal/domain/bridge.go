/**
 * @description
 * This file defines the data structures for the Bridge aggregator API.
 * These structs map directly to the JSON payloads returned by Bridge and are
 * kept aggregator-native: snake_case wire names, nullable fields as pointers.
 *
 * Key features:
 * - BridgeAccount / BridgeTransaction: immutable raw snapshots fetched once
 *   per synchronization run.
 * - Optional fields (balance, currency, IBAN, loan details, booking date) are
 *   pointers so the mapper can tell "absent" apart from zero values.
 */
package domain

// BridgeAccountType enumerates the account types returned by Bridge.
type BridgeAccountType string

const (
	BridgeAccountTypeChecking         BridgeAccountType = "checking"
	BridgeAccountTypeSavings          BridgeAccountType = "savings"
	BridgeAccountTypeBrokerage        BridgeAccountType = "brokerage"
	BridgeAccountTypeCard             BridgeAccountType = "card"
	BridgeAccountTypeLoan             BridgeAccountType = "loan"
	BridgeAccountTypeSharedSavingPlan BridgeAccountType = "shared_saving_plan"
	BridgeAccountTypeLifeInsurance    BridgeAccountType = "life_insurance"
	BridgeAccountTypeSpecial          BridgeAccountType = "special"
	BridgeAccountTypePending          BridgeAccountType = "pending"
)

// BridgeAccount is a bank account as reported by Bridge.
type BridgeAccount struct {
	ID           int64              `json:"id"`
	Name         string             `json:"name"`
	Balance      *float64           `json:"balance"`
	Status       int                `json:"status"`
	Type         BridgeAccountType  `json:"type"`
	CurrencyCode *string            `json:"currency_code"`
	ItemID       int64              `json:"item_id"`
	BankID       int64              `json:"bank_id"`
	LoanDetails  *BridgeLoanDetails `json:"loan_details"`
	IsPro        bool               `json:"is_pro"`
	IBAN         *string            `json:"iban"`
	UpdatedAt    string             `json:"updated_at"`
}

// BridgeLoanDetails is the loan sub-record attached to loan accounts.
type BridgeLoanDetails struct {
	NextPaymentDate   string  `json:"next_payment_date"`
	NextPaymentAmount float64 `json:"next_payment_amount"`
	MaturityDate      string  `json:"maturity_date"`
	OpeningDate       string  `json:"opening_date"`
	InterestRate      float64 `json:"interest_rate"`
	Type              string  `json:"type"`
	BorrowedCapital   float64 `json:"borrowed_capital"`
	RepaidCapital     float64 `json:"repaid_capital"`
	RemainingCapital  float64 `json:"remaining_capital"`
}

// BridgeTransaction is a transaction as reported by Bridge.
type BridgeTransaction struct {
	ID              int64                    `json:"id"`
	Description     string                   `json:"description"`
	RawDescription  string                   `json:"raw_description"`
	BankDescription string                   `json:"bank_description"`
	Amount          float64                  `json:"amount"`
	Date            string                   `json:"date"`
	BookingDate     *string                  `json:"booking_date"`
	UpdatedAt       string                   `json:"updated_at"`
	CurrencyCode    string                   `json:"currency_code"`
	IsFuture        bool                     `json:"is_future"`
	CategoryID      int64                    `json:"category_id"`
	Account         BridgeTransactionAccount `json:"account"`
}

// BridgeTransactionAccount references the account owning a transaction.
type BridgeTransactionAccount struct {
	ID int64 `json:"id"`
}

// BridgeUserInformation is a KYC record attached to a Bridge item.
type BridgeUserInformation struct {
	ItemID    int64   `json:"item_id"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
}

// BridgeAccountInformation is the generic account-information record, an
// alternative source for owner identity when no KYC record matches.
type BridgeAccountInformation struct {
	ItemID    int64   `json:"item_id"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Accounts  []struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"accounts"`
}

// BridgeRefreshStatus is the state of an item refresh.
type BridgeRefreshStatus struct {
	Status      string  `json:"status"`
	RefreshedAt *string `json:"refreshed_at"`
	MFAType     *string `json:"mfa_type"`
}

// BridgeRefreshStatusFinished is the terminal refresh status reported by Bridge.
const BridgeRefreshStatusFinished = "finished"

// BridgeBank is the bank reference resource resolved from an account's bank id.
type BridgeBank struct {
	ID      int64   `json:"id"`
	Name    string  `json:"name"`
	LogoURL *string `json:"logo_url"`
}

// BridgeCategory is the category reference resource resolved from a
// transaction's category id.
type BridgeCategory struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// UserCredentials is the login/secret pair a Bridge user is registered and
// authenticated with. It is derived deterministically per customer and never
// persisted.
type UserCredentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthenticationResponse is the Bridge response to POST /v2/authenticate.
type AuthenticationResponse struct {
	AccessToken string     `json:"access_token"`
	ExpiresAt   string     `json:"expires_at"`
	User        BridgeUser `json:"user"`
}

// BridgeUser identifies a Bridge user.
type BridgeUser struct {
	UUID  string `json:"uuid"`
	Email string `json:"email"`
}

// ConnectItemResponse is the Bridge response carrying the funnel redirect URL.
type ConnectItemResponse struct {
	RedirectURL string `json:"redirect_url"`
}

// ClientConfig carries the per-caller Bridge credentials and tuning attached
// to an Algoan service account. Every field overrides the matching process
// default when set; the value is immutable and threaded through the pipeline
// by reference to avoid cross-customer leakage.
type ClientConfig struct {
	ClientID          string `json:"clientId"`
	ClientSecret      string `json:"clientSecret"`
	BankinVersion     string `json:"bankinVersion"`
	NbOfMonths        *int   `json:"nbOfMonths,omitempty"`
	DeleteBridgeUsers *bool  `json:"deleteBridgeUsers,omitempty"`
}

package app

import (
	"context"
	"testing"

	"github.com/algoan/bridge-connector/internal/domain"
)

// stubResolver is an in-memory ResourceResolver for mapper tests.
type stubResolver struct {
	names map[string]string
	banks map[string]domain.AccountBank
	calls map[string]int
}

func newStubResolver() *stubResolver {
	return &stubResolver{
		names: make(map[string]string),
		banks: make(map[string]domain.AccountBank),
		calls: make(map[string]int),
	}
}

func (s *stubResolver) GetResourceName(_ context.Context, _ string, bridgeURI string, _ *domain.ClientConfig) (string, bool) {
	s.calls[bridgeURI]++
	if name, ok := s.names[bridgeURI]; ok {
		return name, false
	}
	return "UNKNOWN", true
}

func (s *stubResolver) GetBankInformation(_ context.Context, _ string, bridgeURI string, _ *domain.ClientConfig) (domain.AccountBank, bool) {
	s.calls[bridgeURI]++
	if bank, ok := s.banks[bridgeURI]; ok {
		return bank, false
	}
	return domain.AccountBank{Name: "UNKNOWN"}, true
}

func float64Ptr(v float64) *float64 { return &v }
func stringPtr(v string) *string    { return &v }
func intPtr(v int) *int             { return &v }

func TestMapAccountsTypeAndUsage(t *testing.T) {
	tests := []struct {
		name      string
		inType    domain.BridgeAccountType
		isPro     bool
		wantType  domain.AccountType
		wantUsage domain.AccountUsage
	}{
		{name: "card personal", inType: domain.BridgeAccountTypeCard, isPro: false, wantType: domain.AccountTypeCreditCard, wantUsage: domain.AccountUsagePersonal},
		{name: "checking professional", inType: domain.BridgeAccountTypeChecking, isPro: true, wantType: domain.AccountTypeChecking, wantUsage: domain.AccountUsageProfessional},
		{name: "brokerage maps to savings", inType: domain.BridgeAccountTypeBrokerage, isPro: false, wantType: domain.AccountTypeSavings, wantUsage: domain.AccountUsagePersonal},
		{name: "unmapped type falls back to unknown", inType: domain.BridgeAccountType("telescope"), isPro: false, wantType: domain.AccountTypeUnknown, wantUsage: domain.AccountUsagePersonal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accounts := []domain.BridgeAccount{{
				ID:           1,
				Balance:      float64Ptr(100),
				CurrencyCode: stringPtr("USD"),
				Type:         tt.inType,
				IsPro:        tt.isPro,
			}}

			mapped := MapAccounts(context.Background(), newStubResolver(), "token", accounts, nil, nil, nil)

			if len(mapped) != 1 {
				t.Fatalf("expected 1 mapped account, got %d", len(mapped))
			}
			if mapped[0].Type != tt.wantType {
				t.Fatalf("expected type %q, got %q", tt.wantType, mapped[0].Type)
			}
			if mapped[0].Usage != tt.wantUsage {
				t.Fatalf("expected usage %q, got %q", tt.wantUsage, mapped[0].Usage)
			}
		})
	}
}

func TestMapAccountsExcludesIncompleteAccounts(t *testing.T) {
	accounts := []domain.BridgeAccount{
		{ID: 1, Balance: nil, CurrencyCode: stringPtr("EUR"), Type: domain.BridgeAccountTypeChecking},
		{ID: 2, Balance: float64Ptr(42), CurrencyCode: nil, Type: domain.BridgeAccountTypeChecking},
		{ID: 3, Balance: float64Ptr(42), CurrencyCode: stringPtr("EUR"), Type: domain.BridgeAccountTypeChecking},
	}

	mapped := MapAccounts(context.Background(), newStubResolver(), "token", accounts, nil, nil, nil)

	if len(mapped) != 1 {
		t.Fatalf("expected only the complete account to be mapped, got %d accounts", len(mapped))
	}
	if mapped[0].Aggregator.ID != "3" {
		t.Fatalf("expected account 3 to survive, got %q", mapped[0].Aggregator.ID)
	}
}

func TestMapAccountsLoanInterestRate(t *testing.T) {
	accounts := []domain.BridgeAccount{{
		ID:           7,
		Balance:      float64Ptr(-12000),
		CurrencyCode: stringPtr("EUR"),
		Type:         domain.BridgeAccountTypeLoan,
		LoanDetails: &domain.BridgeLoanDetails{
			BorrowedCapital:   140000,
			RemainingCapital:  100000,
			NextPaymentAmount: 1000,
			InterestRate:      1.25,
			OpeningDate:       "2019-04-06",
			MaturityDate:      "2026-04-06",
		},
	}}

	mapped := MapAccounts(context.Background(), newStubResolver(), "token", accounts, nil, nil, nil)

	if len(mapped) != 1 {
		t.Fatalf("expected 1 mapped account, got %d", len(mapped))
	}
	loan := mapped[0].Details.Loan
	if loan == nil {
		t.Fatal("expected a loan sub-record")
	}
	if loan.InterestRate != 0.0125 {
		t.Fatalf("expected interest rate 0.0125, got %v", loan.InterestRate)
	}
	if loan.Amount != 140000 {
		t.Fatalf("expected loan amount 140000, got %v", loan.Amount)
	}
	if loan.Type != domain.AccountLoanTypeOther {
		t.Fatalf("expected loan type OTHER, got %q", loan.Type)
	}
}

func TestMapAccountsOwnerResolutionOrder(t *testing.T) {
	userInfo := []domain.BridgeUserInformation{
		{ItemID: 10, FirstName: stringPtr("Jane"), LastName: stringPtr("Doe")},
	}
	accountInfo := []domain.BridgeAccountInformation{
		{
			FirstName: stringPtr("John"),
			LastName:  stringPtr("Smith"),
			Accounts: []struct {
				ID   int64  `json:"id"`
				Name string `json:"name"`
			}{{ID: 10, Name: "main"}, {ID: 20, Name: "other"}},
		},
	}

	tests := []struct {
		name      string
		itemID    int64
		wantOwner string
		wantNone  bool
	}{
		{name: "personal information record wins", itemID: 10, wantOwner: "Jane Doe"},
		{name: "account information fallback", itemID: 20, wantOwner: "John Smith"},
		{name: "no match emits no owners", itemID: 30, wantNone: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accounts := []domain.BridgeAccount{{
				ID:           1,
				ItemID:       tt.itemID,
				Balance:      float64Ptr(1),
				CurrencyCode: stringPtr("EUR"),
				Type:         domain.BridgeAccountTypeChecking,
			}}

			mapped := MapAccounts(context.Background(), newStubResolver(), "token", accounts, userInfo, accountInfo, nil)

			if tt.wantNone {
				if len(mapped[0].Owners) != 0 {
					t.Fatalf("expected no owners, got %+v", mapped[0].Owners)
				}
				return
			}
			if len(mapped[0].Owners) != 1 || mapped[0].Owners[0].Name != tt.wantOwner {
				t.Fatalf("expected owner %q, got %+v", tt.wantOwner, mapped[0].Owners)
			}
		})
	}
}

func TestMapAccountsBankInformation(t *testing.T) {
	resolver := newStubResolver()
	logo := "https://bank.example/logo.png"
	resolver.banks["/v2/banks/6"] = domain.AccountBank{Name: "Gringotts", LogoURL: &logo}

	accounts := []domain.BridgeAccount{{
		ID:           1,
		BankID:       6,
		Balance:      float64Ptr(1),
		CurrencyCode: stringPtr("EUR"),
		Type:         domain.BridgeAccountTypeChecking,
	}}

	mapped := MapAccounts(context.Background(), resolver, "token", accounts, nil, nil, nil)

	bank := mapped[0].Bank
	if bank == nil || bank.Name != "Gringotts" {
		t.Fatalf("expected bank name to be resolved, got %+v", bank)
	}
	if bank.ID != "6" {
		t.Fatalf("expected bank id %q, got %q", "6", bank.ID)
	}
}

func TestMapTransactionsDates(t *testing.T) {
	resolver := newStubResolver()
	resolver.names["/v2/categories/5"] = "Restaurants"

	booking := "2021-03-02"
	transactions := []domain.BridgeTransaction{
		{ID: 1, Date: "2021-03-01", BookingDate: &booking, CategoryID: 5, Amount: -15.5, CurrencyCode: "EUR"},
		{ID: 2, Date: "2021-03-01", CategoryID: 5, Amount: -8, CurrencyCode: "EUR"},
	}

	mapped := MapTransactions(context.Background(), resolver, "token", transactions, nil)

	if len(mapped) != 2 {
		t.Fatalf("expected 2 mapped transactions, got %d", len(mapped))
	}

	withBooking := mapped[0]
	if withBooking.Dates.DebitedAt == nil || withBooking.Dates.BookedAt == nil {
		t.Fatal("expected both timestamps to be set")
	}
	if *withBooking.Dates.DebitedAt == *withBooking.Dates.BookedAt {
		t.Fatal("expected booked timestamp to come from the booking date")
	}

	withoutBooking := mapped[1]
	if withoutBooking.Dates.DebitedAt == nil || withoutBooking.Dates.BookedAt == nil {
		t.Fatal("expected both timestamps to be set")
	}
	if *withoutBooking.Dates.DebitedAt != *withoutBooking.Dates.BookedAt {
		t.Fatal("expected both timestamps to derive from the single available date")
	}

	if withBooking.Aggregator.Category != "Restaurants" {
		t.Fatalf("expected resolved category, got %q", withBooking.Aggregator.Category)
	}
}

func TestMapTransactionsDegradedCategory(t *testing.T) {
	transactions := []domain.BridgeTransaction{
		{ID: 1, Date: "2021-03-01", CategoryID: 99, Amount: -8, CurrencyCode: "EUR"},
	}

	mapped := MapTransactions(context.Background(), newStubResolver(), "token", transactions, nil)

	if mapped[0].Aggregator.Category != "UNKNOWN" {
		t.Fatalf("expected UNKNOWN category sentinel, got %q", mapped[0].Aggregator.Category)
	}
}

func TestMapDateNormalizesBridgeTimestamps(t *testing.T) {
	// 2019-04-06 13:53:12 in Paris is 11:53:12 UTC (CEST, +2).
	got := mapDate("2019-04-06 13:53:12")
	want := "2019-04-06T11:53:12.000Z"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestMapDateDefaultsToNow(t *testing.T) {
	got := mapDate("")
	if got == "" {
		t.Fatal("expected a timestamp for an empty bridge date")
	}
}

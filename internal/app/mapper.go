/**
 * @description
 * This file translates Bridge records into the Algoan analysis schema:
 * account type/usage remapping, balance date normalization, owner-name
 * resolution, loan interest-rate conversion and transaction date rules.
 *
 * The mapping itself is pure; the only I/O is the cached bank and category
 * name resolution delegated to the ResourceResolver.
 */
package app

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/algoan/bridge-connector/internal/domain"
)

// ResourceResolver resolves Bridge reference URIs to display information.
// Lookups are cached and degrade to an "UNKNOWN" sentinel, signalled by the
// boolean, instead of failing the caller.
type ResourceResolver interface {
	GetResourceName(ctx context.Context, accessToken, bridgeURI string, clientConfig *domain.ClientConfig) (string, bool)
	GetBankInformation(ctx context.Context, accessToken, bridgeURI string, clientConfig *domain.ClientConfig) (domain.AccountBank, bool)
}

var accountTypeMapping = map[domain.BridgeAccountType]domain.AccountType{
	domain.BridgeAccountTypeChecking:         domain.AccountTypeChecking,
	domain.BridgeAccountTypeSavings:          domain.AccountTypeSavings,
	domain.BridgeAccountTypeBrokerage:        domain.AccountTypeSavings,
	domain.BridgeAccountTypeCard:             domain.AccountTypeCreditCard,
	domain.BridgeAccountTypeLoan:             domain.AccountTypeLoan,
	domain.BridgeAccountTypeSharedSavingPlan: domain.AccountTypeSavings,
	domain.BridgeAccountTypeLifeInsurance:    domain.AccountTypeSavings,
}

// bridgeTimezone is the timezone Bridge reports naive timestamps in.
var bridgeTimezone = loadBridgeTimezone()

func loadBridgeTimezone() *time.Location {
	location, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		log.Printf("level=warn component=mapper msg=\"Europe/Paris tz database entry unavailable, using CET\" err=%v", err)

		return time.FixedZone("CET", 3600)
	}

	return location
}

// MapAccounts translates Bridge accounts into Algoan analysis accounts.
// Accounts missing a balance or a currency are excluded from the result; the
// rest of the run proceeds with what remains.
func MapAccounts(
	ctx context.Context,
	resolver ResourceResolver,
	accessToken string,
	accounts []domain.BridgeAccount,
	userInfo []domain.BridgeUserInformation,
	accountInfo []domain.BridgeAccountInformation,
	clientConfig *domain.ClientConfig,
) []domain.Account {
	mapped := make([]domain.Account, 0, len(accounts))
	for _, account := range accounts {
		if account.Balance == nil || account.CurrencyCode == nil {
			log.Printf("level=warn component=mapper msg=\"skipping account without balance or currency\" account_id=%d", account.ID)
			continue
		}

		mapped = append(mapped, mapAccount(ctx, resolver, accessToken, account, userInfo, accountInfo, clientConfig))
	}

	return mapped
}

func mapAccount(
	ctx context.Context,
	resolver ResourceResolver,
	accessToken string,
	account domain.BridgeAccount,
	userInfo []domain.BridgeUserInformation,
	accountInfo []domain.BridgeAccountInformation,
	clientConfig *domain.ClientConfig,
) domain.Account {
	accountType := mapAccountType(account.Type)

	bank, _ := resolver.GetBankInformation(ctx, accessToken, fmt.Sprintf("/v2/banks/%d", account.BankID), clientConfig)
	bank.ID = strconv.FormatInt(account.BankID, 10)

	return domain.Account{
		Balance:     *account.Balance,
		BalanceDate: mapDate(account.UpdatedAt),
		Currency:    *account.CurrencyCode,
		Type:        accountType,
		Usage:       mapUsageType(account.IsPro),
		Owners:      mapOwners(account.ItemID, userInfo, accountInfo),
		IBAN:        account.IBAN,
		Name:        account.Name,
		Bank:        &bank,
		Details:     mapAccountDetails(accountType, account.LoanDetails),
		Aggregator:  domain.AccountAggregator{ID: strconv.FormatInt(account.ID, 10)},
	}
}

// mapAccountType maps the Algoan account type from the Bridge type. Unmapped
// values fall back to UNKNOWN.
func mapAccountType(accountType domain.BridgeAccountType) domain.AccountType {
	if mapped, ok := accountTypeMapping[accountType]; ok {
		return mapped
	}

	return domain.AccountTypeUnknown
}

// mapUsageType maps the Algoan usage from the Bridge professional flag.
func mapUsageType(isPro bool) domain.AccountUsage {
	if isPro {
		return domain.AccountUsageProfessional
	}

	return domain.AccountUsagePersonal
}

func mapAccountDetails(accountType domain.AccountType, loan *domain.BridgeLoanDetails) *domain.AccountDetails {
	details := domain.AccountDetails{}
	if accountType == domain.AccountTypeSavings {
		details.Savings = &domain.AccountSavingsDetails{}
	}
	if loan != nil {
		details.Loan = &domain.AccountLoanDetails{
			Amount:           loan.BorrowedCapital,
			StartDate:        mapDate(loan.OpeningDate),
			EndDate:          mapDate(loan.MaturityDate),
			Payment:          loan.NextPaymentAmount,
			InterestRate:     mapInterestRate(loan.InterestRate),
			RemainingCapital: loan.RemainingCapital,
			Type:             domain.AccountLoanTypeOther,
		}
	}

	if details.Savings == nil && details.Loan == nil {
		return nil
	}

	return &details
}

// mapInterestRate converts the percentage reported by Bridge (up to 2
// significant decimals) to a fraction rounded to 4 decimal places.
func mapInterestRate(rate float64) float64 {
	return math.Round(rate/100*10000) / 10000
}

// mapOwners resolves the account holder's name, checking the dedicated KYC
// record for the account's item first, then the generic account-information
// record. When neither matches, no owners are emitted.
func mapOwners(itemID int64, userInfo []domain.BridgeUserInformation, accountInfo []domain.BridgeAccountInformation) []domain.AccountOwner {
	for _, info := range userInfo {
		if info.ItemID == itemID {
			return []domain.AccountOwner{{Name: ownerName(info.FirstName, info.LastName)}}
		}
	}

	for _, info := range accountInfo {
		for _, account := range info.Accounts {
			if account.ID == itemID {
				return []domain.AccountOwner{{Name: ownerName(info.FirstName, info.LastName)}}
			}
		}
	}

	return nil
}

func ownerName(firstName, lastName *string) string {
	parts := make([]string, 0, 2)
	if firstName != nil {
		parts = append(parts, *firstName)
	}
	if lastName != nil {
		parts = append(parts, *lastName)
	}

	return strings.Join(parts, " ")
}

// MapTransactions translates Bridge transactions into Algoan analysis
// transactions, resolving each category through the cached lookup.
func MapTransactions(
	ctx context.Context,
	resolver ResourceResolver,
	accessToken string,
	transactions []domain.BridgeTransaction,
	clientConfig *domain.ClientConfig,
) []domain.AccountTransaction {
	mapped := make([]domain.AccountTransaction, 0, len(transactions))
	for _, transaction := range transactions {
		category, _ := resolver.GetResourceName(
			ctx,
			accessToken,
			fmt.Sprintf("/v2/categories/%d", transaction.CategoryID),
			clientConfig,
		)

		mapped = append(mapped, domain.AccountTransaction{
			Dates:       mapTransactionDates(transaction),
			Description: transactionDescription(transaction),
			Amount:      transaction.Amount,
			Currency:    transaction.CurrencyCode,
			IsComing:    transaction.IsFuture,
			Aggregator: domain.TransactionAggregator{
				ID:       strconv.FormatInt(transaction.ID, 10),
				Category: category,
			},
		})
	}

	return mapped
}

// mapTransactionDates applies the date rules: with an explicit booking date
// the debited and booked timestamps come from their respective sources,
// without one both derive from the single available date.
func mapTransactionDates(transaction domain.BridgeTransaction) domain.TransactionDates {
	debitedAt := mapDate(transaction.Date)
	bookedAt := debitedAt
	if transaction.BookingDate != nil && *transaction.BookingDate != "" {
		bookedAt = mapDate(*transaction.BookingDate)
	}

	return domain.TransactionDates{DebitedAt: &debitedAt, BookedAt: &bookedAt}
}

func transactionDescription(transaction domain.BridgeTransaction) string {
	if transaction.BankDescription != "" {
		return transaction.BankDescription
	}

	return transaction.Description
}

// mapDate normalizes a Bridge timestamp to RFC 3339 UTC. Naive timestamps
// are interpreted in the Bridge timezone; a missing timestamp defaults to now.
func mapDate(bridgeDate string) string {
	return parseBridgeDate(bridgeDate).UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// parseBridgeDate parses the timestamp formats Bridge is known to emit.
func parseBridgeDate(bridgeDate string) time.Time {
	if bridgeDate == "" {
		return time.Now()
	}

	if parsed, err := time.Parse(time.RFC3339, bridgeDate); err == nil {
		return parsed
	}
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02"} {
		if parsed, err := time.ParseInLocation(layout, bridgeDate, bridgeTimezone); err == nil {
			return parsed
		}
	}

	log.Printf("level=warn component=mapper msg=\"unparseable bridge date, defaulting to now\" date=%q", bridgeDate)

	return time.Now()
}

// sortTransactionsByDate orders Bridge transactions by transaction date
// ascending, in place.
func sortTransactionsByDate(transactions []domain.BridgeTransaction) {
	sort.SliceStable(transactions, func(i, j int) bool {
		return parseBridgeDate(transactions[i].Date).Before(parseBridgeDate(transactions[j].Date))
	})
}

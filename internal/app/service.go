/**
 * @description
 * This file contains the core business logic of the connector: the
 * synchronization pipeline triggered by the "bank_details_required" event and
 * the redirect-URL flow triggered by "aggregator_link_required".
 *
 * The pipeline is strictly sequential within a run: Algoan authentication,
 * customer lookup, Bridge authentication with derived credentials, optional
 * connection refresh polling, account retrieval, best-effort owner lookups,
 * schema mapping, the bounded transaction collection loop, analysis
 * reporting, and best-effort user deletion. Failures are classified by the
 * origin of the failing request (Algoan or the aggregator), reported as an
 * analysis error record, and returned to the caller.
 */
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/algoan/bridge-connector/internal/domain"
	"github.com/algoan/bridge-connector/pkg/algoanclient"
	"github.com/algoan/bridge-connector/pkg/bridgeclient"
)

// AggregatorGateway defines the Bridge operations the pipeline needs.
type AggregatorGateway interface {
	ResourceResolver
	Register(ctx context.Context, credentials domain.UserCredentials, clientConfig *domain.ClientConfig) (*domain.BridgeUser, error)
	Authenticate(ctx context.Context, credentials domain.UserCredentials, clientConfig *domain.ClientConfig) (*domain.AuthenticationResponse, error)
	ConnectItemURL(ctx context.Context, accessToken, callbackContext, prefillEmail string, clientConfig *domain.ClientConfig) (string, error)
	GetAccounts(ctx context.Context, accessToken string, clientConfig *domain.ClientConfig) ([]domain.BridgeAccount, error)
	GetTransactions(ctx context.Context, accessToken, lastUpdatedAt string, clientConfig *domain.ClientConfig) ([]domain.BridgeTransaction, error)
	RefreshItem(ctx context.Context, accessToken, itemID string, clientConfig *domain.ClientConfig) error
	GetRefreshStatus(ctx context.Context, accessToken, itemID string, clientConfig *domain.ClientConfig) (*domain.BridgeRefreshStatus, error)
	GetUserPersonalInformation(ctx context.Context, accessToken string, clientConfig *domain.ClientConfig) ([]domain.BridgeUserInformation, error)
	GetAccountsInformation(ctx context.Context, accessToken string, clientConfig *domain.ClientConfig) ([]domain.BridgeAccountInformation, error)
	DeleteUser(ctx context.Context, accessToken, userID string, clientConfig *domain.ClientConfig) error
}

// PlatformClient defines the Algoan operations the pipeline needs.
type PlatformClient interface {
	Authenticate(ctx context.Context) error
	GetCustomer(ctx context.Context, customerID string) (*domain.Customer, error)
	UpdateCustomer(ctx context.Context, customerID string, update domain.CustomerUpdate) error
	UpdateAnalysis(ctx context.Context, customerID, analysisID string, update domain.AnalysisUpdate) error
	UpdateEventStatus(ctx context.Context, subscriptionID, eventID string, status domain.EventStatus) error
}

// Settings are the process-wide synchronization defaults. Per-caller
// ClientConfig values override NbOfMonths and DeleteBridgeUsers.
type Settings struct {
	UserSecretKey          string
	SyncTimeout            time.Duration
	SyncWaitInterval       time.Duration
	RefreshTimeout         time.Duration
	RefreshWaitInterval    time.Duration
	NbOfMonths             int
	DeleteBridgeUsers      bool
	ForceDeleteBridgeUsers bool
}

// Service orchestrates the synchronization pipeline.
type Service struct {
	algoan   PlatformClient
	bridge   AggregatorGateway
	settings Settings
}

// NewService creates a new connector service.
func NewService(algoan PlatformClient, bridge AggregatorGateway, settings Settings) Service {
	return Service{algoan: algoan, bridge: bridge, settings: settings}
}

// HandleAggregatorLinkRequired generates a Bridge funnel redirect URL for the
// customer and stores it on their Algoan record.
func (s Service) HandleAggregatorLinkRequired(ctx context.Context, payload domain.AggregatorLinkRequiredPayload, clientConfig *domain.ClientConfig) error {
	if err := s.algoan.Authenticate(ctx); err != nil {
		return err
	}

	customer, err := s.algoan.GetCustomer(ctx, payload.CustomerID)
	if err != nil {
		return err
	}
	log.Printf("Found customer with id %s", customer.ID)

	if customer.AggregationDetails.Mode != domain.AggregationModeRedirect {
		return fmt.Errorf("invalid bank connection mode %q for customer %s", customer.AggregationDetails.Mode, customer.ID)
	}

	credentials := DeriveCredentials(customer.ID, s.settings.UserSecretKey)
	if _, err := s.bridge.Register(ctx, credentials, clientConfig); err != nil {
		// Re-linking reuses the derived credentials; an existing user is fine.
		var apiErr *bridgeclient.APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != 409 {
			return err
		}
		log.Printf("Bridge user already exists for customer %s", customer.ID)
	}

	auth, err := s.bridge.Authenticate(ctx, credentials, clientConfig)
	if err != nil {
		return err
	}

	var email string
	if customer.PersonalDetails != nil && customer.PersonalDetails.Contact != nil {
		email = customer.PersonalDetails.Contact.Email
	}
	redirectURL, err := s.bridge.ConnectItemURL(ctx, auth.AccessToken, customer.AggregationDetails.CallbackURL, email, clientConfig)
	if err != nil {
		return err
	}

	if err := s.algoan.UpdateCustomer(ctx, customer.ID, domain.CustomerUpdate{
		AggregationDetails: domain.AggregationDetails{
			AggregatorName: "BRIDGE",
			RedirectURL:    redirectURL,
		},
	}); err != nil {
		return err
	}
	log.Printf("Updated customer %s with redirect url", customer.ID)

	return nil
}

// HandleBankDetailsRequired runs the synchronization pipeline for the given
// customer and analysis. On failure, an error record is reported to Algoan
// before the original error is returned; if that report itself fails, the
// report error is returned instead, as there is no fallback channel.
func (s Service) HandleBankDetailsRequired(ctx context.Context, payload domain.BankDetailsRequiredPayload, clientConfig *domain.ClientConfig) error {
	runID := uuid.NewString()

	err := s.synchronize(ctx, runID, payload, clientConfig)
	if err == nil {
		return nil
	}

	update := domain.AnalysisUpdate{
		Status: domain.AnalysisStatusError,
		Error: &domain.AnalysisError{
			Code:    domain.AnalysisErrorCodeInternal,
			Message: failureMessage(err),
		},
	}
	if reportErr := s.algoan.UpdateAnalysis(ctx, payload.CustomerID, payload.AnalysisID, update); reportErr != nil {
		log.Printf("[%s] Failed to report synchronization failure for analysis %s: %v", runID, payload.AnalysisID, reportErr)

		return reportErr
	}
	log.Printf("[%s] Synchronization failed for customer %s: %v", runID, payload.CustomerID, err)

	return err
}

// failureMessage classifies a pipeline error by the origin of the failing
// request: Algoan responses carry an algoanclient.APIError, everything else
// failed on the way to or from the aggregator.
func failureMessage(err error) string {
	var algoanErr *algoanclient.APIError
	if errors.As(err, &algoanErr) {
		return "An error occurred on Algoan's side while synchronizing bank details"
	}

	return "An error occurred while fetching data from the aggregator"
}

func (s Service) synchronize(ctx context.Context, runID string, payload domain.BankDetailsRequiredPayload, clientConfig *domain.ClientConfig) error {
	// Authenticate to Algoan.
	if err := s.algoan.Authenticate(ctx); err != nil {
		return err
	}

	// Get customer information.
	customer, err := s.algoan.GetCustomer(ctx, payload.CustomerID)
	if err != nil {
		return err
	}
	log.Printf("[%s] Found customer with id %s", runID, customer.ID)

	// Retrieve an access token from Bridge with the derived credentials.
	credentials := DeriveCredentials(customer.ID, s.settings.UserSecretKey)
	auth, err := s.bridge.Authenticate(ctx, credentials, clientConfig)
	if err != nil {
		return err
	}
	accessToken := auth.AccessToken

	// An already-linked connection is refreshed before reading its state.
	if connectionID := customer.AggregationDetails.ConnectionID; connectionID != "" {
		if err := s.refreshConnection(ctx, runID, accessToken, connectionID, clientConfig); err != nil {
			return err
		}
	}

	accounts, err := s.bridge.GetAccounts(ctx, accessToken, clientConfig)
	if err != nil {
		return err
	}
	log.Printf("[%s] %d Bridge accounts retrieved for customer %s", runID, len(accounts), customer.ID)

	// Owner identity lookups are decorative; continue with what resolved.
	var userInfo []domain.BridgeUserInformation
	if userInfo, err = s.bridge.GetUserPersonalInformation(ctx, accessToken, clientConfig); err != nil {
		log.Printf("[%s] level=warn msg=\"unable to get user personal information\" err=%v", runID, err)
		userInfo = nil
	}
	var accountInfo []domain.BridgeAccountInformation
	if accountInfo, err = s.bridge.GetAccountsInformation(ctx, accessToken, clientConfig); err != nil {
		log.Printf("[%s] level=warn msg=\"unable to get accounts information\" err=%v", runID, err)
		accountInfo = nil
	}

	mappedAccounts := MapAccounts(ctx, s.bridge, accessToken, accounts, userInfo, accountInfo, clientConfig)

	transactions, err := s.collectTransactions(ctx, runID, accessToken, clientConfig)
	if err != nil {
		return err
	}

	// Group transactions by their owning account and attach the mapped result.
	grouped := make(map[string][]domain.BridgeTransaction, len(mappedAccounts))
	for _, transaction := range transactions {
		key := fmt.Sprintf("%d", transaction.Account.ID)
		grouped[key] = append(grouped[key], transaction)
	}
	for i := range mappedAccounts {
		group := grouped[mappedAccounts[i].Aggregator.ID]
		if len(group) == 0 {
			continue
		}
		mappedAccounts[i].Transactions = MapTransactions(ctx, s.bridge, accessToken, group, clientConfig)
	}

	if err := s.algoan.UpdateAnalysis(ctx, customer.ID, payload.AnalysisID, domain.AnalysisUpdate{
		Accounts: mappedAccounts,
	}); err != nil {
		return err
	}
	log.Printf("[%s] Analysis %s updated with %d accounts", runID, payload.AnalysisID, len(mappedAccounts))

	// Cleanup never negates a successful report.
	if s.shouldDeleteUser(clientConfig) {
		if err := s.bridge.DeleteUser(ctx, accessToken, auth.User.UUID, clientConfig); err != nil {
			log.Printf("[%s] level=warn msg=\"unable to delete bridge user\" user=%s err=%v", runID, auth.User.UUID, err)
		}
	}

	return nil
}

// refreshConnection triggers a refresh of the Bridge item and polls its
// status at a fixed interval until it reports "finished" or the deadline
// elapses. A timeout is not an error: the pipeline proceeds with whatever
// state Bridge currently reports.
func (s Service) refreshConnection(ctx context.Context, runID, accessToken, connectionID string, clientConfig *domain.ClientConfig) error {
	if err := s.bridge.RefreshItem(ctx, accessToken, connectionID, clientConfig); err != nil {
		return err
	}

	deadline := time.Now().Add(s.settings.RefreshTimeout)
	for time.Now().Before(deadline) {
		status, err := s.bridge.GetRefreshStatus(ctx, accessToken, connectionID, clientConfig)
		if err != nil {
			return err
		}
		if status.Status == domain.BridgeRefreshStatusFinished {
			log.Printf("[%s] Refresh of connection %s finished", runID, connectionID)

			return nil
		}

		time.Sleep(s.settings.RefreshWaitInterval)
	}

	log.Printf("[%s] level=warn msg=\"refresh of connection did not finish before the deadline\" connection=%s", runID, connectionID)

	return nil
}

// collectTransactions runs the bounded collection loop: fetch the full
// paginated set updated since the cursor, advance the cursor to the newest
// update seen, resort by transaction date, and stop on an empty page, when
// the oldest fetched transaction falls out of the configured window, or when
// the overall deadline elapses. The window is evaluated against the oldest
// fetched date, so its tightness depends on Bridge's response ordering.
func (s Service) collectTransactions(ctx context.Context, runID, accessToken string, clientConfig *domain.ClientConfig) ([]domain.BridgeTransaction, error) {
	nbOfMonths := s.settings.NbOfMonths
	if clientConfig != nil && clientConfig.NbOfMonths != nil {
		nbOfMonths = *clientConfig.NbOfMonths
	}

	deadline := time.Now().Add(s.settings.SyncTimeout)
	var collected []domain.BridgeTransaction
	var lastUpdatedAt string

	for {
		fetched, err := s.bridge.GetTransactions(ctx, accessToken, lastUpdatedAt, clientConfig)
		if err != nil {
			return nil, err
		}
		if len(fetched) == 0 {
			break
		}

		collected = append(collected, fetched...)
		for _, transaction := range fetched {
			if transaction.UpdatedAt > lastUpdatedAt {
				lastUpdatedAt = transaction.UpdatedAt
			}
		}

		sortTransactionsByDate(collected)
		oldestDateSeen := parseBridgeDate(collected[0].Date)

		time.Sleep(s.settings.SyncWaitInterval)

		windowStart := time.Now().AddDate(0, -nbOfMonths, 0)
		if oldestDateSeen.Before(windowStart) || !time.Now().Before(deadline) {
			break
		}
	}

	log.Printf("[%s] Collected %d Bridge transactions", runID, len(collected))

	return collected, nil
}

// shouldDeleteUser resolves the cleanup flag: the per-caller configuration
// overrides the process default, and the force flag overrides both.
func (s Service) shouldDeleteUser(clientConfig *domain.ClientConfig) bool {
	if s.settings.ForceDeleteBridgeUsers {
		return true
	}
	if clientConfig != nil && clientConfig.DeleteBridgeUsers != nil {
		return *clientConfig.DeleteBridgeUsers
	}

	return s.settings.DeleteBridgeUsers
}

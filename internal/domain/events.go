/**
 * @description
 * This file defines the webhook event envelope sent by Algoan and the typed
 * payloads of the events this connector reacts to.
 */
package domain

import "encoding/json"

// EventName identifies a webhook event type.
type EventName string

const (
	EventNameServiceAccountCreated  EventName = "service_account_created"
	EventNameServiceAccountUpdated  EventName = "service_account_updated"
	EventNameServiceAccountDeleted  EventName = "service_account_deleted"
	EventNameAggregatorLinkRequired EventName = "aggregator_link_required"
	EventNameBankDetailsRequired    EventName = "bank_details_required"
)

// EventStatus is the acknowledgement status reported back for an event.
type EventStatus string

const (
	EventStatusProcessed EventStatus = "PROCESSED"
	EventStatusError     EventStatus = "ERROR"
	EventStatusFailed    EventStatus = "FAILED"
)

// Subscription describes the webhook subscription an event belongs to.
type Subscription struct {
	ID        string    `json:"id"`
	Target    string    `json:"target"`
	EventName EventName `json:"eventName"`
	Status    string    `json:"status"`
}

// Event is the webhook envelope posted by Algoan. The payload is kept raw
// until the dispatch table selects a handler for the event name.
type Event struct {
	ID           string          `json:"id"`
	Index        int             `json:"index"`
	Time         int64           `json:"time"`
	Subscription Subscription    `json:"subscription"`
	Payload      json.RawMessage `json:"payload"`
}

// AggregatorLinkRequiredPayload is the payload of "aggregator_link_required".
type AggregatorLinkRequiredPayload struct {
	CustomerID string `json:"customerId"`
}

// BankDetailsRequiredPayload is the payload of "bank_details_required".
type BankDetailsRequiredPayload struct {
	CustomerID    string  `json:"customerId"`
	AnalysisID    string  `json:"analysisId"`
	TemporaryCode *string `json:"temporaryCode,omitempty"`
}

/**
 * @description
 * This file contains the HTTP handler for processing incoming webhooks from
 * Algoan. It acts as the entry point for every synchronization request.
 *
 * Key features:
 * - Security: Validates the HMAC signature of incoming webhooks to ensure
 *   authenticity before anything else runs.
 * - Routing: A dispatch table maps each recognized event name to its handler;
 *   unrecognized events are acknowledged but never dispatched.
 * - Fire-and-forget: The caller gets a synchronous 204 acknowledgement while
 *   the pipeline runs as a detached background task.
 * - Duplicate suppression: Recently seen event ids are ignored for a short
 *   window, absorbing webhook redeliveries.
 */
package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/algoan/bridge-connector/internal/domain"
)

// duplicateEventWindow is how long an event id is remembered.
const duplicateEventWindow = 5 * time.Minute

// EventDispatcher runs the business flow behind a recognized event.
type EventDispatcher interface {
	HandleAggregatorLinkRequired(ctx context.Context, payload domain.AggregatorLinkRequiredPayload, clientConfig *domain.ClientConfig) error
	HandleBankDetailsRequired(ctx context.Context, payload domain.BankDetailsRequiredPayload, clientConfig *domain.ClientConfig) error
}

// EventAcknowledger reports the processing outcome of an event to Algoan.
type EventAcknowledger interface {
	UpdateEventStatus(ctx context.Context, subscriptionID, eventID string, status domain.EventStatus) error
}

type eventHandlerFunc func(ctx context.Context, event domain.Event) error

// WebhookHandler processes incoming webhooks from Algoan.
type WebhookHandler struct {
	dispatcher   EventDispatcher
	acknowledger EventAcknowledger
	secret       string
	clientConfig *domain.ClientConfig

	handlers map[domain.EventName]eventHandlerFunc

	mutex           sync.Mutex
	processedEvents map[string]time.Time
}

// NewWebhookHandler creates a new handler for the webhook endpoint.
func NewWebhookHandler(dispatcher EventDispatcher, acknowledger EventAcknowledger, secret string, clientConfig *domain.ClientConfig) *WebhookHandler {
	h := &WebhookHandler{
		dispatcher:      dispatcher,
		acknowledger:    acknowledger,
		secret:          secret,
		clientConfig:    clientConfig,
		processedEvents: make(map[string]time.Time),
	}

	h.handlers = map[domain.EventName]eventHandlerFunc{
		domain.EventNameAggregatorLinkRequired: h.handleAggregatorLinkRequired,
		domain.EventNameBankDetailsRequired:    h.handleBankDetailsRequired,
	}

	return h
}

// ServeHTTP implements the http.Handler interface.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("Error reading webhook body: %v", err)
		http.Error(w, "Cannot read request body", http.StatusBadRequest)
		return
	}

	if !h.isValidSignature(r.Header.Get("x-hub-signature"), body) {
		log.Printf("Error: invalid webhook signature")
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	var event domain.Event
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("Error decoding webhook JSON: %v", err)
		http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}
	if event.ID == "" || event.Subscription.ID == "" || event.Subscription.EventName == "" {
		log.Printf("Webhook missing required fields. Raw payload: %s", string(body))
		http.Error(w, "Missing event fields", http.StatusBadRequest)
		return
	}

	log.Printf("Received webhook event %q (id %s)", event.Subscription.EventName, event.ID)

	if h.isDuplicateEvent(event.ID, string(event.Subscription.EventName)) {
		log.Printf("Duplicate event detected and ignored: %s", event.ID)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	// Acknowledge first; the pipeline runs detached from the HTTP caller.
	go h.dispatchAndHandle(event)

	w.WriteHeader(http.StatusNoContent)
}

// dispatchAndHandle selects the handler for the event name, runs it, and
// reports the outcome back to Algoan.
func (h *WebhookHandler) dispatchAndHandle(event domain.Event) {
	ctx := context.Background()

	handler, known := h.handlers[event.Subscription.EventName]
	if !known {
		log.Printf("Unhandled webhook event type: %s", event.Subscription.EventName)
		h.acknowledge(ctx, event, domain.EventStatusFailed)
		return
	}

	if err := handler(ctx, event); err != nil {
		log.Printf("Error handling event %s (%s): %v", event.ID, event.Subscription.EventName, err)
		h.acknowledge(ctx, event, domain.EventStatusError)
		return
	}

	h.acknowledge(ctx, event, domain.EventStatusProcessed)
}

func (h *WebhookHandler) handleAggregatorLinkRequired(ctx context.Context, event domain.Event) error {
	var payload domain.AggregatorLinkRequiredPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return err
	}

	return h.dispatcher.HandleAggregatorLinkRequired(ctx, payload, h.clientConfig)
}

func (h *WebhookHandler) handleBankDetailsRequired(ctx context.Context, event domain.Event) error {
	var payload domain.BankDetailsRequiredPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return err
	}

	return h.dispatcher.HandleBankDetailsRequired(ctx, payload, h.clientConfig)
}

// acknowledge is best-effort; a failed acknowledgement never affects the
// pipeline outcome.
func (h *WebhookHandler) acknowledge(ctx context.Context, event domain.Event, status domain.EventStatus) {
	if h.acknowledger == nil {
		return
	}
	if err := h.acknowledger.UpdateEventStatus(ctx, event.Subscription.ID, event.ID, status); err != nil {
		log.Printf("level=warn component=api msg=\"failed to acknowledge event\" event=%s status=%s err=%v", event.ID, status, err)
	}
}

// isValidSignature validates the HMAC-SHA256 signature of the webhook body.
// The header carries either "sha256=<hex>" or the bare hex digest.
func (h *WebhookHandler) isValidSignature(signatureHeader string, body []byte) bool {
	if h.secret == "" {
		log.Println("Warning: RESTHOOK_SECRET is not set. Skipping signature validation.")
		return true
	}

	header := strings.TrimSpace(signatureHeader)
	if header == "" {
		log.Println("Missing x-hub-signature header")
		return false
	}
	header = strings.TrimPrefix(strings.ToLower(header), "sha256=")

	provided, err := hex.DecodeString(header)
	if err != nil {
		log.Printf("Malformed x-hub-signature header: %v", err)
		return false
	}

	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write(body)

	return hmac.Equal(provided, mac.Sum(nil))
}

// isDuplicateEvent checks if this event was already processed recently.
func (h *WebhookHandler) isDuplicateEvent(eventID, eventName string) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	// Drop stale entries to prevent unbounded growth.
	cutoff := time.Now().Add(-time.Hour)
	for id, timestamp := range h.processedEvents {
		if timestamp.Before(cutoff) {
			delete(h.processedEvents, id)
		}
	}

	eventKey := eventID + ":" + eventName
	if timestamp, exists := h.processedEvents[eventKey]; exists {
		if time.Since(timestamp) < duplicateEventWindow {
			return true
		}
	}

	h.processedEvents[eventKey] = time.Now()

	return false
}

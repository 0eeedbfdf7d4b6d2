package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/algoan/bridge-connector/internal/domain"
)

type dispatchedCall struct {
	eventName  domain.EventName
	customerID string
	analysisID string
}

type fakeDispatcher struct {
	err   error
	calls chan dispatchedCall
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{calls: make(chan dispatchedCall, 8)}
}

func (f *fakeDispatcher) HandleAggregatorLinkRequired(_ context.Context, payload domain.AggregatorLinkRequiredPayload, _ *domain.ClientConfig) error {
	f.calls <- dispatchedCall{eventName: domain.EventNameAggregatorLinkRequired, customerID: payload.CustomerID}
	return f.err
}

func (f *fakeDispatcher) HandleBankDetailsRequired(_ context.Context, payload domain.BankDetailsRequiredPayload, _ *domain.ClientConfig) error {
	f.calls <- dispatchedCall{eventName: domain.EventNameBankDetailsRequired, customerID: payload.CustomerID, analysisID: payload.AnalysisID}
	return f.err
}

type acknowledgement struct {
	subscriptionID string
	eventID        string
	status         domain.EventStatus
}

type fakeAcknowledger struct {
	acks chan acknowledgement
}

func newFakeAcknowledger() *fakeAcknowledger {
	return &fakeAcknowledger{acks: make(chan acknowledgement, 8)}
}

func (f *fakeAcknowledger) UpdateEventStatus(_ context.Context, subscriptionID, eventID string, status domain.EventStatus) error {
	f.acks <- acknowledgement{subscriptionID: subscriptionID, eventID: eventID, status: status}
	return nil
}

const testSecret = "webhook-secret"

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func postWebhook(t *testing.T, handler http.Handler, body []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	request := httptest.NewRequest(http.MethodPost, "/hooks", bytes.NewReader(body))
	if signature != "" {
		request.Header.Set("x-hub-signature", signature)
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder
}

func waitForAck(t *testing.T, acknowledger *fakeAcknowledger) acknowledgement {
	t.Helper()
	select {
	case ack := <-acknowledger.acks:
		return ack
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the event acknowledgement")
		return acknowledgement{}
	}
}

func bankDetailsEvent(eventID string) []byte {
	return []byte(`{
		"id": "` + eventID + `",
		"index": 1,
		"time": 1617183599,
		"subscription": {"id": "sub-1", "eventName": "bank_details_required", "status": "ACTIVE"},
		"payload": {"customerId": "cust-1", "analysisId": "analysis-1"}
	}`)
}

func TestServeHTTPDispatchesSignedEvent(t *testing.T) {
	dispatcher := newFakeDispatcher()
	acknowledger := newFakeAcknowledger()
	handler := NewWebhookHandler(dispatcher, acknowledger, testSecret, nil)

	body := bankDetailsEvent("event-1")
	recorder := postWebhook(t, handler, body, signBody(testSecret, body))

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", recorder.Code)
	}

	select {
	case call := <-dispatcher.calls:
		if call.eventName != domain.EventNameBankDetailsRequired {
			t.Fatalf("expected bank_details_required, got %q", call.eventName)
		}
		if call.customerID != "cust-1" || call.analysisID != "analysis-1" {
			t.Fatalf("unexpected payload: %+v", call)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the event dispatch")
	}

	ack := waitForAck(t, acknowledger)
	if ack.status != domain.EventStatusProcessed {
		t.Fatalf("expected PROCESSED acknowledgement, got %q", ack.status)
	}
	if ack.subscriptionID != "sub-1" || ack.eventID != "event-1" {
		t.Fatalf("acknowledgement addressed to %s/%s", ack.subscriptionID, ack.eventID)
	}
}

func TestServeHTTPRejectsInvalidSignature(t *testing.T) {
	dispatcher := newFakeDispatcher()
	handler := NewWebhookHandler(dispatcher, newFakeAcknowledger(), testSecret, nil)

	body := bankDetailsEvent("event-1")
	recorder := postWebhook(t, handler, body, signBody("wrong-secret", body))

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", recorder.Code)
	}
	select {
	case call := <-dispatcher.calls:
		t.Fatalf("expected no dispatch for an unsigned event, got %+v", call)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestServeHTTPRejectsMissingSignature(t *testing.T) {
	handler := NewWebhookHandler(newFakeDispatcher(), newFakeAcknowledger(), testSecret, nil)

	recorder := postWebhook(t, handler, bankDetailsEvent("event-1"), "")

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", recorder.Code)
	}
}

func TestServeHTTPSkipsValidationWithoutSecret(t *testing.T) {
	dispatcher := newFakeDispatcher()
	handler := NewWebhookHandler(dispatcher, newFakeAcknowledger(), "", nil)

	recorder := postWebhook(t, handler, bankDetailsEvent("event-1"), "")

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", recorder.Code)
	}
}

func TestServeHTTPRejectsMalformedJSON(t *testing.T) {
	handler := NewWebhookHandler(newFakeDispatcher(), newFakeAcknowledger(), testSecret, nil)

	body := []byte(`{"id": "event-1",`)
	recorder := postWebhook(t, handler, body, signBody(testSecret, body))

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", recorder.Code)
	}
}

func TestServeHTTPRejectsMissingEventFields(t *testing.T) {
	handler := NewWebhookHandler(newFakeDispatcher(), newFakeAcknowledger(), testSecret, nil)

	body := []byte(`{"id": "event-1", "subscription": {"id": "sub-1"}, "payload": {}}`)
	recorder := postWebhook(t, handler, body, signBody(testSecret, body))

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", recorder.Code)
	}
}

func TestServeHTTPSuppressesDuplicateEvents(t *testing.T) {
	dispatcher := newFakeDispatcher()
	handler := NewWebhookHandler(dispatcher, newFakeAcknowledger(), testSecret, nil)

	body := bankDetailsEvent("event-1")
	signature := signBody(testSecret, body)

	first := postWebhook(t, handler, body, signature)
	second := postWebhook(t, handler, body, signature)

	if first.Code != http.StatusNoContent || second.Code != http.StatusNoContent {
		t.Fatalf("expected both deliveries to be acknowledged, got %d and %d", first.Code, second.Code)
	}

	select {
	case <-dispatcher.calls:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the first dispatch")
	}
	select {
	case call := <-dispatcher.calls:
		t.Fatalf("expected the redelivery to be suppressed, got %+v", call)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestServeHTTPAcknowledgesUnknownEventsAsFailed(t *testing.T) {
	dispatcher := newFakeDispatcher()
	acknowledger := newFakeAcknowledger()
	handler := NewWebhookHandler(dispatcher, acknowledger, testSecret, nil)

	body := []byte(`{
		"id": "event-1",
		"subscription": {"id": "sub-1", "eventName": "service_account_created", "status": "ACTIVE"},
		"payload": {}
	}`)
	recorder := postWebhook(t, handler, body, signBody(testSecret, body))

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", recorder.Code)
	}

	ack := waitForAck(t, acknowledger)
	if ack.status != domain.EventStatusFailed {
		t.Fatalf("expected FAILED acknowledgement, got %q", ack.status)
	}
	select {
	case call := <-dispatcher.calls:
		t.Fatalf("expected no dispatch for an unhandled event, got %+v", call)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestServeHTTPAcknowledgesHandlerErrors(t *testing.T) {
	dispatcher := newFakeDispatcher()
	dispatcher.err = errors.New("pipeline failed")
	acknowledger := newFakeAcknowledger()
	handler := NewWebhookHandler(dispatcher, acknowledger, testSecret, nil)

	body := bankDetailsEvent("event-1")
	postWebhook(t, handler, body, signBody(testSecret, body))

	ack := waitForAck(t, acknowledger)
	if ack.status != domain.EventStatusError {
		t.Fatalf("expected ERROR acknowledgement, got %q", ack.status)
	}
}

func TestIsValidSignatureAcceptsBareDigest(t *testing.T) {
	handler := NewWebhookHandler(newFakeDispatcher(), newFakeAcknowledger(), testSecret, nil)

	body := []byte(`{"id": "event-1"}`)
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)

	if !handler.isValidSignature(hex.EncodeToString(mac.Sum(nil)), body) {
		t.Fatal("expected the bare hex digest to validate")
	}
}

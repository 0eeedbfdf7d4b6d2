/**
 * @description
 * Deterministic derivation of Bridge user credentials from an Algoan customer
 * id. The same customer always resolves to the same login/secret pair, so the
 * connector never has to persist aggregator credentials.
 */
package app

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/algoan/bridge-connector/internal/domain"
)

// bridgeEmailDomain suffixes every derived Bridge login.
const bridgeEmailDomain = "algoan-bridge.com"

// maxBridgePasswordLength is Bridge's password field limit.
const maxBridgePasswordLength = 72

// DeriveCredentials maps a customer id to Bridge-facing credentials. The
// secret is an HMAC-SHA256 of the customer id under the process-wide key,
// hex-encoded and truncated to Bridge's field limit.
func DeriveCredentials(customerID, secretKey string) domain.UserCredentials {
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(customerID))

	secret := hex.EncodeToString(mac.Sum(nil))
	if len(secret) > maxBridgePasswordLength {
		secret = secret[:maxBridgePasswordLength]
	}

	return domain.UserCredentials{
		Email:    customerID + "@" + bridgeEmailDomain,
		Password: secret,
	}
}

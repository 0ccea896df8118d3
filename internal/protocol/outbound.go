package protocol

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"
)

// Outbound message builders for frames the client sends to the bot.

// SubscriptionCategories is the fixed set of variants the client asks the
// bot to stream, in the order they are requested.
var SubscriptionCategories = []Kind{
	KindConfigIsCurrent,
	KindCommand,
	KindFlyerSensors,
	KindWinchStatus,
	KindGimbalControlStatus,
	KindGimbalValue,
	KindUnhandledGimbalPacket,
}

// SubscriptionRequest is {"Subscription": [...]}.
type SubscriptionRequest struct {
	Subscription []string `json:"Subscription"`
}

// AuthResponse is {"Auth": {"digest": "..."}}.
type AuthResponse struct {
	Auth AuthDigest `json:"Auth"`
}

// AuthDigest is the body of an AuthResponse.
type AuthDigest struct {
	Digest string `json:"digest"`
}

// BuildSubscription encodes a subscription request for the given kinds.
func BuildSubscription(kinds []Kind) ([]byte, error) {
	names := make([]string, 0, len(kinds))
	for _, k := range kinds {
		names = append(names, k.String())
	}
	return json.Marshal(SubscriptionRequest{Subscription: names})
}

// BuildAuthResponse encodes the reply to an authentication challenge.
func BuildAuthResponse(challenge []byte, key string) ([]byte, error) {
	return json.Marshal(AuthResponse{Auth: AuthDigest{Digest: Digest(challenge, key)}})
}

// Digest computes Base64(HMAC-SHA512(challenge, key)), the key being the
// UTF-8 bytes of the shared secret.
func Digest(challenge []byte, key string) string {
	mac := hmac.New(sha512.New, []byte(key))
	mac.Write(challenge)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Package video mints join tokens for lesson video sessions. Tokens are
// HMAC-signed with the video app certificate and carry their own expiry;
// nothing is persisted server-side.
package video

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/giacomoarchidi/tutoring-platform/internal/crypto"
)

var (
	ErrNotConfigured = errors.New("video tokens not configured")
	ErrInvalidToken  = errors.New("invalid video token")
	ErrTokenExpired  = errors.New("video token expired")
)

type JoinToken struct {
	AppID     string `json:"app_id"`
	Channel   string `json:"channel"`
	UserID    string `json:"user_id"`
	ExpiresAt int64  `json:"expires_at"`
	Nonce     string `json:"nonce"`
}

type Issuer struct {
	appID string
	cert  []byte
	ttl   time.Duration
}

// NewIssuer returns nil when no certificate is configured; callers treat a
// nil issuer as the feature being disabled.
func NewIssuer(appID, certificate string, ttl time.Duration) *Issuer {
	if appID == "" || certificate == "" {
		return nil
	}
	return &Issuer{appID: appID, cert: []byte(certificate), ttl: ttl}
}

func (i *Issuer) Issue(channel, userID string) (string, int64, error) {
	if i == nil {
		return "", 0, ErrNotConfigured
	}
	nonce, err := crypto.NewRandomToken()
	if err != nil {
		return "", 0, err
	}
	claims := JoinToken{
		AppID:     i.appID,
		Channel:   channel,
		UserID:    userID,
		ExpiresAt: time.Now().Add(i.ttl).Unix(),
		Nonce:     nonce,
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", 0, err
	}
	encoded := base64.RawURLEncoding.EncodeToString(payload)
	return encoded + "." + i.sign(payload), claims.ExpiresAt, nil
}

func (i *Issuer) Verify(token string) (JoinToken, error) {
	if i == nil {
		return JoinToken{}, ErrNotConfigured
	}
	encoded, signature, found := strings.Cut(token, ".")
	if !found {
		return JoinToken{}, ErrInvalidToken
	}
	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return JoinToken{}, ErrInvalidToken
	}
	if !hmac.Equal([]byte(i.sign(payload)), []byte(signature)) {
		return JoinToken{}, ErrInvalidToken
	}
	var claims JoinToken
	if err := json.Unmarshal(payload, &claims); err != nil {
		return JoinToken{}, ErrInvalidToken
	}
	if time.Now().Unix() >= claims.ExpiresAt {
		return JoinToken{}, ErrTokenExpired
	}
	return claims, nil
}

func (i *Issuer) sign(payload []byte) string {
	mac := hmac.New(sha256.New, i.cert)
	mac.Write(payload)
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

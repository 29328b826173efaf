package rpcclient

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/dogebridge/dogebridge/internal/config"
	"github.com/dogebridge/dogebridge/internal/kms"
)

// proxyTokenPayload is [expire_at_secs, agent_name], the message the KMS
// signs under kms.ProxyTokenPath.
type proxyTokenPayload struct {
	_         struct{} `cbor:",toarray"`
	ExpireAt  int64
	AgentName string
}

// signedProxyToken is [expire_at_secs, agent_name, ecdsa_sig], the value
// base64url-encoded into the wire token.
type signedProxyToken struct {
	_         struct{} `cbor:",toarray"`
	ExpireAt  int64
	AgentName string
	Signature []byte
}

// ProxyTokenSource produces and caches a base64url(cbor(...)) proxy token
// signed by a KMS client, re-signing it once less than a tenth of its
// validity window remains.
type ProxyTokenSource struct {
	kms       kms.Client
	agentName string
	validity  time.Duration

	mu      sync.Mutex
	cached  string
	expires time.Time
}

// NewProxyTokenSource creates a source that signs tokens for agentName,
// valid for config.ProxyTokenValidity.
func NewProxyTokenSource(client kms.Client, agentName string) *ProxyTokenSource {
	return &ProxyTokenSource{
		kms:       client,
		agentName: agentName,
		validity:  config.ProxyTokenValidity,
	}
}

// Token returns a cached token if it still has more than a tenth of its
// validity window left, otherwise signs and caches a fresh one.
func (s *ProxyTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != "" && time.Until(s.expires) > s.validity/10 {
		return s.cached, nil
	}

	token, expires, err := s.sign(ctx, time.Now())
	if err != nil {
		return "", err
	}
	s.cached = token
	s.expires = expires
	return token, nil
}

func (s *ProxyTokenSource) sign(ctx context.Context, now time.Time) (string, time.Time, error) {
	expireAt := now.Add(s.validity)
	payload := proxyTokenPayload{ExpireAt: expireAt.Unix(), AgentName: s.agentName}

	payloadBytes, err := cbor.Marshal(payload)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: encode proxy token payload: %s", config.ErrKMS, err)
	}

	digest := sha256.Sum256(payloadBytes)
	sig, err := s.kms.Sign(ctx, kms.ProxyTokenPath, digest)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: sign proxy token: %s", config.ErrKMS, err)
	}

	signed := signedProxyToken{ExpireAt: payload.ExpireAt, AgentName: payload.AgentName, Signature: sig[:]}
	signedBytes, err := cbor.Marshal(signed)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: encode signed proxy token: %s", config.ErrKMS, err)
	}

	return base64.RawURLEncoding.EncodeToString(signedBytes), expireAt, nil
}

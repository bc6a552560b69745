// Package pairing issues short-lived, single-use tokens for a
// companion app to scan from a QR code, and validates them with
// Redeem. internal/bridge/ws does not call Redeem; its server accepts
// connections without checking a token. This is bridge-layer access
// control, deliberately outside the core's ring/registry/dispatch
// invariants — nothing here touches a Handle.
package pairing

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/skip2/go-qrcode"
	"golang.org/x/crypto/bcrypt"
)

// DefaultTTL is how long an issued token remains redeemable.
const DefaultTTL = 5 * time.Minute

var tokenEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Issued is the result of issuing a token: the PNG-encoded QR code and
// the plaintext values it encodes. The plaintext secret is never
// retained server-side — only its bcrypt hash is, in the Store.
type Issued struct {
	ID     string
	Secret string
	PNG    []byte
}

// pendingToken is the server-side record for one outstanding token.
type pendingToken struct {
	hash      []byte
	expiresAt time.Time
	used      bool
}

// Store tracks outstanding pairing tokens. Safe for concurrent use.
type Store struct {
	log *slog.Logger
	ttl time.Duration

	mu      sync.Mutex
	pending map[string]*pendingToken
}

// NewStore constructs a Store. ttl <= 0 uses DefaultTTL.
func NewStore(log *slog.Logger, ttl time.Duration) *Store {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{log: log, ttl: ttl, pending: make(map[string]*pendingToken)}
}

func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate random token: %w", err)
	}
	return tokenEncoding.EncodeToString(buf), nil
}

// IssueToken generates a new ID/secret pair, stores the secret's
// bcrypt hash, and renders a QR code encoding bridgeURL plus both
// values so a companion app can dial the bridge and redeem the token
// in one scan.
func (s *Store) IssueToken(bridgeURL string) (*Issued, error) {
	id, err := randomToken(8)
	if err != nil {
		return nil, err
	}
	secret, err := randomToken(20)
	if err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash pairing secret: %w", err)
	}

	s.mu.Lock()
	s.pending[id] = &pendingToken{hash: hash, expiresAt: time.Now().Add(s.ttl)}
	s.mu.Unlock()

	payload := fmt.Sprintf("%s?pairing_id=%s&token=%s", bridgeURL, id, secret)
	png, err := qrcode.Encode(payload, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("encode pairing QR code: %w", err)
	}

	s.log.Info("pairing token issued", "id", id, "expires_at", s.pending[id].expiresAt)
	return &Issued{ID: id, Secret: secret, PNG: png}, nil
}

// Redeem validates id/secret against a previously issued, unexpired,
// unused token. It is single-use: any redemption attempt against a
// known id consumes the record, whether it succeeds, names an expired
// token, or presents the wrong secret.
func (s *Store) Redeem(id, secret string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, ok := s.pending[id]
	if !ok {
		return false
	}
	delete(s.pending, id)

	if tok.used || time.Now().After(tok.expiresAt) {
		return false
	}
	if bcrypt.CompareHashAndPassword(tok.hash, []byte(secret)) != nil {
		return false
	}
	tok.used = true
	return true
}

// Prune removes expired, never-redeemed tokens. Callers with a
// long-lived Store should call this periodically; a single bridge
// session can skip it since Redeem already rejects expired entries.
func (s *Store) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	removed := 0
	for id, tok := range s.pending {
		if now.After(tok.expiresAt) {
			delete(s.pending, id)
			removed++
		}
	}
	return removed
}

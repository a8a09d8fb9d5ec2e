package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/vigilnet/vigilnet/internal/logging"
	"github.com/vigilnet/vigilnet/internal/models"
	"github.com/vigilnet/vigilnet/internal/store"
)

// AuthGate authenticates inbound requests by SHA-256 digest of the bearer
// token against api_keys.key_hash. A miss is delayed to blunt brute-force
// key guessing, and a hit touches last_used_at asynchronously so the write
// never sits on the request's critical path.
type AuthGate struct {
	keys        *store.APIKeyRepository
	delayOnMiss time.Duration
	log         *logging.Logger
}

func NewAuthGate(keys *store.APIKeyRepository, delayOnMiss time.Duration, log *logging.Logger) *AuthGate {
	return &AuthGate{keys: keys, delayOnMiss: delayOnMiss, log: log}
}

var errNoBearerToken = errors.New("missing bearer token")

// Authenticate extracts the bearer token from the Authorization header and
// resolves it to the owning APIKey/Tenant pair.
func (g *AuthGate) Authenticate(r *http.Request) (*models.APIKey, error) {
	token, err := bearerToken(r)
	if err != nil {
		time.Sleep(g.delayOnMiss)
		return nil, err
	}

	sum := sha256.Sum256([]byte(token))
	hash := hex.EncodeToString(sum[:])

	key, err := g.keys.GetActiveByHash(r.Context(), hash)
	if err != nil {
		time.Sleep(g.delayOnMiss)
		return nil, err
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := g.keys.TouchLastUsed(ctx, key.ID); err != nil {
			g.log.Error("touch api key last_used_at failed", "err", err, "key_id", key.ID)
		}
	}()

	return key, nil
}

func bearerToken(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return "", errNoBearerToken
	}
	token := strings.TrimSpace(strings.TrimPrefix(h, prefix))
	if token == "" {
		return "", errNoBearerToken
	}
	return token, nil
}

// Command vigilctl is the operator CLI for managing tenants, API keys,
// and digests directly against the backend database.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/vigilnet/vigilnet/internal/config"
	"github.com/vigilnet/vigilnet/internal/store"
)

var (
	pool       *store.Pool
	tenants    *store.TenantRepository
	apiKeys    *store.APIKeyRepository
	digests    *store.DigestRepository
	deliveries *store.EmailDeliveryRepository
)

func main() {
	config.MustLoad()
	cfg := config.GetConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	p, err := store.NewPool(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "vigilctl: failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer p.Close()

	pool = p
	tenants = store.NewTenantRepository(pool)
	apiKeys = store.NewAPIKeyRepository(pool)
	digests = store.NewDigestRepository(pool)
	deliveries = store.NewEmailDeliveryRepository(pool)

	if err := Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "vigilctl: %v\n", err)
		os.Exit(1)
	}
}

// cmdCtx gives each subcommand a bounded context for its database calls.
func cmdCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}

package email

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vigilnet/vigilnet/internal/logging"
	"github.com/vigilnet/vigilnet/internal/models"
	"github.com/vigilnet/vigilnet/internal/store"
)

// Dispatcher sends any digest that has not yet recorded a sent delivery.
type Dispatcher struct {
	digests    *store.DigestRepository
	deliveries *store.EmailDeliveryRepository
	sender     Sender
	recipient  string
	log        *logging.Logger
}

func New(digests *store.DigestRepository, deliveries *store.EmailDeliveryRepository, sender Sender, recipient string, log *logging.Logger) *Dispatcher {
	return &Dispatcher{digests: digests, deliveries: deliveries, sender: sender, recipient: recipient, log: log}
}

// RunAll sends every undelivered digest, returning the count sent. A
// single digest's failure does not block the others; it is recorded as
// status=failed and retried on the next tick.
func (d *Dispatcher) RunAll(ctx context.Context) (int, error) {
	pending, err := d.digests.ListUndelivered(ctx)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, digest := range pending {
		if d.send(ctx, digest) {
			sent++
		}
	}
	return sent, nil
}

func (d *Dispatcher) send(ctx context.Context, digest *models.Digest) bool {
	providerMsgID, err := d.sender.Send(ctx, d.recipient, digest.Subject, digest.BodyText)

	delivery := &models.EmailDelivery{
		ID:        uuid.New().String(),
		DigestID:  digest.ID,
		TenantID:  digest.TenantID,
		Recipient: d.recipient,
		CreatedAt: time.Now().UTC(),
	}

	if err != nil {
		errMsg := err.Error()
		delivery.Status = models.DeliveryFailed
		delivery.Error = &errMsg
		if cerr := d.deliveries.Create(ctx, delivery); cerr != nil {
			d.log.Error("record failed email delivery", "digest_id", digest.ID, "err", cerr)
		}
		d.log.Warn("digest email send failed, will retry next tick", "digest_id", digest.ID, "err", err)
		return false
	}

	now := time.Now().UTC()
	delivery.Status = models.DeliverySent
	delivery.ProviderMsgID = &providerMsgID
	delivery.SentAt = &now
	if cerr := d.deliveries.Create(ctx, delivery); cerr != nil {
		d.log.Error("record sent email delivery", "digest_id", digest.ID, "err", cerr)
		return false
	}
	return true
}

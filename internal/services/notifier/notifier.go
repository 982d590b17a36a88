package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/icellshop/labelbox/internal/broker/messages"
	"github.com/icellshop/labelbox/internal/integrations/mail"
	"github.com/icellshop/labelbox/internal/models"
)

type Repository interface {
	MarkOrderReceived(ctx context.Context, orderID uint64, at time.Time) error
}

// Notifier consumes tracking.updated and closes the loop on delivered
// shipments: the order is stamped received and the ops inbox is told a
// device arrived.
type Notifier struct {
	repo     Repository
	mailer   mail.Sender
	opsEmail string
	log      *slog.Logger

	startedAtUnixNano int64
	totalProcessed    atomic.Int64
	totalDelivered    atomic.Int64
	totalErrors       atomic.Int64

	lastErrorMu sync.Mutex
	lastError   string
}

func New(repo Repository, mailer mail.Sender, opsEmail string, log *slog.Logger) *Notifier {
	if log == nil {
		log = slog.Default()
	}
	return &Notifier{
		repo:              repo,
		mailer:            mailer,
		opsEmail:          opsEmail,
		log:               log,
		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
}

// HandleMessage processes one tracking.updated payload. A returned error
// means the message must not be committed; notification failures are logged
// and counted but never block the stream.
func (n *Notifier) HandleMessage(ctx context.Context, value []byte) error {
	var msg messages.TrackingUpdated
	if err := json.Unmarshal(value, &msg); err != nil {
		n.recordError(err)
		return errors.Wrap(err, "decode tracking update")
	}
	if msg.TrackingCode == "" {
		err := errors.New("tracking update has no tracking_code")
		n.recordError(err)
		return err
	}
	n.totalProcessed.Add(1)

	if msg.Status != models.TrackingStatusDelivered || msg.OrderID == nil {
		return nil
	}

	if err := n.repo.MarkOrderReceived(ctx, *msg.OrderID, msg.OccurredAt); err != nil {
		n.recordError(err)
		return err
	}
	n.totalDelivered.Add(1)

	n.notifyOps(ctx, msg)
	return nil
}

func (n *Notifier) notifyOps(ctx context.Context, msg messages.TrackingUpdated) {
	if n.mailer == nil || n.opsEmail == "" {
		return
	}
	_, err := n.mailer.Send(ctx, mail.Message{
		To:      n.opsEmail,
		Subject: fmt.Sprintf("Paquete recibido: orden %d", *msg.OrderID),
		Text: fmt.Sprintf(
			"El envío %s de la orden %d fue entregado.\nCarrier: %s\nFecha: %s\n",
			msg.TrackingCode, *msg.OrderID, msg.Carrier, msg.OccurredAt.Format(time.RFC3339),
		),
	})
	if err != nil {
		n.recordError(err)
		n.log.Error("ops notification failed",
			"order_id", *msg.OrderID, "tracking_code", msg.TrackingCode, "error", err)
	}
}

func (n *Notifier) recordError(err error) {
	n.totalErrors.Add(1)
	n.lastErrorMu.Lock()
	n.lastError = err.Error()
	n.lastErrorMu.Unlock()
}

type Stats struct {
	StartedAt      time.Time `json:"startedAt"`
	TotalProcessed int64     `json:"totalProcessed"`
	TotalDelivered int64     `json:"totalDelivered"`
	TotalErrors    int64     `json:"totalErrors"`
	LastError      string    `json:"lastError,omitempty"`
}

func (n *Notifier) Stats() Stats {
	st := Stats{
		StartedAt:      time.Unix(0, n.startedAtUnixNano).UTC(),
		TotalProcessed: n.totalProcessed.Load(),
		TotalDelivered: n.totalDelivered.Load(),
		TotalErrors:    n.totalErrors.Load(),
	}
	n.lastErrorMu.Lock()
	st.LastError = n.lastError
	n.lastErrorMu.Unlock()
	return st
}

package natspub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/bidware/bidware/internal/domain/notification"
)

// Notifier publishes outbid notices to NATS subjects of the form
// auction.outbid.<listingID>. Consumers (mail, push, UI) subscribe elsewhere.
type Notifier struct {
	conn *nats.Conn
}

// New connects to the NATS server.
func New(url string) (*Notifier, error) {
	conn, err := nats.Connect(url, nats.Name("bidware-core"))
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}
	return &Notifier{conn: conn}, nil
}

// NotifyOutbid publishes the notice.
func (n *Notifier) NotifyOutbid(_ context.Context, notice notification.OutbidNotice) error {
	data, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("encoding outbid notice: %w", err)
	}
	subject := fmt.Sprintf("auction.outbid.%s", notice.ListingID)
	if err := n.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publishing outbid notice: %w", err)
	}
	return nil
}

// Close drains and closes the connection.
func (n *Notifier) Close() {
	_ = n.conn.Drain()
}

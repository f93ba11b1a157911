package whatsapp

import (
	"context"
	"fmt"

	"bookline/internal/domain"
)

// SenderRouter implements domain.MessageSender over one Cloud API client per
// organization, so each tenant's replies go out from the business number its
// customers wrote to.
type SenderRouter struct {
	clients map[string]*Client
}

func NewSenderRouter() *SenderRouter {
	return &SenderRouter{clients: make(map[string]*Client)}
}

func (r *SenderRouter) Register(orgID string, client *Client) {
	r.clients[orgID] = client
}

func (r *SenderRouter) client(orgID string) (*Client, error) {
	c, ok := r.clients[orgID]
	if !ok {
		return nil, fmt.Errorf("no whatsapp client for organization %s", orgID)
	}
	return c, nil
}

func (r *SenderRouter) SendText(ctx context.Context, orgID, to, body string) (domain.SendResult, error) {
	c, err := r.client(orgID)
	if err != nil {
		return domain.SendResult{}, err
	}
	return c.SendText(ctx, to, body)
}

func (r *SenderRouter) MarkAsRead(ctx context.Context, orgID, messageID string) error {
	c, err := r.client(orgID)
	if err != nil {
		return err
	}
	return c.MarkAsRead(ctx, messageID)
}

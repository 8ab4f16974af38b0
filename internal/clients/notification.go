package clients

import (
	"context"
	"fmt"
	"net/http"

	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/model"
)

type NotificationClient struct{ c *Client }

func NewNotificationClient(c *Client) *NotificationClient { return &NotificationClient{c: c} }

// Notify posts n to the notification service's inbound endpoint.
func (nc *NotificationClient) Notify(ctx context.Context, n model.Notification) error {
	resp, err := nc.c.DoJSON(ctx, http.MethodPost, "/notify", n)
	if err != nil {
		return err
	}
	drain(resp)

	if !isSuccess(resp.StatusCode) {
		return &model.UpstreamError{
			Err:        fmt.Errorf("notify returned %d", resp.StatusCode),
			Service:    nc.c.Name,
			StatusCode: resp.StatusCode,
		}
	}
	return nil
}

package adapter

import "context"

const (
	NotifyNewSale           = "new_sale"
	NotifyPurchaseConfirmed = "purchase_confirmed"
	NotifyPayoutUpdate      = "payout_update"
)

// Notifier delivers in-app notifications. The core treats it as fire-and-forget.
type Notifier interface {
	Notify(ctx context.Context, userID, kind, message, link string) error
}

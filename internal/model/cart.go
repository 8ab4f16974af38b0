package model

// CartItem is one line of a user's cart. Name, price and image are a snapshot
// of the product taken when the line was first added.
type CartItem struct {
	ProductID ID      `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Image     string  `json:"image,omitempty"`
	Quantity  int     `json:"quantity"`
}

// Notification is the inbound contract of the notification service.
type Notification struct {
	UserID ID             `json:"userId"`
	Type   string         `json:"type"`
	Data   map[string]any `json:"data"`
}

const NotificationOrderCreated = "order_created"

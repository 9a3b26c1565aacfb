package services

import "github.com/wishloop/go-market-backend/internal/domain"

// Real-time event payloads pushed through the Notifier. Each is a
// self-describing JSON object with a "type" discriminator so clients can
// dispatch without knowing the channel it arrived on.

// WishMatchedEvent tells a partner the allocator assigned them a wish.
func WishMatchedEvent(w *domain.Wish) any {
	return map[string]any{"type": "wish_matched", "wish": w}
}

// WishStatusEvent tells a participant the wish changed status.
func WishStatusEvent(w *domain.Wish) any {
	return map[string]any{"type": "wish_status", "wish_id": w.ID, "status": w.Status, "wish": w}
}

// DealUpdateEvent tells both parties the negotiation advanced (new offer,
// acceptance, rejection).
func DealUpdateEvent(d *domain.Deal) any {
	return map[string]any{"type": "deal_update", "deal_id": d.ID, "status": d.Status, "current_price": d.CurrentPrice, "deal": d}
}

// OrderStatusEvent tells the customer (and the assigned agent) an order
// moved through the pipeline.
func OrderStatusEvent(o *domain.ShopOrder) any {
	return map[string]any{"type": "order_status", "order_id": o.ID, "status": o.Status}
}

// ChatMessageEvent carries a persisted chat message to room subscribers.
func ChatMessageEvent(m *domain.Message) any {
	return map[string]any{"type": "new_message", "room_id": m.RoomID, "message": m}
}

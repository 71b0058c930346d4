package domain

// KitchenChannel is the only channel wired today; the hub itself accepts any
// channel name.
const KitchenChannel = "kitchen"

type EventType string

const (
	EventNewOrder        EventType = "new_order"
	EventOrderUpdated    EventType = "order_updated"
	EventOrderCancelled  EventType = "order_cancelled"
	EventDiscountApplied EventType = "discount_applied"
	EventPaymentAdded    EventType = "payment_added"
	EventNewNote         EventType = "new_note"
	EventNoteDeleted     EventType = "note_deleted"

	// EventOrderRestored is reserved for a future un-cancel flow; nothing
	// emits it today.
	EventOrderRestored EventType = "order_restored"
)

// Event is the envelope delivered to every subscriber of a channel.
type Event struct {
	Type    EventType  `json:"type"`
	OrderID int64      `json:"order_id,omitempty"`
	NoteID  int64      `json:"note_id,omitempty"`
	State   OrderState `json:"state,omitempty"`
	Paid    *bool      `json:"paid,omitempty"`
}

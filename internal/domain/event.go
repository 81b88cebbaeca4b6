// Package domain defines the core types shared across the application: the
// inbound webhook event union, the per-sender upload session, and the
// persistence model for the upload audit log.
package domain

import "time"

// EventKind discriminates the variants of InboundEvent.
type EventKind int

const (
	// EventOther is any webhook event the router takes no action on
	// (follows, joins, stickers, and so on).
	EventOther EventKind = iota
	// EventText is a text message event; Text carries the body.
	EventText
	// EventImage is an image message event; the binary content is fetched
	// from the platform by MessageID.
	EventImage
)

// String returns a short label for the event kind, used in logs and metrics.
func (k EventKind) String() string {
	switch k {
	case EventText:
		return "text"
	case EventImage:
		return "image"
	default:
		return "other"
	}
}

// InboundEvent is one webhook event normalized to the fields the router
// reads. It is constructed at ingestion from the raw platform payload,
// never mutated, and discarded after a single routing pass.
//
// Fields:
//   - Kind: which variant this event is (text, image, other).
//   - MessageID: unique platform message identifier; keys deduplication and
//     names uploaded image files.
//   - SenderID: platform identity of the sender; keys sessions and admin checks.
//   - ReplyToken: one-shot token for replying to this event; may be empty.
//   - Text: message body, set only for EventText.
type InboundEvent struct {
	Kind       EventKind
	MessageID  string
	SenderID   string
	ReplyToken string
	Text       string
}

// Session records a sender's active upload destination and its freshness.
// A session is active while now - LastActivity stays within the store's
// configured TTL; expired sessions are lazily evicted on the next read.
type Session struct {
	Destination  string
	LastActivity time.Time
}

// Package router is the orchestration core of the service. For every
// inbound webhook event it applies the idempotency gate, consults the
// session store, and dispatches to command handling, note persistence, or
// image persistence.
//
// The router itself is stateless between events; all per-sender state lives
// in the session store. Events for distinct senders run concurrently, while
// events for the same sender are serialized through a per-sender mutex so a
// refresh from one event is visible to the next.
//
// Route never returns an error: duplicates, missing sessions, and
// downstream failures are absorbed into logs and metrics so webhook
// delivery can always be acknowledged.
package router

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-line-uploader/internal/command"
	"github.com/tbourn/go-line-uploader/internal/config"
	"github.com/tbourn/go-line-uploader/internal/dedup"
	"github.com/tbourn/go-line-uploader/internal/domain"
	"github.com/tbourn/go-line-uploader/internal/repo"
	"github.com/tbourn/go-line-uploader/internal/session"
)

var tracer = otel.Tracer("github.com/tbourn/go-line-uploader/internal/router")

// routedEvents counts routed webhook events by kind and outcome.
var routedEvents = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "router_events_total",
		Help: "Total number of routed webhook events.",
	},
	[]string{"kind", "outcome"},
)

func init() {
	prometheus.MustRegister(routedEvents)
}

// Storage is the cloud-storage collaborator the router persists into.
type Storage interface {
	FindOrCreateFolder(ctx context.Context, name, parentID string) (string, error)
	UploadFile(ctx context.Context, name string, content []byte, folderID string) (string, error)
	AppendTextLine(ctx context.Context, fileName, line, folderID string) error
}

// Messenger is the chat-platform collaborator for content and replies.
type Messenger interface {
	FetchContent(ctx context.Context, messageID string) ([]byte, error)
	SendReply(ctx context.Context, replyToken, text string) error
}

// Options carries the router's collaborators. AuditDB is optional; when nil
// no audit rows are written.
type Options struct {
	Gate         dedup.Gate
	Sessions     *session.Store
	Codes        *config.AppStore
	Storage      Storage
	Messenger    Messenger
	AuditDB      *gorm.DB
	RootFolderID string
	Log          zerolog.Logger
}

// Router routes inbound events to session and persistence actions.
type Router struct {
	gate         dedup.Gate
	sessions     *session.Store
	codes        *config.AppStore
	storage      Storage
	messenger    Messenger
	auditDB      *gorm.DB
	rootFolderID string
	log          zerolog.Logger

	// now names the dated folder and notes file; a seam for tests.
	now func() time.Time

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

// New constructs a Router from its collaborators.
func New(o Options) *Router {
	return &Router{
		gate:         o.Gate,
		sessions:     o.Sessions,
		codes:        o.Codes,
		storage:      o.Storage,
		messenger:    o.Messenger,
		auditDB:      o.AuditDB,
		rootFolderID: o.RootFolderID,
		log:          o.Log,
		now:          time.Now,
		locks:        make(map[string]*sync.Mutex),
	}
}

// Route processes one inbound event end to end. It is safe for concurrent
// use; same-sender events are serialized internally.
func (r *Router) Route(ctx context.Context, ev domain.InboundEvent) {
	if ev.Kind == domain.EventOther {
		routedEvents.WithLabelValues(ev.Kind.String(), "skipped").Inc()
		return
	}

	ctx, span := tracer.Start(ctx, "router.Route", trace.WithAttributes(
		attribute.String("event.kind", ev.Kind.String()),
		attribute.String("event.message_id", ev.MessageID),
	))
	defer span.End()

	if !r.gate.ShouldProcess(ctx, ev.MessageID) {
		routedEvents.WithLabelValues(ev.Kind.String(), "duplicate").Inc()
		return
	}

	unlock := r.lockSender(ev.SenderID)
	defer unlock()

	var outcome string
	switch ev.Kind {
	case domain.EventText:
		outcome = r.routeText(ctx, ev)
	case domain.EventImage:
		outcome = r.routeImage(ctx, ev)
	}
	span.SetAttributes(attribute.String("event.outcome", outcome))
	routedEvents.WithLabelValues(ev.Kind.String(), outcome).Inc()
}

// routeText handles a text event: admin command, code match, or note.
func (r *Router) routeText(ctx context.Context, ev domain.InboundEvent) string {
	if cmd := command.Parse(ev.Text); cmd.Action != command.ActionNone {
		r.handleCommand(ctx, cmd, ev.SenderID, ev.ReplyToken)
		return "command"
	}

	// A code match always re-arms the session, even when one is already
	// active, so a sender can switch destination mid-conversation.
	if res, ok := command.Resolve(r.codes.Codes(), ev.Text); ok {
		r.sessions.StartOrRefresh(ev.SenderID, res.Destination)
		r.log.Info().Str("sender", ev.SenderID).Str("destination", res.Destination).
			Msg("upload session started")
		if res.Remainder == "" {
			return "session_started"
		}
		if err := r.persistNote(ctx, ev.SenderID, res.Destination, res.Remainder); err != nil {
			r.log.Error().Err(err).Str("sender", ev.SenderID).Msg("note persistence failed")
			return "error"
		}
		r.sessions.Refresh(ev.SenderID)
		return "note"
	}

	dest, ok := r.sessions.GetActive(ev.SenderID)
	if !ok {
		r.log.Warn().Str("sender", ev.SenderID).Msg("text without code or active session; ignored")
		return "ignored"
	}
	if err := r.persistNote(ctx, ev.SenderID, dest, ev.Text); err != nil {
		r.log.Error().Err(err).Str("sender", ev.SenderID).Msg("note persistence failed")
		return "error"
	}
	r.sessions.Refresh(ev.SenderID)
	return "note"
}

// routeImage handles an image event for a sender with an active session.
func (r *Router) routeImage(ctx context.Context, ev domain.InboundEvent) string {
	dest, ok := r.sessions.GetActive(ev.SenderID)
	if !ok {
		r.log.Warn().Str("sender", ev.SenderID).Msg("image without active session; ignored")
		return "ignored"
	}

	data, err := r.messenger.FetchContent(ctx, ev.MessageID)
	if err != nil {
		// Silent to the user by design; the event is dropped unrefreshed.
		r.log.Error().Err(err).Str("sender", ev.SenderID).Str("message_id", ev.MessageID).
			Msg("image download failed; event dropped")
		return "error"
	}

	folderID, err := r.dayFolder(ctx, dest)
	if err != nil {
		r.log.Error().Err(err).Str("sender", ev.SenderID).Msg("folder resolution failed")
		return "error"
	}
	name := ev.MessageID + ".jpg"
	remoteID, err := r.storage.UploadFile(ctx, name, data, folderID)
	if err != nil {
		r.log.Error().Err(err).Str("sender", ev.SenderID).Msg("image upload failed")
		return "error"
	}

	r.audit(ctx, ev.SenderID, dest, domain.UploadKindImage, name, remoteID)
	r.sessions.Refresh(ev.SenderID)
	r.log.Info().Str("sender", ev.SenderID).Str("destination", dest).Str("file", name).
		Msg("image uploaded")
	return "image"
}

// persistNote appends text to the daily notes file under destination.
func (r *Router) persistNote(ctx context.Context, sender, destination, text string) error {
	folderID, err := r.dayFolder(ctx, destination)
	if err != nil {
		return err
	}
	date := r.now().Format("2006-01-02")
	fileName := date + "_notes.txt"
	if err := r.storage.AppendTextLine(ctx, fileName, text, folderID); err != nil {
		return fmt.Errorf("append note: %w", err)
	}
	r.audit(ctx, sender, destination, domain.UploadKindNote, fileName, "")
	r.log.Info().Str("sender", sender).Str("destination", destination).Msg("note persisted")
	return nil
}

// dayFolder resolves <destination>/<YYYY-MM-DD>/ under the configured root,
// creating missing levels.
func (r *Router) dayFolder(ctx context.Context, destination string) (string, error) {
	destID, err := r.storage.FindOrCreateFolder(ctx, destination, r.rootFolderID)
	if err != nil {
		return "", fmt.Errorf("resolve destination folder: %w", err)
	}
	date := r.now().Format("2006-01-02")
	dayID, err := r.storage.FindOrCreateFolder(ctx, date, destID)
	if err != nil {
		return "", fmt.Errorf("resolve dated folder: %w", err)
	}
	return dayID, nil
}

// audit records one best-effort row in the upload audit log. Failures are
// logged and never fail the event.
func (r *Router) audit(ctx context.Context, sender, destination, kind, fileName, remoteID string) {
	if r.auditDB == nil {
		return
	}
	if _, err := repo.RecordUpload(ctx, r.auditDB, sender, destination, kind, fileName, remoteID); err != nil {
		r.log.Error().Err(err).Str("sender", sender).Msg("audit write failed")
	}
}

// lockSender acquires the per-sender mutex and returns its release func.
func (r *Router) lockSender(sender string) func() {
	r.lockMu.Lock()
	mu, ok := r.locks[sender]
	if !ok {
		mu = &sync.Mutex{}
		r.locks[sender] = mu
	}
	r.lockMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

// Package archive persists ended conversation sessions.
package archive

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/garyellow/messenger-bot-go/internal/hooks"
	"github.com/garyellow/messenger-bot-go/internal/logger"
	"github.com/garyellow/messenger-bot-go/internal/session"
	"github.com/garyellow/messenger-bot-go/internal/storage"
)

const handlerName = "session-archive"

// Store persists archived sessions.
type Store interface {
	ArchiveSession(ctx context.Context, s *storage.ArchivedSession) error
}

// Archiver writes a record for every session-ended notification.
type Archiver struct {
	store  Store
	logger *logger.Logger
}

// New creates an Archiver.
func New(store Store, log *logger.Logger) *Archiver {
	return &Archiver{store: store, logger: log.WithModule("archive")}
}

// Attach subscribes the archiver to session-ended notifications.
func (a *Archiver) Attach(m *hooks.Manager) {
	m.On(hooks.SessionEnded, handlerName, a.Handle)
}

// Handle archives the snapshot carried by a session-ended payload.
func (a *Archiver) Handle(ctx context.Context, p hooks.Payload) error {
	snap, ok := p.Data["snapshot"].(session.Snapshot)
	if !ok {
		return fmt.Errorf("session-ended payload has no snapshot")
	}
	replaced, _ := p.Data["replaced"].(bool)

	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", snap.ID, err)
	}

	rec := &storage.ArchivedSession{
		ID:        snap.ID,
		UserID:    snap.UserID,
		State:     snap.State.String(),
		Replaced:  replaced,
		Snapshot:  body,
		StartedAt: snap.StartedAt.Unix(),
		EndedAt:   snap.EndedAt.Unix(),
	}
	if err := a.store.ArchiveSession(ctx, rec); err != nil {
		return err
	}
	a.logger.WithField("session_id", snap.ID).
		WithField("user_id", snap.UserID).
		Debug("Session archived")
	return nil
}

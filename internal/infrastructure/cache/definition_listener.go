package cache

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/ahmedbally/astudio-task/internal/infrastructure/logger"
)

// DefinitionsChannel is the PostgreSQL NOTIFY channel announcing a change
// to attribute_definitions
const DefinitionsChannel = "attribute_definitions_changed"

// Invalidator drops a cached copy of the attribute definitions
type Invalidator interface {
	Invalidate(ctx context.Context)
}

// DefinitionListener keeps the definition caches of several server
// instances in step. Every instance LISTENs on DefinitionsChannel and
// invalidates its local registry when a peer changes a definition.
type DefinitionListener struct {
	mu          sync.Mutex
	invalidator Invalidator
	listener    *pq.Listener
	connStr     string
	pingEvery   time.Duration
	stopCh      chan struct{}
	stopped     bool
	log         *zap.SugaredLogger
}

// NewDefinitionListener creates a listener.
// connStr is the PostgreSQL connection string for LISTEN/NOTIFY.
func NewDefinitionListener(connStr string, inv Invalidator) *DefinitionListener {
	return &DefinitionListener{
		invalidator: inv,
		connStr:     connStr,
		pingEvery:   90 * time.Second,
		stopCh:      make(chan struct{}),
		log:         logger.ComponentLogger("definition_listener"),
	}
}

// Start subscribes to DefinitionsChannel and handles notifications in the background
func (l *DefinitionListener) Start(ctx context.Context) error {
	reportProblem := func(ev pq.ListenerEventType, err error) {
		if err != nil {
			// The TTL of the registry cache bounds staleness while reconnecting
			l.log.Warnw("listener connection problem", "event", int(ev), logger.FieldError, err)
		}
	}

	l.listener = pq.NewListener(l.connStr, 10*time.Second, time.Minute, reportProblem)
	if err := l.listener.Listen(DefinitionsChannel); err != nil {
		_ = l.listener.Close()
		return errors.Wrapf(err, "failed to listen on %s", DefinitionsChannel)
	}

	go l.handleNotifications(ctx, l.listener.Notify)

	l.log.Infow("listening for definition changes", "channel", DefinitionsChannel)
	return nil
}

// Stop closes the listener. It is safe to call more than once.
func (l *DefinitionListener) Stop() error {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return nil
	}
	l.stopped = true
	close(l.stopCh)
	l.mu.Unlock()

	if l.listener != nil {
		return l.listener.Close()
	}
	return nil
}

func (l *DefinitionListener) handleNotifications(ctx context.Context, notify <-chan *pq.Notification) {
	for {
		select {
		case <-l.stopCh:
			return
		case <-ctx.Done():
			return
		case n, ok := <-notify:
			if !ok {
				return
			}
			l.handleNotification(ctx, n)
		case <-time.After(l.pingEvery):
			go func() {
				if err := l.listener.Ping(); err != nil {
					l.log.Warnw("listener ping failed", logger.FieldError, err)
				}
			}()
		}
	}
}

// handleNotification invalidates on every event. A nil notification means
// the connection was re-established and changes may have been missed.
func (l *DefinitionListener) handleNotification(ctx context.Context, n *pq.Notification) {
	if n == nil {
		l.log.Infow("listener reconnected, invalidating definitions")
	} else {
		l.log.Debugw("definitions changed", "channel", n.Channel, "payload", n.Extra)
	}
	l.invalidator.Invalidate(ctx)
}

// NotifyDefinitionsChanged tells every listening instance that the
// definitions changed. payload is informational, e.g. the attribute name.
func NotifyDefinitionsChanged(ctx context.Context, db *sql.DB, payload string) error {
	if _, err := db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, DefinitionsChannel, payload); err != nil {
		return errors.Wrap(err, "failed to notify definition change")
	}
	return nil
}

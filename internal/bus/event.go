package bus

import "time"

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Event kinds published by the daemon. Subscribers filter by namespace
// prefix, e.g. "search." receives every search lifecycle event.
const (
	KindPlatformMessage      = "platform.message"
	KindPlatformHistoryBatch = "platform.history_batch"

	KindWatchHit = "watch.hit"

	KindSearchStarted   = "search.started"
	KindSearchProgress  = "search.progress"
	KindSearchCompleted = "search.completed"
	KindSearchCancelled = "search.cancelled"
	KindSearchFailed    = "search.failed"

	KindSessionStatusChanged = "session.status_changed"
	KindSessionQRGenerated   = "session.qr_generated"
	KindSessionAuthenticated = "session.authenticated"
	KindSessionAuthFailed    = "session.auth_failed"
	KindSessionLoggedOut     = "session.logged_out"

	KindSyncConnected    = "sync.connected"
	KindSyncDisconnected = "sync.disconnected"
	KindSyncHistoryBatch = "sync.history_batch"
)

// Package ingest archives inbound platform traffic and runs the live
// keyword watch over it.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/BENZOOgataga/DeepSearch/internal/bus"
	"github.com/BENZOOgataga/DeepSearch/internal/logging"
	"github.com/BENZOOgataga/DeepSearch/internal/match"
	"github.com/BENZOOgataga/DeepSearch/internal/store"
)

// Engine handles idempotent ingestion of messages into the archive and
// the live keyword watch. It subscribes to "platform.*" events on the bus
// and processes them.
type Engine struct {
	db       *store.DB
	bus      *bus.Bus
	matcher  *match.KeywordMatcher
	watchLog *logging.WatchLog
	logger   *zap.Logger
	cancel   context.CancelFunc

	echoMessages atomic.Bool
	echoSenders  atomic.Bool
}

// NewEngine creates a new ingestion engine. matcher and watchLog may be
// nil, which disables the live watch but keeps archiving.
func NewEngine(db *store.DB, b *bus.Bus, matcher *match.KeywordMatcher, watchLog *logging.WatchLog, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		db:       db,
		bus:      b,
		matcher:  matcher,
		watchLog: watchLog,
		logger:   logger,
	}
}

// SetEcho controls whether inbound live messages are echoed to the log
// as they arrive, and whether the echo includes sender identity. Safe to
// call while the engine is running; config reloads use it.
func (e *Engine) SetEcho(messages, senders bool) {
	e.echoMessages.Store(messages)
	e.echoSenders.Store(senders)
}

// Start subscribes to inbound platform events on the bus.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	ch, unsub := e.bus.Subscribe("platform.", 256)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				e.handleEvent(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
}

func (e *Engine) handleEvent(evt bus.Event) {
	switch evt.Kind {
	case bus.KindPlatformMessage:
		msg, ok := evt.Payload.(*store.Message)
		if !ok {
			return
		}
		if err := e.IngestMessage(msg); err != nil {
			e.logger.Error("failed to ingest message", zap.Error(err), zap.String("msg_id", msg.MsgID))
		}
	case bus.KindPlatformHistoryBatch:
		msgs, ok := evt.Payload.([]*store.Message)
		if !ok {
			return
		}
		if err := e.IngestHistoryBatch(msgs); err != nil {
			e.logger.Error("failed to ingest history batch", zap.Error(err), zap.Int("count", len(msgs)))
		} else {
			e.logger.Info("history batch ingested", zap.Int("messages", len(msgs)))
		}
	}
}

// IngestMessage archives a single message (idempotent) and, for inbound
// messages, runs the keyword watch over it.
func (e *Engine) IngestMessage(msg *store.Message) error {
	if err := e.db.UpsertChannel(&store.Channel{
		JID:           msg.ChannelJID,
		CanRead:       true,
		LastMessageAt: msg.Timestamp,
	}); err != nil {
		return fmt.Errorf("upsert channel: %w", err)
	}

	if err := e.db.UpsertMessage(msg); err != nil {
		return fmt.Errorf("upsert message: %w", err)
	}

	if !msg.FromMe {
		e.echo(msg)
		e.watch(msg)
	}
	return nil
}

// echo logs an inbound live message when message echo is enabled.
func (e *Engine) echo(msg *store.Message) {
	if !e.echoMessages.Load() {
		return
	}
	body := msg.Body
	if len(body) > 120 {
		body = body[:120] + "..."
	}
	fields := []zap.Field{
		zap.String("channel", msg.ChannelJID),
		zap.String("body", body),
	}
	if e.echoSenders.Load() {
		fields = append(fields, zap.String("sender", msg.SenderName), zap.String("sender_jid", msg.SenderJID))
	}
	e.logger.Info("message", fields...)
}

// watch applies the keyword matcher and records a hit when it fires.
func (e *Engine) watch(msg *store.Message) {
	if e.matcher == nil || !e.matcher.Match(msg.Body) {
		return
	}

	// Recover which configured keywords fired, so the hit record says why.
	var fired []string
	for _, kw := range e.matcher.Keywords() {
		if match.Literal(msg.Body, kw) {
			fired = append(fired, kw)
		}
	}

	channelName := msg.ChannelJID
	if ch, err := e.db.GetChannel(msg.ChannelJID); err == nil && ch != nil {
		channelName = ch.Name
	}

	hit := &store.Hit{
		ChannelJID:  msg.ChannelJID,
		ChannelName: channelName,
		MsgID:       msg.MsgID,
		SenderJID:   msg.SenderJID,
		SenderName:  msg.SenderName,
		Keyword:     strings.Join(fired, ","),
		Body:        msg.Body,
		Timestamp:   msg.Timestamp,
	}
	if err := e.db.InsertHit(hit); err != nil {
		e.logger.Error("failed to record watch hit", zap.Error(err), zap.String("msg_id", msg.MsgID))
		return
	}
	if e.watchLog != nil {
		if err := e.watchLog.Append(channelName, msg.SenderName, msg.Body); err != nil {
			e.logger.Warn("failed to append watch log", zap.Error(err))
		}
	}

	e.logger.Info("keyword hit",
		zap.String("channel", channelName),
		zap.String("sender", msg.SenderName),
		zap.String("keyword", hit.Keyword))

	e.bus.Publish(bus.Event{
		Kind:      bus.KindWatchHit,
		Timestamp: time.Now(),
		Payload:   hit,
	})
}

// IngestHistoryBatch archives a batch of history messages in one
// transaction. Historical traffic is not run through the watch.
func (e *Engine) IngestHistoryBatch(msgs []*store.Message) error {
	tx, err := e.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	count := 0
	for _, sm := range msgs {
		if _, err := tx.Exec(`
			INSERT INTO channels (jid, can_read, last_message_at, updated_at)
			VALUES (?, 1, ?, ?)
			ON CONFLICT(jid) DO UPDATE SET
				last_message_at = MAX(channels.last_message_at, excluded.last_message_at),
				updated_at = excluded.updated_at`,
			sm.ChannelJID, sm.Timestamp, time.Now().UnixMilli()); err != nil {
			return fmt.Errorf("upsert channel in batch: %w", err)
		}

		if _, err := tx.Exec(`
			INSERT INTO messages (channel_jid, msg_id, sender_jid, sender_name, body, from_me, timestamp, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(channel_jid, msg_id) DO UPDATE SET
				sender_name = excluded.sender_name,
				body = excluded.body`,
			sm.ChannelJID, sm.MsgID, sm.SenderJID, sm.SenderName, sm.Body, sm.FromMe, sm.Timestamp, time.Now().UnixMilli()); err != nil {
			return fmt.Errorf("upsert message in batch: %w", err)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}

	e.bus.Publish(bus.Event{
		Kind:      bus.KindSyncHistoryBatch,
		Timestamp: time.Now(),
		Payload:   map[string]int{"messages_count": count},
	})
	return nil
}

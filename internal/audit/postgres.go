// Package audit implements the optional OCPP wire-frame trace sink named
// in SPEC_FULL.md's DATA MODEL additions: a lightweight conformance-debug
// log of every inbound/outbound frame, not the out-of-scope
// performance-statistics store. Grounded on the teacher's
// backend/libs/db.NewPostgresDB pool constructor and
// ocpp-server/internal/repository.OCPPLogRepository.Save, generalized from
// a synchronous per-message write to the asynchronous, best-effort sink
// spec.md §7 calls for ("non-fatal for performance-records writes").
package audit

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

const (
	defaultMaxOpenConns = 25
	defaultMaxIdleConns = 5
	defaultConnLifetime = time.Hour
	defaultPingTimeout  = 5 * time.Second
)

// record is one queued write.
type record struct {
	stationHashID, direction, messageType, action string
	payload                                        []byte
	occurredAt                                     time.Time
}

// Sink is a pgx/stdlib-backed audit trail for OCPP frames, implementing
// station.AuditSink. Record enqueues rather than blocking the caller;
// writes drain on a single goroutine so a slow database never backs up a
// station's protocol loop.
type Sink struct {
	db     *sql.DB
	logger *zap.Logger
	queue  chan record
	done   chan struct{}
}

// NewSink dials dsn (a pgx/stdlib DSN) and starts the drain loop. The
// schema is the ocpp_messages table described in SPEC_FULL.md §6.
func NewSink(dsn string, logger *zap.Logger) (*Sink, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("audit: empty DSN")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), defaultPingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	s := &Sink{db: db, logger: logger, queue: make(chan record, 1024), done: make(chan struct{})}
	go s.drain()
	return s, nil
}

// Record implements station.AuditSink: never blocks the caller; drops the
// entry (with a warning) if the internal queue is saturated rather than
// applying backpressure to a station's protocol loop.
func (s *Sink) Record(ctx context.Context, stationHashID, direction, messageType, action string, payload []byte) {
	r := record{
		stationHashID: stationHashID,
		direction:     direction,
		messageType:   messageType,
		action:        action,
		payload:       append([]byte(nil), payload...),
		occurredAt:    time.Now().UTC(),
	}
	select {
	case s.queue <- r:
	default:
		if s.logger != nil {
			s.logger.Warn("audit: queue full, dropping frame", zap.String("station", stationHashID), zap.String("action", action))
		}
	}
}

func (s *Sink) drain() {
	defer close(s.done)
	for r := range s.queue {
		if err := s.insert(r); err != nil && s.logger != nil {
			s.logger.Warn("audit: insert failed", zap.String("station", r.stationHashID), zap.Error(err))
		}
	}
}

func (s *Sink) insert(r record) error {
	const query = `
		INSERT INTO ocpp_messages (station_hash_id, direction, message_type, action, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := s.db.ExecContext(ctx, query, r.stationHashID, r.direction, r.messageType, r.action, r.payload, r.occurredAt)
	return err
}

// Close stops accepting new records, drains the queue, and closes the
// pool.
func (s *Sink) Close() error {
	close(s.queue)
	<-s.done
	return s.db.Close()
}

package server

import (
	"context"

	"github.com/chardev/chardev/internal/chardevd/auditlog"
	"github.com/chardev/chardev/internal/chardevd/config"
	"github.com/chardev/chardev/internal/chardevd/eventbus"
	"github.com/chardev/chardev/internal/chardevd/session"
	"github.com/chardev/chardev/internal/device/store"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// TopicStorePattern matches every store event topic.
const TopicStorePattern = "store.*"

// StoreTopic returns the topic a store operation is published on.
func StoreTopic(op store.Op) string {
	return "store." + string(op)
}

// Device is the store owned by the daemon together with its event plumbing.
type Device struct {
	Store    *store.Store
	Bus      *eventbus.EventBus
	Sessions session.SessionManager

	audit      *auditlog.Writer
	auditStop  context.CancelFunc
	auditDone  chan struct{}
	auditUnsub func()
}

// NewDevice allocates the store described by cfg, publishes its events on a
// new bus and, if enabled, starts the audit log.
func NewDevice(ctx context.Context, cfg *config.ConfigParam) (*Device, error) {
	d := &Device{Bus: eventbus.New()}

	s, err := store.New(cfg.Capacity,
		store.WithObserver(store.ObserverFunc(func(e store.Event) {
			d.Bus.TryPublish(StoreTopic(e.Op), e)
		})),
		store.WithLogger(log.With().Str("component", "store").Logger()),
	)
	if err != nil {
		return nil, errors.Wrap(err, "allocating device storage")
	}
	d.Store = s
	d.Sessions = session.Init(s)

	if cfg.Audit.Enabled {
		if err := d.startAudit(ctx, cfg.Audit); err != nil {
			return nil, err
		}
	}
	log.Ctx(ctx).Info().Int("capacity", s.Capacity()).Bool("audit", cfg.Audit.Enabled).Msg("device initialized")
	return d, nil
}

func (d *Device) startAudit(ctx context.Context, cfg config.AuditConfig) error {
	w, err := auditlog.Create(cfg.Dir, cfg.FlushEvery)
	if err != nil {
		return errors.Wrapf(err, "creating audit log in %s", cfg.Dir)
	}
	sub, unsubscribe := d.Bus.Subscribe(TopicStorePattern, cfg.BufferSize)
	auditCtx, cancel := context.WithCancel(ctx)

	d.audit = w
	d.auditStop = cancel
	d.auditUnsub = unsubscribe
	d.auditDone = make(chan struct{})
	go func() {
		defer close(d.auditDone)
		defer func() {
			if r := recover(); r != nil {
				log.Ctx(ctx).Error().Msgf("panic in audit log: %v", r)
			}
		}()
		w.Consume(auditCtx, sub)
	}()
	log.Ctx(ctx).Info().Str("audit_log_path", w.Path()).Msg("audit log started")
	return nil
}

// AuditLogPath returns the current audit log file, or "" when auditing is
// off.
func (d *Device) AuditLogPath() string {
	if d.audit == nil {
		return ""
	}
	return d.audit.Path()
}

// DroppedEvents returns how many store events subscribers could not keep
// up with.
func (d *Device) DroppedEvents() uint64 {
	return d.Bus.Dropped()
}

// Close closes every open session, drains the audit log and shuts the bus
// down.
func (d *Device) Close(ctx context.Context) {
	d.Sessions.CloseAll(ctx)
	if d.audit != nil {
		// closing the subscription lets the consumer drain what is buffered
		d.auditUnsub()
		<-d.auditDone
		d.auditStop()
		if err := d.audit.Close(); err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("failed to close audit log")
		}
	}
	d.Bus.Shutdown()
}

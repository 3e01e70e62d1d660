// Package account handles login state and keeps other app instances in step
// through account notifications.
package account

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/jwplayer/ott-web-app-sub004/internal/broadcast"
	"github.com/jwplayer/ott-web-app-sub004/internal/domain"
)

const (
	peerRefreshTimeout = 10 * time.Second
	logoutFlushTimeout = 10 * time.Second
)

// ShelfSync is the part of the personal shelves the account flow drives.
type ShelfSync interface {
	HoldSync() (release func())
	Reconcile(ctx context.Context) error
	Restore(ctx context.Context)
	Flush(ctx context.Context) error
}

// Controller runs login and logout and reacts to notifications from other
// instances.
type Controller struct {
	session    *Session
	shelves    ShelfSync
	notifier   *broadcast.Broadcaster[Notification]
	pool       *ants.Pool
	logger     *slog.Logger
	instanceID string
	listenerID broadcast.ListenerID

	mu                sync.Mutex
	entitlementChange []func(Notification)
}

// NewController wires the controller to the notification channel. notifier
// and pool may be nil.
func NewController(session *Session, shelves ShelfSync, notifier *broadcast.Broadcaster[Notification], pool *ants.Pool, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		session:    session,
		shelves:    shelves,
		notifier:   notifier,
		pool:       pool,
		logger:     logger,
		instanceID: uuid.NewString(),
	}
	if notifier != nil {
		c.listenerID = notifier.AddMessageListener(c.handle)
	}
	return c
}

// InstanceID identifies this instance in notifications it sends
func (c *Controller) InstanceID() string { return c.instanceID }

// Session returns the login state
func (c *Controller) Session() *Session { return c.session }

// Initialize loads the persisted session
func (c *Controller) Initialize(ctx context.Context) {
	c.session.Load()
	if customer, ok := c.session.Customer(); ok && c.session.IsAuthenticated() {
		c.logger.Info("restored session", "customerID", customer.ID)
	}
}

// Login stores the session, merges the local shelves into the account and
// tells other instances. A failed merge does not fail the login.
func (c *Controller) Login(ctx context.Context, token string, customer domain.Customer) error {
	// Account writes wait until the local shelves are merged into the account
	release := c.shelves.HoldSync()
	defer release()

	if err := c.session.Set(token, customer); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	c.logger.Info("customer logged in", "customerID", customer.ID)

	if err := c.shelves.Reconcile(ctx); err != nil {
		c.logger.Error("failed to reconcile personal shelves", "error", err, "customerID", customer.ID)
	}

	return c.Publish(ctx, TypeLogin, customer)
}

// Logout clears the session, falls back to the local shelves and tells
// other instances.
func (c *Controller) Logout(ctx context.Context) error {
	// Pending account writes need the session, so they go out first
	flushCtx, cancel := context.WithTimeout(ctx, logoutFlushTimeout)
	err := c.shelves.Flush(flushCtx)
	cancel()
	if err != nil {
		c.logger.Warn("pending shelf writes not confirmed before logout", "error", err)
	}

	c.session.Clear()
	c.shelves.Restore(ctx)
	c.logger.Info("customer logged out")
	return c.Publish(ctx, TypeLogout, nil)
}

// OnEntitlementChange registers fn for access and subscription changes,
// including ones this instance publishes.
func (c *Controller) OnEntitlementChange(fn func(Notification)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entitlementChange = append(c.entitlementChange, fn)
}

// Publish sends a notification of the given type. resource may be nil.
func (c *Controller) Publish(ctx context.Context, typ string, resource any) error {
	if c.notifier == nil {
		return nil
	}
	n := Notification{Type: typ, Source: c.instanceID}
	if resource != nil {
		data, err := json.Marshal(resource)
		if err != nil {
			return fmt.Errorf("failed to encode notification resource: %w", err)
		}
		n.Resource = data
	}
	return c.notifier.BroadcastMessage(ctx, n)
}

// Close stops listening for notifications
func (c *Controller) Close() {
	if c.notifier != nil {
		c.notifier.RemoveMessageListener(c.listenerID)
	}
}

func (c *Controller) handle(n Notification) {
	if isEntitlementChange(n.Type) {
		c.mu.Lock()
		fns := append(([]func(Notification))(nil), c.entitlementChange...)
		c.mu.Unlock()
		for _, fn := range fns {
			fn(n)
		}
		return
	}

	switch n.Type {
	case TypeLogin, TypeLogout:
		if n.Source == c.instanceID {
			return
		}
		c.logger.Debug("account changed in another instance", "type", n.Type, "source", n.Source)
		c.submit(c.refreshFromPeer)
	default:
		c.logger.Debug("ignoring unknown account notification", "type", n.Type)
	}
}

// refreshFromPeer re-reads the shared session and reloads the shelves
func (c *Controller) refreshFromPeer() {
	ctx, cancel := context.WithTimeout(context.Background(), peerRefreshTimeout)
	defer cancel()
	c.session.Load()
	c.shelves.Restore(ctx)
}

func (c *Controller) submit(task func()) {
	if c.pool == nil {
		go task()
		return
	}
	if err := c.pool.Submit(task); err != nil {
		c.logger.Warn("worker pool rejected account refresh", "error", err)
		go task()
	}
}

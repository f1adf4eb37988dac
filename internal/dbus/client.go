package dbus

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/soundmode/internal/model"
)

// Client talks to a running soundmode service on the session bus.
type Client struct {
	conn   *dbus.Conn
	logger *slog.Logger
}

// NewClient connects to the session bus.
func NewClient(logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return &Client{conn: conn, logger: logger}, nil
}

// Running reports whether the service owns its bus name.
func (c *Client) Running() bool {
	var hasOwner bool
	err := c.conn.BusObject().Call("org.freedesktop.DBus.NameHasOwner", 0, DBusBusName).Store(&hasOwner)
	return err == nil && hasOwner
}

func (c *Client) object() dbus.BusObject {
	return c.conn.Object(DBusBusName, DBusPath)
}

// Mode returns the service's last known mode.
func (c *Client) Mode(ctx context.Context) (model.SoundMode, error) {
	return c.callMode(ctx, "GetMode")
}

// Update asks the service to probe and returns the result.
func (c *Client) Update(ctx context.Context) (model.SoundMode, error) {
	return c.callMode(ctx, "Update")
}

func (c *Client) callMode(ctx context.Context, method string) (model.SoundMode, error) {
	var name string
	if err := c.object().CallWithContext(ctx, DBusInterface+"."+method, 0).Store(&name); err != nil {
		return model.ModeNotDetermined, fmt.Errorf("failed to call %s: %w", method, err)
	}
	return model.ParseSoundMode(name)
}

// SetObserving starts or stops periodic probing in the service.
func (c *Client) SetObserving(ctx context.Context, on bool) error {
	method := "EndObserving"
	if on {
		method = "BeginObserving"
	}
	if err := c.object().CallWithContext(ctx, DBusInterface+"."+method, 0).Err; err != nil {
		return fmt.Errorf("failed to call %s: %w", method, err)
	}
	return nil
}

// Observing reports whether the service is probing periodically.
func (c *Client) Observing(ctx context.Context) (bool, error) {
	var on bool
	if err := c.object().CallWithContext(ctx, DBusInterface+".IsObserving", 0).Store(&on); err != nil {
		return false, fmt.Errorf("failed to call IsObserving: %w", err)
	}
	return on, nil
}

// WatchModeChanged calls fn for every ModeChanged signal until ctx is done.
func (c *Client) WatchModeChanged(ctx context.Context, fn func(ModeChange)) error {
	opts := []dbus.MatchOption{
		dbus.WithMatchObjectPath(DBusPath),
		dbus.WithMatchInterface(DBusInterface),
		dbus.WithMatchMember(SignalModeChanged),
	}
	if err := c.conn.AddMatchSignal(opts...); err != nil {
		return fmt.Errorf("failed to add match rule: %w", err)
	}
	defer func() { _ = c.conn.RemoveMatchSignal(opts...) }()

	ch := make(chan *dbus.Signal, 16)
	c.conn.Signal(ch)
	defer c.conn.RemoveSignal(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig := <-ch:
			if sig == nil || sig.Name != DBusInterface+"."+SignalModeChanged {
				continue
			}
			change, err := parseModeChange(sig.Body)
			if err != nil {
				c.logger.Warn("ignoring malformed ModeChanged signal", "error", err)
				continue
			}
			fn(change)
		}
	}
}

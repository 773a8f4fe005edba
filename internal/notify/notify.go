// Package notify raises desktop notifications for alerts over the D-Bus
// session bus (org.freedesktop.Notifications).
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"

	"ransomwatch/internal/model"
)

const (
	notificationsDest   = "org.freedesktop.Notifications"
	notificationsPath   = dbus.ObjectPath("/org/freedesktop/Notifications")
	notificationsNotify = notificationsDest + ".Notify"
)

// sendTimeout bounds a Notify call so an unresponsive notification daemon
// cannot stall the caller.
var sendTimeout = 3 * time.Second

// Freedesktop notification urgency levels.
const (
	urgencyLow      byte = 0
	urgencyNormal   byte = 1
	urgencyCritical byte = 2
)

// caller is the subset of dbus.BusObject the notifier needs.
type caller interface {
	CallWithContext(ctx context.Context, method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

// Desktop is a sink that turns alerts into desktop notifications. Events
// are ignored.
type Desktop struct {
	conn    *dbus.Conn
	obj     caller
	appName string
	timeout time.Duration
}

// Connect opens a private session bus connection.
func Connect(appName string, timeout time.Duration) (*Desktop, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}
	d := newDesktop(conn.Object(notificationsDest, notificationsPath), appName, timeout)
	d.conn = conn
	return d, nil
}

func newDesktop(obj caller, appName string, timeout time.Duration) *Desktop {
	return &Desktop{obj: obj, appName: appName, timeout: timeout}
}

func urgency(s model.Severity) byte {
	switch s {
	case model.SeverityHigh:
		return urgencyCritical
	case model.SeverityMedium:
		return urgencyNormal
	default:
		return urgencyLow
	}
}

func (d *Desktop) WriteEvent(context.Context, model.CanonicalEvent) error { return nil }

// WriteAlert sends one notification for a.
func (d *Desktop) WriteAlert(ctx context.Context, a model.Alert) error {
	summary := fmt.Sprintf("%s [%s]", a.Rule, a.Severity)
	hints := map[string]dbus.Variant{
		"urgency": dbus.MakeVariant(urgency(a.Severity)),
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	call := d.obj.CallWithContext(ctx, notificationsNotify, 0,
		d.appName,        // app_name
		uint32(0),        // replaces_id
		"dialog-warning", // app_icon
		summary,
		a.Details,
		[]string{}, // actions
		hints,
		int32(d.timeout.Milliseconds()),
	)
	if call.Err != nil {
		return fmt.Errorf("desktop notification: %w", call.Err)
	}
	return nil
}

// Close releases the bus connection.
func (d *Desktop) Close() error {
	if d.conn != nil {
		return d.conn.Close()
	}
	return nil
}

// Package dbus implements the indicator control channels over D-Bus: the
// logind session SetBrightness call on the system bus, and desktop
// notifications on the session bus.
package dbus

import (
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

const (
	logindDest   = "org.freedesktop.login1"
	logindPath   = dbus.ObjectPath("/org/freedesktop/login1/session/auto")
	logindMethod = "org.freedesktop.login1.Session.SetBrightness"

	notifyDest   = "org.freedesktop.Notifications"
	notifyPath   = dbus.ObjectPath("/org/freedesktop/Notifications")
	notifyMethod = "org.freedesktop.Notifications.Notify"
)

// Notification parameters
const (
	AppName    = "camera-led"
	ReplacesID = uint32(42)
	Icon       = "camera-web-symbolic"
	Timeout    = int32(0)
)

// caller is the part of a dbus.BusObject used here
type caller interface {
	Call(method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

// Logind sets LED brightness through the caller's logind session
type Logind struct {
	connect func() (caller, error)
	logger  *zap.Logger
}

// NewLogind creates a controller on the system bus. The bus is connected on
// first use, once per process; a failed connection is not retried.
func NewLogind(logger *zap.Logger) *Logind {
	return newLogind(systemSession, logger)
}

func newLogind(dial func() (caller, error), logger *zap.Logger) *Logind {
	return &Logind{
		connect: sync.OnceValues(dial),
		logger:  logger.Named("logind"),
	}
}

func systemSession() (caller, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to system bus: %w", err)
	}
	return conn.Object(logindDest, logindPath), nil
}

// SetBrightness implements indicator.Controller
func (l *Logind) SetBrightness(subsystem, name string, brightness uint32) error {
	session, err := l.connect()
	if err != nil {
		return err
	}

	l.logger.Debug("Calling SetBrightness",
		zap.String("subsystem", subsystem),
		zap.String("device", name),
		zap.Uint32("brightness", brightness))

	if err := session.Call(logindMethod, 0, subsystem, name, brightness).Err; err != nil {
		return fmt.Errorf("SetBrightness(%s, %s, %d): %w", subsystem, name, brightness, err)
	}
	return nil
}

// Notifications posts desktop notifications on the session bus
type Notifications struct {
	connect func() (caller, func(), error)
	logger  *zap.Logger
}

// NewNotifications creates a notifier that opens a session bus connection
// for each notification
func NewNotifications(logger *zap.Logger) *Notifications {
	return &Notifications{
		connect: sessionNotifications,
		logger:  logger.Named("notify"),
	}
}

func sessionNotifications() (caller, func(), error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	closeConn := func() { _ = conn.Close() }
	return conn.Object(notifyDest, notifyPath), closeConn, nil
}

// Notify implements indicator.Notifier
func (n *Notifications) Notify(summary, body string) error {
	obj, done, err := n.connect()
	if err != nil {
		return err
	}
	defer done()

	call := obj.Call(notifyMethod, 0,
		AppName,
		ReplacesID,
		Icon,
		summary,
		body,
		[]string{},
		map[string]dbus.Variant{},
		Timeout)
	if call.Err != nil {
		return fmt.Errorf("failed to post notification: %w", call.Err)
	}

	var id uint32
	if err := call.Store(&id); err == nil {
		n.logger.Debug("Notification posted", zap.Uint32("notification_id", id))
	}
	return nil
}

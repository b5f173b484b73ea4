// SPDX-FileCopyrightText: The fieldagent Authors
//
// SPDX-License-Identifier: MIT

package notify

import (
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/agrisense/fieldagent/internal/logger"
)

const (
	notificationsDBusName   = "org.freedesktop.Notifications"
	notificationsDBusPath   = "/org/freedesktop/Notifications"
	notificationsDBusMethod = "org.freedesktop.Notifications.Notify"

	appName       = "fieldagent"
	successIcon   = "dialog-information"
	errorIcon     = "dialog-error"
	expireTimeout = int32(5000)
	noReplacesID  = uint32(0)
)

// dbusConn is the subset of the DBus connection used by the DesktopNotifier.
type dbusConn interface {
	Object(dest string, path dbus.ObjectPath) dbus.BusObject
}

// DesktopNotifier emits desktop notifications over the session bus using the
// org.freedesktop.Notifications interface.
type DesktopNotifier struct {
	conn   dbusConn
	logger *logger.Logger
}

// NewDesktopNotifier connects to the session bus and returns a new DesktopNotifier.
func NewDesktopNotifier(log *logger.Logger) (*DesktopNotifier, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return &DesktopNotifier{conn: conn, logger: log}, nil
}

// Success satisfies the Notifier interface.
func (n *DesktopNotifier) Success(message string) {
	n.send(successIcon, message)
}

// Error satisfies the Notifier interface.
func (n *DesktopNotifier) Error(message string) {
	n.send(errorIcon, message)
}

// send delivers the notification. Delivery failures are logged, never surfaced: the
// sink is fire-and-forget.
func (n *DesktopNotifier) send(icon, message string) {
	obj := n.conn.Object(notificationsDBusName, dbus.ObjectPath(notificationsDBusPath))
	call := obj.Call(notificationsDBusMethod, 0, appName, noReplacesID, icon, appName, message,
		[]string{}, map[string]dbus.Variant{}, expireTimeout)
	if call.Err != nil {
		n.logger.Error("failed to send desktop notification", logger.Err(call.Err))
	}
}

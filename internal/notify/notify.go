// SPDX-FileCopyrightText: The fieldagent Authors
//
// SPDX-License-Identifier: MIT

// Package notify provides the user-facing notification sink. Notifications are
// fire-and-forget, no outcome is consumed by the caller.
package notify

import (
	"github.com/agrisense/fieldagent/internal/logger"
)

// Notifier is the notification sink consumed by the geolocation tracker and the
// agent service.
type Notifier interface {
	// Success emits a user-facing success notification.
	Success(message string)
	// Error emits a user-facing error notification.
	Error(message string)
}

// LogNotifier emits notifications through the structured logger.
type LogNotifier struct {
	logger *logger.Logger
}

// NewLogNotifier returns a new LogNotifier.
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{logger: log}
}

// Success satisfies the Notifier interface.
func (n *LogNotifier) Success(message string) {
	n.logger.Info(message)
}

// Error satisfies the Notifier interface.
func (n *LogNotifier) Error(message string) {
	n.logger.Error(message)
}

// MultiNotifier fans a notification out to multiple sinks.
type MultiNotifier struct {
	sinks []Notifier
}

// NewMultiNotifier returns a new MultiNotifier for the given sinks.
func NewMultiNotifier(sinks ...Notifier) *MultiNotifier {
	return &MultiNotifier{sinks: sinks}
}

// Success satisfies the Notifier interface.
func (n *MultiNotifier) Success(message string) {
	for _, sink := range n.sinks {
		sink.Success(message)
	}
}

// Error satisfies the Notifier interface.
func (n *MultiNotifier) Error(message string) {
	for _, sink := range n.sinks {
		sink.Error(message)
	}
}

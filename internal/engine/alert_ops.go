package engine

import (
	"github.com/icsd/icsd/internal/alert"
	"github.com/icsd/icsd/internal/logx"
)

// SetLogLevel changes the process-wide log verbosity. icsd keeps a
// single zap level shared by every component's named sub-logger, so
// this simply re-parses and applies the level to the global logger core
// via logx.
func (e *Engine) SetLogLevel(level string) error {
	return logx.SetLevel(level)
}

// AlertSetLevel changes the alert threshold.
func (e *Engine) AlertSetLevel(name string) error {
	level, err := alert.ParseLevel(name)
	if err != nil {
		return err
	}
	e.alertHandler.SetLevel(level)
	return nil
}

// AlertLevel returns the alert threshold's current name.
func (e *Engine) AlertLevel() string { return e.alertHandler.Level().String() }

// AlertRecipients returns a copy of the current mail recipient list.
func (e *Engine) AlertRecipients() []string { return e.alertHandler.Recipients() }

// AddAlertRecipient registers a mail recipient.
func (e *Engine) AddAlertRecipient(recipient string) { e.alertHandler.AddRecipient(recipient) }

// RemoveAlertRecipient removes a mail recipient.
func (e *Engine) RemoveAlertRecipient(recipient string) error {
	return e.alertHandler.RemoveRecipient(recipient)
}

// TestAlert raises a test INFO alert end-to-end through the pipeline.
func (e *Engine) TestAlert(resourceName, message string) {
	e.alertClient.Test(resourceName, e.groupOf(resourceName), message)
}

// AddAlert ingests an alert raised by a cluster peer directly onto this
// node's queue, so a single operator-facing alert handler can serve the
// whole cluster.
func (e *Engine) AddAlert(rec alert.Record) {
	e.alertQueue.Push(rec)
}

// Package notify carries alert engine output to whatever display
// mechanism the surrounding application provides. The engine itself
// renders nothing.
package notify

import (
	"github.com/sirupsen/logrus"

	"recon-engine/internal/core"
)

// Notifier receives one message per alert with its severity.
type Notifier interface {
	Notify(message string, severity core.AlertType)
}

// LogNotifier writes notifications to the structured log. It is the
// default sink when no UI toast mechanism is wired in.
type LogNotifier struct {
	Log *logrus.Logger
}

func NewLogNotifier(log *logrus.Logger) *LogNotifier {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &LogNotifier{Log: log}
}

func (n *LogNotifier) Notify(message string, severity core.AlertType) {
	entry := n.Log.WithField("severity", string(severity))
	switch severity {
	case core.AlertError:
		entry.Error(message)
	case core.AlertWarning:
		entry.Warn(message)
	default:
		entry.Info(message)
	}
}

// FanOut publishes every alert to the notifier.
func FanOut(n Notifier, alerts []core.SmartAlert) {
	for _, a := range alerts {
		n.Notify(a.Title+": "+a.Message, a.Type)
	}
}

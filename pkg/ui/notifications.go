package ui

import (
	"fmt"
	"os/exec"
	"runtime"

	"imgharvest/pkg/harvest"
)

// NotificationSender interface for platform-specific notification implementations
type NotificationSender interface {
	Send(title, message string) error
}

// LinuxNotificationSender sends notifications on Linux using notify-send
type LinuxNotificationSender struct{}

func (l *LinuxNotificationSender) Send(title, message string) error {
	return exec.Command("notify-send", title, message).Run()
}

// MacOSNotificationSender sends notifications on macOS using osascript
type MacOSNotificationSender struct{}

func (m *MacOSNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`display notification %q with title %q`, message, title)
	return exec.Command("osascript", "-e", script).Run()
}

// Notifier sends desktop notifications when a run ends
type Notifier struct {
	sender NotificationSender
}

// NewNotifier picks a sender for the current platform. Other platforms get
// a notifier that does nothing.
func NewNotifier() *Notifier {
	switch runtime.GOOS {
	case "linux":
		return &Notifier{sender: &LinuxNotificationSender{}}
	case "darwin":
		return &Notifier{sender: &MacOSNotificationSender{}}
	default:
		return &Notifier{}
	}
}

// NewNotifierWithSender uses an explicit sender
func NewNotifierWithSender(s NotificationSender) *Notifier {
	return &Notifier{sender: s}
}

// NotifyReport summarizes a finished run. Delivery errors are ignored.
func (n *Notifier) NotifyReport(r *harvest.Report) {
	if n.sender == nil || r == nil {
		return
	}

	if r.Err != nil {
		_ = n.sender.Send("Harvest failed", r.Err.Error())
		return
	}

	title := "Harvest complete"
	if r.Failed() > 0 {
		title = "Harvest finished with failures"
	}
	_ = n.sender.Send(title, fmt.Sprintf("%d of %d images saved", r.Succeeded(), len(r.Records)))
}

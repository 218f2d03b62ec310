package testsupport

import (
	"context"
	"sync"
)

// Notification is one recorded delivery.
type Notification struct {
	RecipientID int64
	Text        string
}

// RecordingNotifier captures notifications; Err, when set, fails every call.
type RecordingNotifier struct {
	mu   sync.Mutex
	sent []Notification
	Err  error
}

func (n *RecordingNotifier) Notify(_ context.Context, recipientID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Err != nil {
		return n.Err
	}
	n.sent = append(n.sent, Notification{RecipientID: recipientID, Text: text})
	return nil
}

func (n *RecordingNotifier) SetErr(err error) {
	n.mu.Lock()
	n.Err = err
	n.mu.Unlock()
}

func (n *RecordingNotifier) Sent() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.sent...)
}

package ops

import (
	"context"
	"testing"
)

func TestNewNotifierDisabledWithoutToken(t *testing.T) {
	n := NewNotifier("", "#storage-alerts", nil)
	if n.IsEnabled() {
		t.Error("IsEnabled() = true with no bot token configured")
	}
}

func TestNotifyIsNoOpWhenDisabled(t *testing.T) {
	n := NewNotifier("", "", nil)
	if err := n.Notify(context.Background(), "capacity critical"); err != nil {
		t.Errorf("Notify() on a disabled notifier returned error %v, want nil", err)
	}
}

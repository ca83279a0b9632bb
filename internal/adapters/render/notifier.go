package render

import (
	"context"
	"io"
	"sync"

	"github.com/taskmaster/client/internal/domain/entities"
	"github.com/taskmaster/client/internal/ports"
)

// TerminalNotifier shows desktop notifications as banners on a terminal
// writer. Permission is granted on request only when enabled is true.
type TerminalNotifier struct {
	out     io.Writer
	enabled bool

	mu         sync.Mutex
	permission ports.Permission
}

// NewTerminalNotifier creates a notifier that has not asked for permission yet
func NewTerminalNotifier(out io.Writer, enabled bool) *TerminalNotifier {
	return &TerminalNotifier{
		out:        out,
		enabled:    enabled,
		permission: ports.PermissionDefault,
	}
}

func (n *TerminalNotifier) Permission() ports.Permission {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.permission
}

func (n *TerminalNotifier) RequestPermission(ctx context.Context) ports.Permission {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.permission != ports.PermissionDefault {
		return n.permission
	}
	if n.enabled {
		n.permission = ports.PermissionGranted
	} else {
		n.permission = ports.PermissionDenied
	}
	return n.permission
}

// Show writes the banner. It does nothing unless permission was granted.
func (n *TerminalNotifier) Show(notification entities.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.permission != ports.PermissionGranted {
		return nil
	}
	_, err := io.WriteString(n.out, Banner(notification))
	return err
}

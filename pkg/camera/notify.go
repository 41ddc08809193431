package camera

import "context"

// Notifier wraps a Capturer and reports every frame it takes, so photos
// taken for tools also reach the dashboard.
type Notifier struct {
	Capturer
	OnFrame func(Frame)
}

// Capture takes a photo and passes it to OnFrame.
func (n *Notifier) Capture(ctx context.Context) (Frame, error) {
	f, err := n.Capturer.Capture(ctx)
	if err == nil && n.OnFrame != nil {
		n.OnFrame(f)
	}
	return f, err
}

var _ Capturer = (*Notifier)(nil)

package playback

import "context"

// Cues plays named clips from a Library through a Coordinator.
type Cues struct {
	lib   *Library
	coord *Coordinator
}

// NewCues creates a cue player.
func NewCues(lib *Library, coord *Coordinator) *Cues {
	return &Cues{lib: lib, coord: coord}
}

// Play plays the named clip and waits for it to finish.
func (c *Cues) Play(ctx context.Context, name string) error {
	clip, err := c.lib.Get(name)
	if err != nil {
		return err
	}
	return c.coord.PlaySync(ctx, clip)
}

// Fire starts the named clip without waiting. It reports false when the
// clip is missing or the speaker is busy.
func (c *Cues) Fire(name string) bool {
	clip, err := c.lib.Get(name)
	if err != nil {
		c.coord.logger.Warn("cue unavailable", "clip", name, "error", err)
		return false
	}
	return c.coord.PlayAsync(clip)
}

// Has reports whether the named clip exists.
func (c *Cues) Has(name string) bool {
	return c.lib.Has(name)
}

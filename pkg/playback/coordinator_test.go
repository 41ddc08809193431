package playback

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-tonypi/pkg/audioio"
)

// gatedPlayer blocks each Play until release is closed or ctx ends.
type gatedPlayer struct {
	mu      sync.Mutex
	played  []string
	started chan string
	release chan struct{}
	err     error
	panic   bool
}

func newGatedPlayer() *gatedPlayer {
	return &gatedPlayer{started: make(chan string, 10), release: make(chan struct{})}
}

func (g *gatedPlayer) Play(ctx context.Context, clip *Clip) error {
	g.started <- clip.Name
	if g.panic {
		panic("device exploded")
	}
	select {
	case <-g.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	g.mu.Lock()
	g.played = append(g.played, clip.Name)
	g.mu.Unlock()
	return g.err
}

func (g *gatedPlayer) Played() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.played...)
}

func clip(name string) *Clip {
	return NewClip(name, audioio.AudioChunk{Samples: make([]int16, 16), SampleRate: 16000, Channels: 1})
}

func waitStarted(t *testing.T, g *gatedPlayer, want string) {
	t.Helper()
	select {
	case got := <-g.started:
		if got != want {
			t.Fatalf("started %q, want %q", got, want)
		}
	case <-time.After(time.Second):
		t.Fatalf("%q never started", want)
	}
}

func TestCoordinator_PlayAsyncSkipsWhenBusy(t *testing.T) {
	g := newGatedPlayer()
	c := New(g)
	defer c.Close()

	if !c.PlayAsync(clip("ack")) {
		t.Fatal("PlayAsync on idle coordinator should start")
	}
	waitStarted(t, g, "ack")

	if !c.IsBusy() {
		t.Error("IsBusy() = false while playing")
	}
	if c.PlayAsync(clip("second")) {
		t.Error("PlayAsync while busy should skip")
	}

	close(g.release)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.WaitForIdle(ctx); err != nil {
		t.Fatalf("WaitForIdle: %v", err)
	}
	if c.IsBusy() {
		t.Error("IsBusy() = true after WaitForIdle")
	}

	st := c.Stats()
	if st.Played != 1 || st.Skipped != 1 {
		t.Errorf("Stats = %+v, want 1 played 1 skipped", st)
	}
}

func TestCoordinator_WaitForIdleLeavesSlotFree(t *testing.T) {
	c := New(PlayerFunc(func(context.Context, *Clip) error { return nil }))
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				c.WaitForIdle(ctx)
			}
		}()
	}

	const n = 200
	for i := 0; i < n; i++ {
		if !c.PlayAsync(clip("ack")) {
			t.Fatalf("PlayAsync %d skipped on an idle speaker", i)
		}
		if err := c.WaitForIdle(ctx); err != nil {
			t.Fatalf("WaitForIdle: %v", err)
		}
	}
	close(stop)
	wg.Wait()

	if st := c.Stats(); st.Played != n || st.Skipped != 0 {
		t.Errorf("Stats = %+v, want %d played none skipped", st, n)
	}
}

func TestCoordinator_PlaySyncWaitsForCurrent(t *testing.T) {
	g := newGatedPlayer()
	c := New(g)
	defer c.Close()

	c.PlayAsync(clip("ack"))
	waitStarted(t, g, "ack")

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.PlaySync(context.Background(), clip("reply"))
	}()

	select {
	case <-g.started:
		t.Fatal("reply started while ack was still playing")
	case <-time.After(50 * time.Millisecond):
	}

	close(g.release)
	if err := <-errCh; err != nil {
		t.Fatalf("PlaySync: %v", err)
	}

	got := g.Played()
	if len(got) != 2 || got[0] != "ack" || got[1] != "reply" {
		t.Errorf("played = %v, want [ack reply]", got)
	}
	if c.IsBusy() {
		t.Error("IsBusy() = true after PlaySync returned")
	}
}

func TestCoordinator_ErrorReleasesSlot(t *testing.T) {
	g := newGatedPlayer()
	g.err = errors.New("aplay: device busy")
	close(g.release)
	c := New(g)
	defer c.Close()

	if err := c.PlaySync(context.Background(), clip("x")); !errors.Is(err, g.err) {
		t.Fatalf("PlaySync = %v, want player error", err)
	}
	if c.IsBusy() {
		t.Error("slot not released after player error")
	}
	if c.Stats().Failed != 1 {
		t.Errorf("Failed = %d, want 1", c.Stats().Failed)
	}
}

func TestCoordinator_PanicReleasesSlot(t *testing.T) {
	g := newGatedPlayer()
	g.panic = true
	c := New(g)
	defer c.Close()

	c.PlayAsync(clip("boom"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.WaitForIdle(ctx); err != nil {
		t.Fatalf("WaitForIdle after panic: %v", err)
	}

	err := c.PlaySync(ctx, clip("boom2"))
	if err == nil {
		t.Fatal("expected panic to surface as error")
	}
}

func TestCoordinator_Run(t *testing.T) {
	c := New(newGatedPlayer())
	defer c.Close()

	ran := false
	err := c.Run(context.Background(), "speech", func(ctx context.Context) error {
		ran = true
		if !c.IsBusy() {
			t.Error("speaker should be held during Run")
		}
		return nil
	})
	if err != nil || !ran {
		t.Fatalf("Run() = %v, ran = %v", err, ran)
	}
}

func TestCoordinator_PlaySyncContextCancelledWhileWaiting(t *testing.T) {
	g := newGatedPlayer()
	c := New(g)
	defer c.Close()

	c.PlayAsync(clip("long"))
	waitStarted(t, g, "long")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := c.PlaySync(ctx, clip("late")); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("PlaySync = %v, want deadline exceeded", err)
	}
	close(g.release)
}

func TestCoordinator_CloseCancelsPlayback(t *testing.T) {
	g := newGatedPlayer()
	c := New(g)

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.PlaySync(context.Background(), clip("song"))
	}()
	waitStarted(t, g, "song")

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("PlaySync = %v, want canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("PlaySync hung after Close")
	}

	if c.PlayAsync(clip("after")) {
		t.Error("PlayAsync after Close should fail")
	}
	if err := c.PlaySync(context.Background(), clip("after")); !errors.Is(err, ErrClosed) {
		t.Errorf("PlaySync after Close = %v, want ErrClosed", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestSinkPlayer_ConvertsFormat(t *testing.T) {
	cfg := audioio.DefaultConfig()
	cfg.SampleRate = 24000
	sink := audioio.NewMockSink(cfg, nil)
	if err := sink.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	// 100ms of 16kHz stereo becomes 100ms of 24kHz mono.
	stereo := make([]int16, 3200)
	for i := range stereo {
		stereo[i] = 1000
	}
	err := NewSinkPlayer(sink).Play(context.Background(),
		NewClip("s", audioio.AudioChunk{Samples: stereo, SampleRate: 16000, Channels: 2}))
	if err != nil {
		t.Fatalf("Play: %v", err)
	}

	played := sink.Played()
	if len(played) != 2400 {
		t.Errorf("played %d samples, want 2400", len(played))
	}
	if sink.Flushes() != 1 {
		t.Errorf("Flushes = %d, want 1", sink.Flushes())
	}
}

func TestSinkPlayer_Cancelled(t *testing.T) {
	sink := audioio.NewMockSink(audioio.DefaultConfig(), nil)
	sink.Start(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewSinkPlayer(sink).Play(ctx, clip("x"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Play = %v, want canceled", err)
	}
	if sink.Clears() != 1 {
		t.Errorf("Clears = %d, want 1", sink.Clears())
	}
}

func TestLibrary(t *testing.T) {
	dir := t.TempDir()
	wav := audioio.EncodeWAV(audioio.AudioChunk{Samples: []int16{1, 2, 3}, SampleRate: 16000, Channels: 1})
	if err := os.WriteFile(filepath.Join(dir, "我在.wav"), wav, 0o644); err != nil {
		t.Fatal(err)
	}

	lib := NewLibrary(dir)
	if !lib.Has("我在.wav") {
		t.Error("Has(我在.wav) = false")
	}
	if lib.Has("任务完成.wav") || lib.Has("") {
		t.Error("Has should be false for missing clips")
	}

	c1, err := lib.Get("我在.wav")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	c2, _ := lib.Get("我在.wav")
	if c1 != c2 {
		t.Error("Get should cache clips")
	}
	if c1.Name != "我在.wav" || len(c1.Audio.Samples) != 3 {
		t.Errorf("clip = %+v", c1)
	}

	if _, err := lib.Get("missing.wav"); !errors.Is(err, ErrClipNotFound) {
		t.Errorf("Get(missing) = %v, want ErrClipNotFound", err)
	}
}

func TestCues(t *testing.T) {
	dir := t.TempDir()
	wav := audioio.EncodeWAV(audioio.AudioChunk{Samples: []int16{1, 2, 3}, SampleRate: 16000, Channels: 1})
	if err := os.WriteFile(filepath.Join(dir, "开始.wav"), wav, 0o644); err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var played []string
	c := New(PlayerFunc(func(ctx context.Context, clip *Clip) error {
		mu.Lock()
		played = append(played, clip.Name)
		mu.Unlock()
		return nil
	}))
	defer c.Close()
	cues := NewCues(NewLibrary(dir), c)

	if err := cues.Play(context.Background(), "开始.wav"); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if err := cues.Play(context.Background(), "胜利.wav"); !errors.Is(err, ErrClipNotFound) {
		t.Errorf("Play(missing) = %v", err)
	}
	if cues.Fire("胜利.wav") {
		t.Error("Fire(missing) = true")
	}
	if !cues.Has("开始.wav") {
		t.Error("Has(开始.wav) = false")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(played) != 1 || played[0] != "开始.wav" {
		t.Errorf("played = %v", played)
	}
}

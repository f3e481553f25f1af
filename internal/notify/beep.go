// Package notify gives audible and on-screen feedback on the desktop.
package notify

import (
	"context"
	log "log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
)

// Runner executes a command; the desktop implementation shells out.
type Runner func(ctx context.Context, name string, args ...string) error

func execRunner(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

// Desktop plays the start beep through the speaker and shows toasts with
// notify-send.
type Desktop struct {
	beepPath string
	title    string
	run      Runner

	speakerOnce sync.Once
	speakerErr  error
}

func NewDesktop(beepPath, title string) *Desktop {
	return &Desktop{beepPath: beepPath, title: title, run: execRunner}
}

// Cue plays the beep and returns once it finished. A missing or broken
// file is logged and skipped.
func (d *Desktop) Cue() {
	if d.beepPath == "" {
		return
	}
	if err := d.playBeep(); err != nil {
		log.Warn("Failed to play beep", "file", d.beepPath, "err", err)
	}
}

func (d *Desktop) playBeep() error {
	f, err := os.Open(d.beepPath)
	if err != nil {
		return err
	}

	streamer, format, err := mp3.Decode(f)
	if err != nil {
		f.Close()
		return err
	}
	defer streamer.Close()

	d.speakerOnce.Do(func() {
		d.speakerErr = speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10))
	})
	if d.speakerErr != nil {
		return d.speakerErr
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(streamer, beep.Callback(func() {
		close(done)
	})))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		speaker.Clear()
	}
	return nil
}

func (d *Desktop) Toast(message string) {
	if message == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := d.run(ctx, "notify-send", "-a", d.title, d.title, message); err != nil {
		log.Debug("notify-send failed", "err", err)
	}
}

// Package voice reads fired reminders aloud on a user's devices.
package voice

import (
	"context"
	"encoding/base64"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dukerupert/smartassist/internal/websocket"
)

// Audio is synthesized speech.
type Audio struct {
	MIMEType string
	Data     []byte
	Duration time.Duration
}

// Synthesizer turns text into speech.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (Audio, error)
}

// Sender delivers a message to every device of a user.
type Sender interface {
	SendToUser(userID string, msg websocket.Message)
}

const synthTimeout = 30 * time.Second

// Announcer plays speech for one user. Speaking new text stops the previous
// playback. Without a synthesizer the text is sent for on-device speech.
type Announcer struct {
	userID string
	synth  Synthesizer
	sender Sender
	logger *slog.Logger

	mu       sync.Mutex
	gen      uint64
	cancel   context.CancelFunc
	speaking bool
	timer    *time.Timer
}

func NewAnnouncer(userID string, synth Synthesizer, sender Sender, logger *slog.Logger) *Announcer {
	return &Announcer{userID: userID, synth: synth, sender: sender, logger: logger}
}

// Speak starts playback of text and returns immediately. Failures are logged.
func (a *Announcer) Speak(ctx context.Context, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	a.mu.Lock()
	a.stopLocked()
	a.gen++
	gen := a.gen
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), synthTimeout)
	a.cancel = cancel
	a.speaking = true
	a.mu.Unlock()

	go a.play(sctx, gen, text)
}

func (a *Announcer) play(ctx context.Context, gen uint64, text string) {
	extra := map[string]any{"text": text}
	duration := estimateDuration(text)

	if a.synth != nil {
		audio, err := a.synth.Synthesize(ctx, text)
		switch {
		case ctx.Err() != nil:
			a.finish(gen)
			return
		case err != nil:
			a.logger.Warn("speech synthesis failed, falling back to device speech", "user_id", a.userID, "error", err)
		default:
			extra["audio"] = base64.StdEncoding.EncodeToString(audio.Data)
			extra["mime_type"] = audio.MIMEType
			if audio.Duration > 0 {
				duration = audio.Duration
			}
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if gen != a.gen || !a.speaking {
		return
	}
	a.sender.SendToUser(a.userID, websocket.NewMessage("voice", "play", "", extra))
	a.timer = time.AfterFunc(duration, func() { a.finish(gen) })
}

func (a *Announcer) finish(gen uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if gen == a.gen {
		a.speaking = false
		a.release()
	}
}

// Stop halts playback. It is a no-op when nothing is playing.
func (a *Announcer) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopLocked()
}

func (a *Announcer) stopLocked() {
	if !a.speaking {
		return
	}
	a.speaking = false
	a.gen++
	a.release()
	a.sender.SendToUser(a.userID, websocket.NewMessage("voice", "stop", "", nil))
}

func (a *Announcer) release() {
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

// IsSpeaking reports whether speech is being prepared or played.
func (a *Announcer) IsSpeaking() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.speaking
}

// estimateDuration approximates how long a device takes to read text aloud.
func estimateDuration(text string) time.Duration {
	words := len(strings.Fields(text))
	return time.Duration(words)*400*time.Millisecond + time.Second
}

// Voices holds one Announcer per user.
type Voices struct {
	synth  Synthesizer
	sender Sender
	logger *slog.Logger

	mu         sync.Mutex
	announcers map[string]*Announcer
}

// NewVoices creates the per-user announcer set. synth may be nil.
func NewVoices(synth Synthesizer, sender Sender, logger *slog.Logger) *Voices {
	return &Voices{
		synth:      synth,
		sender:     sender,
		logger:     logger,
		announcers: make(map[string]*Announcer),
	}
}

// For returns the user's announcer, creating it on first use.
func (v *Voices) For(userID string) *Announcer {
	v.mu.Lock()
	defer v.mu.Unlock()
	a, ok := v.announcers[userID]
	if !ok {
		a = NewAnnouncer(userID, v.synth, v.sender, v.logger)
		v.announcers[userID] = a
	}
	return a
}

func (v *Voices) Speak(ctx context.Context, userID, text string) {
	v.For(userID).Speak(ctx, text)
}

func (v *Voices) Stop(userID string) {
	v.For(userID).Stop()
}

func (v *Voices) IsSpeaking(userID string) bool {
	return v.For(userID).IsSpeaking()
}

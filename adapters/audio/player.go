package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/sameerkhansf/vapi-takehome/internal/wire"
)

// ErrNoPlayer is returned when no installed player handles the reply format.
var ErrNoPlayer = errors.New("no suitable audio player found")

// audioPlayer represents an audio player command, its arguments and the
// mime types it can decode.
type audioPlayer struct {
	command string
	args    []string
	accepts []string
}

func (p audioPlayer) handles(mimeType string) bool {
	for _, m := range p.accepts {
		if m == mimeType {
			return true
		}
	}
	return false
}

// getAudioPlayers returns the players to try in order.
func getAudioPlayers() []audioPlayer {
	encoded := []string{"audio/mp3", "audio/mpeg", "audio/wav"}
	return []audioPlayer{
		// FFplay (part of FFmpeg)
		{"ffplay", []string{"-nodisp", "-autoexit", "-loglevel", "quiet"}, encoded},
		// mpg123
		{"mpg123", []string{"-q"}, []string{"audio/mp3", "audio/mpeg"}},
		// macOS afplay
		{"afplay", nil, encoded},
		// SoX play command
		{"play", []string{"-q"}, encoded},
		// ALSA aplay (Linux)
		{"aplay", []string{"-q"}, []string{"audio/wav"}},
	}
}

// Player writes a synthesized reply to a temp file and plays it with the
// first available system player. Play hands off and returns; playback runs in
// the background.
type Player struct {
	dir      string
	players  []audioPlayer
	lookPath func(string) (string, error)
	run      func(ctx context.Context, name string, args ...string) error
	logger   *zap.Logger

	wg sync.WaitGroup
}

// NewPlayer creates a player that stages audio files in dir (os.TempDir when empty).
func NewPlayer(dir string, logger *zap.Logger) *Player {
	if dir == "" {
		dir = os.TempDir()
	}
	return &Player{
		dir:      dir,
		players:  getAudioPlayers(),
		lookPath: exec.LookPath,
		run: func(ctx context.Context, name string, args ...string) error {
			return exec.CommandContext(ctx, name, args...).Run()
		},
		logger: logger,
	}
}

// Play decodes a base64 data URL and starts playback. ctx bounds the
// background playback.
func (p *Player) Play(ctx context.Context, dataURL string) error {
	mimeType, payload, err := wire.DecodeDataURL(dataURL)
	if err != nil {
		return err
	}

	player, ok := p.pick(mimeType)
	if !ok {
		return fmt.Errorf("%w for %s", ErrNoPlayer, mimeType)
	}

	f, err := os.CreateTemp(p.dir, "voice-reply-*"+extensionFor(mimeType))
	if err != nil {
		return fmt.Errorf("failed to create audio file: %w", err)
	}
	if _, err := f.Write(payload); err != nil {
		f.Close()
		os.Remove(f.Name())
		return fmt.Errorf("failed to write audio file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return fmt.Errorf("failed to write audio file: %w", err)
	}

	filename := f.Name()
	args := append(append([]string{}, player.args...), filename)
	p.logger.Info("Playing audio reply",
		zap.String("player", player.command),
		zap.String("mimeType", mimeType),
		zap.Int("audioSize", len(payload)))

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer os.Remove(filename)
		if err := p.run(ctx, player.command, args...); err != nil {
			p.logger.Warn("Player failed", zap.String("player", player.command), zap.Error(err))
		}
	}()
	return nil
}

// Wait blocks until every started playback has finished.
func (p *Player) Wait() {
	p.wg.Wait()
}

func (p *Player) pick(mimeType string) (audioPlayer, bool) {
	for _, player := range p.players {
		if !player.handles(mimeType) {
			continue
		}
		if _, err := p.lookPath(player.command); err == nil {
			return player, true
		}
	}
	return audioPlayer{}, false
}

func extensionFor(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case "audio/mp3", "audio/mpeg":
		return ".mp3"
	case "audio/wav", "audio/wave", "audio/x-wav":
		return ".wav"
	default:
		return ".bin"
	}
}

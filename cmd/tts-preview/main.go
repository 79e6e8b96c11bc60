package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/sameerkhansf/vapi-takehome/adapters/audio"
	"github.com/sameerkhansf/vapi-takehome/adapters/tts"
	"github.com/sameerkhansf/vapi-takehome/domain/repositories"
	"github.com/sameerkhansf/vapi-takehome/internal/config"
	"github.com/sameerkhansf/vapi-takehome/internal/logging"
	"github.com/sameerkhansf/vapi-takehome/internal/providers"
	"github.com/sameerkhansf/vapi-takehome/internal/voiceerr"
	"github.com/sameerkhansf/vapi-takehome/internal/wire"
)

const defaultText = "Hello! This is a preview of the assistant's voice."

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	text := flag.String("text", defaultText, "text to synthesize")
	voice := flag.String("voice", cfg.TTSVoice, "voice name (provider specific)")
	output := flag.String("out", "", "also save the audio to this file")
	listVoices := flag.Bool("voices", false, "list the provider's voices for the configured language and exit")
	noPlay := flag.Bool("no-play", false, "skip playback")
	flag.Parse()

	// Create logger
	logger, err := logging.New(false, cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	set, err := providers.BuildTextToSpeech(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create TTS service", zap.Error(err))
	}
	defer set.Close()

	if *listVoices {
		printVoices(ctx, set.TextToSpeech, cfg.STTLanguage, logger)
		return
	}

	logger.Info("Converting text to speech", zap.String("text", *text), zap.String("voice", *voice))

	audioData, err := set.TextToSpeech.SynthesizeAudio(ctx, *text, repositories.VoiceConfig{
		Voice:    *voice,
		Language: cfg.STTLanguage,
	})
	if err != nil {
		verr := voiceerr.ClassifyStage(voiceerr.StageSynthesize, err)
		logger.Fatal("Failed to convert text to speech", zap.String("code", string(verr.Code)), zap.Error(err))
	}

	mimeType := set.TextToSpeech.AudioMimeType()
	fmt.Printf("Synthesized %d bytes of %s\n", len(audioData), mimeType)

	if *output != "" {
		if err := os.WriteFile(*output, audioData, 0o644); err != nil {
			logger.Fatal("Failed to write output file", zap.Error(err))
		}
		fmt.Printf("Audio saved to %s\n", *output)
	}

	if *noPlay {
		return
	}

	player := audio.NewPlayer("", logger)
	if err := player.Play(context.Background(), wire.EncodeDataURL(mimeType, audioData)); err != nil {
		if errors.Is(err, audio.ErrNoPlayer) {
			fmt.Println("No audio player found. Install ffplay, mpg123 or sox to hear the preview.")
			return
		}
		logger.Fatal("Failed to play audio", zap.Error(err))
	}
	player.Wait()
}

func printVoices(ctx context.Context, provider repositories.TextToSpeech, language string, logger *zap.Logger) {
	lister, ok := provider.(repositories.VoiceLister)
	if !ok {
		fmt.Println("The configured provider cannot list voices.")
		return
	}

	voices, err := lister.ListVoices(ctx, language)
	if errors.Is(err, tts.ErrListingUnsupported) {
		fmt.Println("The configured provider cannot list voices.")
		return
	}
	if err != nil {
		logger.Fatal("Failed to get available voices", zap.Error(err))
	}

	fmt.Printf("Available voices for %s (%d):\n", language, len(voices))
	for _, v := range voices {
		fmt.Printf("  - %s %v %s\n", v.Name, v.LanguageCodes, v.Gender)
	}
}

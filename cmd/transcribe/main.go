// transcribe runs the voice-note pipeline on local recordings, handy to debug ffmpeg and Whisper settings.
//
//	go run ./cmd/transcribe voice.ogg other.m4a
//
// Raw 16-bit PCM (.pcm, .raw) is read at AUDIO_SAMPLE_RATE and AUDIO_CHANNELS and skips ffmpeg.
package main

import (
	"context"
	"fmt"
	"github.com/petrzlen/butler-golang/internal/config"
	"github.com/petrzlen/butler-golang/internal/utils"
	"github.com/petrzlen/butler-golang/pkg/audio_utils"
	"github.com/petrzlen/butler-golang/pkg/audioio"
	"github.com/petrzlen/butler-golang/pkg/models"
	"github.com/petrzlen/butler-golang/pkg/transcriber"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"os"
	"os/signal"
	"path/filepath"
)

func main() {
	envFile := pflag.StringP("env", "e", ".env", "Env file path")
	wavOnly := pflag.Bool("wav-only", false, "Only convert and print the WAV header, skip Whisper")
	pflag.Parse()

	cfg, err := config.Load(*envFile)
	utils.Ftl(err)
	utils.SetupZerolog(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fs := afero.NewOsFs()
	ffmpeg := audio_utils.NewFFmpegConverter(cfg.Audio.FFmpegPath, cfg.Audio.SampleRate, cfg.Audio.Channels, cfg.Audio.FFmpegTimeout)
	if needsFFmpeg(pflag.Args()) {
		utils.Ftl(ffmpeg.Available(ctx))
	}
	converter := audio_utils.NewPCMConverter(fs, cfg.Audio.SampleRate, cfg.Audio.Channels, ffmpeg)

	if *wavOnly {
		for _, path := range pflag.Args() {
			printWavInfo(ctx, fs, converter, path)
		}
		return
	}

	openaiConfig := openai.DefaultConfig(cfg.OpenAI.APIKey)
	if cfg.OpenAI.BaseURL != "" {
		openaiConfig.BaseURL = cfg.OpenAI.BaseURL
	}
	pipeline := transcriber.NewPipeline(
		fs,
		"",
		audioio.NewFileMediaDownloader(fs),
		converter,
		transcriber.NewOpenAIWhisper(openai.NewClientWithConfig(openaiConfig), cfg.OpenAI.TranscriptionModel, cfg.OpenAI.Language),
	)

	for i, path := range pflag.Args() {
		msg := models.InboundMessage{
			MessageSid:       fmt.Sprintf("local-%d", i),
			NumMedia:         1,
			MediaURL:         path,
			MediaContentType: audioio.ContentTypeForPath(path),
			Trace:            models.NewTrace("cmd.transcribe"),
		}
		text, err := pipeline.Transcribe(ctx, msg)
		if err != nil {
			log.Error().Err(err).Str("kind", models.KindOf(err).String()).Str("path", path).Msg("cannot transcribe")
			continue
		}
		fmt.Printf("%s\t%s\n", path, text)
	}
}

func printWavInfo(ctx context.Context, fs afero.Fs, converter audio_utils.Converter, path string) {
	dir, err := afero.TempDir(fs, "", "butler-wav-")
	utils.Ftl(err)
	defer func() {
		utils.Dbg(fs.RemoveAll(dir))
	}()

	wavPath := filepath.Join(dir, "output.wav")
	if err := converter.Convert(ctx, path, wavPath); err != nil {
		log.Error().Err(err).Str("path", path).Msg("cannot convert")
		return
	}
	wavBytes, err := afero.ReadFile(fs, wavPath)
	utils.Ftl(err)
	info, err := audio_utils.InspectWav(wavBytes)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("invalid wav")
		return
	}
	fmt.Printf("%s\t%d Hz\t%d ch\t%d bit\t%s\n", path, info.SampleRate, info.NumChannels, info.BitDepth, info.Duration)
}

func needsFFmpeg(paths []string) bool {
	for _, path := range paths {
		if !audio_utils.IsRawPCM(path) {
			return true
		}
	}
	return false
}

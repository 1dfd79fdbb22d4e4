package audio_utils

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"io"
	"time"
)

func dbg(err error) {
	if err != nil {
		log.Debug().Err(err).Msg("sth non-essential failed")
	}
}

// WavInfo is what we learn from a WAV header after ffmpeg is done.
type WavInfo struct {
	SampleRate  int
	NumChannels int
	BitDepth    int
	Duration    time.Duration
}

// InspectWav fails for anything that is not a readable RIFF/WAVE file.
func InspectWav(wavBytes []byte) (info WavInfo, err error) {
	if len(wavBytes) == 0 {
		err = fmt.Errorf("wav is empty")
		return
	}
	decoder := wav.NewDecoder(bytes.NewReader(wavBytes))
	if !decoder.IsValidFile() {
		err = fmt.Errorf("not a valid wav file (%d bytes)", len(wavBytes))
		return
	}

	duration, err := decoder.Duration()
	if err != nil {
		err = fmt.Errorf("cannot read wav duration %w", err)
		return
	}
	info = WavInfo{
		SampleRate:  int(decoder.SampleRate),
		NumChannels: int(decoder.NumChans),
		BitDepth:    int(decoder.BitDepth),
		Duration:    duration,
	}
	log.Debug().Int("sample_rate", info.SampleRate).Int("num_channels", info.NumChannels).Int("bit_depth", info.BitDepth).Dur("duration", info.Duration).Msg("inspected wav")
	return
}

// EncodePCM16 wraps little-endian signed 16-bit samples into a WAV container.
func EncodePCM16(pcm []byte, sampleRate int, numChannels int) (result []byte, err error) {
	switch {
	case sampleRate <= 0 || numChannels <= 0:
		err = fmt.Errorf("invalid pcm format %d Hz %d channels", sampleRate, numChannels)
		return
	case len(pcm) == 0:
		err = fmt.Errorf("pcm is empty")
		return
	case len(pcm)%(2*numChannels) != 0:
		err = fmt.Errorf("pcm length %d is not a whole number of %d channel frames", len(pcm), numChannels)
		return
	}

	samples := &audio.IntBuffer{
		Data:           pcm16Samples(pcm),
		Format:         &audio.Format{SampleRate: sampleRate, NumChannels: numChannels},
		SourceBitDepth: 16,
	}

	// wav.Encoder seeks back to patch the RIFF sizes, a memory file gives it somewhere to do that.
	memFs := afero.NewMemMapFs()
	out, err := memFs.Create("pcm.wav")
	if err != nil {
		err = fmt.Errorf("cannot create in-memory wav %w", err)
		return
	}
	defer func() {
		dbg(out.Close())
	}()

	encoder := wav.NewEncoder(out, sampleRate, 16, numChannels, wavFormatPCM)
	if err = encoder.Write(samples); err != nil {
		err = fmt.Errorf("cannot encode pcm as wav %w", err)
		return
	}
	if err = encoder.Close(); err != nil {
		err = fmt.Errorf("cannot finish wav encoding %w", err)
		return
	}
	if _, err = out.Seek(0, io.SeekStart); err != nil {
		return
	}
	result, err = io.ReadAll(out)
	log.Trace().Int("pcm_bytes", len(pcm)).Int("wav_bytes", len(result)).Int("sample_rate", sampleRate).Int("num_channels", numChannels).Msg("wrapped pcm as wav")
	return
}

const wavFormatPCM = 1

func pcm16Samples(pcm []byte) []int {
	samples := make([]int, len(pcm)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[2*i:])))
	}
	return samples
}

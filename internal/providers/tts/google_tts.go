package tts

import (
	"context"
	"time"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	ttspb "cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
)

const linear16SampleRateHz = 24000

// GoogleTTS implements Synthesizer over Cloud Text-to-Speech, emitting
// LINEAR16 PCM so playback duration can be derived from sample count.
type GoogleTTS struct {
	c        *texttospeech.Client
	language string
}

func NewGoogleTTS(ctx context.Context, language string) (*GoogleTTS, error) {
	c, err := texttospeech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	if language == "" {
		language = "en-US"
	}
	return &GoogleTTS{c: c, language: language}, nil
}

func (g *GoogleTTS) Close() error { return g.c.Close() }

func (g *GoogleTTS) Synthesize(ctx context.Context, text string, opts Options) (Audio, error) {
	rate := opts.Rate
	if rate == 0 {
		rate = 1.0
	}

	voice := &ttspb.VoiceSelectionParams{LanguageCode: g.language}
	if opts.Voice != "" {
		voice.Name = opts.Voice
	}

	resp, err := g.c.SynthesizeSpeech(ctx, &ttspb.SynthesizeSpeechRequest{
		Input: &ttspb.SynthesisInput{
			InputSource: &ttspb.SynthesisInput_Text{Text: text},
		},
		Voice: voice,
		AudioConfig: &ttspb.AudioConfig{
			AudioEncoding:   ttspb.AudioEncoding_LINEAR16,
			SampleRateHertz: linear16SampleRateHz,
			SpeakingRate:    rate,
			Pitch:           opts.Pitch,
			VolumeGainDb:    opts.Volume,
		},
	})
	if err != nil {
		return Audio{}, err
	}

	// LINEAR16 payload carries a 44-byte WAV header followed by int16 samples.
	samples := len(resp.AudioContent) / 2
	dur := time.Duration(samples) * time.Second / linear16SampleRateHz

	return Audio{
		Data:     resp.AudioContent,
		MIME:     "audio/wav",
		Duration: dur,
	}, nil
}

// Package speech transcribes answer recordings and voices interview questions.
package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/rs/zerolog/log"

	"github.com/ddokterview/ddokterview/internal/metrics"
)

// MaxSpeechRunes caps how much question text is synthesized.
const MaxSpeechRunes = 500

// ErrEmptyTranscript is returned when a recording yields no text.
var ErrEmptyTranscript = errors.New("transcription is empty")

// Transcriber turns an answer recording into text.
type Transcriber interface {
	Transcribe(ctx context.Context, filename, contentType string, data []byte) (string, error)
}

// Synthesizer voices a question. It returns "" when no audio could be produced.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, isTailQuestion bool) string
}

// Config configures the OpenAI-backed speech client.
type Config struct {
	APIKey             string
	BaseURL            string
	TranscriptionModel string
	Language           string
	SpeechModel        string
	Voice              string
	Timeout            time.Duration
	HTTPClient         *http.Client
}

// OpenAI implements Transcriber and Synthesizer with the OpenAI audio API.
type OpenAI struct {
	client  openai.Client
	cfg     Config
	dict    atomic.Pointer[Dictionary]
	metrics *metrics.Metrics
}

// NewOpenAI creates a speech client.
func NewOpenAI(cfg Config, dict *Dictionary, m *metrics.Metrics) (*OpenAI, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("speech config incomplete: api key is required")
	}
	if cfg.TranscriptionModel == "" {
		cfg.TranscriptionModel = openai.AudioModelWhisper1
	}
	if cfg.SpeechModel == "" {
		cfg.SpeechModel = openai.SpeechModelGPT4oMiniTTS
	}
	if cfg.Voice == "" {
		cfg.Voice = string(openai.AudioSpeechNewParamsVoiceAlloy)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		option.WithRequestTimeout(cfg.Timeout),
		option.WithMaxRetries(1),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")+"/"))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	if dict == nil {
		dict = NewDictionary(DefaultGroups)
	}
	o := &OpenAI{client: openai.NewClient(opts...), cfg: cfg, metrics: m}
	o.dict.Store(dict)
	return o, nil
}

// SetDictionary swaps the pronunciation dictionary used for new syntheses.
func (o *OpenAI) SetDictionary(dict *Dictionary) {
	if dict == nil {
		dict = NewDictionary(DefaultGroups)
	}
	o.dict.Store(dict)
}

func (o *OpenAI) Transcribe(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(data), filename, contentType),
		Model: o.cfg.TranscriptionModel,
	}
	if o.cfg.Language != "" {
		params.Language = openai.String(o.cfg.Language)
	}

	start := time.Now()
	resp, err := o.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		o.metrics.IncSpeechFailure("transcribe")
		return "", fmt.Errorf("transcribe %s: %w", filename, err)
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		o.metrics.IncSpeechFailure("transcribe")
		return "", fmt.Errorf("%s: %w", filename, ErrEmptyTranscript)
	}

	log.Info().
		Str("file", filename).
		Int("bytes", len(data)).
		Int("chars", len([]rune(text))).
		Dur("took", time.Since(start)).
		Msg("Answer transcribed")
	return text, nil
}

func (o *OpenAI) Synthesize(ctx context.Context, text string, isTailQuestion bool) string {
	input := PrepareSpeechText(o.dict.Load(), text)
	if input == "" {
		return ""
	}
	params := openai.AudioSpeechNewParams{
		Input:          input,
		Model:          o.cfg.SpeechModel,
		Voice:          openai.AudioSpeechNewParamsVoice(o.cfg.Voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	}
	if o.cfg.SpeechModel == openai.SpeechModelGPT4oMiniTTS {
		params.Instructions = openai.String(voiceInstructions(isTailQuestion))
	}

	resp, err := o.client.Audio.Speech.New(ctx, params)
	if err != nil {
		o.metrics.IncSpeechFailure("synthesize")
		log.Warn().Err(err).Msg("Speech synthesis failed, continuing without audio")
		return ""
	}
	defer resp.Body.Close()
	audio, err := io.ReadAll(resp.Body)
	if err != nil || len(audio) == 0 {
		o.metrics.IncSpeechFailure("synthesize")
		log.Warn().Err(err).Msg("Speech synthesis returned no audio")
		return ""
	}
	return base64.StdEncoding.EncodeToString(audio)
}

// PrepareSpeechText caps text at MaxSpeechRunes, appending an ellipsis when cut,
// and rewrites known terms into their spoken form.
func PrepareSpeechText(dict *Dictionary, text string) string {
	text = strings.TrimSpace(text)
	if r := []rune(text); len(r) > MaxSpeechRunes {
		log.Warn().Int("chars", len(r)).Int("limit", MaxSpeechRunes).Msg("Question too long for speech, truncating")
		text = string(r[:MaxSpeechRunes]) + "..."
	}
	return dict.Apply(text)
}

func voiceInstructions(isTailQuestion bool) string {
	base := "You are a composed, professional job interviewer speaking Korean. Speak clearly at a measured pace with a calm, slightly low tone, pausing briefly after greetings and before the key part of the question."
	if isTailQuestion {
		return base + " This is a follow-up question: sound genuinely curious about the candidate's previous answer."
	}
	return base
}

// Disabled is a Synthesizer that never produces audio.
type Disabled struct{}

func (Disabled) Synthesize(context.Context, string, bool) string { return "" }

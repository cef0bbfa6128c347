package speech

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/openai/openai-go"

	"github.com/voxlinehq/voxline/pkg/capture"
)

// OpenAISTT implements Transcriber on top of the OpenAI audio
// transcription API (Whisper).
type OpenAISTT struct {
	client *openai.Client
	model  string
}

// NewOpenAISTT creates an OpenAI transcriber. An empty model defaults to
// whisper-1.
func NewOpenAISTT(client *openai.Client, model string) *OpenAISTT {
	if model == "" {
		model = "whisper-1"
	}
	return &OpenAISTT{client: client, model: model}
}

// Transcribe sends the audio unit to the transcription endpoint.
// An empty transcript is normalized to ErrUnrecognized.
func (t *OpenAISTT) Transcribe(ctx context.Context, u *capture.AudioUnit, language string) (string, error) {
	if u == nil || len(u.Data) == 0 {
		return "", ErrUnrecognized
	}

	params := openai.AudioTranscriptionNewParams{
		Model: openai.AudioModel(t.model),
		File:  openai.File(bytes.NewReader(u.Data), "audio."+audioExt(u.Format), "audio/"+audioExt(u.Format)),
	}
	if language != "" {
		params.Language = openai.String(normalizeLanguage(language))
	}

	resp, err := t.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", &ServiceError{Service: "openai-stt", Err: err}
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", ErrUnrecognized
	}
	return text, nil
}

// OpenAITTS implements Synthesizer on top of the OpenAI speech API.
type OpenAITTS struct {
	client *openai.Client
	model  string
	voice  string
}

// NewOpenAITTS creates an OpenAI synthesizer. Empty model and voice
// default to tts-1 and alloy.
func NewOpenAITTS(client *openai.Client, model, voice string) *OpenAITTS {
	if model == "" {
		model = "tts-1"
	}
	if voice == "" {
		voice = "alloy"
	}
	return &OpenAITTS{client: client, model: model, voice: voice}
}

// Synthesize converts text to MP3 audio bytes.
func (s *OpenAITTS) Synthesize(ctx context.Context, text, language string) ([]byte, error) {
	_ = language // the OpenAI speech endpoint infers language from the input text

	resp, err := s.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          openai.SpeechModel(s.model),
		Input:          text,
		Voice:          openai.AudioSpeechNewParamsVoice(s.voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return nil, &ServiceError{Service: "openai-tts", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ServiceError{Service: "openai-tts", Err: err}
	}
	return data, nil
}

// audioExt maps an AudioUnit format to a file extension acceptable to the
// transcription endpoint.
func audioExt(format string) string {
	switch strings.ToLower(format) {
	case "", "wav":
		return "wav"
	case "mpeg", "mp3":
		return "mp3"
	default:
		return strings.ToLower(format)
	}
}

// normalizeLanguage reduces locale-style hints ("el-GR") to the ISO-639-1
// code the API expects ("el").
func normalizeLanguage(lang string) string {
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		return strings.ToLower(lang[:i])
	}
	return strings.ToLower(lang)
}

package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"rentora/internal/schema"
)

// OpenAIExtractor transcribes the recording first, then runs a structured
// chat completion over the transcript. Two round trips instead of Gemini's
// one, but usable wherever only an OpenAI-compatible endpoint is available.
type OpenAIExtractor struct {
	chatModel  string
	audioModel openai.AudioModel
	opts       []option.RequestOption
	reg        *schema.Registry
}

func NewOpenAIExtractor(apiKey, baseURL, chatModel string, reg *schema.Registry) (*OpenAIExtractor, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key missing")
	}
	if chatModel == "" {
		chatModel = string(openai.ChatModelGPT4oMini)
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIExtractor{
		chatModel:  chatModel,
		audioModel: openai.AudioModelWhisper1,
		opts:       opts,
		reg:        reg,
	}, nil
}

func (o *OpenAIExtractor) Name() string { return "OpenAI:" + o.chatModel }

func (o *OpenAIExtractor) Extract(ctx context.Context, audio Audio, locale, listingTypeHint string) (*Result, error) {
	client := openai.NewClient(o.opts...)

	tr, err := client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		Model: o.audioModel,
		File:  openai.File(bytes.NewReader(audio.Data), "recording"+extFor(audio.MIMEType), audio.MIMEType),
	})
	if err != nil {
		return nil, err
	}

	prompt := buildPrompt(o.reg, locale, listingTypeHint)
	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.chatModel),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompt),
			openai.UserMessage("Owner recording transcript:\n" + tr.Text),
		},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, ErrInvalidJSON
	}
	res, err := Parse(json.RawMessage(stripFence(resp.Choices[0].Message.Content)))
	if err != nil {
		return nil, err
	}
	// The transcription endpoint is authoritative for the transcript.
	res.Transcript = tr.Text
	return res, nil
}

func extFor(mime string) string {
	switch mime {
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/ogg":
		return ".ogg"
	default:
		return ".webm"
	}
}

// stripFence tolerates models that wrap JSON in a markdown code fence.
func stripFence(s string) string {
	b := []byte(s)
	b = bytes.TrimSpace(b)
	if bytes.HasPrefix(b, []byte("```")) {
		if i := bytes.IndexByte(b, '\n'); i >= 0 {
			b = b[i+1:]
		}
		b = bytes.TrimSuffix(bytes.TrimSpace(b), []byte("```"))
	}
	return string(bytes.TrimSpace(b))
}

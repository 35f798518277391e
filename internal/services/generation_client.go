package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/replicate/replicate-go"
	"google.golang.org/genai"

	"github.com/petitmonde/univers-backend/internal/pkg/apperr"
	"github.com/petitmonde/univers-backend/internal/pkg/envutil"
	"github.com/petitmonde/univers-backend/internal/pkg/logger"
)

// Model identifiers for each media kind.
const (
	conceptModel = "gemini-2.0-flash"
	imageModel   = "recraft-ai/recraft-v3"
	videoModel   = "wan-video/wan-2.2-i2v-fast"
	musicModel   = "minimax/music-1.5"
)

// GenerationClient is the outbound edge to the AI providers. Text
// (concepts, translation) goes through Gemini, media through Replicate.
// Media methods return the raw bytes; callers decide where they live.
type GenerationClient interface {
	Available() bool
	GenerateConcepts(ctx context.Context, theme string, count int, language string) ([]string, error)
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
	GenerateVideo(ctx context.Context, image []byte, prompt string) ([]byte, error)
	GenerateMusic(ctx context.Context, prompt, lyrics string, duration int) ([]byte, error)
}

type generationClient struct {
	log       *logger.Logger
	replicate *replicate.Client
	gemini    *genai.Client
	http      *http.Client
}

// NewGenerationClient wires up the provider clients from the
// environment. Missing credentials are not fatal: the server runs with
// generation disabled and endpoints report it.
func NewGenerationClient(baseLog *logger.Logger) GenerationClient {
	c := &generationClient{
		log:  baseLog.With("service", "GenerationClient"),
		http: &http.Client{Timeout: 5 * time.Minute},
	}

	if token := envutil.String("REPLICATE_API_TOKEN", ""); token != "" {
		r8, err := replicate.NewClient(replicate.WithToken(token))
		if err != nil {
			c.log.Error("Failed to initialize Replicate client", "error", err)
		} else {
			c.replicate = r8
			c.log.Info("Replicate API configured")
		}
	} else {
		c.log.Warn("REPLICATE_API_TOKEN not configured, AI media generation disabled")
	}

	if key := envutil.String("GEMINI_API_KEY", ""); key != "" {
		g, err := genai.NewClient(context.Background(), &genai.ClientConfig{APIKey: key})
		if err != nil {
			c.log.Error("Failed to initialize Gemini client", "error", err)
		} else {
			c.gemini = g
			c.log.Info("Gemini API configured")
		}
	} else {
		c.log.Warn("GEMINI_API_KEY not configured, concept generation and translation disabled")
	}

	return c
}

func (c *generationClient) Available() bool {
	return c.replicate != nil
}

var jsonArrayRe = regexp.MustCompile(`(?s)\[.*?\]`)

// GenerateConcepts asks the LLM for child-friendly concept names. The
// model is instructed to answer with a bare JSON array; the first
// bracketed span is extracted as a fallback for chatty responses.
func (c *generationClient) GenerateConcepts(ctx context.Context, theme string, count int, language string) ([]string, error) {
	if c.gemini == nil {
		return nil, apperr.ErrGenerationUnavailable
	}

	prompt := fmt.Sprintf(`Generate exactly %d simple, child-friendly concepts for the theme: "%s".

Rules:
- One word or short phrase per concept, in language "%s"
- Appropriate for children aged 3-6
- Common, recognizable items/animals/objects
- Output ONLY a JSON array of strings, nothing else

Example output for "farm animals":
["cow", "pig", "chicken", "horse", "sheep", "duck", "goat", "rooster", "dog", "cat"]

Theme: %s
Output:`, count, theme, language, theme)

	result, err := c.gemini.Models.GenerateContent(ctx, conceptModel, genai.Text(prompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(
			"You are a helpful assistant that generates child-friendly concepts. Output ONLY a valid JSON array of strings, nothing else.",
			genai.RoleUser,
		),
		Temperature: genai.Ptr[float32](0.7),
	})
	if err != nil {
		return nil, fmt.Errorf("concept generation failed: %w", err)
	}

	text := result.Text()
	raw := jsonArrayRe.FindString(text)
	if raw == "" {
		return nil, fmt.Errorf("no JSON array in model response: %q", firstLine(text))
	}
	var concepts []string
	if err := json.Unmarshal([]byte(raw), &concepts); err != nil {
		return nil, fmt.Errorf("parse concepts: %w", err)
	}
	if len(concepts) > count {
		concepts = concepts[:count]
	}
	return concepts, nil
}

// Translate returns text rendered in targetLang. Same-language calls
// short-circuit.
func (c *generationClient) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if sourceLang == targetLang {
		return text, nil
	}
	if c.gemini == nil {
		return "", apperr.ErrGenerationUnavailable
	}

	prompt := fmt.Sprintf(`Translate the following from language "%s" to language "%s". It is a word or short phrase for a children's vocabulary app. Reply with ONLY the translation, nothing else.

%s`, sourceLang, targetLang, text)

	result, err := c.gemini.Models.GenerateContent(ctx, conceptModel, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("translation failed: %w", err)
	}
	out := strings.TrimSpace(result.Text())
	if out == "" {
		return "", fmt.Errorf("empty translation for %q", text)
	}
	return out, nil
}

func (c *generationClient) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	if c.replicate == nil {
		return nil, apperr.ErrGenerationUnavailable
	}
	c.log.Info("Generating image", "prompt", truncate(prompt, 50))
	output, err := c.runModel(ctx, imageModel, replicate.PredictionInput{
		"prompt": prompt,
		"size":   "1024x1024",
		"style":  "digital_illustration",
	})
	if err != nil {
		return nil, err
	}
	return c.download(ctx, output)
}

// GenerateVideo animates a still image. The source image goes up inline
// as a base64 data URI.
func (c *generationClient) GenerateVideo(ctx context.Context, image []byte, prompt string) ([]byte, error) {
	if c.replicate == nil {
		return nil, apperr.ErrGenerationUnavailable
	}
	c.log.Info("Generating video", "prompt", truncate(prompt, 50))
	output, err := c.runModel(ctx, videoModel, replicate.PredictionInput{
		"image":               "data:image/png;base64," + base64.StdEncoding.EncodeToString(image),
		"prompt":              prompt,
		"num_frames":          24,
		"num_inference_steps": 50,
	})
	if err != nil {
		return nil, err
	}
	return c.download(ctx, output)
}

func (c *generationClient) GenerateMusic(ctx context.Context, prompt, lyrics string, duration int) ([]byte, error) {
	if c.replicate == nil {
		return nil, apperr.ErrGenerationUnavailable
	}
	c.log.Info("Generating music", "prompt", truncate(prompt, 50))
	output, err := c.runModel(ctx, musicModel, replicate.PredictionInput{
		"lyrics":         lyrics,
		"song_prompt":    prompt,
		"style_strength": 0.8,
		"duration":       duration,
	})
	if err != nil {
		return nil, err
	}
	return c.download(ctx, output)
}

// runModel creates a prediction against the model's latest version and
// blocks until it reaches a terminal state.
func (c *generationClient) runModel(ctx context.Context, model string, input replicate.PredictionInput) (any, error) {
	owner, name, ok := strings.Cut(model, "/")
	if !ok {
		return nil, fmt.Errorf("malformed model identifier %q", model)
	}
	prediction, err := c.replicate.CreatePredictionWithModel(ctx, owner, name, input, nil, false)
	if err != nil {
		return nil, fmt.Errorf("create prediction for %s: %w", model, err)
	}
	if err := c.replicate.Wait(ctx, prediction); err != nil {
		return nil, fmt.Errorf("wait for %s: %w", model, err)
	}
	if prediction.Status != replicate.Succeeded {
		return nil, fmt.Errorf("%s prediction %s: %s", model, prediction.Status, prediction.Error)
	}
	return prediction.Output, nil
}

// download fetches the media bytes behind a prediction output, which is
// either a URL string or a list of URL strings.
func (c *generationClient) download(ctx context.Context, output any) ([]byte, error) {
	var url string
	switch v := output.(type) {
	case string:
		url = v
	case []any:
		if len(v) == 0 {
			return nil, fmt.Errorf("prediction returned an empty output list")
		}
		s, ok := v[0].(string)
		if !ok {
			return nil, fmt.Errorf("unexpected prediction output element %T", v[0])
		}
		url = s
	default:
		return nil, fmt.Errorf("unexpected prediction output %T", output)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download generated media: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download generated media: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

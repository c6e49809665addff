package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// TextGenerator is the language model: one prompt in, one unstructured
// answer out. Nothing about the answer's shape is guaranteed.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// NewTextGenerator prefers OpenAI, then HuggingFace. It returns nil when no
// key is configured; suggestion searches then synthesize their options.
func NewTextGenerator(openAIKey, openAIModel, hfKey, hfModel string, timeout time.Duration) TextGenerator {
	switch {
	case openAIKey != "":
		log.Println("✅ AI (OpenAI) initialized with model:", openAIModel)
		return NewOpenAIGenerator(openAIKey, openAIModel)
	case hfKey != "":
		log.Println("✅ AI (HuggingFace) initialized with model:", hfModel)
		return NewHuggingFaceGenerator(hfKey, hfModel, &http.Client{Timeout: timeout})
	default:
		log.Println("⚠️  OPENAI_API_KEY and HUGGINGFACE_API_KEY not set — suggestions will use estimated options")
		return nil
	}
}

// ─── OpenAI ───────────────────────────────────────────────────────────────────

type OpenAIGenerator struct {
	client openai.Client
	model  string
}

func NewOpenAIGenerator(apiKey, model string, opts ...option.RequestOption) *OpenAIGenerator {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAIGenerator{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage("You are a helpful travel assistant."),
			openai.UserMessage(prompt),
		},
		Model:       openai.ChatModel(g.model),
		Temperature: openai.Float(0.6),
	})
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("empty response from AI")
	}
	return resp.Choices[0].Message.Content, nil
}

// ─── HuggingFace ──────────────────────────────────────────────────────────────

const hfInferenceURL = "https://api-inference.huggingface.co/models/"

type HuggingFaceGenerator struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

func NewHuggingFaceGenerator(apiKey, model string, httpClient *http.Client) *HuggingFaceGenerator {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &HuggingFaceGenerator{
		apiKey:     apiKey,
		model:      model,
		baseURL:    hfInferenceURL,
		httpClient: httpClient,
	}
}

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
}

type hfParameters struct {
	MaxNewTokens   int     `json:"max_new_tokens"`
	Temperature    float64 `json:"temperature"`
	ReturnFullText bool    `json:"return_full_text"`
}

type hfResponse []struct {
	GeneratedText string `json:"generated_text"`
}

func (g *HuggingFaceGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody := hfRequest{
		Inputs: "[INST] " + prompt + " [/INST]",
		Parameters: hfParameters{
			MaxNewTokens:   600,
			Temperature:    0.6,
			ReturnFullText: false,
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+g.model, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode == http.StatusServiceUnavailable {
		return "", fmt.Errorf("AI model is loading, please retry in a few seconds")
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HuggingFace API error (%d): %s", resp.StatusCode, string(body))
	}

	var hfResp hfResponse
	if err := json.Unmarshal(body, &hfResp); err != nil {
		return "", fmt.Errorf("failed to parse AI response: %v", err)
	}
	if len(hfResp) == 0 || hfResp[0].GeneratedText == "" {
		return "", fmt.Errorf("empty response from AI")
	}
	return hfResp[0].GeneratedText, nil
}

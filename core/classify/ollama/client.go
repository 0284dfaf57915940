// Package ollama talks to a local Ollama server to classify terminal
// deltas. The default flow prompts for a bracket-tagged reply; the
// structured flow constrains the reply with a JSON schema instead.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/invopop/jsonschema"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"

	"github.com/lkovac/narrator/core/classify"
)

const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "qwen2.5:14b"

	// Inputs beyond this many runes only slow inference down without
	// changing the decision.
	maxInputChars = 3000

	defaultTimeout = 30 * time.Second
)

var _ classify.Classifier = (*Client)(nil)

type Client struct {
	baseURL    string
	model      string
	timeout    time.Duration
	structured bool

	httpClient *http.Client
}

type ClientOption func(*Client)

// WithStructuredOutput constrains replies with a JSON schema instead
// of the bracket-tag protocol. Needs a model that supports structured
// generation.
func WithStructuredOutput() ClientOption {
	return func(c *Client) { c.structured = true }
}

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) { c.timeout = timeout }
}

func NewClient(baseURL, model string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}

	client := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		timeout: defaultTimeout,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
				return operationName + " " + request.URL.Path
			}),
		)},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

func (c *Client) Model() string {
	return c.model
}

// Classify sends the delta to the model and parses its decision. On
// service failure it returns a skip alongside the error so narration
// of later deltas is never blocked by one bad call.
func (c *Client) Classify(ctx context.Context, text string) (classify.Result, error) {
	ctx, span := tracer.Start(ctx, "classify delta")
	defer span.End()
	span.SetAttributes(
		attribute.String("request.model", c.model),
		attribute.Int("request.input_chars", utf8.RuneCountInString(text)),
		attribute.Bool("request.structured", c.structured),
	)

	if utf8.RuneCountInString(text) > maxInputChars {
		text = string([]rune(text)[:maxInputChars]) + "\n... (truncated)"
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if c.structured {
		result, err := c.classifyStructured(ctx, text)
		if err != nil {
			span.RecordError(err)
			return classify.Skip(), err
		}
		span.SetAttributes(attribute.String("response.kind", string(result.Kind)))
		return result, nil
	}

	reply, err := c.generate(ctx, classify.SystemPrompt+"\n\nTerminal output:\n"+text, nil)
	if err != nil {
		span.RecordError(err)
		return classify.Skip(), err
	}

	result := classify.ParseReply(reply)
	span.SetAttributes(attribute.String("response.kind", string(result.Kind)))
	return result, nil
}

// structuredDecision is reflected into the JSON schema handed to the
// model in structured mode.
type structuredDecision struct {
	Decision  string `json:"decision" jsonschema:"title=Decision,description=Whether and how to narrate,enum=question,enum=summary,enum=skip"`
	Narration string `json:"narration,omitempty" jsonschema:"title=Narration,description=The text to read aloud"`
}

func (c *Client) classifyStructured(ctx context.Context, text string) (classify.Result, error) {
	reflector := jsonschema.Reflector{DoNotReference: true}
	schema := reflector.Reflect(&structuredDecision{})

	reply, err := c.generate(ctx, classify.StructuredSystemPrompt+"\n\nTerminal output:\n"+text, schema)
	if err != nil {
		return classify.Skip(), err
	}

	var decision structuredDecision
	if err := json.Unmarshal([]byte(reply), &decision); err != nil {
		logger.DebugContext(ctx, "Discarding malformed structured reply",
			"error", err, "reply", reply)
		return classify.Skip(), nil
	}

	switch decision.Decision {
	case "question":
		return classify.NewResult(classify.KindQuestion, decision.Narration), nil
	case "summary":
		return classify.NewResult(classify.KindSummary, decision.Narration), nil
	default:
		return classify.Skip(), nil
	}
}

type generateRequest struct {
	Model   string             `json:"model"`
	Prompt  string             `json:"prompt"`
	Stream  bool               `json:"stream"`
	Format  *jsonschema.Schema `json:"format,omitempty"`
	Options generateOptions    `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type generateResponse struct {
	Response string `json:"response"`
}

func (c *Client) generate(ctx context.Context, prompt string, format *jsonschema.Schema) (string, error) {
	reqBody := generateRequest{
		Model:   c.model,
		Prompt:  prompt,
		Stream:  false,
		Format:  format,
		Options: generateOptions{Temperature: 0.3, NumPredict: 256},
	}

	requestBodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("error marshalling JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/generate", bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		return "", fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("non-OK HTTP status: %s: %s", resp.Status, strings.TrimSpace(string(errorBody)))
	}

	respBodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading response body: %w", err)
	}
	var responseBody generateResponse
	if err := json.Unmarshal(respBodyBytes, &responseBody); err != nil {
		return "", fmt.Errorf("error unmarshalling response: %w", err)
	}

	return strings.TrimSpace(responseBody.Response), nil
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// InstalledModels asks the server for its model list. Reaching the
// endpoint at all doubles as the startup health probe.
func (c *Client) InstalledModels(ctx context.Context) ([]string, error) {
	ctx, span := tracer.Start(ctx, "list models")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("cannot reach %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("non-OK HTTP status: %s", resp.Status)
		span.RecordError(err)
		return nil, err
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error unmarshalling response: %w", err)
	}

	models := make([]string, 0, len(tags.Models))
	for _, model := range tags.Models {
		models = append(models, model.Name)
	}
	return models, nil
}

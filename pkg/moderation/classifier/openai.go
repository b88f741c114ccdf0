package classifier

import (
	"context"
	"time"

	"github.com/PancyStudios/PancyFeedbackGo/pkg/errors"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/models"
	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

const (
	// DefaultOpenAIURL is the moderation endpoint
	DefaultOpenAIURL = "https://api.openai.com/v1/moderations"
	openAIModel      = "omni-moderation-latest"
)

// OpenAI is Provider B. Every category in category_scores is tracked.
type OpenAI struct {
	apiKey    string
	endpoint  string
	timeout   time.Duration
	transport Transport
}

// NewOpenAI creates the Provider B adapter. An empty apiKey leaves it unavailable.
func NewOpenAI(apiKey, endpoint string, timeout time.Duration, transport Transport) *OpenAI {
	if endpoint == "" {
		endpoint = DefaultOpenAIURL
	}
	if transport == nil {
		transport = NewHTTPTransport()
	}
	return &OpenAI{apiKey: apiKey, endpoint: endpoint, timeout: timeout, transport: transport}
}

func (o *OpenAI) Name() models.Provider { return models.ProviderB }

func (o *OpenAI) Available() bool { return o.apiKey != "" }

// Classify implements Adapter
func (o *OpenAI) Classify(ctx context.Context, text string) (*models.ModerationVerdict, error) {
	if !o.Available() {
		return nil, errors.ErrAdapterUnavailable
	}

	body, err := json.Marshal(map[string]string{
		"model": openAIModel,
		"input": text,
	})
	if err != nil {
		return nil, decodeError(o.Name(), "encoding request: %v", err)
	}

	headers := map[string]string{"Authorization": "Bearer " + o.apiKey}
	data, err := post(ctx, o.Name(), o.transport, o.timeout, o.endpoint, headers, body)
	if err != nil {
		return nil, err
	}

	if !gjson.ValidBytes(data) {
		return nil, decodeError(o.Name(), "invalid JSON response")
	}

	result := gjson.GetBytes(data, "results.0")
	if !result.Exists() {
		return nil, decodeError(o.Name(), "response has no results")
	}

	scores := make(map[string]float64)
	result.Get("category_scores").ForEach(func(key, value gjson.Result) bool {
		scores[key.String()] = value.Float()
		return true
	})

	return verdict(o.Name(), scores, result.Get("flagged").Bool()), nil
}

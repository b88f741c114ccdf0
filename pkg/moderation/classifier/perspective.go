package classifier

import (
	"context"
	"net/url"
	"time"

	"github.com/PancyStudios/PancyFeedbackGo/pkg/errors"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/models"
	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

// DefaultPerspectiveURL is the public comments:analyze endpoint
const DefaultPerspectiveURL = "https://commentanalyzer.googleapis.com/v1alpha1/comments:analyze"

// PerspectiveAttributes are the attribute scores Provider A tracks
var PerspectiveAttributes = []string{"TOXICITY", "SEVERE_TOXICITY", "THREAT", "INSULT", "IDENTITY_ATTACK"}

// Perspective is Provider A
type Perspective struct {
	apiKey    string
	endpoint  string
	timeout   time.Duration
	transport Transport
}

// NewPerspective creates the Provider A adapter. An empty apiKey leaves it unavailable.
func NewPerspective(apiKey, endpoint string, timeout time.Duration, transport Transport) *Perspective {
	if endpoint == "" {
		endpoint = DefaultPerspectiveURL
	}
	if transport == nil {
		transport = NewHTTPTransport()
	}
	return &Perspective{apiKey: apiKey, endpoint: endpoint, timeout: timeout, transport: transport}
}

func (p *Perspective) Name() models.Provider { return models.ProviderA }

func (p *Perspective) Available() bool { return p.apiKey != "" }

type perspectiveRequest struct {
	Comment struct {
		Text string `json:"text"`
	} `json:"comment"`
	Languages           []string            `json:"languages"`
	RequestedAttributes map[string]struct{} `json:"requestedAttributes"`
	DoNotStore          bool                `json:"doNotStore"`
}

// Classify implements Adapter
func (p *Perspective) Classify(ctx context.Context, text string) (*models.ModerationVerdict, error) {
	if !p.Available() {
		return nil, errors.ErrAdapterUnavailable
	}

	req := perspectiveRequest{
		Languages:           []string{"es", "en"},
		RequestedAttributes: make(map[string]struct{}, len(PerspectiveAttributes)),
		DoNotStore:          true,
	}
	req.Comment.Text = text
	for _, attr := range PerspectiveAttributes {
		req.RequestedAttributes[attr] = struct{}{}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, decodeError(p.Name(), "encoding request: %v", err)
	}

	endpoint := p.endpoint + "?key=" + url.QueryEscape(p.apiKey)
	data, err := post(ctx, p.Name(), p.transport, p.timeout, endpoint, nil, body)
	if err != nil {
		return nil, err
	}

	if !gjson.ValidBytes(data) {
		return nil, decodeError(p.Name(), "invalid JSON response")
	}

	scores := make(map[string]float64, len(PerspectiveAttributes))
	for _, attr := range PerspectiveAttributes {
		value := gjson.GetBytes(data, "attributeScores."+attr+".summaryScore.value")
		if value.Exists() {
			scores[attr] = value.Float()
		}
	}
	if len(scores) == 0 {
		return nil, decodeError(p.Name(), "response has no attribute scores")
	}

	return verdict(p.Name(), scores, false), nil
}

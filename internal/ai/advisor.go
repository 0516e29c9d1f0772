package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"recon-engine/internal/core"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
	"github.com/openai/openai-go/shared/constant"
)

// AdvisorService reviews detected conflict candidates and recommends a
// resolution policy per candidate. The output is purely advisory; the
// resolver only ever acts on an explicitly chosen policy.
type AdvisorService interface {
	ReviewConflicts(ctx context.Context, candidates []core.ConflictCandidate) (*ResolutionAdvice, error)
}

// CandidateAdvice is the model's recommendation for one conflict.
type CandidateAdvice struct {
	ManualReference string  `json:"manual_reference" jsonschema_description:"The reference id of the manual ledger entry under review"`
	Policy          string  `json:"policy" jsonschema_description:"One of keep_manual, keep_system, merge"`
	Confidence      float64 `json:"confidence" jsonschema_description:"Confidence score between 0.0 and 1.0"`
	Reasoning       string  `json:"reasoning" jsonschema_description:"Short explanation for the recommendation"`
}

// ResolutionAdvice wraps the per-candidate recommendations.
type ResolutionAdvice struct {
	Recommendations []CandidateAdvice `json:"recommendations" jsonschema_description:"One recommendation per conflict candidate, in input order"`
	Summary         string            `json:"summary" jsonschema_description:"One-paragraph overview of the review"`
}

type Advisor struct {
	client *openai.Client
}

func NewAdvisor(apiKey string) *Advisor {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &Advisor{client: &client}
}

func (a *Advisor) ReviewConflicts(ctx context.Context, candidates []core.ConflictCandidate) (*ResolutionAdvice, error) {
	if len(candidates) == 0 {
		return &ResolutionAdvice{Summary: "No conflicts to review."}, nil
	}

	prompt := fmt.Sprintf(`You are a meticulous bookkeeper reviewing a small business's cash ledger.
Each conflict below pairs a manually entered expense with one or more subsystem entries
that probably record the same real-world payment.
For every conflict recommend exactly one policy:
- keep_system: the subsystem record is authoritative, remove the manual duplicate.
- keep_manual: the manual entry is authoritative, stop auto-syncing the subsystem event.
- merge: keep both visible; uncertain cases must use merge, it never discards data.
Descriptions may be in Arabic; judge them on meaning, not script.

Conflicts:
%s`, describeCandidates(candidates))

	schemaStruct := generateSchema()
	schemaJSON, err := json.Marshal(schemaStruct)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	var schemaMap map[string]any
	if err := json.Unmarshal(schemaJSON, &schemaMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema to map: %w", err)
	}

	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(shared.ChatModelGPT4o),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: param.NewOpt(prompt),
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Type:        constant.JSONSchema("json_schema"),
					Name:        "conflict_resolution_advice",
					Strict:      param.NewOpt(true),
					Schema:      schemaMap,
					Description: param.NewOpt("Per-conflict resolution policy recommendations"),
				},
			},
		},
	}

	resp, err := a.client.Responses.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai responses error: %w", err)
	}

	content := resp.OutputText()
	if content == "" {
		return nil, fmt.Errorf("empty response content")
	}

	var advice ResolutionAdvice
	if err := json.Unmarshal([]byte(content), &advice); err != nil {
		return nil, fmt.Errorf("failed to parse completion: %w", err)
	}

	for i := range advice.Recommendations {
		rec := &advice.Recommendations[i]
		if _, ok := core.ParsePolicy(rec.Policy); !ok {
			rec.Policy = string(core.Merge)
		}
	}
	return &advice, nil
}

func describeCandidates(candidates []core.ConflictCandidate) string {
	var b strings.Builder
	for i, c := range candidates {
		fmt.Fprintf(&b, "%d. manual ref %s: %q, amount %s, date %s\n",
			i+1, c.Manual.ReferenceID, c.Manual.Description,
			c.Manual.Amount.StringFixed(2), c.Manual.Date.Format("2006-01-02"))
		for _, m := range c.Matches {
			fmt.Fprintf(&b, "   matches %s/%s: %q, amount %s, date %s\n",
				m.ReferenceType, m.ReferenceID, m.Description,
				m.Amount.StringFixed(2), m.Date.Format("2006-01-02"))
		}
	}
	return b.String()
}

func generateSchema() interface{} {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v ResolutionAdvice
	return reflector.Reflect(v)
}

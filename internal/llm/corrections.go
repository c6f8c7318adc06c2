package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/JonMunkholm/addrclean/internal/cleaning"
)

const systemPrompt = "You are a data cleaning expert. Respond only with valid JSON."

// correctionSchema constrains the response to a corrections array.
var correctionSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "corrections": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "rowIndex": {"type": "integer"},
          "name": {"type": "string"},
          "phone": {"type": "string"},
          "email": {"type": "string"},
          "addressLine1": {"type": "string"},
          "addressLine2": {"type": "string"},
          "city": {"type": "string"},
          "state": {"type": "string"},
          "postalCode": {"type": "string"},
          "country": {"type": "string"},
          "confidence": {"type": "string", "enum": ["high", "medium", "low"]},
          "notes": {"type": "string"}
        },
        "required": ["rowIndex", "confidence", "notes"],
        "additionalProperties": false
      }
    }
  },
  "required": ["corrections"],
  "additionalProperties": false
}`)

const promptTemplate = `You are a data cleaning expert specializing in %s addresses.

Analyze and correct the following address records. For each record, provide corrections for any issues found.

Records to analyze:
%s

For each record, provide corrections in the following JSON format. Only include fields that need correction.
IMPORTANT: All field values must be SHORT and CONCISE - no explanations in field values!
- state: Use only the state/province name (e.g., "California", "NSW"). For Singapore, use empty string "" since Singapore has no states.
- city: Use only the city name (e.g., "Singapore", "Sydney")
- All other fields: Use only the corrected value, no explanations

{
  "corrections": [
    {
      "rowIndex": number,
      "name": "corrected name",
      "phone": "corrected phone in format %s",
      "email": "corrected email",
      "addressLine1": "corrected full address including unit number",
      "addressLine2": "additional address line if any, otherwise empty",
      "city": "city name only",
      "state": "state/province name only",
      "postalCode": "corrected postal code (%s)",
      "country": "country name only",
      "confidence": "high" | "medium" | "low",
      "notes": "explanation of corrections (this is the only field for explanations)"
    }
  ]
}`

// Corrector asks a chat completion service for record corrections. It
// implements cleaning.CorrectionSource.
type Corrector struct {
	client *Client
}

// NewCorrector wraps client.
func NewCorrector(client *Client) *Corrector {
	return &Corrector{client: client}
}

// BuildPrompt renders the user message for req.
func BuildPrompt(req cleaning.EnhanceRequest) (string, error) {
	records, err := json.MarshalIndent(req.Records, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode records: %w", err)
	}
	cfg := cleaning.ConfigFor(req.Region)
	name := req.RegionName
	if name == "" {
		name = cfg.Name
	}
	return fmt.Sprintf(promptTemplate, name, records, cfg.PhoneFormat, cfg.PostalCodeFormat), nil
}

type correctionsResponse struct {
	Corrections *[]cleaning.Correction `json:"corrections"`
}

// Corrections implements cleaning.CorrectionSource.
func (c *Corrector) Corrections(ctx context.Context, req cleaning.EnhanceRequest) ([]cleaning.Correction, error) {
	if len(req.Records) == 0 {
		return nil, nil
	}

	prompt, err := BuildPrompt(req)
	if err != nil {
		return nil, err
	}

	content, err := c.client.Complete(ctx, []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: prompt},
	}, &JSONSchema{Name: "address_corrections", Schema: correctionSchema, Strict: true})
	if err != nil {
		return nil, err
	}

	return ParseCorrections(content)
}

// ParseCorrections decodes a corrections response. Confidence is matched
// case-insensitively; any value other than high, medium or low rejects the
// whole response.
func ParseCorrections(content string) ([]cleaning.Correction, error) {
	parsed, err := Parse[correctionsResponse](content)
	if err != nil {
		return nil, err
	}
	if parsed.Corrections == nil {
		return nil, fmt.Errorf("%w: missing corrections", ErrResponseInvalid)
	}

	out := *parsed.Corrections
	for i := range out {
		switch cleaning.Confidence(strings.ToLower(string(out[i].Confidence))) {
		case cleaning.ConfidenceHigh:
			out[i].Confidence = cleaning.ConfidenceHigh
		case cleaning.ConfidenceMedium:
			out[i].Confidence = cleaning.ConfidenceMedium
		case cleaning.ConfidenceLow:
			out[i].Confidence = cleaning.ConfidenceLow
		default:
			return nil, fmt.Errorf("%w: row %d has confidence %q", ErrResponseInvalid, out[i].RowIndex, out[i].Confidence)
		}
	}
	return out, nil
}

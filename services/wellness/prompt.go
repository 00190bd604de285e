package wellness

import (
	"encoding/json"
	"fmt"
)

const systemPrompt = `You are an HR wellbeing analyst. Estimate the burnout risk of one employee from the signals provided.
Answer with a single JSON object and nothing else, using exactly these keys:
{
  "risk_level": "low" | "medium" | "high" | "critical",
  "risk_score": integer 0-100,
  "predicted_days": integer, days until burnout is likely if nothing changes,
  "confidence": number 0-1,
  "factors": [string],
  "reasoning": string,
  "intervention": string,
  "suggested_reward_types": [one or more of "travel", "wellness", "experience", "learning", "family"]
}`

func userPrompt(s Signals) (string, error) {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Employee signals:\n%s", b), nil
}

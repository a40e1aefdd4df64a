package debate

// Payload keys shared by the moderator and participants. The wire format is
// the message payload map; these helpers keep both sides reading the same
// keys.
const (
	keyDebateID  = "debate_id"
	keyTopic     = "topic"
	keyQuestion  = "question"
	keyRound     = "round"
	keyDeadline  = "deadline_unix_ms"
	keyPosition  = "position"
	keyReasoning = "reasoning"
	keyEvidence  = "evidence"
	keyOptions   = "options"
	keyArguments = "arguments"
	keyMethod    = "method"
	keyChoice    = "choice"
	keyScores    = "scores"
	keyWeight    = "weight"
	keyCode      = "code"
	keyReason    = "reason"
)

func payloadString(p map[string]any, key string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}

func payloadInt(p map[string]any, key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func payloadFloat(p map[string]any, key string) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

func payloadStrings(p map[string]any, key string) []string {
	switch v := p[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func payloadScores(p map[string]any, key string) map[string]float64 {
	switch v := p[key].(type) {
	case map[string]float64:
		return v
	case map[string]any:
		out := make(map[string]float64, len(v))
		for k, e := range v {
			switch f := e.(type) {
			case float64:
				out[k] = f
			case int:
				out[k] = float64(f)
			}
		}
		return out
	}
	return nil
}

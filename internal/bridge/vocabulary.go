package bridge

import "strings"

// decisionVocabulary maps chat-box phrases to permission decisions. The UI
// lets the operator answer a permission prompt by typing in the ordinary
// chat box; these are the phrases the pre-dispatch hook recognizes.
var decisionVocabulary = map[string]Decision{
	"allow":        DecisionOnce,
	"yes":          DecisionOnce,
	"approve":      DecisionOnce,
	"ok":           DecisionOnce,
	"y":            DecisionOnce,
	"always":       DecisionAlways,
	"always allow": DecisionAlways,
	"deny":         DecisionReject,
	"no":           DecisionReject,
	"reject":       DecisionReject,
	"n":            DecisionReject,
}

// ClassifyDecision matches chat text against the decision vocabulary,
// case-insensitively. Non-matching text returns false and falls through to
// normal chat handling.
func ClassifyDecision(text string) (Decision, bool) {
	normalized := strings.ToLower(strings.TrimSpace(text))
	d, ok := decisionVocabulary[normalized]
	return d, ok
}

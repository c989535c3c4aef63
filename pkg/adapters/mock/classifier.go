// Package mock provides deterministic in-process stand-ins for the external
// agents: a keyword classifier, a template responder, and a canned-data tool
// executor. They back the chat demo and the test suite; production deployments
// inject real implementations through the ports.
package mock

import (
	"context"
	"regexp"
	"strings"

	"github.com/resolvd/resolvd/pkg/domain"
	"github.com/resolvd/resolvd/pkg/ports"
)

var orderIDPattern = regexp.MustCompile(`\b(\d{5,})\b`)

// Classifier is a keyword-based intent classifier.
type Classifier struct{}

// NewClassifier creates the keyword classifier.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify matches intent keywords and extracts an order number when the
// message carries one.
func (c *Classifier) Classify(ctx context.Context, message string, cc domain.CaseContext) (ports.Classification, error) {
	lower := strings.ToLower(message)

	result := ports.Classification{
		Intent:     domain.IntentUnknown,
		Confidence: 0.3,
		Reasoning:  "no intent keywords matched",
	}

	switch {
	case containsAny(lower, "where is my order", "hasn't arrived", "has not arrived", "shipping", "delivery", "late", "delayed", "tracking"):
		result.Intent = domain.IntentWISMO
		result.Confidence = 0.9
		result.Reasoning = "shipping delay keywords"
	case containsAny(lower, "wrong item", "missing item", "not what i ordered", "incorrect item", "wrong product"):
		result.Intent = domain.IntentWrongMissing
		result.Confidence = 0.9
		result.Reasoning = "wrong/missing item keywords"
	case containsAny(lower, "refund", "money back", "return"):
		result.Intent = domain.IntentRefundStandard
		result.Confidence = 0.85
		result.Reasoning = "refund keywords"
	case containsAny(lower, "change my address", "update my address", "change the address", "modify my order"):
		result.Intent = domain.IntentOrderModification
		result.Confidence = 0.85
		result.Reasoning = "order modification keywords"
	}

	if containsAny(lower, "human", "real person", "speak to someone", "agent please") {
		result.NeedsHuman = true
	}

	if m := orderIDPattern.FindString(message); m != "" {
		result.Entities.OrderID = m
	}

	return result, nil
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

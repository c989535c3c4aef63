package middleware

import (
	"context"
	"regexp"

	"github.com/resolvd/resolvd/pkg/domain"
	"github.com/resolvd/resolvd/pkg/ports"
)

const maskValue = "***"

type piiMiddleware struct {
	next     ports.SessionStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware masks customer identity fields and any case-context extra
// whose key matches one of the patterns before the session reaches the
// backend. Masking is one way: the stored copy is redacted, the in-memory
// session the pipeline uses is untouched.
func NewPIIMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.SessionStore) ports.SessionStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}
}

func (m *piiMiddleware) Save(ctx context.Context, sess *domain.Session) error {
	cloned := sess.Clone()
	// Clone copies nested extras shallowly; masking recurses, so deep-copy
	// before touching anything.
	cloned.CaseContext.Extra = deepCopyMap(cloned.CaseContext.Extra)

	maskCustomer(&cloned.CustomerInfo, m.patterns)
	maskMap(cloned.CaseContext.Extra, m.patterns)

	return m.next.Save(ctx, cloned)
}

func (m *piiMiddleware) Load(ctx context.Context, sessionID string) (*domain.Session, error) {
	return m.next.Load(ctx, sessionID)
}

func (m *piiMiddleware) Delete(ctx context.Context, sessionID string) error {
	return m.next.Delete(ctx, sessionID)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func maskCustomer(info *domain.CustomerInfo, patterns []*regexp.Regexp) {
	if matchesAny("email", patterns) && info.Email != "" {
		info.Email = maskValue
	}
	if matchesAny("first_name", patterns) && info.FirstName != "" {
		info.FirstName = maskValue
	}
	if matchesAny("last_name", patterns) && info.LastName != "" {
		info.LastName = maskValue
	}
	if matchesAny("customer_id", patterns) && info.CustomerID != "" {
		info.CustomerID = maskValue
	}
}

func maskMap(m map[string]any, patterns []*regexp.Regexp) {
	for k, v := range m {
		if matchesAny(k, patterns) {
			m[k] = maskValue
			continue
		}
		if subMap, ok := v.(map[string]any); ok {
			maskMap(subMap, patterns)
		}
	}
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if subMap, ok := v.(map[string]any); ok {
			out[k] = deepCopyMap(subMap)
		} else {
			out[k] = v
		}
	}
	return out
}

func matchesAny(key string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}

package rate

import (
	"context"
	"fmt"
	"time"
)

// Route names used by the default rule table.
const (
	RouteSignup  = "auth-signup"
	RouteSignin  = "auth-signin"
	RouteRefresh = "auth-refresh"
	RouteLogout  = "auth-logout"
)

// Rule is the static admission policy of one route.
type Rule struct {
	Route       string
	Window      time.Duration
	MaxRequests int
}

// DefaultRules returns the built-in per-route table.
func DefaultRules() []Rule {
	return []Rule{
		{Route: RouteSignup, Window: time.Minute, MaxRequests: 10},
		{Route: RouteSignin, Window: time.Minute, MaxRequests: 10},
		{Route: RouteRefresh, Window: time.Minute, MaxRequests: 30},
		{Route: RouteLogout, Window: time.Minute, MaxRequests: 20},
	}
}

// Gate applies per-route rules over a shared [Counter].
type Gate struct {
	counter Counter
	rules   map[string]Rule
}

// NewGate validates rules and returns a [Gate]. Later rules override earlier ones
// with the same route.
func NewGate(counter Counter, rules []Rule) (*Gate, error) {
	if counter == nil {
		return nil, fmt.Errorf("%w: nil counter", ErrInvalidRule)
	}
	table := make(map[string]Rule, len(rules))
	for _, r := range rules {
		if r.Route == "" || r.MaxRequests <= 0 || r.Window <= 0 {
			return nil, fmt.Errorf("%w: %+v", ErrInvalidRule, r)
		}
		table[r.Route] = r
	}
	return &Gate{counter: counter, rules: table}, nil
}

// Rule returns the configured rule for route.
func (g *Gate) Rule(route string) (Rule, bool) {
	r, ok := g.rules[route]
	return r, ok
}

// Consume admits one request from client on route. Routes without a rule are
// always allowed.
func (g *Gate) Consume(ctx context.Context, route, client string) (Decision, error) {
	rule, ok := g.rules[route]
	if !ok {
		return Decision{Allowed: true}, nil
	}
	if client == "" {
		client = "unknown"
	}
	return g.counter.Consume(ctx, route+":"+client, rule.MaxRequests, rule.Window)
}

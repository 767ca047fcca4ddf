// Package ratelimit enforces per-identity request budgets for each endpoint
// class using token buckets. A class allows Limit requests per Window as a
// burst and refills continuously at Limit/Window.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type Class string

const (
	ClassSync   Class = "sync"
	ClassShare  Class = "share"
	ClassHealth Class = "health"
)

type Rule struct {
	Limit  int
	Window time.Duration
}

// Decision is the outcome of one Allow call, ready to render as
// X-RateLimit-* headers.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	Reset      time.Time
	RetryAfter time.Duration
}

type bucketKey struct {
	class    Class
	identity string
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type Limiter struct {
	mu      sync.Mutex
	rules   map[Class]Rule
	buckets map[bucketKey]*bucket
	now     func() time.Time
}

// New validates rules and returns a Limiter. Classes without a rule are
// not limited.
func New(rules map[Class]Rule) (*Limiter, error) {
	for class, r := range rules {
		if r.Limit <= 0 || r.Window <= 0 {
			return nil, fmt.Errorf("rate rule %q: limit and window must be positive", class)
		}
	}
	return &Limiter{
		rules:   rules,
		buckets: make(map[bucketKey]*bucket),
		now:     time.Now,
	}, nil
}

func (r Rule) perSecond() float64 {
	return float64(r.Limit) / r.Window.Seconds()
}

// Allow spends one token from identity's bucket for class.
func (l *Limiter) Allow(class Class, identity string) Decision {
	rule, ok := l.rules[class]
	if !ok {
		return Decision{Allowed: true, Remaining: -1}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	k := bucketKey{class: class, identity: identity}
	b, ok := l.buckets[k]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rate.Limit(rule.perSecond()), rule.Limit)}
		l.buckets[k] = b
	}
	b.lastSeen = now

	allowed := b.lim.AllowN(now, 1)
	tokens := b.lim.TokensAt(now)

	d := Decision{
		Allowed:   allowed,
		Limit:     rule.Limit,
		Remaining: int(math.Max(0, math.Floor(tokens))),
		Reset:     now.Add(secondsToDuration((float64(rule.Limit) - tokens) / rule.perSecond())),
	}
	if !allowed {
		d.RetryAfter = secondsToDuration((1 - tokens) / rule.perSecond())
		d.Remaining = 0
	}
	return d
}

func secondsToDuration(s float64) time.Duration {
	if s <= 0 {
		return 0
	}
	return time.Duration(math.Ceil(s * float64(time.Second)))
}

// Sweep drops buckets idle for at least their class window. Such a bucket
// has refilled completely, so dropping it changes nothing for its owner.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	n := 0
	for k, b := range l.buckets {
		if now.Sub(b.lastSeen) >= l.rules[k.class].Window {
			delete(l.buckets, k)
			n++
		}
	}
	return n
}

// Len is the number of live buckets.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// RunSweeper calls Sweep every interval until ctx is done.
func (l *Limiter) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}

// ExemptList matches client addresses against CIDR ranges.
type ExemptList struct {
	nets []*net.IPNet
}

func ParseExemptList(cidrs []string) (*ExemptList, error) {
	e := &ExemptList{}
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			return nil, fmt.Errorf("parse cidr %q: %w", c, err)
		}
		e.nets = append(e.nets, n)
	}
	return e, nil
}

// Contains reports whether ip falls in any listed range. Nil-safe.
func (e *ExemptList) Contains(ip string) bool {
	if e == nil {
		return false
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, n := range e.nets {
		if n.Contains(parsed) {
			return true
		}
	}
	return false
}

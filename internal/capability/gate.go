package capability

import (
	"fmt"

	"storefront/internal/models"
)

// OnFail is the declared outcome when a gate denies a request.
type OnFail int

const (
	// Redirect sends the viewer to Policy.Target.
	Redirect OnFail = iota
	// NotFound hides the gated resource entirely.
	NotFound
	// Forbidden answers with an explicit 403. Only for surfaces that opt in,
	// such as admin APIs.
	Forbidden
)

func (o OnFail) String() string {
	switch o {
	case Redirect:
		return "redirect"
	case NotFound:
		return "not_found"
	case Forbidden:
		return "forbidden"
	}
	return "unknown"
}

// DefaultRedirectTarget is the tenant home.
const DefaultRedirectTarget = "/"

// Policy declares how a failed check is surfaced.
type Policy struct {
	OnFail OnFail
	Target string
}

// RedirectTo is a Redirect policy to target.
func RedirectTo(target string) Policy {
	return Policy{OnFail: Redirect, Target: target}
}

// Hide is a NotFound policy.
func Hide() Policy {
	return Policy{OnFail: NotFound}
}

// Denied is returned when a capability check fails.
type Denied struct {
	Key    Key
	OnFail OnFail
	Target string
	// Limit and Current are set for quantitative checks.
	Limit   int
	Current int64
}

func (d *Denied) Error() string {
	if _, ok := (Set{}).Limit(d.Key); ok {
		return fmt.Sprintf("capability %s exhausted (%d of %d)", d.Key, d.Current, d.Limit)
	}
	return fmt.Sprintf("capability %s not granted", d.Key)
}

// Is makes errors.Is(err, models.ErrCapabilityDenied) hold.
func (d *Denied) Is(target error) bool {
	return target == models.ErrCapabilityDenied
}

// FeatureName exposes the capability key in error responses.
func (d *Denied) FeatureName() string {
	return string(d.Key)
}

func deny(key Key, p Policy) *Denied {
	d := &Denied{Key: key, OnFail: p.OnFail, Target: p.Target}
	if d.OnFail == Redirect && d.Target == "" {
		d.Target = DefaultRedirectTarget
	}
	return d
}

// Require returns nil when key is granted in set, otherwise a *Denied
// carrying the policy's outcome.
func Require(set Set, key Key, p Policy) error {
	if set.Get(key) {
		return nil
	}
	return deny(key, p)
}

// RequireAll is the conjunctive form of Require. It reports the first unmet key.
func RequireAll(set Set, keys []Key, p Policy) error {
	for _, key := range keys {
		if err := Require(set, key, p); err != nil {
			return err
		}
	}
	return nil
}

// RequireWithinLimit fails when current already reaches the limit for key.
func RequireWithinLimit(set Set, key Key, current int64, p Policy) error {
	if set.Within(key, current) {
		return nil
	}
	d := deny(key, p)
	d.Limit, _ = set.Limit(key)
	d.Current = current
	return d
}

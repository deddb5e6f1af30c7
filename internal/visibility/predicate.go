// Package visibility builds the predicates that decide which products and
// vendor profiles a viewer may see. Predicates are plain data: the repository
// translates them to SQL and Matches evaluates them in memory.
package visibility

import (
	"fmt"
	"strings"
)

// Field names a fact a predicate can test.
type Field string

const (
	ProductTenantKey     Field = "product.tenant_key"
	ProductVendorID      Field = "product.vendor_id"
	ProductStatus        Field = "product.status"
	ProductIsActive      Field = "product.is_active"
	ProductVendorBlocked Field = "product.vendor.is_blocked"

	ProfileExists      Field = "profile.exists"
	ProfileTenantKey   Field = "profile.tenant_key"
	ProfileUserID      Field = "profile.user_id"
	ProfileStatus      Field = "profile.status"
	ProfileIsPublic    Field = "profile.is_public"
	ProfileUserBlocked Field = "profile.user.is_blocked"
)

// Op is the node kind of a predicate tree.
type Op string

const (
	OpEq   Op = "eq"
	OpAll  Op = "all"
	OpAny  Op = "any"
	OpDeny Op = "deny"
)

// Predicate is a tree of equality conditions joined by All and Any.
type Predicate struct {
	Op       Op
	Field    Field
	Value    any
	Children []Predicate
}

// DenyAll matches nothing. The repository returns an empty result for it
// without querying.
var DenyAll = Predicate{Op: OpDeny}

// Eq tests one field for equality.
func Eq(field Field, value any) Predicate {
	return Predicate{Op: OpEq, Field: field, Value: value}
}

// All is the conjunction of ps. An empty All matches everything.
func All(ps ...Predicate) Predicate {
	return Predicate{Op: OpAll, Children: ps}
}

// Any is the disjunction of ps. An empty Any matches nothing.
func Any(ps ...Predicate) Predicate {
	return Predicate{Op: OpAny, Children: ps}
}

// IsDenyAll reports whether p is the deny-all predicate.
func (p Predicate) IsDenyAll() bool {
	return p.Op == OpDeny
}

// Fields returns every field the predicate references, in first-use order.
func (p Predicate) Fields() []Field {
	seen := make(map[Field]bool)
	var out []Field
	var walk func(Predicate)
	walk = func(n Predicate) {
		if n.Op == OpEq && !seen[n.Field] {
			seen[n.Field] = true
			out = append(out, n.Field)
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(p)
	return out
}

// Uses reports whether p references field.
func (p Predicate) Uses(field Field) bool {
	for _, f := range p.Fields() {
		if f == field {
			return true
		}
	}
	return false
}

func (p Predicate) String() string {
	switch p.Op {
	case OpEq:
		return fmt.Sprintf("%s=%v", p.Field, p.Value)
	case OpDeny:
		return "DENY"
	case OpAll, OpAny:
		parts := make([]string, len(p.Children))
		for i, c := range p.Children {
			parts[i] = c.String()
		}
		sep := " AND "
		if p.Op == OpAny {
			sep = " OR "
		}
		return "(" + strings.Join(parts, sep) + ")"
	}
	return "?"
}

// Facts exposes the field values of one row. ok is false when the fact is
// unknown, for example a profile field on a product without a profile.
type Facts interface {
	Fact(field Field) (value any, ok bool)
}

// Matches evaluates p against row. Unknown facts never match.
func (p Predicate) Matches(row Facts) bool {
	switch p.Op {
	case OpEq:
		v, ok := row.Fact(p.Field)
		return ok && v == p.Value
	case OpAll:
		for _, c := range p.Children {
			if !c.Matches(row) {
				return false
			}
		}
		return true
	case OpAny:
		for _, c := range p.Children {
			if c.Matches(row) {
				return true
			}
		}
		return false
	}
	return false
}

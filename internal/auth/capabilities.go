package auth

import (
	"encoding/json"
	"slices"
	"sort"
	"strings"

	"github.com/bizdir/bizdir/internal/db/models"
)

// Capability tags known to the directory. Stored grants are free-form; these are the
// tags the bundled handlers check.
const (
	// CapBusinessRead allows reading unpublished business records.
	CapBusinessRead = "business.read"
	// CapBusinessCreate allows creating business records.
	CapBusinessCreate = "business.create"
	// CapBusinessUpdate allows editing business records.
	CapBusinessUpdate = "business.update"
	// CapBusinessDelete allows deleting business records.
	CapBusinessDelete = "business.delete"
	// CapMapView allows using the map widgets.
	CapMapView = "map.view"
	// CapReportsExport allows exporting reports.
	CapReportsExport = "reports.export"
	// CapUsersManage allows the user administration endpoints.
	CapUsersManage = "users.manage"
)

// UniversalTag is how the universal set is written on the wire.
const UniversalTag = "*"

// Capabilities is an immutable set of capability tags. The universal set contains every tag,
// including ones never granted explicitly. The zero value is the empty set.
type Capabilities struct {
	universal bool
	tags      map[string]struct{}
}

// All returns the universal set.
func All() Capabilities {
	return Capabilities{universal: true}
}

// Of returns the set holding tags. Blank tags are dropped.
func Of(tags ...string) Capabilities {
	set := make(map[string]struct{}, len(tags))

	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}

		set[tag] = struct{}{}
	}

	return Capabilities{tags: set}
}

// Universal reports whether c is the universal set.
func (c Capabilities) Universal() bool {
	return c.universal
}

// Has reports whether tag belongs to c.
func (c Capabilities) Has(tag string) bool {
	if c.universal {
		return true
	}

	_, ok := c.tags[tag]

	return ok
}

// HasAll reports whether every tag belongs to c. It is true for no tags.
func (c Capabilities) HasAll(tags ...string) bool {
	for _, tag := range tags {
		if !c.Has(tag) {
			return false
		}
	}

	return true
}

// HasAny reports whether at least one tag belongs to c. It is false for no tags.
func (c Capabilities) HasAny(tags ...string) bool {
	return slices.ContainsFunc(tags, c.Has)
}

// Tags returns the explicit tags sorted. The universal set returns nil.
func (c Capabilities) Tags() []string {
	if c.universal {
		return nil
	}

	out := make([]string, 0, len(c.tags))
	for tag := range c.tags {
		out = append(out, tag)
	}

	sort.Strings(out)

	return out
}

// Equal reports order-independent equality.
func (c Capabilities) Equal(other Capabilities) bool {
	if c.universal || other.universal {
		return c.universal == other.universal
	}

	if len(c.tags) != len(other.tags) {
		return false
	}

	for tag := range c.tags {
		if _, ok := other.tags[tag]; !ok {
			return false
		}
	}

	return true
}

// MarshalJSON writes the set as a sorted array, the universal set as ["*"].
func (c Capabilities) MarshalJSON() ([]byte, error) {
	if c.universal {
		return json.Marshal([]string{UniversalTag})
	}

	return json.Marshal(c.Tags())
}

// UnmarshalJSON reads the format written by MarshalJSON.
func (c *Capabilities) UnmarshalJSON(data []byte) error {
	var tags []string
	if err := json.Unmarshal(data, &tags); err != nil {
		return err
	}

	if slices.Contains(tags, UniversalTag) {
		*c = All()
		return nil
	}

	*c = Of(tags...)

	return nil
}

// Resolve computes the effective capabilities for a role and its explicit grants.
// Admins get the universal set whatever they were granted; every other role gets
// exactly its grants. Resolve never fails. Inactive accounts must be rejected
// before calling it.
func Resolve(role models.Role, grants []string) Capabilities {
	if role == models.RoleAdmin {
		return All()
	}

	return Of(grants...)
}

// ResolveUser decodes the stored grants of u and resolves them. A nil user has no capabilities.
func ResolveUser(u *models.User) Capabilities {
	if u == nil {
		return Capabilities{}
	}

	return Resolve(u.Role, DecodePermissions(u.Permissions))
}

// DecodePermissions reads the stored grants column. Anything that is not a JSON array
// yields no grants; non-string elements are skipped.
func DecodePermissions(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var items []any
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil
	}

	grants := make([]string, 0, len(items))

	for _, item := range items {
		tag, ok := item.(string)
		if !ok {
			continue
		}

		if tag = strings.TrimSpace(tag); tag != "" {
			grants = append(grants, tag)
		}
	}

	return grants
}

// EncodePermissions writes grants in the stored format, deduplicated and sorted.
func EncodePermissions(grants []string) string {
	out, err := json.Marshal(Of(grants...).Tags())
	if err != nil {
		return "[]"
	}

	return string(out)
}

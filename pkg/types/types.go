package types

import (
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// BlobType distinguishes a regular blob from a directory-like grouping blob.
type BlobType string

const (
	BlobTypeFile      BlobType = "file"
	BlobTypeDirectory BlobType = "directory"
)

// FieldKind is the discriminant of a FieldValue tagged union.
type FieldKind string

const (
	FieldString FieldKind = "string"
	FieldInt    FieldKind = "int"
	FieldBool   FieldKind = "bool"
)

// FieldValue is a tagged union of string, signed integer, and boolean,
// matching the three value shapes BlobInfo.Fields may hold. It
// round-trips through JSON with its discriminant intact so the metadata
// store can recover the original Go type when decoding a stored BlobInfo.
type FieldValue struct {
	Kind FieldKind
	Str  string
	Int  int64
	Bool bool
}

// StringField constructs a string-valued FieldValue.
func StringField(v string) FieldValue { return FieldValue{Kind: FieldString, Str: v} }

// IntField constructs an integer-valued FieldValue.
func IntField(v int64) FieldValue { return FieldValue{Kind: FieldInt, Int: v} }

// BoolField constructs a boolean-valued FieldValue.
func BoolField(v bool) FieldValue { return FieldValue{Kind: FieldBool, Bool: v} }

// Equal reports whether two field values have the same discriminant and
// payload.
func (f FieldValue) Equal(other FieldValue) bool {
	if f.Kind != other.Kind {
		return false
	}
	switch f.Kind {
	case FieldString:
		return f.Str == other.Str
	case FieldInt:
		return f.Int == other.Int
	case FieldBool:
		return f.Bool == other.Bool
	default:
		return false
	}
}

// Encode renders the value as the bytes used in the kv composite index
// key, prefixed by a one-byte discriminant so distinct kinds never
// collide on encoded bytes alone.
func (f FieldValue) Encode() []byte {
	switch f.Kind {
	case FieldString:
		return append([]byte{'s'}, []byte(f.Str)...)
	case FieldInt:
		return append([]byte{'i'}, []byte(fmt.Sprintf("%d", f.Int))...)
	case FieldBool:
		if f.Bool {
			return []byte{'b', '1'}
		}
		return []byte{'b', '0'}
	default:
		return nil
	}
}

// DecodeFieldValue is the inverse of FieldValue.Encode, used to recover
// a typed value from a composite kv-index key.
func DecodeFieldValue(data []byte) (FieldValue, error) {
	if len(data) == 0 {
		return FieldValue{}, fmt.Errorf("types: empty encoded field value")
	}
	switch data[0] {
	case 's':
		return StringField(string(data[1:])), nil
	case 'i':
		var n int64
		if _, err := fmt.Sscanf(string(data[1:]), "%d", &n); err != nil {
			return FieldValue{}, fmt.Errorf("types: decode int field: %w", err)
		}
		return IntField(n), nil
	case 'b':
		if len(data) != 2 {
			return FieldValue{}, fmt.Errorf("types: malformed bool field value")
		}
		return BoolField(data[1] == '1'), nil
	default:
		return FieldValue{}, fmt.Errorf("types: unknown field discriminant %q", data[0])
	}
}

type jsonFieldValue struct {
	Kind FieldKind `json:"kind"`
	Str  string    `json:"str,omitempty"`
	Int  int64     `json:"int,omitempty"`
	Bool bool      `json:"bool,omitempty"`
}

// MarshalJSON preserves the discriminant explicitly instead of relying
// on JSON's own type inference, so a zero-valued int and an absent
// field never get confused on decode.
func (f FieldValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonFieldValue{Kind: f.Kind, Str: f.Str, Int: f.Int, Bool: f.Bool})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (f *FieldValue) UnmarshalJSON(data []byte) error {
	var v jsonFieldValue
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	f.Kind = v.Kind
	f.Str = v.Str
	f.Int = v.Int
	f.Bool = v.Bool
	return nil
}

// BlobInfo is the persisted metadata of a blob. Mutable by the owner via
// update-meta; the directory re-indexes tags/fields/parents on every
// mutation.
type BlobInfo struct {
	Name    string                `json:"name"`
	Type    BlobType              `json:"blob_type"`
	Size    uint64                `json:"size"`
	Owner   string                `json:"owner"`
	Tags    []string              `json:"tags"`
	Fields  map[string]FieldValue `json:"fields"`
	Parents []string              `json:"parents"`
}

// Clone returns a deep copy so callers may diff a previous BlobInfo
// against a new one without aliasing the stored maps/slices.
func (b *BlobInfo) Clone() *BlobInfo {
	if b == nil {
		return nil
	}
	c := &BlobInfo{Name: b.Name, Type: b.Type, Size: b.Size, Owner: b.Owner}
	c.Tags = append([]string(nil), b.Tags...)
	c.Parents = append([]string(nil), b.Parents...)
	if b.Fields != nil {
		c.Fields = make(map[string]FieldValue, len(b.Fields))
		for k, v := range b.Fields {
			c.Fields[k] = v
		}
	}
	return c
}

// BlobMetaRequest is the client-supplied metadata carried in the
// x-blob-meta header (base64-encoded JSON) of a put or update-meta call.
type BlobMetaRequest struct {
	Name    string                `json:"name"`
	Type    BlobType              `json:"blob_type"`
	Tags    []string              `json:"tags"`
	Fields  map[string]FieldValue `json:"fields"`
	Parents []string              `json:"parents"`
}

// ToBlobInfo fills in the parts of a BlobInfo this daemon controls
// (size from x-blob-size, owner from the authenticated identity).
func (r *BlobMetaRequest) ToBlobInfo(owner string, size uint64) *BlobInfo {
	return &BlobInfo{
		Name:    r.Name,
		Type:    r.Type,
		Size:    size,
		Owner:   owner,
		Tags:    append([]string(nil), r.Tags...),
		Fields:  r.Fields,
		Parents: append([]string(nil), r.Parents...),
	}
}

// RedirectInfo describes how the directory should compute a storage
// node's externally reachable address: either automatically by
// comparing a requester's address against the node's subnet, or via a
// single fixed static IP.
type RedirectInfo struct {
	Automatic  bool   `json:"automatic"`
	PublicIP   net.IP `json:"public_ip,omitempty"`
	LocalIP    net.IP `json:"local_ip,omitempty"`
	SubnetMask net.IP `json:"subnet_mask,omitempty"`
	StaticIP   net.IP `json:"static_ip,omitempty"`
}

// StorageNodeInfo is the registration record a storage node presents to
// the directory.
type StorageNodeInfo struct {
	ID             string       `json:"id"`
	Port           uint16       `json:"port"`
	AvailableSpace uint64       `json:"available_space"`
	Size           uint64       `json:"size"`
	RedirectInfo   RedirectInfo `json:"redirect_info"`
}

// RoutingRule is a single `(field, value) -> node-id` entry. Rules are
// evaluated in order; the first match wins.
type RoutingRule struct {
	Field string     `json:"field"`
	Value FieldValue `json:"value"`
	Node  string     `json:"node_id"`
}

// MoveInfo is a pending instruction telling a storage node to transfer a
// blob to a peer. Enqueued when a rule is deleted or retargets an
// already-placed blob to a different node.
type MoveInfo struct {
	BlobID      string `json:"blob_id"`
	Owner       string `json:"owner"`
	Destination string `json:"destination_node_id"`
}

// RoutingConfig is the value filed under a routing key: a user's
// ordered routing rules, or a storage node's pending move queue.
type RoutingConfig struct {
	Rules     []RoutingRule `json:"rules"`
	MoveQueue []MoveInfo    `json:"move_queue"`
}

// Query is the request body of POST /query.
type Query struct {
	Expression any  `json:"expression,omitempty"` // parsed via pkg/query
	From       int  `json:"from"`
	Size       int  `json:"size"`
	Facets     bool `json:"facets,omitempty"`
}

// Hit is a single query result: a blob id paired with its metadata.
type Hit struct {
	ID   string    `json:"id"`
	Meta *BlobInfo `json:"meta"`
}

// Facets is the optional tag/field breakdown attached to a query
// response when Query.Facets is set.
type Facets struct {
	Tags   map[string]uint64            `json:"tags"`
	Fields map[string]map[string]uint64 `json:"fields"`
}

// QueryResponse is the body of POST /query's response.
type QueryResponse struct {
	Count   int           `json:"count"`
	Total   uint64        `json:"total"`
	Hits    []Hit         `json:"hits"`
	Facets  *Facets       `json:"facets,omitempty"`
	HitTime time.Duration `json:"-"`
}

package transport

import (
	"encoding/binary"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/gogo/protobuf/proto"
	"github.com/meshwire/corewire/internal/wire"
)

// Message is anything the registry can tag, serialize, and dispatch: the
// Reset/String/ProtoMessage trio gogo/protobuf's reflection-based marshaler
// needs, driven by the `protobuf` struct tags on each concrete type in
// package wire.
type Message = wire.Message

// Registry is the tagged-union table mapping small integer tags to message
// variants. It is shared process-wide across all connections; mutation
// must complete before Server.Listen starts accepting, enforced by Freeze.
type Registry struct {
	mu         sync.Mutex
	tagsByType map[reflect.Type]uint32
	typesByTag map[uint32]reflect.Type
	nextTag    uint32
	frozen     atomic.Bool
}

// NewRegistry builds a Registry with wire.UnknownMessage pre-registered as
// tag 1, so unknown tags are always resolvable even before an application
// registers its own variants.
func NewRegistry() *Registry {
	r := &Registry{
		tagsByType: make(map[reflect.Type]uint32),
		typesByTag: make(map[uint32]reflect.Type),
	}
	r.Register(&wire.UnknownMessage{})
	return r
}

// Register assigns variant the next integer tag, starting at 1 in
// registration order. Re-registering an already-known type is a no-op that
// returns its existing tag. Register panics if called after Freeze, since a
// late registration racing against live deserializers would silently
// corrupt the tag table.
func (r *Registry) Register(variant Message) uint32 {
	if r.frozen.Load() {
		panic("transport: Register called after registry was frozen")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	t := reflect.TypeOf(variant)
	if tag, ok := r.tagsByType[t]; ok {
		return tag
	}

	r.nextTag++
	tag := r.nextTag
	r.tagsByType[t] = tag
	r.typesByTag[tag] = t
	return tag
}

// Freeze stops further registration. Server.Listen calls this before
// accepting its first connection.
func (r *Registry) Freeze() {
	r.frozen.Store(true)
}

// Encode writes the tag-discriminated wire payload for msg:
// [tag uint32 big-endian][proto.Marshal(msg)].
func (r *Registry) Encode(msg Message) ([]byte, error) {
	r.mu.Lock()
	tag, ok := r.tagsByType[reflect.TypeOf(msg)]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("transport: message type %T is not registered", msg)
	}

	body, err := proto.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("transport: marshaling %T: %w", msg, err)
	}

	out := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(out, tag)
	copy(out[4:], body)
	return out, nil
}

// Decode reads the tag field and dispatches to the registered variant.
// An unrecognized tag yields a wire.UnknownMessage sentinel rather than an
// error. A recognized tag whose body fails to unmarshal returns an error:
// against a frozen, version-matched registry that should never happen, and
// treating it as fatal surfaces real protocol bugs instead of masking them.
func (r *Registry) Decode(payload []byte) (Message, error) {
	if len(payload) < 4 {
		return nil, fmt.Errorf("transport: payload %d bytes shorter than the 4-byte tag field", len(payload))
	}
	tag := binary.BigEndian.Uint32(payload)
	body := payload[4:]

	r.mu.Lock()
	t, ok := r.typesByTag[tag]
	r.mu.Unlock()

	if !ok {
		rawBody := make([]byte, len(body))
		copy(rawBody, body)
		return &wire.UnknownMessage{RawTag: tag, RawBody: rawBody}, nil
	}

	msg, ok := reflect.New(t.Elem()).Interface().(Message)
	if !ok {
		return nil, fmt.Errorf("transport: registered type for tag %d does not implement Message", tag)
	}
	if err := proto.Unmarshal(body, msg); err != nil {
		return nil, fmt.Errorf("transport: unmarshaling tag %d (%s): %w", tag, t, err)
	}
	return msg, nil
}

// Package wire defines the tagged-union message types exchanged over a
// Connection once the transport core's send/receive pipeline has stripped
// encryption, compression, and framing.
package wire

import "github.com/gogo/protobuf/proto"

// Message is anything that can travel through the pipeline. Concrete types
// implement proto.Message through gogo/protobuf's reflection-based
// marshaler, driven entirely by the `protobuf` struct tags below — no
// generated code is involved.
type Message interface {
	proto.Message
}

// Ping carries only a nonce; it exists to keep idle connections alive and to
// measure round-trip latency via the paired Pong.
type Ping struct {
	Nonce uint64 `protobuf:"varint,1,opt,name=nonce,proto3" json:"nonce,omitempty"`
}

func (m *Ping) Reset()         { *m = Ping{} }
func (m *Ping) String() string { return proto.CompactTextString(m) }
func (*Ping) ProtoMessage()    {}

// Pong answers a Ping, echoing its nonce.
type Pong struct {
	Nonce uint64 `protobuf:"varint,1,opt,name=nonce,proto3" json:"nonce,omitempty"`
}

func (m *Pong) Reset()         { *m = Pong{} }
func (m *Pong) String() string { return proto.CompactTextString(m) }
func (*Pong) ProtoMessage()    {}

// Ack acknowledges receipt of a prior message by its application-assigned
// correlation id.
type Ack struct {
	CorrelationId uint64 `protobuf:"varint,1,opt,name=correlation_id,json=correlationId,proto3" json:"correlation_id,omitempty"`
	Ok            bool   `protobuf:"varint,2,opt,name=ok,proto3" json:"ok,omitempty"`
	Detail        string `protobuf:"bytes,3,opt,name=detail,proto3" json:"detail,omitempty"`
}

func (m *Ack) Reset()         { *m = Ack{} }
func (m *Ack) String() string { return proto.CompactTextString(m) }
func (*Ack) ProtoMessage()    {}

// TextMessage carries a UTF-8 payload.
type TextMessage struct {
	Body string `protobuf:"bytes,1,opt,name=body,proto3" json:"body,omitempty"`
}

func (m *TextMessage) Reset()         { *m = TextMessage{} }
func (m *TextMessage) String() string { return proto.CompactTextString(m) }
func (*TextMessage) ProtoMessage()    {}

// BinaryMessage carries an opaque byte payload, e.g. a file chunk handed to
// an application-level OnRead handler.
type BinaryMessage struct {
	Name string `protobuf:"bytes,1,opt,name=name,proto3" json:"name,omitempty"`
	Data []byte `protobuf:"bytes,2,opt,name=data,proto3" json:"data,omitempty"`
}

func (m *BinaryMessage) Reset()         { *m = BinaryMessage{} }
func (m *BinaryMessage) String() string { return proto.CompactTextString(m) }
func (*BinaryMessage) ProtoMessage()    {}

// Disconnect notifies the peer of an orderly shutdown and the reason for it,
// sent before closing the underlying connection.
type Disconnect struct {
	Reason string `protobuf:"bytes,1,opt,name=reason,proto3" json:"reason,omitempty"`
}

func (m *Disconnect) Reset()         { *m = Disconnect{} }
func (m *Disconnect) String() string { return proto.CompactTextString(m) }
func (*Disconnect) ProtoMessage()    {}

// UnknownMessage is the sentinel delivered to OnRead when a frame's tag does
// not match any message registered on this side. RawTag preserves the tag
// as received so the application can log or count it.
type UnknownMessage struct {
	RawTag  uint32
	RawBody []byte
}

func (m *UnknownMessage) Reset()         { *m = UnknownMessage{} }
func (m *UnknownMessage) String() string { return proto.CompactTextString(m) }
func (*UnknownMessage) ProtoMessage()    {}

// Package envelope encodes structured chat messages as single-line text so
// they can travel over a line-oriented transport unmodified. The payload is
// a protobuf Struct, serialized and base64-encoded; the encoded form never
// contains a line break.
package envelope

import (
	"encoding/base64"
	"fmt"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Kind distinguishes the chat message types.
type Kind int

const (
	// KindText is an ordinary chat message.
	KindText Kind = iota
	// KindJoin announces a user entering the chat.
	KindJoin
	// KindLeave announces a user leaving the chat.
	KindLeave
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindText:
		return "TEXT"
	case KindJoin:
		return "JOIN"
	case KindLeave:
		return "LEAVE"
	default:
		return "UNKNOWN"
	}
}

// Envelope is one chat message with its metadata.
type Envelope struct {
	Kind   Kind
	Sender string
	Body   string
	SentAt time.Time
}

// Text builds a chat message envelope stamped with the current time.
func Text(sender, body string) *Envelope {
	return &Envelope{Kind: KindText, Sender: sender, Body: body, SentAt: time.Now().UTC()}
}

// Join builds a join announcement for sender.
func Join(sender string) *Envelope {
	return &Envelope{Kind: KindJoin, Sender: sender, SentAt: time.Now().UTC()}
}

// Leave builds a leave announcement for sender.
func Leave(sender string) *Envelope {
	return &Envelope{Kind: KindLeave, Sender: sender, SentAt: time.Now().UTC()}
}

// Encode returns the single-line wire form of the envelope.
func (e *Envelope) Encode() (string, error) {
	st, err := structpb.NewStruct(map[string]interface{}{
		"kind":    kindToWire(e.Kind),
		"sender":  e.Sender,
		"body":    e.Body,
		"sent_at": e.SentAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return "", fmt.Errorf("envelope: encode: %w", err)
	}
	raw, err := proto.Marshal(st)
	if err != nil {
		return "", fmt.Errorf("envelope: encode: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Decode parses one wire line produced by Encode.
func Decode(line string) (*Envelope, error) {
	raw, err := base64.StdEncoding.DecodeString(line)
	if err != nil {
		return nil, fmt.Errorf("envelope: decode: %w", err)
	}
	st := &structpb.Struct{}
	if err := proto.Unmarshal(raw, st); err != nil {
		return nil, fmt.Errorf("envelope: decode: %w", err)
	}

	fields := st.GetFields()
	e := &Envelope{
		Kind:   kindFromWire(fields["kind"].GetStringValue()),
		Sender: fields["sender"].GetStringValue(),
		Body:   fields["body"].GetStringValue(),
	}
	if ts := fields["sent_at"].GetStringValue(); ts != "" {
		if at, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			e.SentAt = at
		}
	}
	return e, nil
}

func kindToWire(k Kind) string {
	switch k {
	case KindJoin:
		return "join"
	case KindLeave:
		return "leave"
	default:
		return "text"
	}
}

// kindFromWire falls back to TEXT for unknown kinds so newer peers degrade
// gracefully.
func kindFromWire(s string) Kind {
	switch s {
	case "join":
		return KindJoin
	case "leave":
		return KindLeave
	default:
		return KindText
	}
}

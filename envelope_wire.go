package subway

import (
	"encoding/json"
	"fmt"

	subwayv1alpha1 "github.com/raskyld/subway/gen/subway/v1alpha1"
	"google.golang.org/protobuf/proto"
)

// Envelopes travel as `subway.v1alpha1.Envelope` protobuf messages, see
// proto/subway/v1alpha1/envelope.proto.

// MarshalBinary implements `encoding.BinaryMarshaler`.
func (env *Envelope) MarshalBinary() ([]byte, error) {
	return proto.Marshal(env.toProto())
}

// UnmarshalBinary implements `encoding.BinaryUnmarshaler`.
// Unknown fields are skipped.
func (env *Envelope) UnmarshalBinary(b []byte) error {
	pb := &subwayv1alpha1.Envelope{}
	if err := proto.Unmarshal(b, pb); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFrame, err)
	}
	*env = envelopeFromProto(pb)
	return nil
}

func (env *Envelope) toProto() *subwayv1alpha1.Envelope {
	pb := &subwayv1alpha1.Envelope{
		Id:        env.ID,
		InReplyTo: env.InReplyTo,
		From:      env.From,
		To:        env.To,
		Path:      env.Path,
		Subject:   subwayv1alpha1.Subject(env.Subject),
		Message: &subwayv1alpha1.Message{
			Type: subwayv1alpha1.MessageType(env.Message.Type),
		},
	}
	if req := env.Message.Request; req != nil {
		pb.Message.Request = &subwayv1alpha1.Request{
			Host:     req.Host,
			Method:   req.Method,
			Pathname: req.Pathname,
			Body:     req.Body,
		}
	}
	if res := env.Message.Response; res != nil {
		pb.Message.Response = &subwayv1alpha1.Response{
			StatusCode: int64(res.StatusCode),
			Body:       res.Body,
		}
	}
	return pb
}

func envelopeFromProto(pb *subwayv1alpha1.Envelope) Envelope {
	env := Envelope{
		ID:        pb.GetId(),
		InReplyTo: pb.GetInReplyTo(),
		From:      pb.GetFrom(),
		To:        pb.GetTo(),
		Path:      pb.GetPath(),
		Subject:   Subject(pb.GetSubject()),
	}

	msg := pb.GetMessage()
	env.Message.Type = MessageType(msg.GetType())
	if req := msg.GetRequest(); req != nil {
		env.Message.Request = &Request{
			Host:     req.GetHost(),
			Method:   req.GetMethod(),
			Pathname: req.GetPathname(),
			Body:     rawBody(req.GetBody()),
		}
	}
	if res := msg.GetResponse(); res != nil {
		env.Message.Response = &Response{
			StatusCode: int(res.GetStatusCode()),
			Body:       rawBody(res.GetBody()),
		}
	}
	return env
}

func rawBody(b []byte) json.RawMessage {
	if len(b) == 0 {
		return nil
	}
	return json.RawMessage(b)
}

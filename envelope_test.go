package subway

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestEnvelopeRouting(t *testing.T) {
	req := &Request{Host: "c", Method: MethodPost, Pathname: "/x", Body: []byte(`{"a":1}`)}
	env := newRequestEnvelope("id-1", "a", []string{"a", "b", "c"}, req)

	require.Equal(t, "c", env.To)
	require.Equal(t, SubjectRequest, env.Subject)
	require.Equal(t, 1, env.IndexOf("b"))
	require.Equal(t, -1, env.IndexOf("z"))
	require.True(t, env.IsDestination("c"))
	require.False(t, env.IsDestination("b"))

	next, ok := env.NextHop("a")
	require.True(t, ok)
	require.Equal(t, "b", next)
	_, ok = env.NextHop("c")
	require.False(t, ok)
	_, ok = env.NextHop("z")
	require.False(t, ok)
	require.False(t, env.IsDestination("z"))

	reply := newReplyEnvelope("c", env, reversePath(env.Path), &Response{StatusCode: 200})
	require.Equal(t, "id-1->reply", reply.ID)
	require.Equal(t, "id-1", reply.InReplyTo)
	require.Equal(t, "c", reply.From)
	require.Equal(t, "a", reply.To)
	require.Equal(t, []string{"c", "b", "a"}, reply.Path)
	require.Equal(t, []string{"a", "b", "c"}, env.Path, "reversing must not touch the request path")
	require.Equal(t, SubjectResponse, reply.Subject)
	require.Equal(t, MessageOutgoing, reply.Message.Type)
}

func TestEnvelopeClone(t *testing.T) {
	env := newRequestEnvelope("id-1", "a", []string{"a", "b"}, &Request{Host: "b", Body: []byte(`{}`)})
	cloned := env.Clone()
	require.Equal(t, env, cloned)

	cloned.Path[0] = "z"
	cloned.Message.Request.Body[0] = '['
	cloned.Message.Request.Host = "z"
	require.Equal(t, "a", env.Path[0])
	require.Equal(t, `{}`, string(env.Message.Request.Body))
	require.Equal(t, "b", env.Message.Request.Host)

	var nilEnv *Envelope
	require.Nil(t, nilEnv.Clone())
}

func TestEnvelopeWire(t *testing.T) {
	t.Run("request", func(t *testing.T) {
		env := newRequestEnvelope("id-1", "a", []string{"a", "b", "c"}, &Request{
			Host:     "c",
			Method:   MethodPut,
			Pathname: "/items/1",
			Body:     []byte(`{"name":"one"}`),
		})
		buf, err := env.MarshalBinary()
		require.NoError(t, err)

		var decoded Envelope
		require.NoError(t, decoded.UnmarshalBinary(buf))
		require.Equal(t, env, &decoded)
	})

	t.Run("response with a negative status survives", func(t *testing.T) {
		req := newRequestEnvelope("id-2", "a", []string{"a", "b"}, &Request{Host: "b"})
		env := newReplyEnvelope("b", req, []string{"b", "a"}, &Response{StatusCode: -1})
		buf, err := env.MarshalBinary()
		require.NoError(t, err)

		var decoded Envelope
		require.NoError(t, decoded.UnmarshalBinary(buf))
		require.Equal(t, env, &decoded)
	})

	t.Run("unknown fields are skipped", func(t *testing.T) {
		env := newRequestEnvelope("id-3", "a", []string{"a", "b"}, &Request{Host: "b"})
		buf, err := env.MarshalBinary()
		require.NoError(t, err)
		buf = protowire.AppendTag(buf, 42, protowire.BytesType)
		buf = protowire.AppendString(buf, "from the future")
		buf = protowire.AppendTag(buf, 43, protowire.VarintType)
		buf = protowire.AppendVarint(buf, 7)

		var decoded Envelope
		require.NoError(t, decoded.UnmarshalBinary(buf))
		require.Equal(t, env, &decoded)
	})

	t.Run("truncated frames are rejected", func(t *testing.T) {
		env := newRequestEnvelope("id-4", "a", []string{"a", "b"}, &Request{Host: "b", Pathname: "/p"})
		buf, err := env.MarshalBinary()
		require.NoError(t, err)

		var decoded Envelope
		require.ErrorIs(t, decoded.UnmarshalBinary(buf[:len(buf)-2]), ErrInvalidFrame)
	})
}

func TestEnvelopeLogValue(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	env := newRequestEnvelope("id-1", "a", []string{"a", "b"}, &Request{Host: "b", Pathname: "/p"})
	logger.Info("routed", LabelEnvelope.L(env))

	out := buf.String()
	require.Contains(t, out, "envelope.id=id-1")
	require.Contains(t, out, "envelope.subject=REQ")
	require.Contains(t, out, "envelope.pathname=/p")
}

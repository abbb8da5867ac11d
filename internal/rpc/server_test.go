package rpc

import (
	"context"
	"testing"

	"github.com/icsd/icsd/internal/config"
	"github.com/icsd/icsd/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMailer struct{}

func (fakeMailer) Send(recipient, subject, htmlBody string) error { return nil }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	paths := config.Paths{Home: t.TempDir(), Log: t.TempDir(), Conf: t.TempDir(), Var: t.TempDir()}
	eng, err := engine.New(engine.Options{Paths: paths, AlertMailer: fakeMailer{}})
	require.NoError(t, err)
	return NewServer(eng, nil, nil)
}

func TestDispatchResourceLifecycle(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	_, err := s.dispatch(ctx, MethodGrpAdd, mustEncode(t, namedArg{Name: "g1"}))
	require.NoError(t, err)

	_, err = s.dispatch(ctx, MethodResAdd, mustEncode(t, resAddArg{Name: "r1", Group: "g1"}))
	require.NoError(t, err)

	result, err := s.dispatch(ctx, MethodResState, mustEncode(t, namesArg{}))
	require.NoError(t, err)
	states, ok := result.(statesResult)
	require.True(t, ok)
	assert.Equal(t, "OFFLINE", states.States["r1"])

	_, err = s.dispatch(ctx, MethodResDelete, mustEncode(t, namedArg{Name: "r1"}))
	require.NoError(t, err)
}

func TestDispatchUnknownMethodErrors(t *testing.T) {
	s := newTestServer(t)
	_, err := s.dispatch(context.Background(), "no_such_method", nil)
	assert.Error(t, err)
}

func TestDispatchAddNodeRequiresDialer(t *testing.T) {
	s := newTestServer(t)
	_, err := s.dispatch(context.Background(), MethodAddNode, mustEncode(t, addNodeArg{Host: "peer", Addr: "127.0.0.1:1"}))
	assert.Error(t, err)
}

func TestHandleWrapsDispatchErrorIntoEnvelope(t *testing.T) {
	s := newTestServer(t)
	resp, err := s.handle(context.Background(), Envelope{Method: MethodResOnline, Args: mustEncode(t, namedArg{Name: "missing"})})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Error)
}

func TestHandleAssignsCorrelationIDWhenMissing(t *testing.T) {
	s := newTestServer(t)
	resp, err := s.handle(context.Background(), Envelope{Method: MethodNodeList})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.ID)
}

func mustEncode(t *testing.T, v any) []byte {
	t.Helper()
	raw, err := encodeArgs(v)
	require.NoError(t, err)
	return raw
}

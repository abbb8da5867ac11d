package rpc

import (
	"context"
	"time"

	"github.com/icsd/icsd/internal/xerrors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client dials a peer node's rpc.Server and implements engine.RemoteNode,
// the narrow surface Engine needs for clus_* fan-out.
type Client struct {
	addr string
	conn *grpc.ClientConn
}

// Dial connects to a peer's gRPC address with a short connect timeout
// and WithBlock, so a dead peer fails add_node immediately instead of
// hanging.
func Dial(addr string) (*Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := grpc.DialContext(ctx, addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
		grpc.WithBlock(),
	)
	if err != nil {
		return nil, xerrors.Wrapf(err, "dial node at %s", addr)
	}
	return &Client{addr: addr, conn: conn}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

// Call invokes method on the remote node with args marshaled to JSON,
// decoding the result into out (which may be nil to discard it).
func (c *Client) Call(ctx context.Context, method string, args, out any) error {
	rawArgs, err := encodeArgs(args)
	if err != nil {
		return xerrors.Wrapf(err, "encode args for %s", method)
	}
	req := &Envelope{ID: newCorrelationID(), Method: method, Args: rawArgs}
	resp := &Envelope{}
	if err := c.conn.Invoke(ctx, "/icsd.Node/Invoke", req, resp); err != nil {
		return xerrors.Wrapf(err, "rpc call %s to %s", method, c.addr)
	}
	if resp.Error != "" {
		return xerrors.Newf("%s on %s: %s", method, c.addr, resp.Error)
	}
	if out != nil {
		return decodeArgs(resp.Result, out)
	}
	return nil
}

// --- engine.RemoteNode ---

func (c *Client) Ping(ctx context.Context) error {
	return c.Call(ctx, MethodPing, nil, nil)
}

func (c *Client) ClusResOnline(ctx context.Context, resourceName, systemName string) error {
	return c.Call(ctx, MethodClusResOnline, clusResourceArg{ResourceName: resourceName, SystemName: systemName}, nil)
}

func (c *Client) ClusResOffline(ctx context.Context, resourceName, systemName string) error {
	return c.Call(ctx, MethodClusResOffline, clusResourceArg{ResourceName: resourceName, SystemName: systemName}, nil)
}

func (c *Client) ClusResAdd(ctx context.Context, resourceName, groupName string) error {
	return c.Call(ctx, MethodClusResAdd, clusMutateArg{ResourceName: resourceName, GroupName: groupName}, nil)
}

func (c *Client) ClusResDelete(ctx context.Context, resourceName string) error {
	return c.Call(ctx, MethodClusResDelete, clusMutateArg{ResourceName: resourceName}, nil)
}

func (c *Client) ClusResLink(ctx context.Context, parentName, resourceName string) error {
	return c.Call(ctx, MethodClusResLink, clusMutateArg{Parent: parentName, ResourceName: resourceName}, nil)
}

func (c *Client) ClusResUnlink(ctx context.Context, parentName, resourceName string) error {
	return c.Call(ctx, MethodClusResUnlink, clusMutateArg{Parent: parentName, ResourceName: resourceName}, nil)
}

func (c *Client) ClusResClear(ctx context.Context, resourceName string) error {
	return c.Call(ctx, MethodClusResClear, clusMutateArg{ResourceName: resourceName}, nil)
}

func (c *Client) ClusResModify(ctx context.Context, resourceName, attrName string, value any) error {
	return c.Call(ctx, MethodClusResModify, clusMutateArg{ResourceName: resourceName, AttrName: attrName, Value: value}, nil)
}

func (c *Client) ClusResStateMany(ctx context.Context, names []string) (map[string]string, error) {
	var out statesResult
	if err := c.Call(ctx, MethodClusResStateMany, clusStateManyArg{Names: names}, &out); err != nil {
		return nil, err
	}
	return out.States, nil
}

func (c *Client) ClusGrpOnline(ctx context.Context, groupName, systemName string) error {
	return c.Call(ctx, MethodClusGrpOnline, clusGroupArg{GroupName: groupName, Node: systemName}, nil)
}

func (c *Client) ClusGrpOffline(ctx context.Context, groupName, systemName string) error {
	return c.Call(ctx, MethodClusGrpOffline, clusGroupArg{GroupName: groupName, Node: systemName}, nil)
}

func (c *Client) ClusGrpAdd(ctx context.Context, groupName string) error {
	return c.Call(ctx, MethodClusGrpAdd, clusMutateArg{GroupName: groupName}, nil)
}

func (c *Client) ClusGrpDelete(ctx context.Context, groupName string) error {
	return c.Call(ctx, MethodClusGrpDelete, clusMutateArg{GroupName: groupName}, nil)
}

func (c *Client) ClusGrpEnable(ctx context.Context, groupName string) error {
	return c.Call(ctx, MethodClusGrpEnable, clusMutateArg{GroupName: groupName}, nil)
}

func (c *Client) ClusGrpDisable(ctx context.Context, groupName string) error {
	return c.Call(ctx, MethodClusGrpDisable, clusMutateArg{GroupName: groupName}, nil)
}

func (c *Client) ClusGrpModify(ctx context.Context, groupName, attrName string, value any) error {
	return c.Call(ctx, MethodClusGrpModify, clusMutateArg{GroupName: groupName, AttrName: attrName, Value: value}, nil)
}

func (c *Client) ClusGrpStateMany(ctx context.Context, names []string) (map[string]string, error) {
	var out statesResult
	if err := c.Call(ctx, MethodClusGrpStateMany, clusStateManyArg{Names: names}, &out); err != nil {
		return nil, err
	}
	return out.States, nil
}

func (c *Client) ClusGrpState(ctx context.Context, groupName string) (string, error) {
	var out string
	if err := c.Call(ctx, MethodClusGrpState, namedArg{Name: groupName}, &out); err != nil {
		return "", err
	}
	return out, nil
}

func (c *Client) ClusLoad(ctx context.Context) error {
	return c.Call(ctx, MethodClusLoad, nil, nil)
}

package rpc

import (
	"context"
	"encoding/json"
	"net"
	"time"

	"github.com/icsd/icsd/internal/alert"
	"github.com/icsd/icsd/internal/engine"
	"github.com/icsd/icsd/internal/xerrors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
)

// maxInboundRate caps how many RPCs per second a single node accepts
// from the rest of the cluster, so a peer stuck retrying a failing
// clus_* call cannot starve this node's own request handling.
const maxInboundRate = 200

// Server exposes an Engine's full operation surface as a single gRPC
// service with one Invoke method, dispatching on Envelope.Method.
type Server struct {
	engine  *engine.Engine
	log     *zap.SugaredLogger
	limiter *rate.Limiter
	dial    func(addr string) (*Client, error)

	grpc *grpc.Server
}

// NewServer wraps eng for gRPC service registration. dial is used to
// connect to a newly-registered peer when add_node names a new host;
// Engine itself carries no transport dependency.
func NewServer(eng *engine.Engine, log *zap.SugaredLogger, dial func(addr string) (*Client, error)) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Server{
		engine:  eng,
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(maxInboundRate), maxInboundRate*2),
		dial:    dial,
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: "icsd.Node",
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Invoke",
			Handler: func(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
				s := srv.(*Server)
				var req Envelope
				if err := dec(&req); err != nil {
					return nil, err
				}
				return s.handle(ctx, req)
			},
		},
	},
	Streams: []grpc.StreamDesc{},
}

// Serve registers the service and accepts connections on every listener
// concurrently until ctx is cancelled, at which point it stops gracefully.
func (s *Server) Serve(ctx context.Context, listeners ...net.Listener) error {
	s.grpc = grpc.NewServer()
	s.grpc.RegisterService(&serviceDesc, s)

	errCh := make(chan error, len(listeners))
	for _, l := range listeners {
		l := l
		go func() { errCh <- s.grpc.Serve(l) }()
	}

	go func() {
		<-ctx.Done()
		s.log.Info("stopping rpc server")
		s.grpc.GracefulStop()
	}()

	for range listeners {
		if err := <-errCh; err != nil && ctx.Err() == nil {
			return xerrors.Wrap(err, "rpc listener stopped")
		}
	}
	return nil
}

func (s *Server) handle(ctx context.Context, req Envelope) (*Envelope, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, xerrors.Wrap(err, "rpc inbound rate limit")
	}

	id := req.ID
	if id == "" {
		id = newCorrelationID()
	}
	start := time.Now()
	result, err := s.dispatch(ctx, req.Method, req.Args)
	s.log.Debugw("rpc handled", "id", id, "method", req.Method, "duration", time.Since(start), "error", err)

	resp := &Envelope{ID: id, Method: req.Method}
	if err != nil {
		resp.Error = err.Error()
		return resp, nil
	}
	raw, merr := encodeArgs(result)
	if merr != nil {
		return nil, xerrors.Wrap(merr, "marshal rpc result")
	}
	resp.Result = raw
	return resp, nil
}

func (s *Server) dispatch(ctx context.Context, method string, args json.RawMessage) (any, error) {
	e := s.engine
	switch method {
	case MethodPing:
		return e.Ping(ctx), nil

	case MethodAddNode:
		var a addNodeArg
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		if s.dial == nil {
			return nil, xerrors.New("rpc server has no dialer configured for add_node")
		}
		client, err := s.dial(a.Addr)
		if err != nil {
			return nil, xerrors.Wrapf(err, "dial new node %q at %s", a.Host, a.Addr)
		}
		return nil, e.AddNode(a.Host, client)
	case MethodDeleteNode:
		var a nodeArg
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return nil, e.DeleteNode(a.Host)

	case MethodNodeList:
		return e.NodeList(), nil
	case MethodNodeAttr:
		return e.NodeAttr(), nil
	case MethodNodeValue:
		var a namedArg
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return e.NodeValue(a.Name)
	case MethodNodeModify:
		var a attrArg
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return nil, e.NodeModify(a.Name, a.Value)

	case MethodResAdd:
		var a resAddArg
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return nil, e.ResAdd(a.Name, a.Group)
	case MethodResDelete:
		var a namedArg
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return nil, e.ResDelete(a.Name)
	case MethodResOnline:
		var a namedArg
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return nil, e.ResOnline(a.Name)
	case MethodResOffline:
		var a namedArg
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return nil, e.ResOffline(a.Name)
	case MethodResState:
		var a namesArg
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		states, err := e.ResState(a.Names)
		if err != nil {
			return nil, err
		}
		return statesResult{States: states}, nil
	case MethodResLink:
		var a linkArg
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return nil, e.ResLink(a.Parent, a.Name)
	case MethodResUnlink:
		var a linkArg
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return nil, e.ResUnlink(a.Parent, a.Name)
	case MethodResClear:
		var a namedArg
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return nil, e.ResClear(a.Name)
	case MethodResProbe:
		var a namedArg
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return nil, e.ResProbe(a.Name)
	case MethodResDep:
		var a namesArg
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return e.ResDep(a.Names)
	case MethodResList:
		return e.ResList(), nil
	case MethodResValue:
		var a namedAttrArg
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return e.ResValue(a.Name, a.AttrName)
	case MethodResModify:
		var a namedAttrArg
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return nil, e.ResModify(a.Name, a.AttrName, a.Value)
	case MethodResAttr:
		var a namedArg
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return e.ResAttr(a.Name)

	case MethodGrpAdd:
		var a namedArg
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return nil, e.GrpAdd(a.Name)
	case MethodGrpDelete:
		var a namedArg
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return nil, e.GrpDelete(a.Name)
	case MethodGrpOnline:
		var a namedArg
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return nil, e.GrpOnline(a.Name)
	case MethodGrpOffline:
		var a namedArg
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return nil, e.GrpOffline(a.Name)
	case MethodGrpState:
		var a namesArg
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		states, err := e.GrpState(a.Names)
		if err != nil {
			return nil, err
		}
		return statesResult{States: states}, nil
	case MethodGrpEnable:
		var a namedArg
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return nil, e.GrpEnable(a.Name)
	case MethodGrpDisable:
		var a namedArg
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return nil, e.GrpDisable(a.Name)
	case MethodGrpEnableResources:
		var a namedArg
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return nil, e.GrpEnableResources(a.Name)
	case MethodGrpDisableResources:
		var a namedArg
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return nil, e.GrpDisableResources(a.Name)
	case MethodGrpFlush:
		var a namedArg
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return nil, e.GrpFlush(a.Name)
	case MethodGrpClear:
		var a namedArg
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return nil, e.GrpClear(a.Name)
	case MethodGrpResources:
		var a namedArg
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return e.GrpResources(a.Name)
	case MethodGrpList:
		return e.GrpList(), nil
	case MethodGrpValue:
		var a namedAttrArg
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return e.GrpValue(a.Name, a.AttrName)
	case MethodGrpModify:
		var a namedAttrArg
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return nil, e.GrpModify(a.Name, a.AttrName, a.Value)
	case MethodGrpAttr:
		var a namedArg
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return e.GrpAttr(a.Name)

	case MethodClusResOnline:
		var a clusResourceArg
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return nil, e.ClusResOnline(ctx, a.ResourceName, a.SystemName)
	case MethodClusResOffline:
		var a clusResourceArg
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return nil, e.ClusResOffline(ctx, a.ResourceName, a.SystemName)
	case MethodClusResAdd:
		var a clusMutateArg
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return nil, e.ClusResAdd(ctx, a.ResourceName, a.GroupName, true)
	case MethodClusResDelete:
		var a clusMutateArg
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return nil, e.ClusResDelete(ctx, a.ResourceName, true)
	case MethodClusResLink:
		var a clusMutateArg
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return nil, e.ClusResLink(ctx, a.Parent, a.ResourceName, true)
	case MethodClusResUnlink:
		var a clusMutateArg
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return nil, e.ClusResUnlink(ctx, a.Parent, a.ResourceName, true)
	case MethodClusResClear:
		var a clusMutateArg
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return nil, e.ClusResClear(ctx, a.ResourceName, true)
	case MethodClusResModify:
		var a clusMutateArg
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return nil, e.ClusResModify(ctx, a.ResourceName, a.AttrName, a.Value, true)
	case MethodClusResStateMany:
		var a clusStateManyArg
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		states, err := e.ClusResStateMany(ctx, a.Names, true)
		if err != nil {
			return nil, err
		}
		return statesResult{States: states}, nil

	case MethodClusGrpOnline:
		var a clusGroupArg
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return nil, e.ClusGrpOnline(ctx, a.GroupName, a.Node)
	case MethodClusGrpOffline:
		var a clusGroupArg
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return nil, e.ClusGrpOffline(ctx, a.GroupName, a.Node)
	case MethodClusGrpAdd:
		var a clusMutateArg
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return nil, e.ClusGrpAdd(ctx, a.GroupName, true)
	case MethodClusGrpDelete:
		var a clusMutateArg
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return nil, e.ClusGrpDelete(ctx, a.GroupName, true)
	case MethodClusGrpEnable:
		var a clusMutateArg
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return nil, e.ClusGrpEnable(ctx, a.GroupName, true)
	case MethodClusGrpDisable:
		var a clusMutateArg
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return nil, e.ClusGrpDisable(ctx, a.GroupName, true)
	case MethodClusGrpModify:
		var a clusMutateArg
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return nil, e.ClusGrpModify(ctx, a.GroupName, a.AttrName, a.Value, true)
	case MethodClusGrpStateMany:
		var a clusStateManyArg
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		states, err := e.ClusGrpStateMany(ctx, a.Names, true)
		if err != nil {
			return nil, err
		}
		return statesResult{States: states}, nil
	case MethodClusGrpState:
		var a namedArg
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		states, err := e.GrpState([]string{a.Name})
		if err != nil {
			return nil, err
		}
		return states[a.Name], nil

	case MethodDump:
		return e.Dump()
	case MethodLoad:
		return nil, e.Load()
	case MethodClusLoad:
		return nil, e.ClusLoad(ctx, true)
	case MethodLogCommand:
		var a logCommandArg
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return nil, e.LogCommand(ctx, a.RemoteOrigin, a.Command, a.Args, a.Result)
	case MethodClusLogCommand:
		var a logCommandArg
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return nil, e.ClusLogCommand(ctx, a.RemoteOrigin, a.Command, a.Args, a.Result)
	case MethodSetLogLevel:
		var a logLevelArg
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return nil, e.SetLogLevel(a.Level)

	case MethodAlertAddRecipient:
		var a nodeArg
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		e.AddAlertRecipient(a.Host)
		return nil, nil
	case MethodAlertRemoveRecipient:
		var a nodeArg
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return nil, e.RemoveAlertRecipient(a.Host)
	case MethodAlertSetLevel:
		var a logLevelArg
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return nil, e.AlertSetLevel(a.Level)
	case MethodAlertLevel:
		return e.AlertLevel(), nil
	case MethodAlertTest:
		var a alertTestArg
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		e.TestAlert(a.ResourceName, a.Message)
		return nil, nil
	case MethodAddAlert:
		var a alertRecordArg
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		t, _ := time.Parse(time.RFC3339Nano, a.Time)
		e.AddAlert(alert.Record{
			Time:         t,
			ClusterName:  a.ClusterName,
			HostName:     a.HostName,
			ResourceName: a.ResourceName,
			GroupName:    a.GroupName,
			Level:        alert.Level(a.Level),
			Message:      a.Message,
		})
		return nil, nil

	default:
		return nil, xerrors.Newf("unknown rpc method %q", method)
	}
}

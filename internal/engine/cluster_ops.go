package engine

import (
	"context"
	"math/rand"
	"sync"

	"github.com/icsd/icsd/internal/attrs"
	"github.com/icsd/icsd/internal/group"
	"github.com/icsd/icsd/internal/xerrors"
)

// onlineStates are the group aggregate states a non-parallel placement
// guard treats as "already hosted somewhere".
var onlineStates = map[group.State]bool{
	group.Online:  true,
	group.Partial: true,
	group.Unknown: true,
}

// ClusResOnline onlines a resource on the named node, applying locally
// if system_name is this node, else delegating via RPC.
func (e *Engine) ClusResOnline(ctx context.Context, resourceName, systemName string) error {
	if systemName == e.NodeName() {
		return e.ResOnline(resourceName)
	}
	peer, ok := e.remote(systemName)
	if !ok {
		return xerrors.Wrapf(xerrors.ErrNotFound, "node %q", systemName)
	}
	return peer.ClusResOnline(ctx, resourceName, systemName)
}

// ClusResOffline mirrors ClusResOnline for offlining.
func (e *Engine) ClusResOffline(ctx context.Context, resourceName, systemName string) error {
	if systemName == e.NodeName() {
		return e.ResOffline(resourceName)
	}
	peer, ok := e.remote(systemName)
	if !ok {
		return xerrors.Wrapf(xerrors.ErrNotFound, "node %q", systemName)
	}
	return peer.ClusResOffline(ctx, resourceName, systemName)
}

// ClusResAdd applies a resource add locally, then (unless this call is
// itself a remote-originated fan-out) to every peer, so configuration
// converges across the cluster.
func (e *Engine) ClusResAdd(ctx context.Context, resourceName, groupName string, remote bool) error {
	if err := e.ResAdd(resourceName, groupName); err != nil {
		return err
	}
	if remote {
		return nil
	}
	e.fanOut(func(peer RemoteNode) error {
		return peer.ClusResAdd(ctx, resourceName, groupName)
	})
	return nil
}

// ClusResDelete mirrors ClusResAdd's fan-out for deletion.
func (e *Engine) ClusResDelete(ctx context.Context, resourceName string, remote bool) error {
	if err := e.ResDelete(resourceName); err != nil {
		return err
	}
	if remote {
		return nil
	}
	e.fanOut(func(peer RemoteNode) error {
		return peer.ClusResDelete(ctx, resourceName)
	})
	return nil
}

// ClusResStateMany collects resource states from this node and every
// peer, keyed "node/resource".
func (e *Engine) ClusResStateMany(ctx context.Context, names []string, remote bool) (map[string]string, error) {
	local, err := e.ResState(names)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(local))
	for k, v := range local {
		out[e.NodeName()+"/"+k] = v
	}
	if remote {
		return out, nil
	}
	for _, peer := range e.remotesSnapshot() {
		states, err := peer.ClusResStateMany(ctx, names)
		if err != nil {
			e.log.Errorw("cluster resource state fan-out failed", "error", err)
			continue
		}
		for k, v := range states {
			out[k] = v
		}
	}
	return out, nil
}

// ClusResLink/ClusResUnlink/ClusResClear/ClusResModify fan out the same
// way as ClusResAdd/ClusResDelete.
func (e *Engine) ClusResLink(ctx context.Context, parentName, resourceName string, remote bool) error {
	if err := e.ResLink(parentName, resourceName); err != nil {
		return err
	}
	if remote {
		return nil
	}
	e.fanOut(func(peer RemoteNode) error { return peer.ClusResLink(ctx, parentName, resourceName) })
	return nil
}

func (e *Engine) ClusResUnlink(ctx context.Context, parentName, resourceName string, remote bool) error {
	if err := e.ResUnlink(parentName, resourceName); err != nil {
		return err
	}
	if remote {
		return nil
	}
	e.fanOut(func(peer RemoteNode) error { return peer.ClusResUnlink(ctx, parentName, resourceName) })
	return nil
}

func (e *Engine) ClusResClear(ctx context.Context, resourceName string, remote bool) error {
	if err := e.ResClear(resourceName); err != nil {
		return err
	}
	if remote {
		return nil
	}
	e.fanOut(func(peer RemoteNode) error { return peer.ClusResClear(ctx, resourceName) })
	return nil
}

func (e *Engine) ClusResModify(ctx context.Context, resourceName, attrName string, value any, remote bool) error {
	if err := e.ResModify(resourceName, attrName, value); err != nil {
		return err
	}
	if remote {
		return nil
	}
	e.fanOut(func(peer RemoteNode) error { return peer.ClusResModify(ctx, resourceName, attrName, value) })
	return nil
}

// ClusGrpAdd/ClusGrpDelete/ClusGrpEnable/ClusGrpDisable/ClusGrpModify
// fan out a group mutation the same way the resource operations do.
func (e *Engine) ClusGrpAdd(ctx context.Context, groupName string, remote bool) error {
	if err := e.GrpAdd(groupName); err != nil {
		return err
	}
	if remote {
		return nil
	}
	e.fanOut(func(peer RemoteNode) error { return peer.ClusGrpAdd(ctx, groupName) })
	return nil
}

func (e *Engine) ClusGrpDelete(ctx context.Context, groupName string, remote bool) error {
	if err := e.GrpDelete(groupName); err != nil {
		return err
	}
	if remote {
		return nil
	}
	e.fanOut(func(peer RemoteNode) error { return peer.ClusGrpDelete(ctx, groupName) })
	return nil
}

func (e *Engine) ClusGrpEnable(ctx context.Context, groupName string, remote bool) error {
	if err := e.GrpEnable(groupName); err != nil {
		return err
	}
	if remote {
		return nil
	}
	e.fanOut(func(peer RemoteNode) error { return peer.ClusGrpEnable(ctx, groupName) })
	return nil
}

func (e *Engine) ClusGrpDisable(ctx context.Context, groupName string, remote bool) error {
	if err := e.GrpDisable(groupName); err != nil {
		return err
	}
	if remote {
		return nil
	}
	e.fanOut(func(peer RemoteNode) error { return peer.ClusGrpDisable(ctx, groupName) })
	return nil
}

func (e *Engine) ClusGrpModify(ctx context.Context, groupName, attrName string, value any, remote bool) error {
	if err := e.GrpModify(groupName, attrName, value); err != nil {
		return err
	}
	if remote {
		return nil
	}
	e.fanOut(func(peer RemoteNode) error { return peer.ClusGrpModify(ctx, groupName, attrName, value) })
	return nil
}

// ClusGrpStateMany mirrors ClusResStateMany for groups.
func (e *Engine) ClusGrpStateMany(ctx context.Context, names []string, remote bool) (map[string]string, error) {
	local, err := e.GrpState(names)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(local))
	for k, v := range local {
		out[e.NodeName()+"/"+k] = v
	}
	if remote {
		return out, nil
	}
	for _, peer := range e.remotesSnapshot() {
		states, err := peer.ClusGrpStateMany(ctx, names)
		if err != nil {
			e.log.Errorw("cluster group state fan-out failed", "error", err)
			continue
		}
		for k, v := range states {
			out[k] = v
		}
	}
	return out, nil
}

// ClusGrpOffline offlines a group: on every node if node is empty, else
// only the named node, local or delegated.
func (e *Engine) ClusGrpOffline(ctx context.Context, groupName, node string) error {
	if node != "" {
		if node == e.NodeName() {
			return e.GrpOffline(groupName)
		}
		peer, ok := e.remote(node)
		if !ok {
			return xerrors.Wrapf(xerrors.ErrNotFound, "node %q", node)
		}
		return peer.ClusGrpOffline(ctx, groupName, node)
	}

	if err := e.GrpOffline(groupName); err != nil {
		return err
	}
	for _, peer := range e.remotesSnapshot() {
		if err := peer.ClusGrpOffline(ctx, groupName, ""); err != nil {
			e.log.Errorw("cluster group offline fan-out failed", "error", err)
		}
	}
	return nil
}

// ClusGrpOnline implements the group placement algorithm:
//
//  1. An explicit node is rejected if outside the group's SystemList.
//  2. Otherwise the least-loaded eligible node is chosen, ties broken
//     uniformly at random.
//  3. A non-parallel group already hosted (ONLINE/PARTIAL/UNKNOWN) on
//     another node refuses the online.
//  4. The winning node runs grp_online locally, or the call is
//     delegated via RPC.
func (e *Engine) ClusGrpOnline(ctx context.Context, groupName, node string) error {
	g, err := e.mustGroup(groupName)
	if err != nil {
		return err
	}
	systemList := g.Bag.GetList(attrs.SystemList)

	target := node
	if target != "" {
		if !contains(systemList, target) {
			return xerrors.Wrapf(xerrors.ErrNotEligibleNode, "node %q not in group %q's SystemList", target, groupName)
		}
	} else {
		target, err = e.pickPlacement(ctx, systemList)
		if err != nil {
			return err
		}
	}

	if !g.Bag.GetBool(attrs.Parallel) {
		if refused, reason := e.nonParallelGuard(ctx, groupName, target, systemList); refused {
			e.log.Warnw("group online refused by non-parallel placement guard", "group", groupName, "node", target, "reason", reason)
			return xerrors.Newf("group %q is not parallel and already hosted elsewhere: %s", groupName, reason)
		}
	}

	if target == e.NodeName() {
		return e.GrpOnline(groupName)
	}
	peer, ok := e.remote(target)
	if !ok {
		return xerrors.Wrapf(xerrors.ErrNotFound, "node %q", target)
	}
	return peer.ClusGrpOnline(ctx, groupName, target)
}

// nonParallelGuard queries every other eligible node's state for the
// group and refuses if any reports an already-hosted state.
func (e *Engine) nonParallelGuard(ctx context.Context, groupName, target string, systemList []string) (refused bool, reason string) {
	for _, node := range systemList {
		if node == target {
			continue
		}
		state, err := e.queryGroupState(ctx, node, groupName)
		if err != nil {
			e.log.Warnw("unable to query peer group state for placement guard", "node", node, "error", err)
			continue
		}
		if onlineStates[parseGroupState(state)] {
			return true, node + " reports " + state
		}
	}
	return false, ""
}

func (e *Engine) queryGroupState(ctx context.Context, node, groupName string) (string, error) {
	if node == e.NodeName() {
		g, err := e.mustGroup(groupName)
		if err != nil {
			return "", err
		}
		return g.State(e.groupLookup).String(), nil
	}
	peer, ok := e.remote(node)
	if !ok {
		return "", xerrors.Wrapf(xerrors.ErrNotFound, "node %q", node)
	}
	return peer.ClusGrpState(ctx, groupName)
}

func parseGroupState(s string) group.State {
	switch s {
	case "ONLINE":
		return group.Online
	case "PARTIAL":
		return group.Partial
	case "OFFLINE":
		return group.Offline
	case "FAULTED":
		return group.Faulted
	default:
		return group.Unknown
	}
}

// pickPlacement computes each eligible node's current load (the sum of
// the Load attribute of the groups ONLINE/PARTIAL/UNKNOWN on that node)
// and returns the minimum, ties broken uniformly at random. Member
// resources carry no Load of their own and add nothing to it.
func (e *Engine) pickPlacement(ctx context.Context, systemList []string) (string, error) {
	if len(systemList) == 0 {
		return "", xerrors.New("group has an empty SystemList, no eligible node for placement")
	}

	loads := make(map[string]int, len(systemList))
	for _, node := range systemList {
		load, err := e.nodeLoad(ctx, node)
		if err != nil {
			e.log.Warnw("unable to compute node load for placement", "node", node, "error", err)
			continue
		}
		loads[node] = load
	}
	if len(loads) == 0 {
		return "", xerrors.New("no reachable eligible node for placement")
	}

	min := -1
	var candidates []string
	for _, node := range systemList {
		load, ok := loads[node]
		if !ok {
			continue
		}
		switch {
		case min == -1 || load < min:
			min = load
			candidates = []string{node}
		case load == min:
			candidates = append(candidates, node)
		}
	}

	if len(candidates) == 1 {
		return candidates[0], nil
	}
	return candidates[rand.Intn(len(candidates))], nil
}

// nodeLoad sums the group-level Load attribute of every group currently
// ONLINE/PARTIAL/UNKNOWN on node.
func (e *Engine) nodeLoad(ctx context.Context, node string) (int, error) {
	if node == e.NodeName() {
		return e.localLoad(), nil
	}
	peer, ok := e.remote(node)
	if !ok {
		return 0, xerrors.Wrapf(xerrors.ErrNotFound, "node %q", node)
	}
	// Remote load is derived from the group states the peer reports;
	// a peer with no groups hosted contributes zero load.
	states, err := peer.ClusGrpStateMany(ctx, nil)
	if err != nil {
		return 0, err
	}
	var total int
	for key, state := range states {
		if onlineStates[parseGroupState(state)] {
			groupName := key
			if idx := indexOfSlash(key); idx >= 0 {
				groupName = key[idx+1:]
			}
			if g, ok := e.group(groupName); ok {
				total += g.Bag.GetInt(attrs.Load)
			}
		}
	}
	return total, nil
}

func indexOfSlash(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			return i
		}
	}
	return -1
}

// localLoad sums Load across every group currently in an online-ish
// aggregate state on this node.
func (e *Engine) localLoad() int {
	e.mu.RLock()
	names := make([]string, 0, len(e.groups))
	for name := range e.groups {
		names = append(names, name)
	}
	e.mu.RUnlock()

	var total int
	for _, name := range names {
		g, ok := e.group(name)
		if !ok {
			continue
		}
		if onlineStates[g.State(e.groupLookup)] {
			total += g.Bag.GetInt(attrs.Load)
		}
	}
	return total
}

func contains(list []string, name string) bool {
	for _, v := range list {
		if v == name {
			return true
		}
	}
	return false
}

// ClusLoad reloads this node's own main.cf, then (unless this call is
// itself a remote-originated fan-out) asks every peer to reload its own
// main.cf the same way.
func (e *Engine) ClusLoad(ctx context.Context, remote bool) error {
	if err := e.Load(); err != nil {
		return err
	}
	if remote {
		return nil
	}
	e.fanOut(func(peer RemoteNode) error { return peer.ClusLoad(ctx) })
	return nil
}

// fanOut invokes fn against every registered remote peer concurrently,
// logging (never propagating) individual failures — fan-out does not
// roll back partially-applied peers.
func (e *Engine) fanOut(fn func(RemoteNode) error) {
	peers := e.remotesSnapshot()
	var wg sync.WaitGroup
	for _, peer := range peers {
		wg.Add(1)
		go func(p RemoteNode) {
			defer wg.Done()
			if err := fn(p); err != nil {
				e.log.Errorw("cluster fan-out call failed", "error", err)
			}
		}(peer)
	}
	wg.Wait()
}

func (e *Engine) remotesSnapshot() []RemoteNode {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]RemoteNode, 0, len(e.remotes))
	for _, r := range e.remotes {
		out = append(out, r)
	}
	return out
}

package engine

import (
	"sort"

	"github.com/icsd/icsd/internal/attrs"
	"github.com/icsd/icsd/internal/xerrors"
)

// NodeAttr returns the node's own system attribute names.
func (e *Engine) NodeAttr() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(attrs.SystemSchema))
	for _, d := range attrs.SystemSchema {
		out = append(out, d.Name)
	}
	sort.Strings(out)
	return out
}

// NodeValue returns one system attribute's value.
func (e *Engine) NodeValue(attrName string) (any, error) {
	v, ok := e.system.Get(attrName)
	if !ok {
		return nil, xerrors.Wrapf(xerrors.ErrNotFound, "attribute %q", attrName)
	}
	return v, nil
}

// NodeModify sets a system attribute. NodeName is immutable at runtime;
// every other attribute is set normally.
func (e *Engine) NodeModify(attrName string, value any) error {
	if attrName == attrs.NodeName {
		return xerrors.Wrapf(xerrors.ErrImmutable, "attribute %q", attrName)
	}
	return e.system.Set(attrName, value)
}

// NodeName returns the node's own name.
func (e *Engine) NodeName() string { return e.system.GetString(attrs.NodeName) }

// ClusterName returns the cluster this node belongs to.
func (e *Engine) ClusterName() string { return e.system.GetString(attrs.ClusterName) }

// NodeList returns every node name known to the cluster, including this one.
func (e *Engine) NodeList() []string { return e.system.GetList(attrs.NodeList) }

// AddNode registers a remote peer. host must not be the local node
// name; the RPC layer supplies the already-dialed proxy since Engine
// itself has no transport dependency.
func (e *Engine) AddNode(host string, proxy RemoteNode) error {
	if host == e.NodeName() {
		return xerrors.Newf("cannot add self (%s) as a remote node", host)
	}
	e.mu.Lock()
	e.remotes[host] = proxy
	e.mu.Unlock()
	return e.appendNodeList(host)
}

// appendNodeList adds host to NodeList if not already present. NodeList
// lives on the attrs.Bag, which has its own lock, so no engine-level
// locking is needed beyond avoiding a duplicate entry.
func (e *Engine) appendNodeList(host string) error {
	for _, n := range e.system.GetList(attrs.NodeList) {
		if n == host {
			return nil
		}
	}
	return e.system.ListAppend(attrs.NodeList, host)
}

// DeleteNode removes a remote peer.
func (e *Engine) DeleteNode(host string) error {
	e.mu.Lock()
	delete(e.remotes, host)
	e.mu.Unlock()
	return e.system.ListRemove(attrs.NodeList, host)
}

// remote looks up a registered peer proxy by node name.
func (e *Engine) remote(host string) (RemoteNode, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.remotes[host]
	return r, ok
}

// remoteNames returns every registered peer's node name.
func (e *Engine) remoteNames() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.remotes))
	for name := range e.remotes {
		out = append(out, name)
	}
	return out
}

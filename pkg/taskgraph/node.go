// Package taskgraph implements the minimal DAG executor the ISOD engine
// schedules its tasks on: every node's action runs exactly once, only
// after all of its upstream nodes have completed successfully, and
// independent nodes run concurrently.
package taskgraph

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Action is the unit of work a Node performs once all of its upstream
// nodes have completed. A nil Action marks a fan-in aggregate node used
// purely to join several upstream nodes under one root.
type Action func(ctx context.Context) error

// Node is one vertex of a TaskGraph: an action plus an immutable,
// ordered list of upstream nodes that must finish before it runs.
//
// Callers are responsible for only constructing acyclic graphs; a cycle
// causes Run to deadlock rather than terminate. ISOD's graph-construction
// phase (pkg/isod) rejects cycles before any Node is built, per the
// engine's own contract, so Node itself does not duplicate that check.
type Node struct {
	label     string
	action    Action
	upstreams []*Node

	once   sync.Once
	doneCh chan struct{}
	err    error
}

// NewNode creates a work node: it runs action after all of upstreams have
// completed successfully. label is used only for diagnostics (error
// messages, logging) and may be empty.
func NewNode(label string, action Action, upstreams ...*Node) *Node {
	return &Node{
		label:     label,
		action:    action,
		upstreams: append([]*Node(nil), upstreams...),
	}
}

// NewAggregateNode creates a synthetic fan-in node with no action of its
// own: running it simply waits for every upstream to complete. This is
// the synthetic root ISOD builds over all user-requested tasks.
func NewAggregateNode(upstreams ...*Node) *Node {
	return NewNode("", nil, upstreams...)
}

// Label returns the node's diagnostic label.
func (n *Node) Label() string {
	return n.label
}

// RunError is the aggregate error Run surfaces when any node in the
// reachable subgraph fails. It always carries the first error observed,
// reachable both directly and via Unwrap.
type RunError struct {
	Label string
	Err   error
}

func (e *RunError) Error() string {
	if e.Label != "" {
		return fmt.Sprintf("task graph node %q failed: %v", e.Label, e.Err)
	}
	return fmt.Sprintf("task graph execution failed: %v", e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// Run executes the entire subgraph reachable from n: every distinct
// node's action runs exactly once even if reached via multiple paths
// (shared-task memoisation via sync.Once), a node starts only after all
// of its upstreams have completed successfully, and independent nodes
// run concurrently, each node waiting on its upstreams through its own
// errgroup.
//
// On failure, Run returns a *RunError wrapping the first error observed
// anywhere in the subgraph; it does not attempt to cancel sibling work
// that is already running (best-effort completion, per the engine's
// cancellation policy). ctx is passed unchanged to every action; the
// scheduler never cancels it itself.
func (n *Node) Run(ctx context.Context) error {
	if err := n.execute(ctx); err != nil {
		return &RunError{Label: n.label, Err: err}
	}
	return nil
}

// execute runs n's action (and all of its transitive upstreams) exactly
// once, memoised via n.once, and returns n's result to every caller that
// waits on it.
func (n *Node) execute(ctx context.Context) error {
	n.once.Do(func() {
		n.doneCh = make(chan struct{})
		go n.run(ctx)
	})
	<-n.doneCh
	return n.err
}

func (n *Node) run(ctx context.Context) {
	defer close(n.doneCh)

	var eg errgroup.Group
	for _, up := range n.upstreams {
		up := up
		eg.Go(func() error {
			return up.execute(ctx)
		})
	}
	if err := eg.Wait(); err != nil {
		n.err = err
		return
	}

	if n.action == nil {
		return
	}
	n.err = n.action(ctx)
}

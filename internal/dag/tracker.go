// Package dag tracks task-node completion over a workflow DAG and derives
// the set of nodes that are eligible for dispatch.
package dag

import (
	"fmt"

	"github.com/me/vmbroker/pkg/model"
)

type entry struct {
	node model.TaskNode
	done bool
}

// Tracker holds task nodes and their done flags. It answers eligibility
// queries and records completion; it never recomputes eligibility for other
// nodes on its own.
//
// Tracker is not safe for concurrent use. The broker serializes access.
type Tracker struct {
	entries map[string]*entry
	order   []string
}

// NewTracker builds a Tracker from nodes in source order. Node ids must be
// unique and every parent must name a node in the same slice.
func NewTracker(nodes []model.TaskNode) (*Tracker, error) {
	t := &Tracker{
		entries: make(map[string]*entry, len(nodes)),
		order:   make([]string, 0, len(nodes)),
	}
	for _, n := range nodes {
		if _, dup := t.entries[n.ID]; dup {
			return nil, fmt.Errorf("duplicate task node %q", n.ID)
		}
		t.entries[n.ID] = &entry{node: n}
		t.order = append(t.order, n.ID)
	}
	for _, n := range nodes {
		for _, p := range n.Parents {
			if _, ok := t.entries[p]; !ok {
				return nil, fmt.Errorf("task node %q: parent: %w", n.ID, &model.UnknownNodeError{ID: p})
			}
		}
	}
	return t, nil
}

// IsEligible reports whether a node is not yet done and every one of its
// predecessors is done.
func (t *Tracker) IsEligible(id string) (bool, error) {
	e, ok := t.entries[id]
	if !ok {
		return false, &model.UnknownNodeError{ID: id}
	}
	if e.done {
		return false, nil
	}
	for _, p := range e.node.Parents {
		if !t.entries[p].done {
			return false, nil
		}
	}
	return true, nil
}

// MarkDone sets the node's done flag. Marking an already done node is a no-op.
func (t *Tracker) MarkDone(id string) error {
	e, ok := t.entries[id]
	if !ok {
		return &model.UnknownNodeError{ID: id}
	}
	e.done = true
	return nil
}

// IsDone reports the node's done flag.
func (t *Tracker) IsDone(id string) (bool, error) {
	e, ok := t.entries[id]
	if !ok {
		return false, &model.UnknownNodeError{ID: id}
	}
	return e.done, nil
}

// Node returns the task node with the given id.
func (t *Tracker) Node(id string) (model.TaskNode, error) {
	e, ok := t.entries[id]
	if !ok {
		return model.TaskNode{}, &model.UnknownNodeError{ID: id}
	}
	return e.node, nil
}

// IDs returns node ids in source order.
func (t *Tracker) IDs() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Len returns the number of tracked nodes.
func (t *Tracker) Len() int {
	return len(t.order)
}

// Package autograd walks a computation graph in reverse topological order and
// accumulates gradients into the leaf tensors that asked for them.
package autograd

import (
	"fmt"
	"sort"

	"go-grad/tensor"
)

// GraphLifecycleError reports a backward pass through a graph that has
// already been released. A graph is released by its first non-retained
// backward; use BackwardRetain for repeated passes over the same graph.
type GraphLifecycleError struct {
	Op tensor.Op
}

func (e *GraphLifecycleError) Error() string {
	return fmt.Sprintf("backward through released graph (at %s node); use BackwardRetain to keep a graph alive", e.Op)
}

// Backward runs one reverse pass from root and then releases the graph, so a
// second call through the same nodes fails fast instead of silently reusing
// stale state. Gradients accumulate into leaf .Grad buffers and are never
// reset here; zeroing between steps is the optimizer's job.
func Backward(root *tensor.Tensor) error {
	return backward(root, false)
}

// BackwardRetain is Backward without the release, for callers that want a
// second pass over the same graph. Two passes without an intervening zero-grad
// sum their gradients; that is the contract, not a bug.
func BackwardRetain(root *tensor.Tensor) error {
	return backward(root, true)
}

func backward(root *tensor.Tensor, retain bool) error {
	if !root.RequiresGrad {
		return nil
	}
	if root.Released() {
		return &GraphLifecycleError{Op: root.Op()}
	}

	// post-order DFS, finish order reversed below. inputs are recorded in
	// creation order, so the traversal is stable across runs.
	visited := make(map[*tensor.Tensor]bool)
	var topo []*tensor.Tensor

	var dfs func(t *tensor.Tensor) error
	dfs = func(t *tensor.Tensor) error {
		if t == nil || visited[t] {
			return nil
		}
		visited[t] = true
		if !t.IsLeaf() && t.Released() {
			return &GraphLifecycleError{Op: t.Op()}
		}
		inputs := append([]*tensor.Tensor{}, t.Inputs()...)
		sort.SliceStable(inputs, func(i, j int) bool { return inputs[i].Seq() < inputs[j].Seq() })
		for _, in := range inputs {
			if err := dfs(in); err != nil {
				return err
			}
		}
		topo = append(topo, t)
		return nil
	}
	if err := dfs(root); err != nil {
		return err
	}

	// seed: d(root)/d(root) = 1 for every element. a scalar loss seeds 1.0.
	grads := make(map[*tensor.Tensor][]float64, len(topo))
	seed := make([]float64, tensor.Numel(root))
	for i := range seed {
		seed[i] = 1
	}
	grads[root] = seed

	// every node is visited once, strictly after all of its consumers, so the
	// upstream gradient it sees is fully accumulated (multivariate chain rule:
	// a tensor consumed twice receives the sum of both contributions).
	for i := len(topo) - 1; i >= 0; i-- {
		node := topo[i]
		upstream := grads[node]
		if upstream == nil {
			// not on any gradient path to root
			continue
		}
		if node.IsLeaf() {
			if node.RequiresGrad {
				if err := node.AccumulateGrad(upstream); err != nil {
					return err
				}
			}
			continue
		}

		inputGrads, err := node.BackwardRule(upstream)
		if err != nil {
			return err
		}
		for j, in := range node.Inputs() {
			if !in.RequiresGrad || inputGrads[j] == nil {
				continue
			}
			buf := grads[in]
			if buf == nil {
				buf = make([]float64, tensor.Numel(in))
				grads[in] = buf
			}
			contrib := inputGrads[j]
			for k := range buf {
				buf[k] += contrib[k]
			}
		}
	}

	if !retain {
		for _, node := range topo {
			node.Release()
		}
	}
	return nil
}

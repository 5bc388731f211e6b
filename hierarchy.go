package models

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"ocm.software/open-component-model/bindings/go/dag"
)

// edgeOrderAttribute records the declaration position of a super type so
// chains preserve the order in which super types were declared.
const edgeOrderAttribute = "order"

// TypeHierarchy holds the "more specific than" relation between resource
// types and publishes the ancestor chain of every declared type. Chains are
// recomputed on Declare and read without locking.
type TypeHierarchy struct {
	mu            sync.Mutex
	graph         *dag.DirectedAcyclicGraph[string]
	chains        atomic.Pointer[map[string][]string]
	implicitRoots []string
	syntheticRoot string
}

// HierarchyOption configures a TypeHierarchy.
type HierarchyOption func(*TypeHierarchy)

// WithImplicitRoots appends roots to the end of every chain that does not
// already contain them, mirroring types every resource implicitly extends.
func WithImplicitRoots(roots ...string) HierarchyOption {
	return func(h *TypeHierarchy) {
		for _, root := range roots {
			root = strings.TrimSpace(root)
			if root != "" && !slices.Contains(h.implicitRoots, root) {
				h.implicitRoots = append(h.implicitRoots, root)
			}
		}
	}
}

// WithSyntheticRoot overrides the type used for resources without a type.
// Resolvers built over a registry walking this hierarchy exclude the custom
// root instead of SyntheticRootType, unless WithGenericBaseTypes is given.
func WithSyntheticRoot(root string) HierarchyOption {
	return func(h *TypeHierarchy) {
		if root = strings.TrimSpace(root); root != "" {
			h.syntheticRoot = root
		}
	}
}

// NewTypeHierarchy constructs an empty hierarchy.
func NewTypeHierarchy(opts ...HierarchyOption) *TypeHierarchy {
	h := &TypeHierarchy{
		graph:         dag.NewDirectedAcyclicGraph[string](),
		syntheticRoot: SyntheticRootType,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	empty := map[string][]string{}
	h.chains.Store(&empty)
	return h
}

// Declare records superTypes as the direct, ordered super types of
// resourceType. Declaring a relation that would form a cycle fails and leaves
// the hierarchy unchanged.
func (h *TypeHierarchy) Declare(resourceType string, superTypes ...string) error {
	resourceType = strings.TrimSpace(resourceType)
	if resourceType == "" {
		return ErrResourceTypeRequired
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	candidate := h.graph.Clone()
	if err := ensureVertex(candidate, resourceType); err != nil {
		return err
	}
	next, _ := candidate.GetOutDegree(resourceType)
	for i, superType := range superTypes {
		superType = strings.TrimSpace(superType)
		if superType == "" {
			return fmt.Errorf("models: super type %d of %q: %w", i, resourceType, ErrResourceTypeRequired)
		}
		// Redeclared relations keep their original position in the chain.
		if hasEdge(candidate, resourceType, superType) {
			continue
		}
		if err := ensureVertex(candidate, superType); err != nil {
			return err
		}
		if cycle := pathBetween(candidate, superType, resourceType); cycle != nil {
			return fmt.Errorf("models: declare %q extends %q: %w", resourceType, superType, &dag.CycleError{
				Cycle: append([]string{resourceType}, cycle...),
			})
		}
		if err := candidate.AddEdge(resourceType, superType, map[string]any{edgeOrderAttribute: next}); err != nil {
			return fmt.Errorf("models: declare %q extends %q: %w", resourceType, superType, err)
		}
		next++
	}

	h.graph = candidate
	h.publish()
	return nil
}

// Ancestors returns the ordered chain of resourceType, most specific first.
// The chain always starts with resourceType itself; an empty type resolves to
// the synthetic root.
func (h *TypeHierarchy) Ancestors(resourceType string) []string {
	resourceType = strings.TrimSpace(resourceType)
	if resourceType == "" {
		resourceType = h.syntheticRoot
	}
	if chain, ok := (*h.chains.Load())[resourceType]; ok {
		return slices.Clone(chain)
	}
	return h.withImplicitRoots([]string{resourceType})
}

// SyntheticRoot returns the type assigned to resources without a type.
func (h *TypeHierarchy) SyntheticRoot() string {
	return h.syntheticRoot
}

// Types returns every type known to the hierarchy, sorted.
func (h *TypeHierarchy) Types() []string {
	chains := *h.chains.Load()
	out := make([]string, 0, len(chains))
	for resourceType := range chains {
		out = append(out, resourceType)
	}
	slices.Sort(out)
	return out
}

// publish recomputes every chain. Callers hold h.mu.
func (h *TypeHierarchy) publish() {
	vertices := h.graph.GetVertices()
	chains := make(map[string][]string, len(vertices))
	for _, id := range vertices {
		chains[id] = h.withImplicitRoots(h.walk(id))
	}
	h.chains.Store(&chains)
}

// walk visits the super types of start breadth first, keeping declaration
// order among siblings and the first occurrence of every type.
func (h *TypeHierarchy) walk(start string) []string {
	chain := []string{start}
	seen := map[string]struct{}{start: {}}
	for i := 0; i < len(chain); i++ {
		for _, next := range h.superTypes(chain[i]) {
			if _, ok := seen[next]; ok {
				continue
			}
			seen[next] = struct{}{}
			chain = append(chain, next)
		}
	}
	return chain
}

func (h *TypeHierarchy) superTypes(id string) []string {
	vertex, ok := h.graph.GetVertex(id)
	if !ok {
		return nil
	}
	type edge struct {
		to    string
		order int
	}
	var edges []edge
	vertex.Edges.Range(func(key, value any) bool {
		e := edge{to: key.(string)}
		if attributes, ok := value.(*sync.Map); ok {
			if order, ok := attributes.Load(edgeOrderAttribute); ok {
				e.order, _ = order.(int)
			}
		}
		edges = append(edges, e)
		return true
	})
	slices.SortFunc(edges, func(a, b edge) int {
		if a.order != b.order {
			return a.order - b.order
		}
		return strings.Compare(a.to, b.to)
	})
	out := make([]string, len(edges))
	for i, e := range edges {
		out[i] = e.to
	}
	return out
}

func (h *TypeHierarchy) withImplicitRoots(chain []string) []string {
	for _, root := range h.implicitRoots {
		if !slices.Contains(chain, root) {
			chain = append(chain, root)
		}
	}
	return chain
}

// pathBetween returns the super type path leading from "from" to "to", or nil
// when "to" is unreachable.
func pathBetween(graph *dag.DirectedAcyclicGraph[string], from, to string) []string {
	parents := map[string]string{from: ""}
	queue := []string{from}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current == to {
			var path []string
			for step := to; step != ""; step = parents[step] {
				path = append([]string{step}, path...)
			}
			return path
		}
		vertex, ok := graph.GetVertex(current)
		if !ok {
			continue
		}
		vertex.Edges.Range(func(key, _ any) bool {
			next := key.(string)
			if _, seen := parents[next]; !seen {
				parents[next] = current
				queue = append(queue, next)
			}
			return true
		})
	}
	return nil
}

func hasEdge(graph *dag.DirectedAcyclicGraph[string], from, to string) bool {
	vertex, ok := graph.GetVertex(from)
	if !ok {
		return false
	}
	_, ok = vertex.Edges.Load(to)
	return ok
}

func ensureVertex(graph *dag.DirectedAcyclicGraph[string], id string) error {
	if graph.Contains(id) {
		return nil
	}
	if err := graph.AddVertex(id); err != nil {
		return fmt.Errorf("models: add resource type %q: %w", id, err)
	}
	return nil
}

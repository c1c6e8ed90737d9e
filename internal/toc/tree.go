package toc

// Node is an entry of the table of contents. Children always have a deeper
// level than their parent.
type Node struct {
	ID       string  `json:"id"`
	Text     string  `json:"text"`
	Level    int     `json:"level"`
	Children []*Node `json:"children"`
}

// BuildTree nests a flat heading list under the nearest preceding heading of
// a shallower level. Headings with no such ancestor become roots.
func BuildTree(headings []Heading) []*Node {
	roots := []*Node{}
	var stack []*Node

	for _, h := range headings {
		node := &Node{ID: h.ID, Text: h.Text, Level: h.Level, Children: []*Node{}}

		for len(stack) > 0 && stack[len(stack)-1].Level >= node.Level {
			stack = stack[:len(stack)-1]
		}
		if len(stack) == 0 {
			roots = append(roots, node)
		} else {
			parent := stack[len(stack)-1]
			parent.Children = append(parent.Children, node)
		}
		stack = append(stack, node)
	}
	return roots
}

// Extract returns the table of contents of markdown without rendering it.
func Extract(markdown string) []*Node {
	return BuildTree(ExtractHeadings(markdown))
}

// ExtractUnique is Extract with duplicate ids suffixed the way the renderer
// does when unique ids are enabled.
func ExtractUnique(markdown string) []*Node {
	return BuildTree(ExtractHeadingsUnique(markdown))
}

// Walk visits every node in pre-order. depth is 0 for roots. Returning false
// from fn skips the node's children.
func Walk(nodes []*Node, fn func(n *Node, depth int) bool) {
	walk(nodes, 0, fn)
}

func walk(nodes []*Node, depth int, fn func(*Node, int) bool) {
	for _, n := range nodes {
		if fn(n, depth) {
			walk(n.Children, depth+1, fn)
		}
	}
}

// Flatten lists the forest in document order.
func Flatten(nodes []*Node) []*Node {
	var out []*Node
	Walk(nodes, func(n *Node, _ int) bool {
		out = append(out, n)
		return true
	})
	return out
}

// Count returns the number of nodes in the forest.
func Count(nodes []*Node) int {
	total := 0
	for _, n := range nodes {
		total += 1 + Count(n.Children)
	}
	return total
}

// Headings flattens the forest back into heading records.
func Headings(nodes []*Node) []Heading {
	out := []Heading{}
	for _, n := range Flatten(nodes) {
		out = append(out, Heading{ID: n.ID, Text: n.Text, Level: n.Level})
	}
	return out
}

// Find returns the first node with the given id.
func Find(nodes []*Node, id string) *Node {
	var found *Node
	Walk(nodes, func(n *Node, _ int) bool {
		if found != nil {
			return false
		}
		if n.ID == id {
			found = n
			return false
		}
		return true
	})
	return found
}

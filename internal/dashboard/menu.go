package dashboard

// NodeKind tags a menu node.
type NodeKind int

// Menu node kinds.
const (
	NodeLabel NodeKind = iota
	NodeLink
	NodeExternal
	NodeSubmenu
)

// MenuNode is a resolved menu entry. Submenus keep the link of their own
// item, if any, in Page or Href.
type MenuNode struct {
	Kind     NodeKind
	Title    string
	Page     string
	Href     string
	Children []MenuNode
}

// Path returns the client route of a page link.
func (n MenuNode) Path() string {
	if n.Page == "" {
		return ""
	}
	return "/" + n.Page
}

// BuildMenu resolves menu items into typed nodes.
func BuildMenu(items []MenuItem) []MenuNode {
	if len(items) == 0 {
		return nil
	}
	nodes := make([]MenuNode, 0, len(items))
	for _, item := range items {
		node := MenuNode{Title: item.Title, Page: item.Page, Href: item.Href}
		switch {
		case len(item.Children) > 0:
			node.Kind = NodeSubmenu
			node.Children = BuildMenu(item.Children)
		case item.Page != "":
			node.Kind = NodeLink
		case item.Href != "":
			node.Kind = NodeExternal
		default:
			node.Kind = NodeLabel
		}
		nodes = append(nodes, node)
	}
	return nodes
}

// WalkMenu visits nodes depth-first; top-level nodes have depth 0.
func WalkMenu(nodes []MenuNode, fn func(depth int, node MenuNode)) {
	walkMenu(nodes, 0, fn)
}

func walkMenu(nodes []MenuNode, depth int, fn func(int, MenuNode)) {
	for _, node := range nodes {
		fn(depth, node)
		if node.Kind == NodeSubmenu {
			walkMenu(node.Children, depth+1, fn)
		}
	}
}

package tree

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

type Mode int

const (
	NORMAL Mode = iota
	LENGTH
)

type Tree struct {
	*Node
	nNodes int
	nodes  []*Node
}

func (tree *Tree) NNodes() int {
	if tree.nNodes == 0 {
		tree.nNodes = tree.NSubNodes()
	}
	return tree.nNodes
}

// Nodes returns all the nodes indexed by their Id.
func (tree *Tree) Nodes() []*Node {
	if tree.nodes == nil {
		tree.nodes = make([]*Node, tree.NNodes())
		for node := range tree.Walker(nil) {
			tree.nodes[node.Id] = node
		}
	}
	return tree.nodes
}

func (tree *Tree) Terminals() <-chan *Node {
	return tree.Walker(func(n *Node) bool {
		return n.IsTerminal()
	})
}

func (tree *Tree) NLeaves() (i int) {
	for range tree.Terminals() {
		i++
	}
	return
}

func (tree *Tree) Walker(filter func(*Node) bool) <-chan *Node {
	ch := make(chan *Node, tree.NNodes())
	tree.Walk(ch, filter)
	close(ch)
	return ch
}

// Length returns the sum of all the defined branch lengths.
func (tree *Tree) Length() (l float64) {
	for node := range tree.Walker(nil) {
		if node.HasLength {
			l += node.BranchLength
		}
	}
	return
}

// Depth returns the distance from the root to the most distant
// tip. The root branch is not included.
func (tree *Tree) Depth() float64 {
	return tree.Node.distanceFromTip()
}

// Copy creates independent copy of the tree.
func (tree *Tree) Copy() (newTree *Tree) {
	nNodes := tree.NNodes()
	newTree = &Tree{
		nNodes: nNodes,
		nodes:  make([]*Node, nNodes),
	}

	// Create node list.
	for i, node := range tree.Nodes() {
		if i != node.Id {
			panic("node id mismatch")
		}
		newTree.nodes[i] = node.Copy()
	}

	// Rewire node/parent connections.
	for i, node := range tree.Nodes() {
		newNode := newTree.nodes[i]
		for _, child := range node.childNodes {
			newNode.AddChild(newTree.nodes[child.Id])
		}
	}

	// Set root node.
	newTree.Node = newTree.nodes[0]

	return
}

type Node struct {
	Name         string
	BranchLength float64
	// HasLength is false if no length was given for the branch
	// (usually the root).
	HasLength  bool
	Parent     *Node
	childNodes []*Node
	Id         int
	LeafId     int
}

func NewNode(parent *Node, nodeId int) (node *Node) {
	node = &Node{Parent: parent, Id: nodeId}
	return
}

// Copy creates copy of node with empty parent and children.
func (node *Node) Copy() *Node {
	return &Node{
		Name:         node.Name,
		BranchLength: node.BranchLength,
		HasLength:    node.HasLength,
		childNodes:   make([]*Node, 0, len(node.childNodes)),
		Id:           node.Id,
		LeafId:       node.LeafId,
	}
}

func (node *Node) AddChild(subNode *Node) {
	subNode.Parent = node
	node.childNodes = append(node.childNodes, subNode)
}

// Newick returns the subtree in the newick format. Lengths are
// printed with the smallest number of digits which represents the
// value exactly; undefined lengths are omitted.
func (node *Node) Newick() string {
	var sb strings.Builder
	node.writeNewick(&sb)
	if node.IsRoot() {
		sb.WriteByte(';')
	}
	return sb.String()
}

func (node *Node) writeNewick(sb *strings.Builder) {
	if !node.IsTerminal() {
		sb.WriteByte('(')
		for i, child := range node.childNodes {
			if i > 0 {
				sb.WriteByte(',')
			}
			child.writeNewick(sb)
		}
		sb.WriteByte(')')
	}
	sb.WriteString(node.Name)
	if node.HasLength {
		sb.WriteByte(':')
		sb.WriteString(FormatLength(node.BranchLength))
	}
}

// FormatLength formats branch length without the trailing zeros.
func FormatLength(l float64) string {
	return strconv.FormatFloat(l, 'f', -1, 64)
}

func (node *Node) String() string {
	return node.Newick()
}

func (node *Node) Walk(ch chan *Node, filter func(*Node) bool) {
	if filter == nil || filter(node) {
		ch <- node
	}
	for _, node := range node.childNodes {
		node.Walk(ch, filter)
	}
}

func (node *Node) NSubNodes() (size int) {
	for _, node := range node.childNodes {
		size += node.NSubNodes()
	}
	return size + 1
}

func (node *Node) IsRoot() bool {
	return node.Parent == nil
}

func (node *Node) IsTerminal() bool {
	return len(node.childNodes) == 0
}

func (node *Node) distanceFromTip() (d float64) {
	for _, child := range node.childNodes {
		cd := child.distanceFromTip()
		if child.HasLength {
			cd += child.BranchLength
		}
		if cd > d {
			d = cd
		}
	}
	return
}

func IsSpecial(c rune) bool {
	switch c {
	case '(', ')', ':', ';', ',':
		return true
	}
	return false

}

// NewickSplit is a bufio.SplitFunc returning newick tokens. Comments
// in square brackets are skipped.
func NewickSplit(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := 0
	// Skip leading spaces and comments; and return 1-char tokens.
	for width := 0; start < len(data); start += width {
		var r rune
		r, width = utf8.DecodeRune(data[start:])
		if r == '[' {
			end := strings.IndexByte(string(data[start:]), ']')
			if end < 0 {
				if atEOF {
					return 0, nil, errors.New("unterminated comment")
				}
				return start, nil, nil
			}
			width = end + 1
			continue
		}
		if IsSpecial(r) {
			return start + width, data[start : start+width], nil
		}
		if !unicode.IsSpace(r) {
			break
		}
	}
	if atEOF && len(data) <= start {
		return len(data), nil, nil
	}

	// Scan until space, comment or special character.
	for width, i := 0, start; i < len(data); i += width {
		var r rune
		r, width = utf8.DecodeRune(data[i:])
		if unicode.IsSpace(r) || IsSpecial(r) || r == '[' {
			return i, data[start:i], nil
		}
	}
	// If we're at EOF, we have a final, non-empty, non-terminated word. Return it.
	if atEOF && len(data) > start {
		return len(data), data[start:], nil
	}
	// Request more data.
	return start, nil, nil
}

func ParseNewick(rd io.Reader) (tree *Tree, err error) {
	scanner := bufio.NewScanner(rd)

	scanner.Split(NewickSplit)

	nodeId := 0

	node := NewNode(nil, nodeId)
	tree = &Tree{Node: node}
	nodeId++

	mode := NORMAL
	complete := false

	for scanner.Scan() {
		text := scanner.Text()
		switch text {
		case "(":
			subNode := NewNode(nil, nodeId)
			nodeId++
			node.AddChild(subNode)
			node = subNode

		case ",":
			if node.Parent == nil {
				return nil, errors.New("top level comma mismatch")
			}
			subNode := NewNode(nil, nodeId)
			nodeId++

			node.Parent.AddChild(subNode)
			node = subNode

		case ")":
			if node.Parent == nil {
				return nil, errors.New("brackets mismatch")
			}
			node = node.Parent
		case ":":
			mode = LENGTH
		case ";":
			complete = true
		default:
			switch mode {
			case LENGTH:
				l, err := strconv.ParseFloat(text, 64)
				if err != nil {
					return nil, err
				}
				if l < 0 {
					return nil, fmt.Errorf("negative branch length %v", l)
				}
				node.BranchLength = l
				node.HasLength = true
				mode = NORMAL
			default:
				node.Name = text
			}
		}
		if complete {
			break
		}
	}
	if err = scanner.Err(); err != nil {
		return nil, err
	}
	if node != tree.Node {
		return nil, errors.New("brackets mismatch")
	}

	leafId := 0
	for leaf := range tree.Terminals() {
		leaf.LeafId = leafId
		leafId++
	}

	return
}

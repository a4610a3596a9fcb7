package htmlutil

import (
	"bytes"

	"golang.org/x/net/html"
)

// GetText concatenates every text node under the given node.
func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

// DirectString returns the text of a node only when it is unambiguous:
// the node has exactly one child and that child is either a text node or
// an element which itself satisfies DirectString.
// The second return value is false when there is no such text.
//
//	<td>abc</td>           -> "abc", true
//	<td><b>abc</b></td>    -> "abc", true
//	<td></td>              -> "", false
//	<td>a<br/>b</td>       -> "", false
func DirectString(node *html.Node) (string, bool) {
	for node != nil {
		child := node.FirstChild
		if child == nil || child.NextSibling != nil {
			return "", false
		}
		switch child.Type {
		case html.TextNode, html.CommentNode:
			return child.Data, true
		case html.ElementNode:
			node = child
		default:
			return "", false
		}
	}
	return "", false
}

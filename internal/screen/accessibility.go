// File: internal/screen/accessibility.go
package screen

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// maxTreeNodes caps how deep into a pathological dump the walker goes.
const maxTreeNodes = 4096

// Node is the lightweight accessibility view of one element in the
// UIAutomator XML dump (Appium GET /source).
type Node struct {
	ClassName   string
	ResourceID  string
	Text        string
	ContentDesc string
}

// ExtractNodes walks the page-source XML depth-first and returns up to limit
// nodes. It makes no attempt to reconstruct the app's data model; it only
// surfaces what the accessibility tree exposes.
func ExtractNodes(pageSourceXML string, limit int) ([]Node, error) {
	if strings.TrimSpace(pageSourceXML) == "" {
		return nil, nil
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromString(pageSourceXML); err != nil {
		return nil, fmt.Errorf("failed to parse page source XML: %w", err)
	}

	nodes := make([]Node, 0, 64)
	var walk func(el *etree.Element) bool
	walk = func(el *etree.Element) bool {
		if len(nodes) >= limit {
			return false
		}
		nodes = append(nodes, Node{
			ClassName:   el.SelectAttrValue("class", ""),
			ResourceID:  el.SelectAttrValue("resource-id", ""),
			Text:        el.SelectAttrValue("text", ""),
			ContentDesc: el.SelectAttrValue("content-desc", ""),
		})
		for _, child := range el.ChildElements() {
			if !walk(child) {
				return false
			}
		}
		return true
	}
	if root := doc.Root(); root != nil {
		walk(root)
	}
	return nodes, nil
}

// ExtractStrings returns the de-duplicated, document-ordered list of
// accessible strings (text and content-desc values) on the current screen,
// truncated to limit entries.
func ExtractStrings(pageSourceXML string, limit int) ([]string, error) {
	nodes, err := ExtractNodes(pageSourceXML, maxTreeNodes)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(nodes))
	out := make([]string, 0, len(nodes))
	for _, node := range nodes {
		if len(out) >= limit {
			break
		}
		for _, candidate := range []string{node.Text, node.ContentDesc} {
			normalized := strings.TrimSpace(candidate)
			if normalized == "" {
				continue
			}
			if _, dup := seen[normalized]; dup {
				continue
			}
			seen[normalized] = struct{}{}
			out = append(out, normalized)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// PackageName returns the foreground package recorded in the dump, or ""
// when the XML is unparsable or carries no package attribute.
func PackageName(pageSourceXML string) string {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(pageSourceXML); err != nil {
		return ""
	}
	var find func(el *etree.Element) string
	find = func(el *etree.Element) string {
		if pkg := el.SelectAttrValue("package", ""); pkg != "" {
			return pkg
		}
		for _, child := range el.ChildElements() {
			if pkg := find(child); pkg != "" {
				return pkg
			}
		}
		return ""
	}
	if root := doc.Root(); root != nil {
		return find(root)
	}
	return ""
}

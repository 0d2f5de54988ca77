package catalog

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// chunk is a leaf structural element of a document XML tree.
type chunk struct {
	Text      string
	XPath     string
	Structure string
	Tag       string
}

type frame struct {
	tag                string
	structure          string
	xpath              string
	text               strings.Builder
	childCounts        map[string]int
	hasStructuralChild bool
}

// parseDGML returns the whole document text and its leaf structural chunks.
// A leaf is an element carrying a structure attribute with no structural
// descendants. Leaves shorter than minChunkSize are merged into the next one.
func parseDGML(content []byte, minChunkSize int, includeXMLTags bool) (string, []chunk, error) {
	dec := xml.NewDecoder(bytes.NewReader(content))
	dec.Strict = false

	var (
		stack  []*frame
		leaves []chunk
		full   string
		seen   bool
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			f := &frame{tag: t.Name.Local, childCounts: map[string]int{}}
			for _, a := range t.Attr {
				if a.Name.Local == "structure" {
					f.structure = a.Value
				}
			}
			if len(stack) == 0 {
				f.xpath = "/" + f.tag
			} else {
				parent := stack[len(stack)-1]
				parent.childCounts[f.tag]++
				f.xpath = fmt.Sprintf("%s/%s[%d]", parent.xpath, f.tag, parent.childCounts[f.tag])
			}
			stack = append(stack, f)
			seen = true

		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}

		case xml.EndElement:
			if len(stack) == 0 {
				continue
			}
			f := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			raw := f.text.String()

			if f.structure != "" && !f.hasStructuralChild {
				if text := normalizeSpace(raw); text != "" {
					if includeXMLTags {
						text = fmt.Sprintf("<%s>%s</%s>", f.tag, text, f.tag)
					}
					leaves = append(leaves, chunk{Text: text, XPath: f.xpath, Structure: f.structure, Tag: f.tag})
				}
			}

			if len(stack) == 0 {
				full = normalizeSpace(raw)
				if len(leaves) == 0 && full != "" {
					leaves = append(leaves, chunk{Text: full, XPath: f.xpath, Tag: f.tag})
				}
				continue
			}
			parent := stack[len(stack)-1]
			parent.text.WriteString(" ")
			parent.text.WriteString(raw)
			if f.structure != "" || f.hasStructuralChild {
				parent.hasStructuralChild = true
			}
		}
	}
	if !seen {
		return "", nil, errors.New("document has no root element")
	}

	return full, mergeSmall(leaves, minChunkSize), nil
}

func mergeSmall(leaves []chunk, minChunkSize int) []chunk {
	var out []chunk
	var carry *chunk
	for _, c := range leaves {
		if carry != nil {
			c.Text = carry.Text + " " + c.Text
			carry = nil
		}
		if len(c.Text) < minChunkSize {
			c := c
			carry = &c
			continue
		}
		out = append(out, c)
	}
	if carry != nil {
		if len(out) > 0 {
			out[len(out)-1].Text += " " + carry.Text
		} else {
			out = append(out, *carry)
		}
	}
	return out
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

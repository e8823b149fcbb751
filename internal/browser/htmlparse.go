// internal/browser/htmlparse.go
package browser

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/xkilldash9x/flowpilot-cli/api/schemas"
)

// parsedPage is the result of the Go-side HTML extraction fallback.
type parsedPage struct {
	PageInfo           schemas.PageInfo
	FormData           schemas.FormData
	NavigationElements schemas.NavigationElements
}

var (
	submitTextRe   = regexp.MustCompile(`(?i)submit|finish|complete|done|send`)
	nextTextRe     = regexp.MustCompile(`(?i)next|continue|forward|proceed`)
	previousTextRe = regexp.MustCompile(`(?i)prev|back`)
	saveTextRe     = regexp.MustCompile(`(?i)save`)
	skipTextRe     = regexp.MustCompile(`(?i)skip`)
	yesNoRe        = regexp.MustCompile(`(?i)^(yes|no|true|false|y|n)$`)
	errorClassRe   = regexp.MustCompile(`(?i)\berror\b|alert-danger|validation-error`)
)

// parsePageHTML extracts form questions and navigation elements from raw
// HTML. It cannot see computed styles, so every found element is treated as
// visible.
func parsePageHTML(raw string) (*parsedPage, error) {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page HTML: %w", err)
	}

	p := &parsedPage{}

	var radioGroups = map[string][]*html.Node{}
	var checkboxGroups = map[string][]*html.Node{}
	var groupOrder []string
	var textInputs, selects []*html.Node
	var bodyTextLen int

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			bodyTextLen += len(strings.TrimSpace(n.Data))
		}
		if n.Type == html.ElementNode {
			switch strings.ToLower(n.Data) {
			case "title":
				p.PageInfo.Title = strings.TrimSpace(innerText(n))
			case "input":
				typ := strings.ToLower(attr(n, "type"))
				name := attr(n, "name")
				key := name
				if key == "" {
					key = nodePath(n)
				}
				switch typ {
				case "radio":
					if _, seen := radioGroups[key]; !seen {
						groupOrder = append(groupOrder, "radio::"+key)
					}
					radioGroups[key] = append(radioGroups[key], n)
				case "checkbox":
					if _, seen := checkboxGroups[key]; !seen {
						groupOrder = append(groupOrder, "checkbox::"+key)
					}
					checkboxGroups[key] = append(checkboxGroups[key], n)
				case "", "text", "email", "tel", "url", "number", "search":
					textInputs = append(textInputs, n)
				case "submit", "button":
					p.NavigationElements.Buttons = append(p.NavigationElements.Buttons, buttonFromNode(n))
				}
			case "textarea":
				textInputs = append(textInputs, n)
			case "select":
				selects = append(selects, n)
			case "button", "a":
				if strings.ToLower(n.Data) == "button" || attr(n, "role") == "button" {
					p.NavigationElements.Buttons = append(p.NavigationElements.Buttons, buttonFromNode(n))
				}
			case "div", "span", "p":
				if errorClassRe.MatchString(attr(n, "class")) || attr(n, "role") == "alert" {
					if strings.TrimSpace(innerText(n)) != "" {
						p.PageInfo.HasErrorText = true
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	p.PageInfo.BodyTextChars = bodyTextLen

	// Emit grouped choice questions in document order.
	for _, key := range groupOrder {
		kind, name, _ := strings.Cut(key, "::")
		var inputs []*html.Node
		if kind == "radio" {
			inputs = radioGroups[name]
		} else {
			inputs = checkboxGroups[name]
		}
		p.addChoiceQuestion(kind, inputs)
	}
	for _, sel := range selects {
		p.addSelectQuestion(sel)
	}
	for _, in := range textInputs {
		p.addTextQuestion(in)
	}

	p.FormData.TotalQuestions = len(p.FormData.Questions)
	for _, q := range p.FormData.Questions {
		if q.Answered {
			p.FormData.AnsweredQuestions++
		}
	}
	if p.FormData.TotalQuestions > 0 {
		p.FormData.CompletionRate = float64(p.FormData.AnsweredQuestions) / float64(p.FormData.TotalQuestions)
	}

	for _, b := range p.NavigationElements.Buttons {
		switch b.Action {
		case schemas.ButtonNext:
			p.NavigationElements.HasNext = true
		case schemas.ButtonSubmit:
			p.NavigationElements.HasSubmit = true
		case schemas.ButtonPrevious:
			p.NavigationElements.HasPrevious = true
		}
	}

	return p, nil
}

func (p *parsedPage) addChoiceQuestion(kind string, inputs []*html.Node) {
	if len(inputs) == 0 {
		return
	}

	options := make([]schemas.QuestionOption, 0, len(inputs))
	answered := false
	required := false
	for _, in := range inputs {
		label := labelText(in)
		value := attr(in, "value")
		if value == "" {
			value = label
		}
		options = append(options, schemas.QuestionOption{
			Value:    value,
			Label:    label,
			Selector: nodeSelector(in),
		})
		if hasAttr(in, "checked") {
			answered = true
		}
		if hasAttr(in, "required") {
			required = true
		}
	}

	qType := schemas.QuestionSingleChoice
	if kind == "checkbox" {
		if len(inputs) > 1 {
			qType = schemas.QuestionMultipleChoice
		} else {
			qType = schemas.QuestionYesNo
		}
	} else if len(options) == 2 && yesNoRe.MatchString(options[0].Label) && yesNoRe.MatchString(options[1].Label) {
		qType = schemas.QuestionYesNo
	}

	container := closestContainer(inputs[0])
	p.pushQuestion(schemas.Question{
		Text:     containerText(container),
		Type:     qType,
		Selector: nodeSelector(container),
		Options:  options,
		Required: required,
		Answered: answered,
	})
}

func (p *parsedPage) addSelectQuestion(sel *html.Node) {
	var options []schemas.QuestionOption
	answered := false
	for c := sel.FirstChild; c != nil; c = c.NextSibling {
		collectOptions(c, &options, &answered)
	}

	p.pushQuestion(schemas.Question{
		Text:     labelText(sel),
		Type:     schemas.QuestionSingleChoice,
		Selector: nodeSelector(sel),
		Options:  options,
		Required: hasAttr(sel, "required"),
		Answered: answered,
	})
}

func collectOptions(n *html.Node, out *[]schemas.QuestionOption, answered *bool) {
	if n.Type == html.ElementNode && strings.ToLower(n.Data) == "option" {
		value := attr(n, "value")
		label := strings.TrimSpace(innerText(n))
		if value == "" {
			value = label
		}
		if value != "" {
			*out = append(*out, schemas.QuestionOption{Value: value, Label: label})
		}
		if hasAttr(n, "selected") {
			*answered = true
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectOptions(c, out, answered)
	}
}

func (p *parsedPage) addTextQuestion(in *html.Node) {
	answered := strings.TrimSpace(attr(in, "value")) != ""
	if strings.ToLower(in.Data) == "textarea" {
		answered = strings.TrimSpace(innerText(in)) != ""
	}

	p.pushQuestion(schemas.Question{
		Text:     labelText(in),
		Type:     schemas.QuestionText,
		Selector: nodeSelector(in),
		Required: hasAttr(in, "required"),
		Answered: answered,
	})
}

func (p *parsedPage) pushQuestion(q schemas.Question) {
	q.Index = len(p.FormData.Questions)
	p.FormData.Questions = append(p.FormData.Questions, q)
}

func buttonFromNode(n *html.Node) schemas.ButtonInfo {
	text := strings.TrimSpace(innerText(n))
	if text == "" {
		text = attr(n, "value")
	}
	return schemas.ButtonInfo{
		Selector: nodeSelector(n),
		Text:     text,
		Action:   classifyButtonText(text + " " + attr(n, "id") + " " + attr(n, "class") + " " + attr(n, "type")),
		Visible:  true,
	}
}

func classifyButtonText(haystack string) schemas.ButtonAction {
	switch {
	case submitTextRe.MatchString(haystack):
		return schemas.ButtonSubmit
	case nextTextRe.MatchString(haystack):
		return schemas.ButtonNext
	case previousTextRe.MatchString(haystack):
		return schemas.ButtonPrevious
	case saveTextRe.MatchString(haystack):
		return schemas.ButtonSave
	case skipTextRe.MatchString(haystack):
		return schemas.ButtonSkip
	default:
		return schemas.ButtonUnknown
	}
}

// -- node helpers --

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

func innerText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
			sb.WriteString(" ")
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

// labelText finds the text describing an input: a wrapping <label>, the
// aria-label, or the placeholder.
func labelText(n *html.Node) string {
	if v := attr(n, "aria-label"); v != "" {
		return v
	}
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && strings.ToLower(p.Data) == "label" {
			return strings.TrimSpace(innerText(p))
		}
	}
	if v := attr(n, "placeholder"); v != "" {
		return v
	}
	return ""
}

// closestContainer walks up to the nearest grouping element.
func closestContainer(n *html.Node) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type != html.ElementNode {
			continue
		}
		switch strings.ToLower(p.Data) {
		case "fieldset", "form":
			return p
		case "div":
			cls := attr(p, "class")
			if strings.Contains(cls, "question") || strings.Contains(cls, "form-group") {
				return p
			}
		}
	}
	return n
}

// containerText extracts the question prompt from a grouping element: the
// legend when present, otherwise the leading text clipped to a sane length.
func containerText(n *html.Node) string {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && strings.ToLower(c.Data) == "legend" {
			return strings.TrimSpace(innerText(c))
		}
	}
	text := innerText(n)
	if len(text) > 160 {
		text = text[:160]
	}
	return strings.TrimSpace(text)
}

// nodeSelector builds a CSS selector for the node, preferring id and name.
func nodeSelector(n *html.Node) string {
	if id := attr(n, "id"); id != "" {
		return "#" + id
	}
	tag := strings.ToLower(n.Data)
	if name := attr(n, "name"); name != "" {
		return fmt.Sprintf("%s[name=%q]", tag, name)
	}
	return nodePath(n)
}

// nodePath builds an nth-of-type path for nodes without id or name.
func nodePath(n *html.Node) string {
	var parts []string
	for node := n; node != nil && node.Type == html.ElementNode; node = node.Parent {
		tag := strings.ToLower(node.Data)
		if tag == "body" || tag == "html" {
			break
		}
		idx := 1
		for sib := node.PrevSibling; sib != nil; sib = sib.PrevSibling {
			if sib.Type == html.ElementNode && sib.Data == node.Data {
				idx++
			}
		}
		parts = append([]string{fmt.Sprintf("%s:nth-of-type(%d)", tag, idx)}, parts...)
	}
	if len(parts) == 0 {
		return strings.ToLower(n.Data)
	}
	return "body > " + strings.Join(parts, " > ")
}

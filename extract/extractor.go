// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package extract

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/poiesic/docingest/core"
	"golang.org/x/net/html"
)

// ErrNoSelectors indicates an option was given an empty selector list.
var ErrNoSelectors = errors.New("selector list cannot be empty")

// Extractor pulls readable text out of HTML documents.
type Extractor struct {
	remove  cascadia.Selector
	content []cascadia.Selector
	logger  *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor) error

// WithRemoveSelectors replaces the boilerplate selector list.
func WithRemoveSelectors(selectors []string) Option {
	return func(e *Extractor) error {
		if len(selectors) == 0 {
			return ErrNoSelectors
		}
		sel, err := cascadia.Compile(strings.Join(selectors, ", "))
		if err != nil {
			return fmt.Errorf("invalid remove selector: %w", err)
		}
		e.remove = sel
		return nil
	}
}

// WithContentSelectors replaces the auto-detection probe list.
func WithContentSelectors(selectors []string) Option {
	return func(e *Extractor) error {
		if len(selectors) == 0 {
			return ErrNoSelectors
		}
		compiled, err := compileAll(selectors)
		if err != nil {
			return err
		}
		e.content = compiled
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// New creates an Extractor with the default selector lists.
func New(opts ...Option) (*Extractor, error) {
	e := &Extractor{logger: slog.Default()}
	defaults := []Option{
		WithRemoveSelectors(DefaultRemoveSelectors),
		WithContentSelectors(DefaultContentSelectors),
	}
	for _, opt := range append(defaults, opts...) {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	e.logger = e.logger.With("component", "extractor")
	return e, nil
}

// Extract returns the cleaned text of html. Each selector is tried in order:
// its first match is stripped of boilerplate and its text returned if
// non-empty. Invalid selectors are logged and skipped. When no selector
// yields text, Extract behaves exactly like Auto.
func (e *Extractor) Extract(rawHTML string, selectors ...string) (string, error) {
	doc, err := parse(rawHTML)
	if err != nil {
		return "", err
	}

	for _, spec := range selectors {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}
		sel, err := cascadia.Compile(spec)
		if err != nil {
			e.logger.Warn("skipping invalid selector", "selector", spec, "err", err)
			continue
		}

		match := doc.FindMatcher(goquery.SingleMatcher(sel))
		if match.Length() == 0 {
			continue
		}

		// Work on a copy so auto-detection still sees the untouched document
		node := match.Clone()
		node.FindMatcher(e.remove).Remove()
		if text := CleanText(nodeText(node)); text != "" {
			return text, nil
		}
	}

	return e.auto(doc), nil
}

// Auto runs content auto-detection on html.
func (e *Extractor) Auto(rawHTML string) (string, error) {
	doc, err := parse(rawHTML)
	if err != nil {
		return "", err
	}
	return e.auto(doc), nil
}

func (e *Extractor) auto(doc *goquery.Document) string {
	doc.FindMatcher(e.remove).Remove()

	for _, sel := range e.content {
		match := doc.FindMatcher(goquery.SingleMatcher(sel))
		if match.Length() == 0 {
			continue
		}
		if text := CleanText(nodeText(match)); text != "" {
			return text
		}
	}

	body := doc.Find("body")
	if body.Length() == 0 {
		return CleanText(nodeText(doc.Selection))
	}
	return CleanText(nodeText(body))
}

// Title returns the document title, falling back to the first h1.
func Title(rawHTML string) string {
	doc, err := parse(rawHTML)
	if err != nil {
		return ""
	}
	if t := CleanText(doc.Find("title").First().Text()); t != "" {
		return t
	}
	return CleanText(doc.Find("h1").First().Text())
}

var (
	blankLines = regexp.MustCompile(`\n\s*\n`)
	spaceRuns  = regexp.MustCompile(`\s+`)
)

// CleanText collapses blank lines and runs of whitespace to single spaces.
func CleanText(s string) string {
	s = blankLines.ReplaceAllString(s, "\n")
	s = spaceRuns.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// CompileSelectors reports the first selector that does not compile.
func CompileSelectors(selectors []string) error {
	_, err := compileAll(selectors)
	return err
}

func compileAll(selectors []string) ([]cascadia.Selector, error) {
	compiled := make([]cascadia.Selector, 0, len(selectors))
	for _, s := range selectors {
		sel, err := cascadia.Compile(s)
		if err != nil {
			return nil, fmt.Errorf("invalid selector %q: %w", s, err)
		}
		compiled = append(compiled, sel)
	}
	return compiled, nil
}

func parse(rawHTML string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, &core.ParseError{Source: "html", Err: err}
	}
	return doc, nil
}

var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"br": true, "dd": true, "div": true, "dl": true, "dt": true,
	"figcaption": true, "figure": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true, "hr": true, "li": true, "main": true,
	"ol": true, "p": true, "pre": true, "section": true, "table": true,
	"td": true, "th": true, "tr": true, "ul": true,
}

// nodeText concatenates text nodes, separating block elements with a
// newline so adjacent paragraphs do not run words together.
func nodeText(s *goquery.Selection) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.CommentNode:
			return
		}
		block := n.Type == html.ElementNode && blockElements[n.Data]
		if block {
			b.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			b.WriteByte('\n')
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}
	return b.String()
}

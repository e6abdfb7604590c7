// Package prompt provides the Prompt value object used by the test generation
// loop: an immutable description of what to ask the model (function, file
// context, usage snippets, doc comments, prior failure) that renders to either
// the initial-generation or the refinement template.
//
// Identity is an opaque ID minted per instance. Two prompts built from the
// same inputs are distinct; only the same instance compares equal by ID.
package prompt

import (
	"slices"
	"strings"

	"github.com/google/uuid"
)

// ID is an opaque per-instance prompt handle. Compare IDs, never rendered text.
type ID string

// Target is the function under test and its file context.
type Target struct {
	Name        string // Function name, used for snippet lookup and logs.
	Source      string // Function source text.
	FilePath    string // Repo-relative path, used for imports in generated tests.
	FileName    string
	FileContent string
	DocComments string // Comment block preceding the function, if any.
}

// Factory builds initial prompts with a fixed language and template set.
type Factory struct {
	Language  Language
	Templates Templates
}

// NewFactory returns a Factory; a zero Language defaults to TypeScriptJest and
// empty templates default to DefaultTemplates.
func NewFactory(lang Language, tmpl Templates) Factory {
	if lang == (Language{}) {
		lang = TypeScriptJest
	}
	def := DefaultTemplates()
	if tmpl.Initial == "" {
		tmpl.Initial = def.Initial
	}
	if tmpl.Refinement == "" {
		tmpl.Refinement = def.Refinement
	}
	return Factory{Language: lang, Templates: tmpl}
}

// New returns a fresh initial-generation prompt for target with a new ID.
func (f Factory) New(target Target, snippets []string) *Prompt {
	return &Prompt{
		id:       newID(),
		target:   target,
		lang:     f.Language,
		tmpl:     f.Templates,
		snippets: slices.Clone(snippets),
	}
}

// Prompt is immutable by convention: no method mutates the receiver.
type Prompt struct {
	id         ID
	target     Target
	lang       Language
	tmpl       Templates
	snippets   []string
	priorTest  string
	priorError string
	override   string // Pre-rendered refinement text; returned verbatim by Render.
}

func newID() ID {
	return ID("prompt_" + uuid.NewString())
}

// ID returns the prompt's identity handle.
func (p *Prompt) ID() ID { return p.id }

// Target returns the function under test.
func (p *Prompt) Target() Target { return p.target }

// IsRefinement reports whether p was produced by WithRefinement.
func (p *Prompt) IsRefinement() bool { return p.override != "" }

// PriorError returns the failure message a refinement prompt embeds ("" for initial prompts).
func (p *Prompt) PriorError() string { return p.priorError }

// PriorTest returns the failed test source a refinement prompt embeds.
func (p *Prompt) PriorTest() string { return p.priorTest }

// Render returns the prompt text. A refinement prompt returns its
// pre-rendered text; an initial prompt fills the initial template.
func (p *Prompt) Render() string {
	if p.override != "" {
		return p.override
	}
	return p.replacer().Replace(p.tmpl.Initial)
}

// WithRefinement returns a new Prompt (new ID) whose text is the refinement
// template filled with the same file context plus priorTest and priorErr.
// p is not modified.
func (p *Prompt) WithRefinement(priorTest, priorErr string) *Prompt {
	q := &Prompt{
		id:         newID(),
		target:     p.target,
		lang:       p.lang,
		tmpl:       p.tmpl,
		snippets:   slices.Clone(p.snippets),
		priorTest:  priorTest,
		priorError: priorErr,
	}
	q.override = q.replacer().Replace(q.tmpl.Refinement)
	return q
}

// replacer substitutes all placeholders in a single pass so placeholder-like
// text inside file content or errors is never expanded a second time.
func (p *Prompt) replacer() *strings.Replacer {
	return strings.NewReplacer(
		phLanguage, p.lang.Name,
		phFramework, p.lang.Framework,
		phFence, p.lang.Fence,
		phFileName, p.target.FileName,
		phFilePath, p.target.FilePath,
		phFileContent, p.target.FileContent,
		phFunction, p.target.Source,
		phDocComments, docCommentsSection(p.target.DocComments),
		phSnippets, snippetsSection(p.snippets),
		phPriorTest, p.priorTest,
		phPriorError, p.priorError,
	)
}

func docCommentsSection(doc string) string {
	doc = strings.TrimSpace(doc)
	if doc == "" {
		return ""
	}
	return "\nDoc comments:\n" + doc + "\n"
}

func snippetsSection(snippets []string) string {
	if len(snippets) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\nUsage examples:\n")
	for _, s := range snippets {
		b.WriteString(strings.TrimRight(s, "\n"))
		b.WriteString("\n")
	}
	return b.String()
}

package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Template override filenames looked up in the state dir (e.g. .utgen/).
const (
	initialTemplateFilename    = "prompt_initial.txt"
	refinementTemplateFilename = "prompt_refine.txt"
)

// Placeholders substituted by Render. Names follow the original template
// vocabulary so hand-written override files stay portable.
const (
	phLanguage    = "{{language_name}}"
	phFramework   = "{{test_framework}}"
	phFence       = "{{fence}}"
	phFileName    = "{{fileName}}"
	phFilePath    = "{{file_path}}"
	phFileContent = "{{file_content}}"
	phFunction    = "{{function_to_be_tested}}"
	phSnippets    = "{{snippets}}"
	phDocComments = "{{doc_comments}}"
	phPriorTest   = "{{generated_unit_test_code}}"
	phPriorError  = "{{generated_unit_test_code_execution_error}}"
)

// Language describes the target language and test framework a prompt asks for.
type Language struct {
	Name      string // Display name, e.g. "TypeScript".
	Framework string // Test framework, e.g. "Jest".
	Fence     string // Code fence tag, e.g. "typescript".
}

// TypeScriptJest is the default language.
var TypeScriptJest = Language{Name: "TypeScript", Framework: "Jest", Fence: "typescript"}

var knownLanguages = map[string]Language{
	"typescript": TypeScriptJest,
	"javascript": {Name: "JavaScript", Framework: "Jest", Fence: "javascript"},
	"python":     {Name: "Python", Framework: "pytest", Fence: "python"},
}

// LookupLanguage returns the Language for a config name (case-insensitive).
func LookupLanguage(name string) (Language, error) {
	l, ok := knownLanguages[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Language{}, fmt.Errorf("unsupported language %q (want typescript, javascript, or python)", name)
	}
	return l, nil
}

// Templates holds the two prompt bodies a Prompt can render.
type Templates struct {
	Initial    string
	Refinement string
}

// DefaultTemplates returns the built-in templates.
func DefaultTemplates() Templates {
	return Templates{Initial: defaultInitialTemplate, Refinement: defaultRefinementTemplate}
}

// LoadTemplates returns the built-in templates with per-repo overrides from
// stateDir/prompt_initial.txt and stateDir/prompt_refine.txt applied.
// A missing file keeps the default; any other read error is returned.
func LoadTemplates(stateDir string) (Templates, error) {
	t := DefaultTemplates()
	if stateDir == "" {
		return t, nil
	}
	for name, dst := range map[string]*string{
		initialTemplateFilename:    &t.Initial,
		refinementTemplateFilename: &t.Refinement,
	} {
		data, err := os.ReadFile(filepath.Join(stateDir, name))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return Templates{}, fmt.Errorf("read prompt template %s: %w", name, err)
		}
		if s := strings.TrimSpace(string(data)); s != "" {
			*dst = s
		}
	}
	return t, nil
}

const defaultInitialTemplate = `<Task Context>
You are an experienced {{language_name}} engineer who writes {{test_framework}} unit tests. Write tests for the function below.
</Task Context>

<Code Context>
File name:
{{fileName}}

File path:
{{file_path}}

Whole file content:
{{file_content}}

Function to be tested:
{{function_to_be_tested}}
{{doc_comments}}{{snippets}}</Code Context>

<Instructions>
- Output only {{test_framework}} test code inside a single fenced block tagged {{fence}}; no prose outside the block.
- Import the function under test using the file path above (e.g. from 'src/example'), not a relative path.
- Cover normal inputs, boundaries, and error cases; one behavior per test case.
- Mock filesystem, network, and process dependencies instead of touching them.
- Use async/await for asynchronous code.
</Instructions>
`

const defaultRefinementTemplate = `<Task Context>
You are an experienced {{language_name}} engineer who writes {{test_framework}} unit tests. A generated test failed when executed; fix it.
</Task Context>

<Code Context>
File name:
{{fileName}}

File path:
{{file_path}}

Whole file content:
{{file_content}}

Function to be tested:
{{function_to_be_tested}}

Generated unit test code:
{{generated_unit_test_code}}

Error in the unit test execution:
{{generated_unit_test_code_execution_error}}
</Code Context>

<Instructions>
- Output only the corrected {{test_framework}} test code inside a single fenced block tagged {{fence}}; no prose outside the block.
- Address the reported error first; keep passing assertions unchanged.
- Import using the file path above (e.g. from 'src/example'), never '../' or './' paths.
- If an expectation contradicts the function's actual behavior, fix the expectation, not the function.
</Instructions>
`

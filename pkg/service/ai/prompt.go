package ai

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/duynguyendang/cyclopath/pkg/learnpath"
)

//go:embed prompts/learning_path.prompt
var defaultPrompt []byte

// PromptConfig holds metadata from the YAML frontmatter.
type PromptConfig struct {
	Model       string                 `yaml:"model"`
	Temperature float32                `yaml:"temperature"`
	Input       map[string]interface{} `yaml:"input"`
}

// Prompt represents a loaded prompt with config and template.
type Prompt struct {
	Config   PromptConfig
	Template *template.Template
}

// PromptData is the template input.
type PromptData struct {
	Schema string
	Vision bool
	Source string
}

// DefaultPrompt returns the built-in learning-path prompt.
func DefaultPrompt() (*Prompt, error) {
	return ParsePrompt(defaultPrompt)
}

// LoadPrompt reads a .prompt file, parses frontmatter and body.
// An empty path returns the built-in prompt.
func LoadPrompt(path string) (*Prompt, error) {
	if path == "" {
		return DefaultPrompt()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt file: %w", err)
	}
	return ParsePrompt(data)
}

// ParsePrompt parses "---" delimited YAML frontmatter followed by a
// text/template body.
func ParsePrompt(data []byte) (*Prompt, error) {
	parts := strings.SplitN(string(data), "---", 3)
	if len(parts) < 3 {
		return nil, fmt.Errorf("invalid prompt format: missing frontmatter delimiters")
	}

	frontmatter := parts[1]
	body := parts[2]

	var config PromptConfig
	if err := yaml.Unmarshal([]byte(frontmatter), &config); err != nil {
		return nil, fmt.Errorf("failed to parse frontmatter: %w", err)
	}

	tmpl, err := template.New("prompt").Option("missingkey=error").Parse(strings.TrimSpace(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse template body: %w", err)
	}

	return &Prompt{
		Config:   config,
		Template: tmpl,
	}, nil
}

// Execute applies data to the template and returns the result string.
func (p *Prompt) Execute(data any) (string, error) {
	var buf bytes.Buffer
	if err := p.Template.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}

// Render builds the instruction text for one generation request.
func (p *Prompt) Render(source string, vision bool) (string, error) {
	return p.Execute(PromptData{
		Schema: learnpath.SchemaJSON(),
		Vision: vision,
		Source: source,
	})
}

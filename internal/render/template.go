package render

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"leadflow/internal/services"
)

//go:embed default_template.yaml
var defaultTemplate []byte

// Placeholders recognised in template text.
const (
	PlaceholderName        = "(Name)"
	PlaceholderCompany     = "(company name)"
	PlaceholderDescription = "(what your company deals with)"
	PlaceholderBlurb       = "Input Blerbs here"
)

// fallbackBlurb fills blurb placeholders the payload has no value for.
const fallbackBlurb = "Service offering"

var requiredPlaceholders = []string{
	PlaceholderName,
	PlaceholderCompany,
	PlaceholderDescription,
	PlaceholderBlurb,
}

// Template is the document layout.
type Template struct {
	Title    string    `yaml:"title"`
	Sections []Section `yaml:"sections"`
}

// Section is one heading with paragraphs followed by a bullet list.
type Section struct {
	Heading    string   `yaml:"heading"`
	Paragraphs []string `yaml:"paragraphs"`
	Items      []string `yaml:"items"`
}

// LoadTemplate reads the template at ref, or the built-in template when ref
// is empty.
func LoadTemplate(ref string) (*Template, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ParseTemplate(defaultTemplate)
	}
	data, err := os.ReadFile(ref)
	if err != nil {
		marker := services.ErrConfiguration
		if errors.Is(err, os.ErrNotExist) {
			marker = services.ErrNotFound
		}
		return nil, services.Wrap(marker, "render", "load template", ref, err)
	}
	return ParseTemplate(data)
}

// ParseTemplate decodes and validates a YAML template. Unknown keys,
// malformed YAML, and missing placeholders are rejected.
func ParseTemplate(data []byte) (*Template, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	var tmpl Template
	if err := decoder.Decode(&tmpl); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, services.Wrap(services.ErrConfiguration, "render", "parse template", "template is empty", nil)
		}
		return nil, services.Wrap(services.ErrConfiguration, "render", "parse template", "", err)
	}
	if strings.TrimSpace(tmpl.Title) == "" && len(tmpl.Sections) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "render", "parse template", "template has no title or sections", nil)
	}
	if missing := tmpl.missingPlaceholders(); len(missing) > 0 {
		return nil, services.Wrap(services.ErrValidation, "render", "parse template",
			fmt.Sprintf("missing placeholders %s", strings.Join(missing, ", ")), nil)
	}
	return &tmpl, nil
}

func (t *Template) text() string {
	var b strings.Builder
	b.WriteString(t.Title)
	for _, section := range t.Sections {
		b.WriteString("\n")
		b.WriteString(section.Heading)
		for _, p := range section.Paragraphs {
			b.WriteString("\n")
			b.WriteString(p)
		}
		for _, item := range section.Items {
			b.WriteString("\n")
			b.WriteString(item)
		}
	}
	return b.String()
}

func (t *Template) missingPlaceholders() []string {
	text := t.text()
	var missing []string
	for _, placeholder := range requiredPlaceholders {
		if !strings.Contains(text, placeholder) {
			missing = append(missing, placeholder)
		}
	}
	return missing
}

// Values are the substitutions applied to a template.
type Values struct {
	Name        string
	Company     string
	Description string
	Blurbs      []string
}

// Markdown fills the template. Blurb placeholders are replaced in document
// order with successive blurbs.
func (t *Template) Markdown(values Values) string {
	filler := &filler{values: values}
	var b strings.Builder
	if title := filler.fill(t.Title); strings.TrimSpace(title) != "" {
		fmt.Fprintf(&b, "# %s\n", title)
	}
	for _, section := range t.Sections {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		if heading := filler.fill(section.Heading); strings.TrimSpace(heading) != "" {
			fmt.Fprintf(&b, "## %s\n\n", heading)
		}
		for _, p := range section.Paragraphs {
			fmt.Fprintf(&b, "%s\n\n", filler.fill(p))
		}
		for _, item := range section.Items {
			fmt.Fprintf(&b, "- %s\n", filler.fill(item))
		}
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

type filler struct {
	values Values
	blurb  int
}

func (f *filler) fill(text string) string {
	text = strings.NewReplacer(
		PlaceholderName, f.values.Name,
		PlaceholderCompany, f.values.Company,
		PlaceholderDescription, f.values.Description,
	).Replace(text)
	for strings.Contains(text, PlaceholderBlurb) {
		value := fallbackBlurb
		if f.blurb < len(f.values.Blurbs) && strings.TrimSpace(f.values.Blurbs[f.blurb]) != "" {
			value = f.values.Blurbs[f.blurb]
		}
		f.blurb++
		text = strings.Replace(text, PlaceholderBlurb, value, 1)
	}
	return text
}

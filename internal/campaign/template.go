package campaign

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/outreach-cli/internal/record"
)

// Render substitutes business fields into a message template. Supported
// placeholders: {name} {category} {location} {address} {phone} {email}
// {website}. Missing fields render as empty strings.
func Render(template string, b *record.Business) string {
	r := strings.NewReplacer(
		"{name}", b.Name,
		"{category}", b.Category,
		"{location}", b.Location,
		"{address}", b.Address,
		"{phone}", b.Phone,
		"{email}", b.Email,
		"{website}", b.Website,
	)
	return r.Replace(template)
}

// Library is a set of named, reusable message templates loaded from YAML.
type Library struct {
	Templates map[string]string `yaml:"templates"`
}

// LoadLibrary reads a template library file. A missing file yields an empty
// library rather than an error so the CLI works without one.
func LoadLibrary(path string) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Library{Templates: map[string]string{}}, nil
		}
		return nil, eris.Wrapf(err, "campaign: read template library %s", path)
	}

	var lib Library
	if err := yaml.Unmarshal(data, &lib); err != nil {
		return nil, eris.Wrapf(err, "campaign: parse template library %s", path)
	}
	if lib.Templates == nil {
		lib.Templates = map[string]string{}
	}
	return &lib, nil
}

// Get returns a named template.
func (l *Library) Get(name string) (string, error) {
	tpl, ok := l.Templates[name]
	if !ok {
		return "", eris.Errorf("campaign: template not found: %s", name)
	}
	return tpl, nil
}

// Names returns the template names in the library, sorted order not
// guaranteed.
func (l *Library) Names() []string {
	names := make([]string, 0, len(l.Templates))
	for name := range l.Templates {
		names = append(names, name)
	}
	return names
}

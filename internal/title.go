package internal

import (
	"encoding/json"
	"regexp"

	"github.com/lychee-technology/dataeditor"
)

var placeholderPattern = regexp.MustCompile(`\$\{\s*([^}\s]+)\s*\}`)

// titleRenderer derives the display title of an entry.
type titleRenderer struct {
	template   string
	primaryKey string
}

func newTitleRenderer(schema *dataeditor.Schema) titleRenderer {
	return titleRenderer{template: schema.TitleTemplate, primaryKey: schema.PrimaryKey}
}

// Render interpolates ${field} placeholders; without a template the primary key is used.
func (r titleRenderer) Render(data dataeditor.Record) string {
	if r.template == "" {
		return KeyString(data[r.primaryKey])
	}
	return placeholderPattern.ReplaceAllStringFunc(r.template, func(match string) string {
		field := placeholderPattern.FindStringSubmatch(match)[1]
		return titleValue(data[field])
	})
}

func titleValue(value any) string {
	switch v := value.(type) {
	case map[string]any, []any, dataeditor.Record:
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	default:
		return KeyString(v)
	}
}

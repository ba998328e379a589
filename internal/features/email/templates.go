package email

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	"sync"
	texttemplate "text/template"
	"time"
)

// TemplateData is what subject and body templates are executed against.
type TemplateData struct {
	Title          string
	Message        string
	Type           string
	Category       string
	Metadata       map[string]any
	NotificationID string
	CreatedAt      time.Time
}

type compiled struct {
	subject *texttemplate.Template
	body    *htmltemplate.Template
}

type templateKey struct {
	category string
	action   string
}

// TemplateSet selects a template by (category, action), falling back to
// (category, "") and then to the default template.
type TemplateSet struct {
	mu        sync.RWMutex
	templates map[templateKey]compiled
	fallback  compiled
}

const layout = `<!DOCTYPE html>
<html><body style="font-family:Arial,sans-serif;color:#222">
<h2>{{.Title}}</h2>
%s
<p style="color:#888;font-size:12px">You received this because of your notification settings in the HR portal.</p>
</body></html>`

func NewTemplateSet() (*TemplateSet, error) {
	fallback, err := compile("default", "{{.Title}}", `<p>{{.Message}}</p>`)
	if err != nil {
		return nil, err
	}
	return &TemplateSet{
		templates: make(map[templateKey]compiled),
		fallback:  fallback,
	}, nil
}

// DefaultTemplates returns a set with the stock HR templates registered.
func DefaultTemplates() (*TemplateSet, error) {
	ts, err := NewTemplateSet()
	if err != nil {
		return nil, err
	}

	stock := []struct {
		category, action, subject, body string
	}{
		{"leave", "", "Leave update: {{.Title}}", `<p>{{.Message}}</p>`},
		{"leave", "approved", "Your leave request was approved",
			`<p>{{.Message}}</p>{{with .Metadata.startDate}}<p>From: {{.}}</p>{{end}}{{with .Metadata.endDate}}<p>To: {{.}}</p>{{end}}`},
		{"leave", "rejected", "Your leave request was declined",
			`<p>{{.Message}}</p>{{with .Metadata.reason}}<p>Reason: {{.}}</p>{{end}}`},
		{"attendance", "", "Attendance alert: {{.Title}}", `<p>{{.Message}}</p>`},
		{"payroll", "", "Payroll: {{.Title}}", `<p>{{.Message}}</p>`},
		{"account", "", "Account notice: {{.Title}}", `<p>{{.Message}}</p>`},
		{"system", "", "[System] {{.Title}}", `<p>{{.Message}}</p>`},
	}
	for _, t := range stock {
		if err := ts.Register(t.category, t.action, t.subject, t.body); err != nil {
			return nil, err
		}
	}
	return ts, nil
}

// Register parses and stores a template. action may be empty.
func (ts *TemplateSet) Register(category, action, subject, body string) error {
	c, err := compile(category+"/"+action, subject, body)
	if err != nil {
		return err
	}
	ts.mu.Lock()
	ts.templates[templateKey{category: category, action: action}] = c
	ts.mu.Unlock()
	return nil
}

// Render returns the subject and HTML body for data.
func (ts *TemplateSet) Render(category, action string, data TemplateData) (string, string, error) {
	c := ts.lookup(category, action)

	var subject bytes.Buffer
	if err := c.subject.Execute(&subject, data); err != nil {
		return "", "", fmt.Errorf("render subject: %w", err)
	}
	var body bytes.Buffer
	if err := c.body.Execute(&body, data); err != nil {
		return "", "", fmt.Errorf("render body: %w", err)
	}

	// Header values must stay on one line.
	s := strings.Join(strings.Fields(subject.String()), " ")
	return s, body.String(), nil
}

func (ts *TemplateSet) lookup(category, action string) compiled {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	if action != "" {
		if c, ok := ts.templates[templateKey{category, action}]; ok {
			return c
		}
	}
	if c, ok := ts.templates[templateKey{category, ""}]; ok {
		return c
	}
	return ts.fallback
}

func compile(name, subject, body string) (compiled, error) {
	st, err := texttemplate.New(name + ":subject").Parse(subject)
	if err != nil {
		return compiled{}, fmt.Errorf("parse subject template %s: %w", name, err)
	}
	bt, err := htmltemplate.New(name + ":body").Parse(fmt.Sprintf(layout, body))
	if err != nil {
		return compiled{}, fmt.Errorf("parse body template %s: %w", name, err)
	}
	return compiled{subject: st, body: bt}, nil
}

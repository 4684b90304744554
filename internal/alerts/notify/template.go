package notify

import (
	"bytes"
	"errors"
	"text/template"
)

const DefaultSubjectTemplate = `Alert: {{.Device}} reported {{.StateLabel}}`

const DefaultBodyTemplate = `Your device "{{.Device}}" reported "{{.StateLabel}}" on {{.Timestamp}}.
{{ if .DashboardURL }}
Dashboard: {{.DashboardURL}}
{{ end }}`

// TemplateData provides fields for rendering notification content.
type TemplateData struct {
	Device       string
	State        string
	StateLabel   string
	Timestamp    string
	DashboardURL string
}

// Template renders mail subject and body.
type Template struct {
	subject *template.Template
	body    *template.Template
}

// NewTemplate parses subject and body templates, falling back to defaults.
func NewTemplate(subject, body string) (*Template, error) {
	if subject == "" {
		subject = DefaultSubjectTemplate
	}
	if body == "" {
		body = DefaultBodyTemplate
	}
	parsedSubject, err := template.New("alert-subject").Parse(subject)
	if err != nil {
		return nil, err
	}
	parsedBody, err := template.New("alert-body").Parse(body)
	if err != nil {
		return nil, err
	}
	return &Template{subject: parsedSubject, body: parsedBody}, nil
}

// Render applies the templates to data.
func (t *Template) Render(data TemplateData) (subject, body string, err error) {
	if t == nil || t.subject == nil || t.body == nil {
		return "", "", errors.New("alert template: nil")
	}
	var subjectBuf bytes.Buffer
	if err := t.subject.Execute(&subjectBuf, data); err != nil {
		return "", "", err
	}
	var bodyBuf bytes.Buffer
	if err := t.body.Execute(&bodyBuf, data); err != nil {
		return "", "", err
	}
	return subjectBuf.String(), bodyBuf.String(), nil
}

// StateLabel maps wire states to readable labels.
func StateLabel(state string) string {
	switch state {
	case "MOTION_DETECTED":
		return "motion detected"
	case "NO_MOTION_DETECTED":
		return "no motion detected"
	default:
		return state
	}
}

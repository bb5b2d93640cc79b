// Package notification schedules patient reminders, renders message
// templates, and delivers mail over SMTP.
package notification

import (
	"fmt"
	"html"
	"strings"
	"sync"
)

// Template defines a reusable message template. Placeholders use {{key}}.
type Template struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	// HTML bodies get their substituted values escaped.
	HTML bool `json:"html"`
}

// TemplateEngine manages templates and renders them with data.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

const (
	TemplatePatientReminder = "patient-reminder"
	TemplateConsentEmail    = "consent-email"
)

// NewTemplateEngine creates a TemplateEngine with the built-in templates pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{
		templates: make(map[string]*Template),
	}
	e.registerBuiltIn()
	return e
}

func (e *TemplateEngine) registerBuiltIn() {
	builtIn := []Template{
		{
			ID:      TemplatePatientReminder,
			Name:    "Patient Reminder",
			Subject: "{{title}}",
			Body:    "<p>Hola {{patient_name}},</p><p><strong>{{title}}</strong></p><p>{{body}}</p>",
			HTML:    true,
		},
		{
			ID:      TemplateConsentEmail,
			Name:    "Consent Email",
			Subject: "Consentimientos y próximos pasos",
			Body: "<p>Hola {{patient_name}},</p>" +
				"<p>Adjuntamos los consentimientos informados asociados a tu procedimiento: {{procedure}}.</p>" +
				"<p>La fecha exacta de la cirugía será confirmada por tu equipo médico.</p>" +
				"<p>Puedes revisar y firmar tus consentimientos en el portal del paciente: " +
				"<a href=\"{{portal_url}}\">{{portal_url}}</a></p>" +
				"<p>Ingresa con tu correo y tu número de cédula.</p>",
			HTML: true,
		},
	}
	for i := range builtIn {
		t := builtIn[i]
		e.templates[t.ID] = &t
	}
}

// RegisterTemplate adds or replaces a template in the engine.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render looks up a template by ID and performs {{key}} replacement using the
// supplied data map. Keys present in the template but absent from data are left
// as-is. Subjects are never escaped.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	subject = t.Subject
	body = t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		if t.HTML {
			v = html.EscapeString(v)
		}
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body, nil
}

package notifications

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"text/template"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"gopkg.in/yaml.v3"

	"github.com/hanko-field/commerce/internal/payments"
	"github.com/hanko-field/commerce/internal/services"
)

//go:embed templates/*.md
var mailTemplates embed.FS

// ErrUnknownMailKind is returned when no template exists for a mail kind.
var ErrUnknownMailKind = errors.New("notifications: unknown mail kind")

// MailJob is the payload consumed by the mail worker.
type MailJob struct {
	ID       string    `json:"id"`
	Kind     string    `json:"kind"`
	To       string    `json:"to"`
	ToName   string    `json:"to_name,omitempty"`
	Subject  string    `json:"subject"`
	HTML     string    `json:"html"`
	Text     string    `json:"text"`
	OrderID  string    `json:"order_id"`
	QueuedAt time.Time `json:"queued_at"`
}

type mailFrontMatter struct {
	Subject string `yaml:"subject"`
}

type mailTemplate struct {
	subject *template.Template
	body    *template.Template
}

// MailRenderer turns order mail kinds into subject, text and sanitised HTML.
type MailRenderer struct {
	templates map[string]mailTemplate
	markdown  goldmark.Markdown
	policy    *bluemonday.Policy
}

// NewMailRenderer parses the embedded templates.
func NewMailRenderer() (*MailRenderer, error) {
	entries, err := fs.Glob(mailTemplates, "templates/*.md")
	if err != nil {
		return nil, fmt.Errorf("list mail templates: %w", err)
	}
	renderer := &MailRenderer{
		templates: make(map[string]mailTemplate, len(entries)),
		markdown:  goldmark.New(goldmark.WithExtensions(extension.Table)),
		policy:    newMailHTMLPolicy(),
	}
	for _, name := range entries {
		raw, err := mailTemplates.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		kind := strings.TrimSuffix(path.Base(name), ".md")
		parsed, err := parseMailTemplate(kind, string(raw))
		if err != nil {
			return nil, err
		}
		renderer.templates[kind] = parsed
	}
	return renderer, nil
}

func parseMailTemplate(kind, raw string) (mailTemplate, error) {
	fm, body := splitFrontMatter(raw)
	var meta mailFrontMatter
	if strings.TrimSpace(fm) != "" {
		if err := yaml.Unmarshal([]byte(fm), &meta); err != nil {
			return mailTemplate{}, fmt.Errorf("parse front matter for %s: %w", kind, err)
		}
	}
	if strings.TrimSpace(meta.Subject) == "" {
		return mailTemplate{}, fmt.Errorf("mail template %s: subject is required", kind)
	}
	funcs := template.FuncMap{"money": payments.FormatAmount}
	subject, err := template.New(kind + ".subject").Funcs(funcs).Option("missingkey=error").Parse(meta.Subject)
	if err != nil {
		return mailTemplate{}, fmt.Errorf("parse subject for %s: %w", kind, err)
	}
	bodyTmpl, err := template.New(kind).Funcs(funcs).Option("missingkey=error").Parse(body)
	if err != nil {
		return mailTemplate{}, fmt.Errorf("parse body for %s: %w", kind, err)
	}
	return mailTemplate{subject: subject, body: bodyTmpl}, nil
}

type mailView struct {
	Name        string
	OrderID     string
	OrderNumber string
	Currency    string
	Total       int64
	Deposit     int64
	Remaining   int64
	Status      string
	Approval    string
	Refund      string
	Reason      string
}

func newMailView(order services.Order) mailView {
	name := strings.TrimSpace(order.Contact.Name)
	if name == "" {
		name = "customer"
	}
	number := order.OrderNumber
	if number == "" {
		number = order.ID
	}
	reason := order.RejectReason
	if reason == "" {
		reason = order.CancelReason
	}
	return mailView{
		Name:        name,
		OrderID:     order.ID,
		OrderNumber: number,
		Currency:    order.Currency,
		Total:       order.TotalAmount,
		Deposit:     order.DepositAmount,
		Remaining:   order.RemainingPaymentAmount,
		Status:      string(order.Status),
		Approval:    string(order.ApprovalStatus),
		Refund:      string(order.RefundStatus),
		Reason:      reason,
	}
}

// Render produces the subject, plain text and HTML bodies for kind.
func (r *MailRenderer) Render(kind string, order services.Order) (subject, text, html string, err error) {
	tmpl, ok := r.templates[kind]
	if !ok {
		return "", "", "", fmt.Errorf("%w: %s", ErrUnknownMailKind, kind)
	}
	view := newMailView(order)

	var buf bytes.Buffer
	if err := tmpl.subject.Execute(&buf, view); err != nil {
		return "", "", "", fmt.Errorf("render subject %s: %w", kind, err)
	}
	subject = strings.TrimSpace(buf.String())

	buf.Reset()
	if err := tmpl.body.Execute(&buf, view); err != nil {
		return "", "", "", fmt.Errorf("render body %s: %w", kind, err)
	}
	text = strings.TrimSpace(buf.String())

	var out bytes.Buffer
	if err := r.markdown.Convert([]byte(text), &out); err != nil {
		return "", "", "", fmt.Errorf("convert markdown %s: %w", kind, err)
	}
	html = strings.TrimSpace(r.policy.Sanitize(out.String()))
	return subject, text, html, nil
}

// Kinds lists the mail kinds with a template.
func (r *MailRenderer) Kinds() []string {
	kinds := make([]string, 0, len(r.templates))
	for kind := range r.templates {
		kinds = append(kinds, kind)
	}
	return kinds
}

func newMailHTMLPolicy() *bluemonday.Policy {
	policy := bluemonday.UGCPolicy()
	policy.RequireNoFollowOnLinks(true)
	policy.AddTargetBlankToFullyQualifiedLinks(true)
	return policy
}

func splitFrontMatter(input string) (string, string) {
	input = strings.TrimLeft(input, "\ufeff")
	lines := strings.Split(input, "\n")
	if strings.TrimSpace(lines[0]) != "---" {
		return "", input
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			fm := strings.Join(lines[1:i], "\n")
			body := strings.Join(lines[i+1:], "\n")
			return fm, strings.TrimLeft(body, "\n\r")
		}
	}
	return "", input
}

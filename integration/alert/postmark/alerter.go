package postmark

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"regexp"
	"strings"

	"github.com/mrz1836/postmark"

	"github.com/dmitrymomot/eventgateway/core/dispatch"
)

var _ dispatch.Alerter = (*Alerter)(nil)

// Alerter e-mails retry-exhausted events to operators through Postmark.
type Alerter struct {
	client *postmark.Client
	config Config
}

// Option configures an Alerter.
type Option func(*Alerter)

// WithHTTPClient replaces the HTTP client used to reach Postmark.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Alerter) {
		if c != nil {
			a.client.HTTPClient = c
		}
	}
}

// WithBaseURL points the client at a different API endpoint.
func WithBaseURL(url string) Option {
	return func(a *Alerter) {
		if url != "" {
			a.client.BaseURL = strings.TrimSuffix(url, "/")
		}
	}
}

// New validates cfg and creates an alerter.
func New(cfg Config, opts ...Option) (*Alerter, error) {
	if cfg.ServerToken == "" {
		return nil, fmt.Errorf("%w: ServerToken is required", ErrInvalidConfig)
	}
	if !isValidEmail(cfg.SenderEmail) {
		return nil, fmt.Errorf("%w: SenderEmail must be a valid email address", ErrInvalidConfig)
	}
	if len(cfg.Recipients) == 0 {
		return nil, fmt.Errorf("%w: at least one recipient is required", ErrInvalidConfig)
	}
	for _, r := range cfg.Recipients {
		if !isValidEmail(r) {
			return nil, fmt.Errorf("%w: invalid recipient %q", ErrInvalidConfig, r)
		}
	}

	a := &Alerter{
		client: postmark.NewClient(cfg.ServerToken, cfg.AccountToken),
		config: cfg,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// MustNew is New that panics on invalid configuration.
func MustNew(cfg Config, opts ...Option) *Alerter {
	a, err := New(cfg, opts...)
	if err != nil {
		panic(err)
	}
	return a
}

// Alert sends one e-mail per alert to every configured recipient.
func (a *Alerter) Alert(ctx context.Context, al dispatch.Alert) error {
	var body strings.Builder
	if err := bodyTemplate.Execute(&body, alertView(al)); err != nil {
		return errors.Join(ErrFailedToSendAlert, err)
	}

	resp, err := a.client.SendEmail(ctx, postmark.Email{
		From:     a.config.SenderEmail,
		To:       strings.Join(a.config.Recipients, ","),
		Subject:  fmt.Sprintf("[gateway] event %s failed after %d attempts", al.EventType, al.Attempts),
		Tag:      a.config.Tag,
		HTMLBody: body.String(),
	})
	if err != nil {
		return errors.Join(ErrFailedToSendAlert, err)
	}
	if resp.ErrorCode > 0 {
		return errors.Join(
			ErrFailedToSendAlert,
			fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message),
		)
	}
	return nil
}

type view struct {
	EventID       string
	EventType     string
	CorrelationID string
	Attempts      int
	Error         string
	At            string
}

func alertView(a dispatch.Alert) view {
	v := view{
		EventID:       a.EventID.String(),
		EventType:     a.EventType,
		CorrelationID: a.CorrelationID,
		Attempts:      a.Attempts,
		At:            a.At.UTC().Format("2006-01-02 15:04:05 MST"),
	}
	if a.Err != nil {
		v.Error = a.Err.Error()
	}
	return v
}

var bodyTemplate = template.Must(template.New("alert").Parse(`<h2>Event delivery failed</h2>
<table>
<tr><td>Event</td><td>{{.EventID}}</td></tr>
<tr><td>Type</td><td>{{.EventType}}</td></tr>
{{if .CorrelationID}}<tr><td>Correlation</td><td>{{.CorrelationID}}</td></tr>{{end}}
<tr><td>Attempts</td><td>{{.Attempts}}</td></tr>
<tr><td>Failed at</td><td>{{.At}}</td></tr>
</table>
<pre>{{.Error}}</pre>
<p>Replay it with <code>POST /api/v1/events/{{.EventID}}/replay</code> once the cause is fixed.</p>
`))

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func isValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

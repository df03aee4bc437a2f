// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package notify

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"golang.org/x/text/language"

	"github.com/tomtom215/bookpro/internal/events"
	"github.com/tomtom215/bookpro/internal/models"
	"github.com/tomtom215/bookpro/internal/money"
)

type messageTemplate struct {
	subject *template.Template
	body    *template.Template
}

const signature = `
{{.BusinessName}}
`

var templateSources = map[string][2]string{
	events.TopicBookingCreated: {
		`{{if .AwaitingPayment}}Complete your booking with {{.BusinessName}}{{else}}Booking received: {{.ServiceName}}{{end}}`,
		`Hi {{.ClientName}},

{{if .AwaitingPayment}}We are holding {{.ServiceName}} on {{when .StartAt}} for you.
Please complete the payment of {{money .AmountDueCents .Currency}} to confirm it. The hold is released if the payment is not completed in time.
{{else}}Your booking for {{.ServiceName}} on {{when .StartAt}} is confirmed.
{{end}}` + signature,
	},
	events.TopicBookingConfirmed: {
		`Booking confirmed: {{.ServiceName}} on {{day .StartAt}}`,
		`Hi {{.ClientName}},

We received your payment of {{money .AmountDueCents .Currency}}. Your booking for {{.ServiceName}} on {{when .StartAt}} is confirmed.
` + signature,
	},
	events.TopicBookingCancelled: {
		`Booking cancelled: {{.ServiceName}} on {{day .StartAt}}`,
		`Hi {{.ClientName}},

Your booking for {{.ServiceName}} on {{when .StartAt}} has been cancelled.{{if .Reason}}
Reason: {{.Reason}}{{end}}
{{if .Refunded}}Your payment of {{money .AmountDueCents .Currency}} will be refunded to the original payment method.
{{end}}` + signature,
	},
	events.TopicBookingRescheduled: {
		`Booking moved: {{.ServiceName}} is now on {{day .StartAt}}`,
		`Hi {{.ClientName}},

Your booking for {{.ServiceName}}{{if .PreviousStartAt}} on {{when .PreviousStartAt}}{{end}} has moved to {{when .StartAt}}.
` + signature,
	},
	events.TopicBookingReminder: {
		`Reminder: {{.ServiceName}} on {{day .StartAt}}`,
		`Hi {{.ClientName}},

This is a reminder of your booking for {{.ServiceName}} on {{when .StartAt}}.
` + signature,
	},
	events.TopicBookingExpired: {
		`Booking not completed: {{.ServiceName}}`,
		`Hi {{.ClientName}},

We did not receive the payment for {{.ServiceName}} on {{when .StartAt}}, so the time is free again. You are welcome to book another slot.
` + signature,
	},
}

// Renderer turns booking events into messages.
type Renderer struct {
	templates map[string]messageTemplate
	lang      language.Tag
}

// NewRenderer parses the built-in templates.
func NewRenderer() (*Renderer, error) {
	r := &Renderer{templates: make(map[string]messageTemplate, len(templateSources)), lang: language.English}
	funcs := template.FuncMap{
		"money": func(cents int64, code string) string { return money.Format(cents, code, r.lang) },
	}
	for topic, src := range templateSources {
		subject, err := template.New(topic + ".subject").Funcs(funcs).Funcs(timeFuncs(nil)).Parse(src[0])
		if err != nil {
			return nil, fmt.Errorf("parse %s subject: %w", topic, err)
		}
		body, err := template.New(topic + ".body").Funcs(funcs).Funcs(timeFuncs(nil)).Parse(src[1])
		if err != nil {
			return nil, fmt.Errorf("parse %s body: %w", topic, err)
		}
		r.templates[topic] = messageTemplate{subject: subject, body: body}
	}
	return r, nil
}

// Supports reports whether topic has a template.
func (r *Renderer) Supports(topic string) bool {
	_, ok := r.templates[topic]
	return ok
}

type templateData struct {
	*events.BookingEvent
	AwaitingPayment bool
}

// Render builds the message for ev. Times are shown in the business's zone.
func (r *Renderer) Render(ev *events.BookingEvent) (Message, error) {
	tmpl, ok := r.templates[ev.Type]
	if !ok {
		return Message{}, fmt.Errorf("no template for %q", ev.Type)
	}
	loc, err := time.LoadLocation(ev.BusinessTimezone)
	if err != nil || ev.BusinessTimezone == "" {
		loc = time.UTC
	}
	data := templateData{
		BookingEvent:    ev,
		AwaitingPayment: ev.Status == string(models.BookingPendingPayment),
	}

	var subject, body bytes.Buffer
	if err := template.Must(tmpl.subject.Clone()).Funcs(timeFuncs(loc)).Execute(&subject, data); err != nil {
		return Message{}, fmt.Errorf("render %s subject: %w", ev.Type, err)
	}
	if err := template.Must(tmpl.body.Clone()).Funcs(timeFuncs(loc)).Execute(&body, data); err != nil {
		return Message{}, fmt.Errorf("render %s body: %w", ev.Type, err)
	}
	return Message{
		To:      ev.ClientEmail,
		ToName:  ev.ClientName,
		Subject: strings.TrimSpace(subject.String()),
		Text:    strings.TrimSpace(body.String()) + "\n",
		Kind:    ev.Type,
	}, nil
}

func timeFuncs(loc *time.Location) template.FuncMap {
	if loc == nil {
		loc = time.UTC
	}
	return template.FuncMap{
		"when": func(t any) string {
			at, ok := asTime(t)
			if !ok {
				return ""
			}
			return at.In(loc).Format("Monday 2 January 2006 at 15:04 MST")
		},
		"day": func(t any) string {
			at, ok := asTime(t)
			if !ok {
				return ""
			}
			return at.In(loc).Format("Mon 2 Jan")
		},
	}
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	}
	return time.Time{}, false
}

package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gathergrid/gathergrid-backend/pkg/config"
	"github.com/gathergrid/gathergrid-backend/pkg/db/models"
	"github.com/gathergrid/gathergrid-backend/pkg/enums"
	pkgerrors "github.com/gathergrid/gathergrid-backend/pkg/errors"
	"github.com/gathergrid/gathergrid-backend/pkg/logger"
	"github.com/gathergrid/gathergrid-backend/pkg/mail"
	"github.com/gathergrid/gathergrid-backend/pkg/metrics"
)

// DocumentRenderer turns a queue payload into the HTML document for its kind.
type DocumentRenderer interface {
	OrderReceipt(payload OrderReceiptPayload) ([]byte, error)
	VendorInvoice(payload VendorInvoicePayload) ([]byte, error)
	EventTicket(payload EventTicketPayload) ([]byte, error)
}

// PDFRenderer converts a rendered HTML document to PDF bytes.
type PDFRenderer interface {
	Render(ctx context.Context, html []byte) ([]byte, error)
}

// Dispatcher drains the notification queue: render, convert, send, then mark
// the row sent, retried, or dead.
type Dispatcher struct {
	repo      Repository
	documents DocumentRenderer
	pdf       PDFRenderer
	sender    mail.Sender
	cfg       config.WorkerConfig
	logg      *logger.Logger
	jobs      *metrics.JobMetrics
	now       func() time.Time
}

// NewDispatcher builds the queue dispatcher with its collaborators.
func NewDispatcher(
	repo Repository,
	documents DocumentRenderer,
	pdf PDFRenderer,
	sender mail.Sender,
	cfg config.WorkerConfig,
	logg *logger.Logger,
	jobs *metrics.JobMetrics,
) (*Dispatcher, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if documents == nil {
		return nil, fmt.Errorf("document renderer required")
	}
	if pdf == nil {
		return nil, fmt.Errorf("pdf renderer required")
	}
	if sender == nil {
		return nil, fmt.Errorf("mail sender required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Dispatcher{
		repo:      repo,
		documents: documents,
		pdf:       pdf,
		sender:    sender,
		cfg:       cfg,
		logg:      logg,
		jobs:      jobs,
		now:       time.Now,
	}, nil
}

// Run polls the queue until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := d.DrainOnce(ctx); err != nil {
				d.logg.Error(ctx, "drain notification queue", err)
			}
		}
	}
}

// DrainOnce processes one batch of due jobs and reports how many were
// attempted. Per-job failures schedule a retry and never stop the batch.
func (d *Dispatcher) DrainOnce(ctx context.Context) (int, error) {
	started := d.now()
	jobs, err := d.repo.FindDue(ctx, started.UTC(), d.cfg.BatchSize)
	if err != nil {
		d.jobs.IncFailure("notification_drain")
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load due jobs")
	}

	for _, job := range jobs {
		if err := d.deliver(ctx, job); err != nil {
			d.jobs.IncFailure("notification_deliver")
			d.retryOrBury(ctx, job, err)
			continue
		}
		d.jobs.IncSuccess("notification_deliver")
		if err := d.repo.MarkSent(ctx, job.ID, d.now().UTC()); err != nil {
			d.logg.Error(ctx, "mark notification sent", err)
		}
	}

	d.jobs.ObserveDuration("notification_drain", d.now().Sub(started))
	return len(jobs), nil
}

func (d *Dispatcher) deliver(ctx context.Context, job models.NotificationJob) error {
	html, subject, filename, err := d.renderDocument(job)
	if err != nil {
		return err
	}

	doc, err := d.pdf.Render(ctx, html)
	if err != nil {
		return err
	}

	return d.sender.Send(ctx, mail.Message{
		To:       job.Recipient,
		Subject:  subject,
		HTMLBody: string(html),
		Attachments: []mail.Attachment{{
			Filename:    filename,
			ContentType: "application/pdf",
			Data:        doc,
		}},
	})
}

func (d *Dispatcher) renderDocument(job models.NotificationJob) (html []byte, subject, filename string, err error) {
	switch job.Kind {
	case enums.NotificationKindOrderReceipt:
		var payload OrderReceiptPayload
		if err = json.Unmarshal(job.Payload, &payload); err != nil {
			break
		}
		html, err = d.documents.OrderReceipt(payload)
		subject = fmt.Sprintf("Your GatherGrid receipt for order %s", payload.OrderRef)
		filename = fmt.Sprintf("receipt-%s.pdf", payload.OrderRef)
	case enums.NotificationKindVendorInvoice:
		var payload VendorInvoicePayload
		if err = json.Unmarshal(job.Payload, &payload); err != nil {
			break
		}
		html, err = d.documents.VendorInvoice(payload)
		subject = fmt.Sprintf("New GatherGrid order %s", payload.OrderRef)
		filename = fmt.Sprintf("invoice-%s.pdf", payload.OrderRef)
	case enums.NotificationKindEventTicket:
		var payload EventTicketPayload
		if err = json.Unmarshal(job.Payload, &payload); err != nil {
			break
		}
		html, err = d.documents.EventTicket(payload)
		subject = fmt.Sprintf("Your ticket for %s", payload.EventName)
		filename = fmt.Sprintf("ticket-%s.pdf", payload.TicketID)
	default:
		err = pkgerrors.New(pkgerrors.CodeInternal, "unknown notification kind").
			WithDetails(map[string]any{"kind": job.Kind})
	}
	if err != nil {
		return nil, "", "", err
	}
	return html, subject, filename, nil
}

// retryOrBury reschedules with capped exponential backoff, dead-lettering
// once attempts are exhausted.
func (d *Dispatcher) retryOrBury(ctx context.Context, job models.NotificationJob, cause error) {
	attempts := job.Attempts + 1
	if attempts >= d.cfg.MaxAttempts {
		d.logg.Error(ctx, "notification dead-lettered", cause)
		if err := d.repo.MarkDead(ctx, job.ID, cause.Error()); err != nil {
			d.logg.Error(ctx, "mark notification dead", err)
		}
		return
	}

	next := d.now().UTC().Add(d.backoff(attempts))
	if err := d.repo.MarkFailed(ctx, job.ID, attempts, next, cause.Error()); err != nil {
		d.logg.Error(ctx, "mark notification failed", err)
	}
}

func (d *Dispatcher) backoff(attempts int) time.Duration {
	delay := d.cfg.BaseRetryInterval
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= d.cfg.MaxRetryInterval {
			return d.cfg.MaxRetryInterval
		}
	}
	if delay > d.cfg.MaxRetryInterval {
		return d.cfg.MaxRetryInterval
	}
	return delay
}

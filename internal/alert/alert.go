// Package alert implements the alert pipeline: a threshold-filtered
// queue of Records, an hourly-rotated log file, and HTML/SMTP delivery
// to a configurable recipient list. The consumer-loop runs over a
// worker-pool queue; the mail transport itself uses the standard
// library's net/smtp (see DESIGN.md).
package alert

import (
	"context"
	"fmt"
	"html/template"
	"net/smtp"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/icsd/icsd/internal/xerrors"
	"go.uber.org/zap"
)

// Level is an alert's severity, ordered low to high so threshold
// comparisons (level >= floor) are a simple integer comparison.
type Level int

const (
	NotSet   Level = 0
	Info     Level = 10
	Warning  Level = 20
	Error    Level = 30
	Critical Level = 40
)

func (l Level) String() string {
	switch l {
	case Critical:
		return "CRITICAL"
	case Error:
		return "ERROR"
	case Warning:
		return "WARNING"
	case Info:
		return "INFO"
	default:
		return "NOTSET"
	}
}

// ParseLevel resolves a level name, case-insensitive.
func ParseLevel(name string) (Level, error) {
	switch strings.ToUpper(name) {
	case "CRITICAL":
		return Critical, nil
	case "ERROR":
		return Error, nil
	case "WARNING":
		return Warning, nil
	case "INFO":
		return Info, nil
	case "NOTSET", "":
		return NotSet, nil
	default:
		return NotSet, xerrors.Newf("invalid alert level %q", name)
	}
}

// Record is one raised alert.
type Record struct {
	Time         time.Time
	ClusterName  string
	HostName     string
	ResourceName string
	GroupName    string
	Level        Level
	Message      string
}

func (r Record) String() string {
	return strings.Join([]string{
		r.Time.Format("01/02/2006 15:04:05"),
		r.Level.String(),
		r.ClusterName,
		r.GroupName,
		r.ResourceName,
		`"` + r.Message + `"`,
	}, " ")
}

// Queue is the thread-safe FIFO of raised alerts feeding Handler.run,
// the alert-side twin of internal/events.Queue.
type Queue struct {
	mu    sync.Mutex
	cond  *sync.Cond
	items []Record
	closed bool
}

// NewQueue creates an empty alert queue.
func NewQueue() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends a Record and wakes the handler goroutine.
func (q *Queue) Push(r Record) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items = append(q.items, r)
	q.cond.Signal()
}

// Pop blocks for the next Record until ctx is done or the queue closes.
func (q *Queue) Pop(ctx context.Context) (Record, bool) {
	done := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		close(done)
		q.cond.Broadcast()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if len(q.items) > 0 {
			r := q.items[0]
			q.items = q.items[1:]
			return r, true
		}
		if q.closed {
			return Record{}, false
		}
		select {
		case <-done:
			return Record{}, false
		default:
		}
		q.cond.Wait()
	}
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

// Mailer sends a rendered HTML alert body to recipient. SMTPMailer is
// the production implementation; tests substitute a fake.
type Mailer interface {
	Send(recipient, subject, htmlBody string) error
}

// SMTPMailer delivers alerts through a plain SMTP relay (no TLS
// negotiation beyond what net/smtp.SendMail itself offers), relying on
// a local/relay MTA rather than a hosted API.
type SMTPMailer struct {
	Addr string // host:port of the SMTP relay
	From string
	Auth smtp.Auth // nil for an open relay
}

func (m *SMTPMailer) Send(recipient, subject, htmlBody string) error {
	headers := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n",
		m.From, recipient, subject)
	msg := []byte(headers + htmlBody)
	return smtp.SendMail(m.Addr, m.Auth, m.From, []string{recipient}, msg)
}

// Handler is the alert consumer: drops alerts below the threshold level,
// and appends each alert meeting it to the hourly-rotated log file and
// mails it to every recipient.
type Handler struct {
	mu          sync.Mutex
	level       Level
	recipients  []string
	logDir      string
	hostName    string
	clusterName string
	mailer      Mailer
	htmlTmpl    *template.Template
	log         *zap.SugaredLogger

	queue *Queue

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewHandler creates a Handler. htmlTemplate is the body used for
// mailed alerts, loaded once at startup.
func NewHandler(queue *Queue, logDir, hostName, clusterName string, mailer Mailer, htmlTemplate string, log *zap.SugaredLogger) (*Handler, error) {
	tmpl, err := template.New("alert").Parse(htmlTemplate)
	if err != nil {
		return nil, xerrors.Wrap(err, "parse alert html template")
	}
	return &Handler{
		queue:       queue,
		logDir:      logDir,
		hostName:    hostName,
		clusterName: clusterName,
		mailer:      mailer,
		htmlTmpl:    tmpl,
		log:         log,
	}, nil
}

// SetLevel changes the alert threshold at runtime (alert set_level RPC).
func (h *Handler) SetLevel(level Level) {
	h.mu.Lock()
	defer h.mu.Unlock()
	prev := h.level
	h.level = level
	h.log.Infow("alert level changed", "from", prev, "to", level)
}

func (h *Handler) Level() Level {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.level
}

// AddRecipient appends a mail recipient.
func (h *Handler) AddRecipient(recipient string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recipients = append(h.recipients, recipient)
}

// RemoveRecipient removes a mail recipient.
func (h *Handler) RemoveRecipient(recipient string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, r := range h.recipients {
		if r == recipient {
			h.recipients = append(h.recipients[:i], h.recipients[i+1:]...)
			return nil
		}
	}
	return xerrors.Wrapf(xerrors.ErrNotFound, "recipient %q", recipient)
}

// SetRecipients replaces the recipient list wholesale.
func (h *Handler) SetRecipients(recipients []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recipients = append([]string(nil), recipients...)
}

func (h *Handler) recipientSnapshot() []string {
	return h.Recipients()
}

// Recipients returns a copy of the current mail recipient list.
func (h *Handler) Recipients() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.recipients...)
}

// Start spawns the consumer goroutine.
func (h *Handler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.wg.Add(1)
	go h.run(ctx)
}

// Stop cancels the consumer and waits for it to exit.
func (h *Handler) Stop() {
	if h.cancel != nil {
		h.cancel()
	}
	h.queue.Close()
	h.wg.Wait()
}

func (h *Handler) run(ctx context.Context) {
	defer h.wg.Done()
	for {
		if n := h.queue.Len(); n > 0 {
			h.log.Debugw("alerts queued", "count", n)
		}
		rec, ok := h.queue.Pop(ctx)
		if !ok {
			return
		}
		if rec.Level >= h.Level() {
			if err := h.appendLog(rec); err != nil {
				h.log.Errorw("failed to write alert log", "error", err)
			}
			h.mail(rec)
		}
	}
}

// appendLog appends rec to the current hour's log file, rotating on the
// hour boundary ("alerts.log.YYYY-MM-DD_HH").
func (h *Handler) appendLog(rec Record) error {
	path := filepath.Join(h.logDir, "alerts.log."+rec.Time.Format("2006-01-02_15"))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintln(f, rec.String())
	return err
}

func (h *Handler) mail(rec Record) {
	recipients := h.recipientSnapshot()
	if len(recipients) == 0 {
		h.log.Warnw("alert recipient list is empty, no alerts sent")
		return
	}

	var body strings.Builder
	if err := h.htmlTmpl.Execute(&body, rec); err != nil {
		h.log.Errorw("failed to render alert template", "error", err)
		return
	}
	subject := fmt.Sprintf("ICS %s Alert - %s", rec.Level, rec.ResourceName)

	for _, recipient := range recipients {
		if err := h.mailer.Send(recipient, subject, body.String()); err != nil {
			h.log.Errorw("unable to send alert mail", "recipient", recipient, "error", err)
		}
	}
}

// DefaultHTMLTemplate is used when no alert.html override is configured.
const DefaultHTMLTemplate = `<html><body>
<p>{{.Message}}</p>
<table>
<tr><td>System</td><td>{{.ClusterName}}</td></tr>
<tr><td>Host</td><td>{{.HostName}}</td></tr>
<tr><td>Group</td><td>{{.GroupName}}</td></tr>
<tr><td>Resource</td><td>{{.ResourceName}}</td></tr>
<tr><td>Time</td><td>{{.Time}}</td></tr>
</table>
</body></html>`

package notify

import (
	"bytes"
	"context"
	"html/template"

	"github.com/jonathan/bin-crew/internal/outbox"
	"github.com/jonathan/bin-crew/internal/types"
	"go.uber.org/zap"
)

var assignmentTemplate = template.Must(template.New("assignment").Parse(
	`<p>Hi {{.Name}},</p>
<p>You have {{len .Jobs}} new cleaning{{if ne (len .Jobs) 1}}s{{end}} scheduled for {{.Date}}:</p>
<ul>{{range .Jobs}}
<li>{{.CustomerName}} - {{.Address.String}}{{if .TimeWindow}} ({{.TimeWindow}}){{end}}</li>{{end}}
</ul>`))

var certifiedTemplate = template.Must(template.New("certified").Parse(
	`<p>Hi {{.Name}},</p>
<p>You have completed all required training modules and can now clock in and work routes.</p>`))

// Notifier renders employee notifications and hands them to the outbox.
type Notifier struct {
	mailer Mailer
	queue  outbox.Enqueuer
	logger *zap.Logger
}

// NewNotifier creates a notifier.
func NewNotifier(mailer Mailer, queue outbox.Enqueuer, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{mailer: mailer, queue: queue, logger: logger}
}

// JobsAssigned tells an employee about newly assigned jobs.
func (n *Notifier) JobsAssigned(emp *types.Employee, date string, jobs []types.Job) {
	if emp == nil || emp.Email == "" || len(jobs) == 0 {
		return
	}
	var body bytes.Buffer
	err := assignmentTemplate.Execute(&body, struct {
		Name string
		Date string
		Jobs []types.Job
	}{emp.Name, date, jobs})
	if err != nil {
		n.logger.Warn("failed to render assignment email", zap.String("employee_id", emp.ID), zap.Error(err))
		return
	}
	n.dispatch(Message{To: emp.Email, Subject: "New cleanings assigned for " + date, HTML: body.String()})
}

// Certified congratulates an employee who just became fully certified.
func (n *Notifier) Certified(emp *types.Employee) {
	if emp == nil || emp.Email == "" {
		return
	}
	var body bytes.Buffer
	if err := certifiedTemplate.Execute(&body, emp); err != nil {
		n.logger.Warn("failed to render certification email", zap.String("employee_id", emp.ID), zap.Error(err))
		return
	}
	n.dispatch(Message{To: emp.Email, Subject: "You're certified", HTML: body.String()})
}

func (n *Notifier) dispatch(msg Message) {
	err := n.queue.Enqueue("email", func(ctx context.Context) error {
		return n.mailer.Send(ctx, msg)
	})
	if err != nil {
		n.logger.Warn("failed to enqueue email", zap.String("to", msg.To), zap.Error(err))
	}
}

package notification

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tbauer79999/rei-crm-sub004/platform/logger"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"
)

const defaultChannelTimeout = 8 * time.Second

var errChannelNotConfigured = errors.New("channel not configured")

// SMSSender delivers a text message to one phone number.
type SMSSender interface {
	SendSMS(ctx context.Context, to string, body string) error
}

// EmailSender delivers an alert email to one address.
type EmailSender interface {
	SendAlertEmail(ctx context.Context, to string, p Payload) error
}

// SlackPoster posts an alert to a Slack incoming webhook.
type SlackPoster interface {
	PostAlert(ctx context.Context, webhookURL string, p Payload) error
}

// Notifier fans an alert out to every eligible channel concurrently.
type Notifier struct {
	sms      SMSSender
	email    EmailSender
	slack    SlackPoster
	timeout  time.Duration
	breakers map[Channel]*gobreaker.CircuitBreaker
	log      *logger.Logger
}

// NewNotifier accepts nil senders; the matching channel is then never attempted.
func NewNotifier(sms SMSSender, email EmailSender, slack SlackPoster, timeout time.Duration, log *logger.Logger) *Notifier {
	if timeout <= 0 {
		timeout = defaultChannelTimeout
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Notifier{
		sms:     sms,
		email:   email,
		slack:   slack,
		timeout: timeout,
		breakers: map[Channel]*gobreaker.CircuitBreaker{
			ChannelSMS:   newBreaker(ChannelSMS, log),
			ChannelEmail: newBreaker(ChannelEmail, log),
			ChannelSlack: newBreaker(ChannelSlack, log),
		},
		log: log,
	}
}

// Eligible lists the channels an alert would go to for the given recipients.
func (n *Notifier) Eligible(r Recipients) []Channel {
	channels := make([]Channel, 0, 3)
	if r.Phone != "" && r.Preference != PreferenceEmail && n.sms != nil {
		channels = append(channels, ChannelSMS)
	}
	if r.Email != "" && r.Preference != PreferenceSMS && n.email != nil {
		channels = append(channels, ChannelEmail)
	}
	if r.SlackWebhookURL != "" && n.slack != nil {
		channels = append(channels, ChannelSlack)
	}
	return channels
}

// Notify attempts every eligible channel in parallel, each under its own
// timeout. One channel failing never blocks or cancels the others.
func (n *Notifier) Notify(ctx context.Context, r Recipients, p Payload) Report {
	channels := n.Eligible(r)
	report := Report{
		Attempted: channels,
		Delivered: []Channel{},
		Failed:    map[Channel]string{},
	}

	var mu sync.Mutex
	var g errgroup.Group
	for _, ch := range channels {
		g.Go(func() error {
			err := n.deliver(ctx, ch, r, p)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed[ch] = err.Error()
				n.log.NotificationFailed(string(ch), p.LeadID.String(), err)
				return nil
			}
			report.Delivered = append(report.Delivered, ch)
			return nil
		})
	}
	_ = g.Wait()

	report.sort()
	return report
}

func (n *Notifier) deliver(ctx context.Context, ch Channel, r Recipients, p Payload) error {
	chCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	send := func() (interface{}, error) {
		switch ch {
		case ChannelSMS:
			return nil, n.sms.SendSMS(chCtx, r.Phone, smsText(p))
		case ChannelEmail:
			return nil, n.email.SendAlertEmail(chCtx, r.Email, p)
		case ChannelSlack:
			return nil, n.slack.PostAlert(chCtx, r.SlackWebhookURL, p)
		default:
			return nil, errChannelNotConfigured
		}
	}

	breaker, ok := n.breakers[ch]
	if !ok {
		_, err := send()
		return err
	}
	_, err := breaker.Execute(send)
	return err
}

func smsText(p Payload) string {
	text := p.Title
	if p.Body != "" {
		text += "\n" + p.Body
	}
	if p.DashboardURL != "" {
		text += "\n" + p.DashboardURL
	}
	return text
}

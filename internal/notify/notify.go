package notify

import (
	"context"
	"gift_registry/internal/domain"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Notifier composes registry emails and dispatches them in the background.
// Delivery failures are logged and dropped.
type Notifier struct {
	sender  Sender
	baseURL string
	timeout time.Duration
	wg      sync.WaitGroup
}

// New returns a Notifier linking back to the frontend at baseURL
func New(sender Sender, baseURL string) *Notifier {
	return &Notifier{sender: sender, baseURL: strings.TrimRight(baseURL, "/"), timeout: 15 * time.Second}
}

// ContributionReceived emails a receipt to the contributor when an address was
// given, and a notice to the registry owner.
func (n *Notifier) ContributionReceived(reg *domain.Registry, fund *domain.Fund, owner *domain.User, c *domain.Contribution) {
	msgs, err := n.contributionMessages(reg, fund, owner, c)
	if err != nil {
		logrus.WithError(err).WithField("contribution_id", c.ID).Error("failed to render contribution emails")
		return
	}
	n.dispatch(msgs...)
}

// PasswordReset emails the reset link carrying token
func (n *Notifier) PasswordReset(u *domain.User, token string) {
	html, text, err := render(resetHTML, resetText, resetView{Name: u.Name, Link: n.baseURL + "/reset-password?token=" + token})
	if err != nil {
		logrus.WithError(err).WithField("user_id", u.ID).Error("failed to render reset email")
		return
	}
	n.dispatch(Message{To: u.Email, Subject: "Reset your password", HTML: html, Text: text})
}

// Wait blocks until every dispatched email has been attempted
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func (n *Notifier) contributionMessages(reg *domain.Registry, fund *domain.Fund, owner *domain.User, c *domain.Contribution) ([]Message, error) {
	view := contributionView{
		Couple:      reg.CoupleNames,
		FundTitle:   fund.Title,
		Amount:      strconv.FormatFloat(c.Amount, 'f', 2, 64),
		Currency:    reg.Currency,
		Contributor: deref(c.Name),
		Message:     deref(c.Message),
		RegistryURL: n.baseURL + "/r/" + reg.Slug,
	}
	var msgs []Message
	if email := strings.TrimSpace(deref(c.Email)); email != "" {
		html, text, err := render(receiptHTML, receiptText, view)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, Message{To: email, Subject: "Thank you for your gift to " + reg.CoupleNames, HTML: html, Text: text})
	}
	if owner != nil && owner.Email != "" {
		html, text, err := render(ownerHTML, ownerText, view)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, Message{To: owner.Email, Subject: "New contribution to " + fund.Title, HTML: html, Text: text})
	}
	return msgs, nil
}

func (n *Notifier) dispatch(msgs ...Message) {
	for _, m := range msgs {
		n.wg.Add(1)
		go func(m Message) {
			defer n.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
			defer cancel()
			if err := n.sender.Send(ctx, m); err != nil {
				logrus.WithError(err).WithFields(logrus.Fields{"to": m.To, "subject": m.Subject}).Warn("email delivery failed")
			}
		}(m)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Package jobs defines the queued background jobs and the notifications
// they send. Register every job type at boot so queue workers can
// deserialize envelopes by name:
//
//	jobs.RegisterAll()
package jobs

import (
	"fmt"
	"strings"
	"sync"

	"github.com/mazeltote/mazeltote/app/models"
	"github.com/mazeltote/mazeltote/app/repositories"
	"github.com/mazeltote/mazeltote/config"
	"github.com/mazeltote/mazeltote/pkg/collection"
	"github.com/mazeltote/mazeltote/pkg/notification"
	"github.com/mazeltote/mazeltote/pkg/queue"
	"github.com/mazeltote/mazeltote/pkg/workerpool"
)

// mailPool caps concurrent SMTP connections across all queue workers.
var mailPool = workerpool.New(4)

// RegisterAll registers every job type with the queue manager. Must be
// called before StartWorkers.
func RegisterAll() {
	queue.Register("*jobs.OrderPaidJob", func() queue.Job { return &OrderPaidJob{} })
}

// ─── OrderPaidJob ─────────────────────────────────────────────────────────────

// OrderPaidJob sends the buyer confirmation and the admin alert for a
// freshly paid order. It is dispatched exactly once per order because the
// paid transition itself is applied exactly once.
type OrderPaidJob struct {
	OrderID uint `json:"order_id"`
}

func (j *OrderPaidJob) Handle() error {
	orders := repositories.NewOrderRepository()
	users := repositories.NewUserRepository()

	order, err := orders.FindByID(j.OrderID)
	if err != nil {
		return fmt.Errorf("jobs: order %d: %w", j.OrderID, err)
	}
	user, err := users.FindByID(order.UserID)
	if err != nil {
		return fmt.Errorf("jobs: user %d: %w", order.UserID, err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 2)

	send := func(address string, n notification.Notification) {
		wg.Add(1)
		if err := mailPool.SubmitWait(func() {
			defer wg.Done()
			if es := notification.Send(address, n); len(es) > 0 {
				errs <- es[0]
			}
		}); err != nil {
			wg.Done()
			errs <- err
		}
	}

	send(user.Email, &OrderConfirmation{Order: order, User: user})
	if admin := config.AdminEmail(); admin != "" {
		send(admin, &AdminOrderAlert{Order: order, User: user})
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			return fmt.Errorf("jobs: order %d mail: %w", j.OrderID, err)
		}
	}
	return nil
}

// ─── Notifications ────────────────────────────────────────────────────────────

// OrderConfirmation is the buyer-facing receipt for a paid order.
type OrderConfirmation struct {
	Order models.Order
	User  models.User
}

func (n *OrderConfirmation) Via() []string { return []string{"mail"} }

func (n *OrderConfirmation) ToMail() notification.MailData {
	body := fmt.Sprintf(
		"<h2>Thank you, %s!</h2>"+
			"<p>Your order #%d is confirmed.</p>"+
			"<ul>%s</ul>"+
			"<p>Total: %.2f %s</p>"+
			"<p>Part of the proceeds supports <strong>%s</strong>.</p>",
		n.User.Name, n.Order.ID, itemRows(n.Order.Items),
		n.Order.TotalAmount, config.PayPalCurrency(), n.Order.CharityTrust,
	)
	return notification.MailData{
		Subject: fmt.Sprintf("Order #%d confirmed", n.Order.ID),
		Body:    body,
	}
}

// AdminOrderAlert notifies the store operator about a new paid order.
type AdminOrderAlert struct {
	Order models.Order
	User  models.User
}

func (n *AdminOrderAlert) Via() []string { return []string{"mail"} }

func (n *AdminOrderAlert) ToMail() notification.MailData {
	body := fmt.Sprintf(
		"<h2>New paid order #%d</h2>"+
			"<p>Customer: %s (%s)</p>"+
			"<ul>%s</ul>"+
			"<p>Total: %.2f %s — charity: %s</p>"+
			"<p>Ship to: %s, %s, %s %s</p>",
		n.Order.ID, n.User.Name, n.User.Email, itemRows(n.Order.Items),
		n.Order.TotalAmount, config.PayPalCurrency(), n.Order.CharityTrust,
		n.Order.Shipping.Address, n.Order.Shipping.City,
		n.Order.Shipping.State, n.Order.Shipping.Pincode,
	)
	return notification.MailData{
		Subject: fmt.Sprintf("New order #%d from %s", n.Order.ID, n.User.Name),
		Body:    body,
	}
}

func itemRows(items []models.OrderItem) string {
	rows := collection.Map(items, func(it models.OrderItem) string {
		return fmt.Sprintf("<li>%s × %d @ %.2f</li>", it.Name, it.Quantity, it.PriceAtPurchase)
	})
	return strings.Join(rows, "")
}

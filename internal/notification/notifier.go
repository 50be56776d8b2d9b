package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"court-watch-backend/config"
	"court-watch-backend/internal/model"
	"court-watch-backend/internal/store"
)

// ErrNoSubscribers means the user has no channel to receive the alert on.
var ErrNoSubscribers = errors.New("user has no push subscriptions")

// Notifier delivers an alert. Delivery is attempted once.
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// WebPushNotifier pushes alerts to every browser subscription of the user.
type WebPushNotifier struct {
	store   store.Store
	options *webpush.Options
	sender  NotificationSender
	log     *zap.SugaredLogger
}

func NewWebPushNotifier(st store.Store, options *webpush.Options, log *zap.SugaredLogger) *WebPushNotifier {
	return &WebPushNotifier{store: st, options: options, sender: &WebPushSender{}, log: log}
}

type pushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
	Alert Alert  `json:"alert"`
}

// Notify succeeds when at least one subscription accepted the push.
// Subscriptions reported gone are deleted.
func (n *WebPushNotifier) Notify(ctx context.Context, alert Alert) error {
	subs, err := n.store.SubscriptionsForUser(ctx, alert.UserID)
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		return ErrNoSubscribers
	}

	p := pushPayload{Title: alert.Title(), Body: alert.Body(), Alert: alert}
	if len(alert.Slots) > 0 {
		p.URL = alert.Slots[0].BookingURL
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode push payload: %w", err)
	}

	delivered := 0
	for _, sub := range subs {
		if n.sendNotification(ctx, sub, payload) {
			delivered++
		}
	}
	if delivered == 0 {
		return fmt.Errorf("push to %d subscriptions of %s failed", len(subs), alert.UserID)
	}
	return nil
}

func (n *WebPushNotifier) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) bool {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := n.sender.Send(payload, wpSub, n.options)
	if err != nil {
		n.log.Warnw("error sending notification", "endpoint", sub.Endpoint, "error", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound {
		n.log.Infow("subscription expired, deleting", "endpoint", sub.Endpoint)
		if err := n.store.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			n.log.Warnw("failed to delete expired subscription", "endpoint", sub.Endpoint, "error", err)
		}
		return false
	}
	if resp.StatusCode >= 300 {
		n.log.Warnw("push service rejected notification", "endpoint", sub.Endpoint, "status", resp.StatusCode)
		return false
	}
	return true
}

// Publisher publishes JSON messages to a topic exchange.
type Publisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
	Close() error
}

type amqpPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

// NewAMQPPublisher dials the broker and declares a durable topic exchange.
func NewAMQPPublisher(url, exchange string) (Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &amqpPublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

func (p *amqpPublisher) PublishJSON(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         b,
	})
}

func (p *amqpPublisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// AMQPNotifier hands alerts to a broker for an external delivery service.
type AMQPNotifier struct {
	pub        Publisher
	routingKey string
	log        *zap.SugaredLogger
}

func NewAMQPNotifier(pub Publisher, cfg config.AMQPConfig, log *zap.SugaredLogger) *AMQPNotifier {
	return &AMQPNotifier{pub: pub, routingKey: cfg.RoutingKey, log: log}
}

func (n *AMQPNotifier) Notify(ctx context.Context, alert Alert) error {
	if err := n.pub.PublishJSON(ctx, n.routingKey, alert); err != nil {
		return fmt.Errorf("publish alert for search %d: %w", alert.SavedSearchID, err)
	}
	return nil
}

func (n *AMQPNotifier) Close() error { return n.pub.Close() }

// LogNotifier writes alerts to the log only.
type LogNotifier struct {
	log *zap.SugaredLogger
}

func NewLogNotifier(log *zap.SugaredLogger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, alert Alert) error {
	n.log.Infow("new courts available",
		"saved_search_id", alert.SavedSearchID,
		"user_id", alert.UserID,
		"date", alert.Date,
		"total", alert.TotalMatches,
		"body", alert.Body())
	return nil
}

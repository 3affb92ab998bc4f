package goat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/dghubble/oauth1"

	"github.com/wilhg/conduit/pkg/agent"
	"github.com/wilhg/conduit/pkg/errmodel"
)

// DefaultTweetURL is the X API v2 tweet-creation endpoint.
const DefaultTweetURL = "https://api.twitter.com/2/tweets"

// notifyQueueSize bounds pending notifications; the queue drops when full.
const notifyQueueSize = 16

// TwitterCreds is the OAuth1 user context used to post.
type TwitterCreds struct {
	ConsumerKey    string
	ConsumerSecret string
	AccessToken    string
	AccessSecret   string
}

func (c TwitterCreds) complete() bool {
	return c.ConsumerKey != "" && c.ConsumerSecret != "" && c.AccessToken != "" && c.AccessSecret != ""
}

// Notifier is a Service that posts trade reports to the X API. Posting is
// best-effort: failures are logged and never fail the action that produced
// the trade.
type Notifier struct {
	client *http.Client
	url    string
	log    *slog.Logger

	queue    chan string
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewNotifier builds a notifier with an OAuth1-signed HTTP client. An empty
// tweetURL uses DefaultTweetURL.
func NewNotifier(creds TwitterCreds, tweetURL string, log *slog.Logger) (*Notifier, error) {
	if !creds.complete() {
		return nil, errmodel.Config("missing_setting", "twitter notifier needs all four OAuth1 credentials", nil)
	}
	cfg := oauth1.NewConfig(creds.ConsumerKey, creds.ConsumerSecret)
	token := oauth1.NewToken(creds.AccessToken, creds.AccessSecret)
	if tweetURL == "" {
		tweetURL = DefaultTweetURL
	}
	if log == nil {
		log = slog.Default()
	}
	return &Notifier{
		client: cfg.Client(oauth1.NoContext, token),
		url:    tweetURL,
		log:    log,
		queue:  make(chan string, notifyQueueSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}, nil
}

func (n *Notifier) Name() string { return "twitter-notifier" }

// Start drains the queue in the background until Stop.
func (n *Notifier) Start(ctx context.Context, _ agent.Runtime) error {
	go func() {
		defer close(n.done)
		for {
			select {
			case <-n.stop:
				// Post what was already queued before exiting.
				for {
					select {
					case text := <-n.queue:
						if err := n.post(text); err != nil {
							n.log.Warn("tweet failed", "err", err)
						}
					default:
						return
					}
				}
			case text := <-n.queue:
				if err := n.post(text); err != nil {
					n.log.Warn("tweet failed", "err", err)
				}
			}
		}
	}()
	return nil
}

// Stop signals the drain goroutine and waits for it to finish or ctx to
// expire. The queue channel itself is never closed, so an Evaluate still in
// flight can Enqueue safely during shutdown.
func (n *Notifier) Stop(ctx context.Context) error {
	n.stopOnce.Do(func() { close(n.stop) })
	select {
	case <-n.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Enqueue queues one notification. A full queue or a stopped notifier drops
// the notification with a log line rather than blocking the caller.
func (n *Notifier) Enqueue(text string) {
	select {
	case <-n.stop:
		n.log.Warn("notification dropped, notifier stopped")
		return
	default:
	}
	select {
	case n.queue <- text:
	default:
		n.log.Warn("notification dropped, queue full")
	}
}

func (n *Notifier) post(text string) error {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return err
	}
	resp, err := n.client.Post(n.url, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("tweet endpoint returned %d", resp.StatusCode)
	}
	return nil
}

// tradeReport watches handler results for swap data and queues a
// notification for each.
type tradeReport struct {
	notifier *Notifier
}

func (e *tradeReport) Describe() agent.EvaluatorDescriptor {
	return agent.EvaluatorDescriptor{
		Name:        "trade-report",
		Description: "Posts completed swaps to the X API.",
	}
}

func (e *tradeReport) Evaluate(_ context.Context, _ agent.Runtime, _ agent.Message, res agent.HandlerResult) error {
	if res.Data == nil || res.Data["kind"] != "swap" {
		return nil
	}
	text := fmt.Sprintf("Executed swap: %v %v -> %v %v",
		res.Data["amount_in"], res.Data["from_token"],
		res.Data["amount_out"], res.Data["to_token"])
	e.notifier.Enqueue(text)
	return nil
}

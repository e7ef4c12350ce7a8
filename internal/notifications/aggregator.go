// Package notifications builds the "someone interacted with your content" list
// of a signed-in user out of live queries on comments and posts.
package notifications

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/anonto42/apollo/backend/internal/livequery"
	"github.com/anonto42/apollo/backend/internal/models"
	"github.com/anonto42/apollo/backend/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MaxInValues is the largest id set a single "in" filter may carry.
// Larger post sets are split into several comment subscriptions.
const MaxInValues = 30

// ErrPostsUnavailable means the owned-posts lookup failed. The aggregator
// stays inactive with an empty list and Activate may be retried.
var ErrPostsUnavailable = errors.New("notifications: could not load the user's posts")

// Source is the document backend as seen by the aggregator
type Source interface {
	// PostsByOwner is a one-shot query for every post authored by ownerID
	PostsByOwner(ctx context.Context, ownerID string) ([]models.Post, error)
	// WatchOwnedPosts delivers every post authored by ownerID each time any of them changes
	WatchOwnedPosts(ctx context.Context, ownerID string, onSnapshot func([]models.Post), onError func(error)) *livequery.Subscription
	// WatchComments delivers every comment whose post id is in postIDs each time that set changes
	WatchComments(ctx context.Context, postIDs []string, onSnapshot func([]models.Comment), onError func(error)) *livequery.Subscription
}

// Session is the signed-in user the aggregator works for. An empty UserID
// means nobody is signed in.
type Session struct {
	UserID string
}

// Present reports whether a user is signed in
func (s Session) Present() bool {
	return s.UserID != ""
}

// State of an Aggregator
type State int

const (
	StateInactive State = iota
	StateActive
)

func (s State) String() string {
	if s == StateActive {
		return "active"
	}
	return "inactive"
}

// Options tune an Aggregator
type Options struct {
	// Retract drops an event once its comment or like is gone from the backend.
	// By default events stay for the whole activation.
	Retract bool
	// FallbackName is shown when an actor has no display name
	FallbackName string
	// ChunkSize caps the post ids per comment subscription, MaxInValues by default
	ChunkSize int
	Now       func() time.Time
	Logger    *zap.SugaredLogger
}

func (o Options) withDefaults() Options {
	if o.FallbackName == "" {
		o.FallbackName = DefaultFallbackName
	}
	if o.ChunkSize <= 0 || o.ChunkSize > MaxInValues {
		o.ChunkSize = MaxInValues
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = logger.L()
	}
	return o
}

const likesSource = "likes"

// Aggregator merges the comment and like subscriptions of one session into a
// deduplicated, newest-first list. It is either inactive (no subscriptions
// held, empty list) or active.
type Aggregator struct {
	id      string
	source  Source
	session Session
	opts    Options
	log     *zap.SugaredLogger

	mu      sync.Mutex
	state   State
	gen     uint64 // bumped by every Activate and Deactivate; stale callbacks compare against it
	feed    *Feed
	subs    *livequery.Set
	pending map[string]struct{}
	ready   chan struct{}
	lastErr error

	updates   chan []models.NotificationEvent
	closed    chan struct{}
	closeOnce sync.Once
}

// New creates an inactive aggregator for session
func New(source Source, session Session, opts Options) *Aggregator {
	opts = opts.withDefaults()
	id := uuid.NewString()
	a := &Aggregator{
		id:      id,
		source:  source,
		session: session,
		opts:    opts,
		log:     opts.Logger.With("aggregator_id", id, "user_id", session.UserID),
		feed:    NewFeed(opts.Retract),
		ready:   make(chan struct{}),
		updates: make(chan []models.NotificationEvent, 1),
		closed:  make(chan struct{}),
	}
	close(a.ready)
	return a
}

// ID identifies the aggregator in logs
func (a *Aggregator) ID() string {
	return a.id
}

// Session returns the session the aggregator serves
func (a *Aggregator) Session() Session {
	return a.session
}

// Activate loads the user's posts and opens the comment and like
// subscriptions. It is a no-op when already active or when no user is signed
// in. On ErrPostsUnavailable the aggregator stays inactive and Activate can
// be called again.
func (a *Aggregator) Activate(ctx context.Context) error {
	a.mu.Lock()
	if a.state == StateActive || !a.session.Present() {
		a.mu.Unlock()
		return nil
	}
	if a.isClosed() {
		a.mu.Unlock()
		return nil
	}
	a.gen++
	gen := a.gen
	a.mu.Unlock()

	posts, err := a.source.PostsByOwner(ctx, a.session.UserID)

	a.mu.Lock()
	if gen != a.gen || a.isClosed() {
		// Deactivated, re-activated or closed while the query was in flight
		a.mu.Unlock()
		return nil
	}
	if err != nil {
		a.lastErr = err
		a.mu.Unlock()
		a.log.Warnw("loading owned posts failed", "error", err)
		return fmt.Errorf("%w: %v", ErrPostsUnavailable, err)
	}

	postIDs := make([]string, 0, len(posts))
	for _, p := range posts {
		postIDs = append(postIDs, p.ID)
	}
	chunks := chunk(postIDs, a.opts.ChunkSize)

	subs := livequery.NewSet()
	a.state = StateActive
	a.lastErr = nil
	a.feed = NewFeed(a.opts.Retract)
	a.subs = subs
	a.pending = make(map[string]struct{}, len(chunks)+1)
	a.ready = make(chan struct{})
	if len(postIDs) > 0 {
		a.pending[likesSource] = struct{}{}
		for i := range chunks {
			a.pending[commentSource(i)] = struct{}{}
		}
	} else {
		close(a.ready)
	}
	a.mu.Unlock()

	a.log.Infow("notifications activated", "posts", len(postIDs), "comment_subscriptions", len(chunks))
	if len(postIDs) == 0 {
		return nil
	}

	// Subscriptions outlive the activating call; Deactivate owns their lifetime.
	subCtx := context.WithoutCancel(ctx)
	d := deriver{viewerID: a.session.UserID, fallback: a.opts.FallbackName, now: a.opts.Now}

	for i, ids := range chunks {
		name := commentSource(i)
		subs.Add(a.source.WatchComments(subCtx, ids,
			func(comments []models.Comment) { a.deliver(gen, name, d.comments(comments)) },
			func(err error) { a.fail(gen, name, err) },
		))
	}
	subs.Add(a.source.WatchOwnedPosts(subCtx, a.session.UserID,
		func(posts []models.Post) { a.deliver(gen, likesSource, d.likes(posts)) },
		func(err error) { a.fail(gen, likesSource, err) },
	))

	return nil
}

// Deactivate cancels every subscription of the current activation and
// discards the list. Deliveries arriving afterwards are ignored.
func (a *Aggregator) Deactivate() {
	a.mu.Lock()
	a.gen++
	wasActive := a.state == StateActive
	subs := a.subs
	a.state = StateInactive
	a.subs = nil
	a.feed = NewFeed(a.opts.Retract)
	a.pending = nil
	a.markReady()
	a.mu.Unlock()

	if subs != nil {
		subs.CancelAll()
	}
	if wasActive {
		a.log.Infow("notifications deactivated")
	}
}

// Close deactivates the aggregator for good and closes Closed(). The
// aggregator is marked closed before it is deactivated so a concurrent
// Activate cannot slip in between.
func (a *Aggregator) Close() {
	a.mu.Lock()
	a.closeOnce.Do(func() { close(a.closed) })
	a.mu.Unlock()
	a.Deactivate()
}

// isClosed must be called with mu held
func (a *Aggregator) isClosed() bool {
	select {
	case <-a.closed:
		return true
	default:
		return false
	}
}

// Closed is closed once Close has been called
func (a *Aggregator) Closed() <-chan struct{} {
	return a.closed
}

// State reports whether the aggregator is active
func (a *Aggregator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Err returns the failure of the last activation attempt, if any
func (a *Aggregator) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastErr
}

// Events returns the current list, newest first
func (a *Aggregator) Events() []models.NotificationEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.feed.Events()
}

// Subscriptions reports how many live subscriptions are held
func (a *Aggregator) Subscriptions() int {
	a.mu.Lock()
	subs := a.subs
	a.mu.Unlock()
	if subs == nil {
		return 0
	}
	return subs.Len()
}

// Ready is closed once every subscription of the current activation has
// delivered its first result or failed. It is closed while inactive.
func (a *Aggregator) Ready() <-chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ready
}

// Updates carries the list after each change. Only the latest list is kept,
// so a slow reader skips intermediate states.
func (a *Aggregator) Updates() <-chan []models.NotificationEvent {
	return a.updates
}

func (a *Aggregator) deliver(gen uint64, source string, batch []models.NotificationEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if gen != a.gen || a.state != StateActive {
		return
	}
	a.settle(source)
	if a.feed.Merge(source, batch) {
		a.publish(a.feed.Events())
	}
}

func (a *Aggregator) fail(gen uint64, source string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if gen != a.gen || a.state != StateActive {
		return
	}
	a.log.Warnw("subscription failed, dropping it", "source", source, "error", err)
	a.settle(source)
}

// settle marks source as having answered; must hold mu
func (a *Aggregator) settle(source string) {
	if _, ok := a.pending[source]; !ok {
		return
	}
	delete(a.pending, source)
	if len(a.pending) == 0 {
		a.markReady()
	}
}

// markReady closes the ready channel once; must hold mu
func (a *Aggregator) markReady() {
	select {
	case <-a.ready:
	default:
		close(a.ready)
	}
}

// publish replaces whatever list is waiting in updates; must hold mu
func (a *Aggregator) publish(events []models.NotificationEvent) {
	select {
	case <-a.updates:
	default:
	}
	a.updates <- events
}

func commentSource(i int) string {
	return "comments:" + strconv.Itoa(i)
}

func chunk(ids []string, size int) [][]string {
	var chunks [][]string
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

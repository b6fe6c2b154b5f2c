// Package contacts keeps the admin's working copy of the contact submissions
// held by the remote backend and derives the filtered, sorted view from it.
//
// Every mutation goes to the backend and is followed by a fresh list fetch;
// records are never patched locally. No operation returns an error: failures
// end up in a single last-error slot read with Err.
package contacts

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/garnizeh/contactdesk/internal/envelope"
	"github.com/garnizeh/contactdesk/pkg/models"
	"github.com/garnizeh/contactdesk/pkg/remote"
)

// API is the part of the contacts backend the controller talks to.
type API interface {
	ListContacts(ctx context.Context, q models.Query) (json.RawMessage, error)
	GetContact(ctx context.Context, id int64) (json.RawMessage, error)
	DeleteContact(ctx context.Context, id int64) (json.RawMessage, error)
	BulkDeleteContacts(ctx context.Context, ids []int64) (json.RawMessage, error)
	SetReadStatus(ctx context.Context, id int64, read bool) (json.RawMessage, error)
	ExportContacts(ctx context.Context, format string) (json.RawMessage, error)
}

var _ API = (*remote.Client)(nil)

const (
	msgFetchFailed      = "Failed to fetch contacts"
	msgDetailFailed     = "Failed to fetch contact"
	msgDeleteFailed     = "Failed to delete contact"
	msgBulkDeleteFailed = "Failed to delete contacts"
	msgStatusFailed     = "Failed to update contact status"
	msgExportFailed     = "Failed to export contacts"
	msgAuthRequired     = "Your session has expired. Please log in again."
	msgNoToken          = "You are not logged in."
)

type Controller struct {
	api        API
	classifier *envelope.Classifier
	logger     *slog.Logger
	now        func() time.Time

	mu         sync.RWMutex
	records    []models.Contact
	query      models.Query
	lastErr    string
	generation uint64
}

func NewController(api API, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		api:        api,
		classifier: envelope.MustClassifier(),
		logger:     logger,
		now:        time.Now,
		records:    []models.Contact{},
		query:      models.Query{}.Normalize(),
	}
}

// Snapshot is what a single LoadView call fetched, independent of any load
// running next to it.
type Snapshot struct {
	Query   models.Query
	Records []models.Contact
	View    []models.Contact
	Err     string
}

// Load fetches the collection for q and makes it the new baseline. On failure
// the collection is emptied and Err is set. A load that finishes after a newer
// one was started is dropped.
func (c *Controller) Load(ctx context.Context, q models.Query) bool {
	_, _, stale, err := c.load(ctx, q)
	return err == nil && !stale
}

// LoadView is Load for callers that serve many requests off one controller.
// The result carries the records and view for q itself, so a concurrent load
// can neither swap the caller's data nor turn a stale drop into a failure.
func (c *Controller) LoadView(ctx context.Context, q models.Query) (Snapshot, bool) {
	q = q.Normalize()
	records, msg, _, err := c.load(ctx, q)
	if err != nil {
		return Snapshot{Query: q, Records: []models.Contact{}, View: []models.Contact{}, Err: msg}, false
	}
	return Snapshot{Query: q, Records: records, View: Filter(records, q)}, true
}

// load runs one fetch and applies it to the baseline unless a newer load has
// started since. The fetched records are returned either way.
func (c *Controller) load(ctx context.Context, q models.Query) ([]models.Contact, string, bool, error) {
	q = q.Normalize()

	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.query = q
	c.mu.Unlock()

	records, shape, err := c.fetch(ctx, q)
	var msg string
	if err != nil {
		msg = userMessage(err, msgFetchFailed)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		c.logger.Debug("contacts: dropping stale load", "generation", gen, "current", c.generation)
		return records, msg, true, err
	}
	if err != nil {
		c.logger.Error("contacts: load failed", "err", err, "search", q.Search, "service", q.Service, "sort", q.SortBy)
		c.records = []models.Contact{}
		c.lastErr = msg
		return nil, msg, false, err
	}

	c.logger.Debug("contacts: loaded", "count", len(records), "envelope", shape.String())
	c.records = records
	c.lastErr = ""
	out := make([]models.Contact, len(records))
	copy(out, records)
	return out, "", false, nil
}

func (c *Controller) fetch(ctx context.Context, q models.Query) ([]models.Contact, envelope.Shape, error) {
	raw, err := c.api.ListContacts(ctx, q)
	if err != nil {
		return nil, envelope.ShapeUnknown, err
	}
	return c.classifier.Contacts(ctx, raw)
}

// Refresh reloads with the current query.
func (c *Controller) Refresh(ctx context.Context) bool {
	return c.Load(ctx, c.Query())
}

// SetQuery changes the view parameters without fetching.
func (c *Controller) SetQuery(q models.Query) {
	c.mu.Lock()
	c.query = q.Normalize()
	c.mu.Unlock()
}

func (c *Controller) Query() models.Query {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.query
}

// View returns the filtered and sorted records for the current query.
func (c *Controller) View() []models.Contact {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Filter(c.records, c.query)
}

// Records returns a copy of the last fetched collection, unfiltered.
func (c *Controller) Records() []models.Contact {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Contact, len(c.records))
	copy(out, c.records)
	return out
}

func (c *Controller) Summary() models.Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Summarize(c.records, c.now())
}

// Err returns the last user-facing error, or "".
func (c *Controller) Err() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// DeleteOne deletes a contact. The caller is expected to have confirmed it.
func (c *Controller) DeleteOne(ctx context.Context, id int64) bool {
	raw, err := c.api.DeleteContact(ctx, id)
	return c.mutated(ctx, "delete", raw, err, msgDeleteFailed)
}

// DeleteMany deletes all ids in one bulk request.
func (c *Controller) DeleteMany(ctx context.Context, ids []int64) bool {
	raw, err := c.api.BulkDeleteContacts(ctx, ids)
	return c.mutated(ctx, "bulk delete", raw, err, msgBulkDeleteFailed)
}

// mutated applies the success rule shared by the delete endpoints: success
// true or absent is success. Only a success triggers a resync.
func (c *Controller) mutated(ctx context.Context, op string, raw json.RawMessage, err error, fallback string) bool {
	if err != nil {
		c.logger.Error("contacts: "+op+" failed", "err", err)
		c.setErr(userMessage(err, fallback))
		return false
	}

	res := envelope.Status(raw)
	if !res.OK {
		msg := res.Message
		if msg == "" {
			msg = fallback
		}
		c.logger.Warn("contacts: "+op+" rejected", "message", res.Message)
		c.setErr(msg)
		return false
	}

	c.Refresh(ctx)
	return true
}

// SetReadStatus marks a contact read or unread and always resyncs afterwards.
// A failed update stays visible in Err even when the resync succeeds.
func (c *Controller) SetReadStatus(ctx context.Context, id int64, read bool) bool {
	_, err := c.api.SetReadStatus(ctx, id, read)
	c.Refresh(ctx)

	if err != nil {
		c.logger.Error("contacts: set read status failed", "err", err, "id", id, "read", read)
		c.setErr(userMessage(err, msgStatusFailed))
		return false
	}
	return true
}

// Export returns the CSV text produced by the backend.
func (c *Controller) Export(ctx context.Context, format string) (string, bool) {
	raw, err := c.api.ExportContacts(ctx, format)
	if err == nil {
		var csv string
		csv, err = c.classifier.CSV(ctx, raw)
		if err == nil {
			return csv, true
		}
	}

	c.logger.Error("contacts: export failed", "err", err, "format", format)
	c.setErr(userMessage(err, msgExportFailed))
	return "", false
}

// Detail fetches one contact. The collection is left alone.
func (c *Controller) Detail(ctx context.Context, id int64) (*models.Contact, bool) {
	raw, err := c.api.GetContact(ctx, id)
	if err == nil {
		var rec *models.Contact
		rec, err = c.classifier.Single(ctx, raw)
		if err == nil {
			return rec, true
		}
	}

	c.logger.Error("contacts: detail failed", "err", err, "id", id)
	c.setErr(userMessage(err, msgDetailFailed))
	return nil, false
}

func (c *Controller) setErr(msg string) {
	c.mu.Lock()
	c.lastErr = msg
	c.mu.Unlock()
}

// userMessage turns err into the string shown to the admin.
func userMessage(err error, fallback string) string {
	var (
		httpErr  *remote.HTTPError
		parseErr *remote.ParseError
	)
	switch {
	case errors.Is(err, remote.ErrNoToken):
		return msgNoToken
	case errors.Is(err, remote.ErrAuthRequired):
		return msgAuthRequired
	case errors.Is(err, envelope.ErrUnexpectedFormat):
		return "Unexpected response format"
	case errors.As(err, &parseErr):
		return fallback + ": " + parseErr.Error()
	case errors.As(err, &httpErr):
		if httpErr.Message != "" {
			return httpErr.Message
		}
		return fallback + ": " + httpErr.Error()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fallback + ": request cancelled or timed out"
	default:
		return fallback + ": " + err.Error()
	}
}

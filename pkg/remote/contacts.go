package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/garnizeh/contactdesk/pkg/models"
)

// Contacts endpoints return the raw body; envelope handling is left to the
// caller.

func (c *Client) ListContacts(ctx context.Context, q models.Query) (json.RawMessage, error) {
	q = q.Normalize()
	params := url.Values{}
	params.Set("search", q.Search)
	params.Set("service", q.Service)
	params.Set("sort", string(q.SortBy))

	return c.Do(ctx, Request{Method: http.MethodGet, Path: "/admin/contacts", Query: params, Protected: true})
}

func (c *Client) GetContact(ctx context.Context, id int64) (json.RawMessage, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: contactPath(id), Protected: true})
}

func (c *Client) DeleteContact(ctx context.Context, id int64) (json.RawMessage, error) {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: contactPath(id), Protected: true})
}

func (c *Client) BulkDeleteContacts(ctx context.Context, ids []int64) (json.RawMessage, error) {
	if ids == nil {
		ids = []int64{}
	}
	body := struct {
		IDs []int64 `json:"ids"`
	}{IDs: ids}
	return c.Do(ctx, Request{Method: http.MethodPost, Path: "/admin/contacts/bulk-delete", Body: body, Protected: true})
}

// SetReadStatus marks a contact read or unread.
func (c *Client) SetReadStatus(ctx context.Context, id int64, read bool) (json.RawMessage, error) {
	action := "unread"
	if read {
		action = "read"
	}
	return c.Do(ctx, Request{Method: http.MethodPut, Path: contactPath(id) + "/" + action, Protected: true})
}

func (c *Client) ExportContacts(ctx context.Context, format string) (json.RawMessage, error) {
	if format == "" {
		format = "csv"
	}
	params := url.Values{}
	params.Set("format", format)
	return c.Do(ctx, Request{Method: http.MethodGet, Path: "/admin/contacts/export", Query: params, Protected: true})
}

func contactPath(id int64) string {
	return fmt.Sprintf("/admin/contacts/%s", strconv.FormatInt(id, 10))
}

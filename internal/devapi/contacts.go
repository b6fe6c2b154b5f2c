package devapi

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/garnizeh/contactdesk/pkg/models"
	"github.com/garnizeh/contactdesk/pkg/repository"
)

func queryFrom(r *http.Request) models.Query {
	v := r.URL.Query()
	return models.Query{
		Search:  v.Get("search"),
		Service: v.Get("service"),
		SortBy:  models.SortOrder(v.Get("sort")),
	}.Normalize()
}

func (s *Server) ListContacts(w http.ResponseWriter, r *http.Request) {
	records, err := s.contacts.ListContacts(r.Context(), queryFrom(r))
	if err != nil {
		logger.Error("devapi: list contacts", slog.Any("err", err))
		writeFailure(w, http.StatusInternalServerError, "Failed to load contacts")
		return
	}

	switch s.opts.Envelope {
	case EnvelopeBare:
		writeJSON(w, http.StatusOK, records)
	case EnvelopeFlat:
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": records})
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data": map[string]any{
				"current_page": 1,
				"data":         records,
				"per_page":     len(records),
				"total":        len(records),
				"last_page":    1,
			},
		})
	}
}

func (s *Server) GetContact(w http.ResponseWriter, r *http.Request) {
	id, ok := contactID(w, r)
	if !ok {
		return
	}
	c, err := s.contacts.GetContact(r.Context(), id)
	if err != nil {
		logger.Error("devapi: get contact", slog.Any("err", err), slog.Int64("id", id))
		writeFailure(w, http.StatusInternalServerError, "Failed to load contact")
		return
	}
	if c == nil {
		writeFailure(w, http.StatusNotFound, "Contact not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": c})
}

// DeleteContact answers an empty object on success, as the production
// backend does for deletes.
func (s *Server) DeleteContact(w http.ResponseWriter, r *http.Request) {
	id, ok := contactID(w, r)
	if !ok {
		return
	}
	found, err := s.contacts.DeleteContact(r.Context(), id)
	if err != nil {
		logger.Error("devapi: delete contact", slog.Any("err", err), slog.Int64("id", id))
		writeFailure(w, http.StatusInternalServerError, "Failed to delete contact")
		return
	}
	if !found {
		writeFailure(w, http.StatusNotFound, "Contact not found")
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

type bulkDeleteRequest struct {
	IDs []int64 `json:"ids"`
}

func (s *Server) BulkDelete(w http.ResponseWriter, r *http.Request) {
	var req bulkDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid request")
		return
	}
	if len(req.IDs) == 0 {
		writeFailure(w, http.StatusUnprocessableEntity, "No contacts selected")
		return
	}
	n, err := s.contacts.DeleteContacts(r.Context(), req.IDs)
	if err != nil {
		logger.Error("devapi: bulk delete", slog.Any("err", err))
		writeFailure(w, http.StatusInternalServerError, "Failed to delete contacts")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "deleted": n})
}

func (s *Server) MarkRead(w http.ResponseWriter, r *http.Request)   { s.setRead(w, r, true) }
func (s *Server) MarkUnread(w http.ResponseWriter, r *http.Request) { s.setRead(w, r, false) }

func (s *Server) setRead(w http.ResponseWriter, r *http.Request, read bool) {
	id, ok := contactID(w, r)
	if !ok {
		return
	}
	found, err := s.contacts.SetRead(r.Context(), id, read)
	if err != nil {
		logger.Error("devapi: set read", slog.Any("err", err), slog.Int64("id", id))
		writeFailure(w, http.StatusInternalServerError, "Failed to update contact")
		return
	}
	if !found {
		writeFailure(w, http.StatusNotFound, "Contact not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

var csvHeader = []string{"ID", "Name", "Email", "Company", "Phone", "Service", "Budget", "Message", "Read", "Created At"}

func (s *Server) ExportContacts(w http.ResponseWriter, r *http.Request) {
	if f := r.URL.Query().Get("format"); f != "" && f != "csv" {
		writeFailure(w, http.StatusUnprocessableEntity, fmt.Sprintf("Unsupported export format %q", f))
		return
	}
	records, err := s.contacts.ListContacts(r.Context(), queryFrom(r))
	if err != nil {
		logger.Error("devapi: export contacts", slog.Any("err", err))
		writeFailure(w, http.StatusInternalServerError, "Failed to export contacts")
		return
	}
	out, err := RenderCSV(records)
	if err != nil {
		logger.Error("devapi: render csv", slog.Any("err", err))
		writeFailure(w, http.StatusInternalServerError, "Failed to export contacts")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": out})
}

// RenderCSV writes records with a header row.
func RenderCSV(records []models.Contact) (string, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(csvHeader); err != nil {
		return "", err
	}
	for _, c := range records {
		read := "no"
		if c.IsRead {
			read = "yes"
		}
		row := []string{
			strconv.FormatInt(c.ID, 10),
			c.Name,
			c.Email,
			deref(c.Company),
			deref(c.Phone),
			c.Service,
			deref(c.Budget),
			c.Message,
			read,
			c.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		}
		if err := cw.Write(row); err != nil {
			return "", err
		}
	}
	cw.Flush()
	return buf.String(), cw.Error()
}

func contactID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid contact id")
		return 0, false
	}
	return id, true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Seed loads every seed/*.json file in seedFS into repo when it holds no
// contacts yet. It returns the number of contacts created.
func Seed(ctx context.Context, repo repository.ContactRepo, seedFS fs.FS) (int, error) {
	n, err := repo.CountContacts(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logger.Debug("devapi: seed skipped", slog.Int64("existing", n))
		return 0, nil
	}

	files, err := fs.Glob(seedFS, "seed/*.json")
	if err != nil {
		return 0, err
	}

	created := 0
	for _, name := range files {
		b, err := fs.ReadFile(seedFS, name)
		if err != nil {
			return created, fmt.Errorf("read seed %s: %w", name, err)
		}
		var records []models.Contact
		if err := json.Unmarshal(b, &records); err != nil {
			return created, fmt.Errorf("decode seed %s: %w", name, err)
		}
		for i := range records {
			if _, err := repo.CreateContact(ctx, &records[i]); err != nil {
				return created, fmt.Errorf("insert seed %s: %w", name, err)
			}
			created++
		}
		logger.Info("devapi: seeded", slog.String("file", path.Base(name)), slog.Int("contacts", len(records)))
	}
	return created, nil
}

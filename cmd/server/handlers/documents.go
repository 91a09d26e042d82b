package handlers

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"regexp"
	"sort"

	"github.com/gorilla/mux"

	"github.com/gridshare/gridshare/internal/collab"
	"github.com/gridshare/gridshare/internal/db"
	apperrors "github.com/gridshare/gridshare/internal/errors"
	"github.com/gridshare/gridshare/internal/models"
	"github.com/gridshare/gridshare/internal/perms"
)

// DocumentHandler handles document CRUD, history, revert, export and print.
type DocumentHandler struct {
	repo        *db.Repository
	resolver    *perms.Resolver
	coordinator *collab.Coordinator
}

// NewDocumentHandler creates a new DocumentHandler.
func NewDocumentHandler(repo *db.Repository, resolver *perms.Resolver, coordinator *collab.Coordinator) *DocumentHandler {
	return &DocumentHandler{repo: repo, resolver: resolver, coordinator: coordinator}
}

// Create handles POST /api/documents.
func (h *DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r)

	var request struct {
		Title   string          `json:"title"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		WriteError(w, apperrors.New(apperrors.ErrInvalid, "invalid request body"))
		return
	}
	if request.Title == "" {
		WriteError(w, apperrors.New(apperrors.ErrInvalid, "title is required"))
		return
	}

	doc := &models.Document{
		OwnerID: models.UUID(user.UserID),
		Title:   request.Title,
	}
	if len(request.Content) > 0 {
		if !json.Valid(request.Content) {
			WriteError(w, apperrors.New(apperrors.ErrInvalid, "content is not valid JSON"))
			return
		}
		doc.Content = string(request.Content)
	}
	if err := h.repo.CreateDocument(doc); err != nil {
		WriteError(w, apperrors.Wrap(apperrors.ErrPersistence, "failed to create document", err))
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"document": doc})
}

// List handles GET /api/documents, returning owned and shared documents.
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r)

	owned, err := h.repo.ListOwnedDocuments(user.UserID)
	if err != nil {
		WriteError(w, apperrors.Wrap(apperrors.ErrPersistence, "failed to list documents", err))
		return
	}
	shared, err := h.repo.ListSharedDocuments(user.UserID)
	if err != nil {
		WriteError(w, apperrors.Wrap(apperrors.ErrPersistence, "failed to list shared documents", err))
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"owned": owned, "shared": shared})
}

// Get handles GET /api/documents/{id}, including resolved permissions.
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r)
	doc, access, err := h.resolver.ResolveByID(user.UserID, mux.Vars(r)["id"])
	if err != nil {
		WriteError(w, err)
		return
	}
	if !access.CanView {
		WriteError(w, apperrors.New(apperrors.ErrPermission, "no view rights"))
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"document": doc, "permissions": access})
}

// UpdateContent handles PUT /api/documents/{id}. The edit is routed through
// the sync coordinator so it serializes with live-session edits and is
// fanned out to connected viewers.
func (h *DocumentHandler) UpdateContent(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r)

	var request struct {
		Content json.RawMessage `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil || len(request.Content) == 0 {
		WriteError(w, apperrors.New(apperrors.ErrInvalid, "content is required"))
		return
	}

	entry, err := h.coordinator.Update(mux.Vars(r)["id"], user.UserID, request.Content)
	if err != nil {
		WriteError(w, err)
		return
	}

	doc, err := h.repo.GetDocument(entry.DocumentID.String())
	if err != nil {
		WriteError(w, apperrors.Wrap(apperrors.ErrPersistence, "failed to reload document", err))
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"document": doc, "change": entry})
}

// History handles GET /api/documents/{id}/history.
func (h *DocumentHandler) History(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r)
	doc, access, err := h.resolver.ResolveByID(user.UserID, mux.Vars(r)["id"])
	if err != nil {
		WriteError(w, err)
		return
	}
	if !access.CanView {
		WriteError(w, apperrors.New(apperrors.ErrPermission, "no view rights"))
		return
	}

	entries, err := h.repo.ListChanges(doc.ID.String())
	if err != nil {
		WriteError(w, apperrors.Wrap(apperrors.ErrPersistence, "failed to list history", err))
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"history": entries})
}

// Revert handles POST /api/documents/{id}/revert/{changeId}.
func (h *DocumentHandler) Revert(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r)
	vars := mux.Vars(r)

	entry, err := h.coordinator.Revert(vars["id"], user.UserID, vars["changeId"])
	if err != nil {
		WriteError(w, err)
		return
	}

	doc, err := h.repo.GetDocument(vars["id"])
	if err != nil {
		WriteError(w, apperrors.Wrap(apperrors.ErrPersistence, "failed to reload document", err))
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"document": doc, "change": entry})
}

// CreateSnapshot handles POST /api/documents/{id}/snapshots.
func (h *DocumentHandler) CreateSnapshot(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r)

	var request struct {
		Label string `json:"label"`
	}
	// An empty body just means no label.
	_ = json.NewDecoder(r.Body).Decode(&request)

	doc, access, err := h.resolver.ResolveByID(user.UserID, mux.Vars(r)["id"])
	if err != nil {
		WriteError(w, err)
		return
	}
	if !access.CanView {
		WriteError(w, apperrors.New(apperrors.ErrPermission, "no access"))
		return
	}

	snap := &models.Snapshot{DocumentID: doc.ID, Content: doc.Content, Label: request.Label}
	if err := h.repo.CreateSnapshot(snap); err != nil {
		WriteError(w, apperrors.Wrap(apperrors.ErrPersistence, "failed to create snapshot", err))
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"snapshot": snap})
}

// ListSnapshots handles GET /api/documents/{id}/snapshots.
func (h *DocumentHandler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r)
	doc, access, err := h.resolver.ResolveByID(user.UserID, mux.Vars(r)["id"])
	if err != nil {
		WriteError(w, err)
		return
	}
	if !access.CanView {
		WriteError(w, apperrors.New(apperrors.ErrPermission, "no view rights"))
		return
	}

	snaps, err := h.repo.ListSnapshots(doc.ID.String())
	if err != nil {
		WriteError(w, apperrors.Wrap(apperrors.ErrPersistence, "failed to list snapshots", err))
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"snapshots": snaps})
}

var filenameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9-_]`)

// Export handles GET /api/documents/{id}/export. Requires the copy
// capability and returns the raw content blob as a download.
func (h *DocumentHandler) Export(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r)
	doc, access, err := h.resolver.ResolveByID(user.UserID, mux.Vars(r)["id"])
	if err != nil {
		WriteError(w, err)
		return
	}
	if !access.CanCopy {
		WriteError(w, apperrors.New(apperrors.ErrPermission, "no copy rights"))
		return
	}

	filename := filenameSanitizer.ReplaceAllString(doc.Title, "_")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename+".json"))
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(doc.Content))
}

var printTemplate = template.Must(template.New("print").Parse(`<!doctype html>
<html><head><meta charset="utf-8" /><title>{{.Title}}</title>
<style>body{font-family:sans-serif;margin:24px} table{border-collapse:collapse} td,th{border:1px solid #ccc;padding:6px 10px}</style>
</head><body><h1>{{.Title}}</h1>
{{if .Columns}}<table><thead><tr>{{range .Columns}}<th>{{.}}</th>{{end}}</tr></thead>
<tbody>{{range .Rows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>{{end}}</tbody></table>
{{else}}<p>(empty)</p>{{end}}
<script>window.onload=()=>window.print();</script></body></html>`))

type printView struct {
	Title   string
	Columns []string
	Rows    [][]string
}

// Print handles GET /api/documents/{id}/print. Requires the print
// capability and renders the row content as a printable HTML table. The
// auth token may arrive via the "token" query parameter since print views
// open in a fresh window without headers.
func (h *DocumentHandler) Print(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r)
	doc, access, err := h.resolver.ResolveByID(user.UserID, mux.Vars(r)["id"])
	if err != nil {
		WriteError(w, err)
		return
	}
	if !access.CanPrint {
		WriteError(w, apperrors.New(apperrors.ErrPermission, "no print rights"))
		return
	}

	view := printView{Title: doc.Title}
	var content struct {
		Rows []map[string]interface{} `json:"rows"`
	}
	if err := json.Unmarshal([]byte(doc.Content), &content); err == nil && len(content.Rows) > 0 {
		for col := range content.Rows[0] {
			view.Columns = append(view.Columns, col)
		}
		sort.Strings(view.Columns)
		for _, row := range content.Rows {
			cells := make([]string, 0, len(view.Columns))
			for _, col := range view.Columns {
				// Rows may carry different key sets; absent cells stay blank.
				cell := ""
				if v, ok := row[col]; ok && v != nil {
					cell = fmt.Sprint(v)
				}
				cells = append(cells, cell)
			}
			view.Rows = append(view.Rows, cells)
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := printTemplate.Execute(w, view); err != nil {
		WriteError(w, apperrors.Wrap(apperrors.ErrInternal, "failed to render print view", err))
	}
}

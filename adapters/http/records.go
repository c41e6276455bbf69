package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/artpar/modelkit/app"
	"github.com/artpar/modelkit/core/model"
	"github.com/artpar/modelkit/core/registry"
	"github.com/artpar/modelkit/pkg/jsonapi"
	"github.com/artpar/modelkit/ports"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

// RecordHandler serves schemas and records as JSON:API documents.
type RecordHandler struct {
	records *app.RecordService
	classes *registry.Registry
	logger  zerolog.Logger
}

// NewRecordHandler creates a new record handler.
func NewRecordHandler(records *app.RecordService, classes *registry.Registry, logger zerolog.Logger) *RecordHandler {
	return &RecordHandler{records: records, classes: classes, logger: logger}
}

// Routes registers the schema and record endpoints on r.
func (h *RecordHandler) Routes(r chi.Router) {
	r.Get("/schemas", h.ListSchemas)
	r.Get("/schemas/{model}", h.GetSchema)

	r.Route("/records", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/{model}", h.Create)
		r.Get("/{id}", h.Get)
		r.Patch("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
		r.Post("/{id}/validate", h.Validate)
		r.Post("/{id}/commit", h.Commit)
		r.Post("/{id}/revert", h.Revert)
	})
}

// writeBody is the request document: {"data": {"attributes": {...}}}.
type writeBody struct {
	Data struct {
		Attributes map[string]any `json:"attributes"`
	} `json:"data"`
}

// ListSchemas returns every registered model with its fields.
func (h *RecordHandler) ListSchemas(w http.ResponseWriter, r *http.Request) {
	classes := h.classes.List()
	resources := make([]jsonapi.Resource, len(classes))
	for i, c := range classes {
		resources[i] = schemaResource(c)
	}
	jsonapi.WriteCollection(w, resources, nil)
}

// GetSchema returns one registered model.
func (h *RecordHandler) GetSchema(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "model")
	c, ok := h.classes.Get(name)
	if !ok {
		jsonapi.WriteError(w, jsonapi.ErrNotFound("model", name))
		return
	}
	jsonapi.WriteResource(w, http.StatusOK, schemaResource(c))
}

// List returns stored records, optionally filtered by ?model=.
func (h *RecordHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	modelName := r.URL.Query().Get("model")
	page := jsonapi.ParsePage(r.URL.Query())

	total, err := h.records.Count(ctx, modelName)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	snaps, err := h.records.List(ctx, ports.SnapshotFilter{
		Model:  modelName,
		Limit:  page.Size,
		Offset: page.Offset(),
	})
	if err != nil {
		h.writeErr(w, err)
		return
	}

	resources := make([]jsonapi.Resource, len(snaps))
	for i, s := range snaps {
		resources[i] = jsonapi.Resource{
			Type:       s.Model,
			ID:         s.ID,
			Attributes: s.Data,
			Meta: jsonapi.Meta{
				"version":    s.Version,
				"created_at": s.CreatedAt,
				"updated_at": s.UpdatedAt,
			},
			Links: &jsonapi.Links{Self: "/records/" + s.ID},
		}
	}

	page.Total = total
	page.BaseURL = r.URL.Path
	if modelName != "" {
		page.BaseURL += "?model=" + modelName
	}
	jsonapi.WriteCollection(w, resources, &page)
}

// Create instantiates a record of the model named in the path.
func (h *RecordHandler) Create(w http.ResponseWriter, r *http.Request) {
	attrs, ok := h.decode(w, r)
	if !ok {
		return
	}

	rec, err := h.records.Create(r.Context(), chi.URLParam(r, "model"), attrs)
	if err != nil {
		h.writeErr(w, err)
		return
	}

	w.Header().Set("Location", "/records/"+rec.ID)
	jsonapi.WriteResource(w, http.StatusCreated, recordResource(rec))
}

// Get returns a record, opening it from storage if needed.
func (h *RecordHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.records.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	jsonapi.WriteResource(w, http.StatusOK, recordResource(rec))
}

// Update sets record attributes.
func (h *RecordHandler) Update(w http.ResponseWriter, r *http.Request) {
	attrs, ok := h.decode(w, r)
	if !ok {
		return
	}

	rec, err := h.records.Update(r.Context(), chi.URLParam(r, "id"), attrs)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	jsonapi.WriteResource(w, http.StatusOK, recordResource(rec))
}

// Delete removes a record.
func (h *RecordHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.records.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeErr(w, err)
		return
	}
	jsonapi.WriteNoContent(w)
}

// Validate checks a record without committing it.
func (h *RecordHandler) Validate(w http.ResponseWriter, r *http.Request) {
	if err := h.records.Validate(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeErr(w, err)
		return
	}
	jsonapi.WriteDocument(w, http.StatusOK, jsonapi.Document{Meta: jsonapi.Meta{"valid": true}})
}

// Commit validates and stores a record.
func (h *RecordHandler) Commit(w http.ResponseWriter, r *http.Request) {
	rec, err := h.records.Commit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	jsonapi.WriteResource(w, http.StatusOK, recordResource(rec))
}

// Revert restores the committed values of a record.
func (h *RecordHandler) Revert(w http.ResponseWriter, r *http.Request) {
	rec, err := h.records.Revert(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	jsonapi.WriteResource(w, http.StatusOK, recordResource(rec))
}

func (h *RecordHandler) decode(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	var body writeBody
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&body)
	if err != nil && !errors.Is(err, io.EOF) {
		jsonapi.WriteError(w, jsonapi.ErrBadRequest("request body must be a JSON:API document"))
		return nil, false
	}
	return body.Data.Attributes, true
}

func (h *RecordHandler) writeErr(w http.ResponseWriter, err error) {
	var invalid *app.InvalidError
	switch {
	case errors.As(err, &invalid):
		jsonapi.WriteError(w, validationErrors(invalid)...)
	case app.IsNotFound(err):
		jsonapi.WriteError(w, jsonapi.NewError(http.StatusNotFound, "not_found", "Not Found", err.Error()))
	case errors.Is(err, model.ErrUnknownField):
		jsonapi.WriteError(w, jsonapi.ErrBadRequest(err.Error()))
	case errors.Is(err, app.ErrInvalidValue):
		jsonapi.WriteError(w, jsonapi.NewError(http.StatusUnprocessableEntity, "invalid_value", "Invalid Value", err.Error()))
	default:
		h.logger.Error().Err(err).Msg("record request failed")
		jsonapi.WriteError(w, jsonapi.ErrInternal(""))
	}
}

func validationErrors(invalid *app.InvalidError) []jsonapi.Error {
	names := invalid.Err.Names()
	errs := jsonapi.ErrValidation(names)
	for i, name := range names {
		if msgs := invalid.Problems[name]; len(msgs) > 0 {
			errs[i].Detail = name + ": " + strings.Join(msgs, "; ")
		}
	}
	return errs
}

func recordResource(rec app.Record) jsonapi.Resource {
	return jsonapi.Resource{
		Type:       rec.Model,
		ID:         rec.ID,
		Attributes: rec.Data,
		Meta: jsonapi.Meta{
			"version":       rec.Version,
			"changed":       rec.Changed,
			"notifications": rec.Notifications,
		},
		Links: &jsonapi.Links{Self: "/records/" + rec.ID},
	}
}

func schemaResource(c *model.Class) jsonapi.Resource {
	s := c.Schema()
	fields := make([]map[string]any, 0, len(s.Fields))
	for _, d := range c.Descriptors() {
		decl := d.Declaration()
		f := map[string]any{
			"name":     d.Name,
			"type":     decl.Type,
			"required": decl.Required,
			"internal": d.Internal,
		}
		if len(decl.Values) > 0 {
			f["values"] = decl.Values
		}
		if decl.Description != "" {
			f["description"] = decl.Description
		}
		fields = append(fields, f)
	}

	attrs := map[string]any{"fields": fields}
	if s.Description != "" {
		attrs["description"] = s.Description
	}
	return jsonapi.Resource{
		Type:       "schema",
		ID:         s.Name,
		Attributes: attrs,
		Links:      &jsonapi.Links{Self: "/schemas/" + s.Name},
	}
}

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"fnbox/fault"
	"fnbox/store"
)

type itemView struct {
	ID          uint      `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toItemView(item *store.Item) itemView {
	return itemView{
		ID:          item.ID,
		Title:       item.Title,
		Description: item.Description,
		CreatedAt:   item.CreatedAt,
		UpdatedAt:   item.UpdatedAt,
	}
}

type itemRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (r itemRequest) validate() error {
	if r.Title == "" {
		return fault.New(fault.ParameterValidationFailed, "title is required")
	}
	if len(r.Title) > 100 {
		return fault.New(fault.ParameterValidationFailed, "title must be at most 100 characters")
	}
	return nil
}

func itemID(r *http.Request) (uint, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		return 0, fault.New(fault.ParameterValidationFailed, "invalid item id")
	}
	return uint(id), nil
}

func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFault(w, err)
		return
	}
	if err := req.validate(); err != nil {
		writeFault(w, err)
		return
	}

	item := &store.Item{Title: req.Title, Description: req.Description}
	if err := h.items.CreateItem(r.Context(), item); err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toItemView(item))
}

func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.items.ListItems(r.Context())
	if err != nil {
		writeFault(w, err)
		return
	}
	views := make([]itemView, 0, len(items))
	for i := range items {
		views = append(views, toItemView(&items[i]))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, err := itemID(r)
	if err != nil {
		writeFault(w, err)
		return
	}
	item, err := h.items.GetItem(r.Context(), id)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toItemView(item))
}

func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id, err := itemID(r)
	if err != nil {
		writeFault(w, err)
		return
	}
	var req itemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFault(w, err)
		return
	}
	if err := req.validate(); err != nil {
		writeFault(w, err)
		return
	}

	item, err := h.items.GetItem(r.Context(), id)
	if err != nil {
		writeFault(w, err)
		return
	}
	item.Title = req.Title
	item.Description = req.Description
	if err := h.items.SaveItem(r.Context(), item); err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toItemView(item))
}

func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := itemID(r)
	if err != nil {
		writeFault(w, err)
		return
	}
	if err := h.items.DeleteItem(r.Context(), id); err != nil {
		writeFault(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

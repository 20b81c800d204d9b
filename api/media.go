package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"fnbox/fault"
	"fnbox/media"
	"fnbox/store"
)

const maxUploadMemory = 32 << 20

type mediaView struct {
	ID           uint      `json:"id"`
	SenderName   string    `json:"sender_name"`
	DataType     string    `json:"data_type"`
	Timestamp    time.Time `json:"timestamp"`
	FilePath     string    `json:"file_path"`
	DeletionTime time.Time `json:"deletion_time"`
	ContentType  string    `json:"content_type"`
}

func toMediaView(m *store.MediaFile) mediaView {
	return mediaView{
		ID:           m.ID,
		SenderName:   m.SenderName,
		DataType:     m.DataType,
		Timestamp:    m.Timestamp,
		FilePath:     m.FilePath,
		DeletionTime: m.DeletionTime,
		ContentType:  m.ContentType,
	}
}

// UploadMedia accepts a multipart form with a "file" part and the
// sender_name, data_type, and deletion_time fields.
func (h *Handler) UploadMedia(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeFault(w, fault.New(fault.ParameterValidationFailed, "malformed multipart form: %s", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeFault(w, fault.New(fault.ParameterValidationFailed, "no file provided"))
		return
	}
	defer file.Close()

	deletionRaw := r.FormValue("deletion_time")
	deletionTime, err := time.Parse(time.RFC3339, deletionRaw)
	if err != nil {
		writeFault(w, fault.New(fault.ParameterValidationFailed, "invalid deletion_time %q, use RFC 3339", deletionRaw))
		return
	}

	uploaded, err := h.media.Upload(r.Context(), media.UploadRequest{
		SenderName:   r.FormValue("sender_name"),
		DataType:     r.FormValue("data_type"),
		Filename:     header.Filename,
		ContentType:  header.Header.Get("Content-Type"),
		DeletionTime: deletionTime,
		Size:         header.Size,
		Body:         file,
	})
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMediaView(uploaded))
}

func (h *Handler) MediaByType(w http.ResponseWriter, r *http.Request) {
	files, err := h.media.ByType(r.Context(), chi.URLParam(r, "type"))
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mediaViews(files))
}

func (h *Handler) MediaByTimespan(w http.ResponseWriter, r *http.Request) {
	start, err := time.Parse(time.RFC3339, r.URL.Query().Get("start"))
	if err != nil {
		writeFault(w, fault.New(fault.ParameterValidationFailed, "invalid start, use RFC 3339"))
		return
	}
	end, err := time.Parse(time.RFC3339, r.URL.Query().Get("end"))
	if err != nil {
		writeFault(w, fault.New(fault.ParameterValidationFailed, "invalid end, use RFC 3339"))
		return
	}

	files, err := h.media.ByTimespan(r.Context(), start, end)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mediaViews(files))
}

func mediaViews(files []store.MediaFile) []mediaView {
	views := make([]mediaView, 0, len(files))
	for i := range files {
		views = append(views, toMediaView(&files[i]))
	}
	return views
}

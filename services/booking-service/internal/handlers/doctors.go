package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/clinicbook-io/clinicbook/libs/httpx"
	"github.com/clinicbook-io/clinicbook/services/booking-service/internal/model"
)

type DoctorDirectory interface {
	List(ctx context.Context) ([]model.Doctor, error)
}

type DoctorHandler struct {
	directory DoctorDirectory
	logger    *slog.Logger
}

func NewDoctorHandler(directory DoctorDirectory, logger *slog.Logger) *DoctorHandler {
	return &DoctorHandler{directory: directory, logger: logger}
}

type doctorItem struct {
	DoctorID  string `json:"doctor_id"`
	Name      string `json:"name"`
	Specialty string `json:"specialty"`
}

func (h *DoctorHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.Error(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	docs, err := h.directory.List(r.Context())
	if err != nil {
		h.logger.Error("doctor list failed", "err", err)
		httpx.Error(w, http.StatusServiceUnavailable, "failed to list doctors")
		return
	}

	items := make([]doctorItem, 0, len(docs))
	for _, doc := range docs {
		items = append(items, doctorItem{DoctorID: doc.ID, Name: doc.Name, Specialty: doc.Specialty})
	}
	httpx.JSON(w, http.StatusOK, items)
}

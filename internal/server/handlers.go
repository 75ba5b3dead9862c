package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sunny-dsa/shiftcheck/internal/db"
	"github.com/sunny-dsa/shiftcheck/internal/tasks"
	"github.com/sunny-dsa/shiftcheck/pkg/models"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(w, r, badRequest("limit must be an integer"))
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, s.bus.History(limit))
}

type ensureRequest struct {
	TemplateID string     `json:"template_id"`
	At         *time.Time `json:"at"`
}

func (s *Server) handleEnsure(w http.ResponseWriter, r *http.Request) {
	var req ensureRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	var at time.Time
	if req.At != nil {
		at = *req.At
	}
	storeID := chi.URLParam(r, "storeID")

	if req.TemplateID != "" {
		inst, _, err := s.inst.EnsureInstance(r.Context(), req.TemplateID, storeID, at)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, []*models.TaskInstance{inst})
		return
	}

	list, err := s.inst.EnsureAllForStore(r.Context(), storeID, at)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := db.InstanceFilter{
		StoreID:    chi.URLParam(r, "storeID"),
		Status:     models.TaskStatus(q.Get("status")),
		TemplateID: q.Get("template_id"),
		PeriodKey:  q.Get("period"),
		ClaimedBy:  q.Get("claimed_by"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, r, badRequest("limit must be a non-negative integer"))
			return
		}
		f.Limit = n
	}
	for name, dst := range map[string]**time.Time{"from": &f.ScheduledFrom, "to": &f.ScheduledTo} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.writeError(w, r, badRequest(name+" must be an RFC 3339 time"))
			return
		}
		*dst = &t
	}

	list, err := s.mgr.List(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req tasks.AdhocRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	req.CreatorID = ActorID(r.Context())

	inst, err := s.inst.CreateAdhoc(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, inst)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	inst, err := s.mgr.Get(r.Context(), chi.URLParam(r, "taskID"))
	s.respond(w, r, inst, err)
}

func (s *Server) handleListPhotos(w http.ResponseWriter, r *http.Request) {
	photos, err := s.mgr.Photos(r.Context(), chi.URLParam(r, "taskID"))
	s.respond(w, r, nonNil(photos), err)
}

func (s *Server) handleListTransfers(w http.ResponseWriter, r *http.Request) {
	records, err := s.mgr.Transfers(r.Context(), chi.URLParam(r, "taskID"))
	s.respond(w, r, nonNil(records), err)
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	inst, err := s.mgr.Publish(r.Context(), chi.URLParam(r, "taskID"), ActorID(r.Context()))
	s.respond(w, r, inst, err)
}

type locationRequest struct {
	Location *models.Coordinate `json:"location"`
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	inst, err := s.mgr.Claim(r.Context(), chi.URLParam(r, "taskID"), ActorID(r.Context()), req.Location)
	s.respond(w, r, inst, err)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	inst, err := s.mgr.Start(r.Context(), chi.URLParam(r, "taskID"), ActorID(r.Context()))
	s.respond(w, r, inst, err)
}

type uploadRequest struct {
	ContentRef string             `json:"content_ref" validate:"required,max=2048"`
	ItemRef    *string            `json:"item_ref"`
	Location   *models.Coordinate `json:"location"`
}

func (s *Server) handleUploadPhoto(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	photo, err := s.mgr.UploadPhoto(r.Context(), tasks.UploadRequest{
		TaskID:     chi.URLParam(r, "taskID"),
		ActorID:    ActorID(r.Context()),
		ContentRef: req.ContentRef,
		Coordinate: req.Location,
		ItemRef:    req.ItemRef,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, photo)
}

type completeRequest struct {
	Location       *models.Coordinate `json:"location"`
	Force          bool               `json:"force"`
	OverridePhotos bool               `json:"override_photos"`
	Notes          *string            `json:"notes" validate:"omitempty,max=4000"`
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	inst, err := s.mgr.Complete(r.Context(), chi.URLParam(r, "taskID"), ActorID(r.Context()), req.Location, tasks.CompleteOptions{
		ForceComplete:            req.Force,
		OverridePhotoRequirement: req.OverridePhotos,
		Notes:                    req.Notes,
	})
	s.respond(w, r, inst, err)
}

type transferRequest struct {
	From   string `json:"from"`
	To     string `json:"to" validate:"required"`
	Reason string `json:"reason" validate:"max=500"`
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	inst, err := s.mgr.Transfer(r.Context(), tasks.TransferRequest{
		TaskID:   chi.URLParam(r, "taskID"),
		CallerID: ActorID(r.Context()),
		FromID:   req.From,
		ToID:     req.To,
		Reason:   req.Reason,
	})
	s.respond(w, r, inst, err)
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	inst, err := s.mgr.Cancel(r.Context(), chi.URLParam(r, "taskID"), ActorID(r.Context()), req.Reason)
	s.respond(w, r, inst, err)
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, data any, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func badRequest(msg string) error {
	return &tasks.Error{Kind: tasks.KindValidation, Message: msg}
}

// nonNil keeps empty lists rendering as [] rather than null.
func nonNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/emrgen/notecache/internal/model"
	"github.com/emrgen/notecache/internal/processing"
	"github.com/emrgen/notecache/internal/service"
	"github.com/sirupsen/logrus"
)

type errorResponse struct {
	Error string `json:"error"`
}

type addFlashcardRequest struct {
	Front  string `json:"front"`
	Back   string `json:"back"`
	Pinyin string `json:"pinyin"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Warnf("write response: %v", err)
	}
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrLoad):
		return http.StatusServiceUnavailable
	case service.IsProcessingError(err):
		return http.StatusConflict
	case errors.Is(err, processing.ErrGaveUp), errors.Is(err, processing.ErrEmptyResult):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		logrus.Errorf("request failed: %v", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Join(service.ErrValidation, err)
	}
	return nil
}

func refresh(r *http.Request) bool {
	ok, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))
	return ok
}

func (s *Server) createNote(w http.ResponseWriter, r *http.Request) {
	var note model.Note
	if err := decode(r, &note); err != nil {
		writeError(w, err)
		return
	}

	created, err := s.repo.CreateNote(r.Context(), note)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) getNote(w http.ResponseWriter, r *http.Request) {
	note, err := s.repo.LoadNote(r.Context(), r.PathValue("note"), refresh(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

func (s *Server) listPages(w http.ResponseWriter, r *http.Request) {
	pages, err := s.repo.LoadPages(r.Context(), r.PathValue("note"), refresh(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pages)
}

func (s *Server) addPage(w http.ResponseWriter, r *http.Request) {
	var page model.Page
	if err := decode(r, &page); err != nil {
		writeError(w, err)
		return
	}
	page.NoteID = r.PathValue("note")

	created, err := s.repo.AddPage(r.Context(), page)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) processedText(w http.ResponseWriter, r *http.Request) {
	pt, err := s.repo.ProcessedText(r.Context(), r.PathValue("note"), r.PathValue("page"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pt)
}

func (s *Server) deleteSegment(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, errors.Join(service.ErrValidation, err))
		return
	}

	pt, err := s.repo.DeleteSegment(r.Context(), r.PathValue("note"), r.PathValue("page"), index)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pt)
}

func (s *Server) listFlashcards(w http.ResponseWriter, r *http.Request) {
	cards, err := s.repo.LoadFlashcards(r.Context(), r.PathValue("note"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cards)
}

func (s *Server) addFlashcard(w http.ResponseWriter, r *http.Request) {
	var req addFlashcardRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	card, err := s.repo.AddFlashcard(r.Context(), req.Front, req.Back, r.PathValue("note"), req.Pinyin)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, card)
}

func (s *Server) updateFlashcard(w http.ResponseWriter, r *http.Request) {
	var card model.FlashCard
	if err := decode(r, &card); err != nil {
		writeError(w, err)
		return
	}
	card.ID = r.PathValue("card")

	updated, err := s.repo.UpdateFlashcard(r.Context(), card)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteFlashcard(w http.ResponseWriter, r *http.Request) {
	err := s.repo.DeleteFlashcard(r.Context(), r.PathValue("card"), r.URL.Query().Get("note_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

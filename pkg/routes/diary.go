package routes

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

type DiaryEntryRequest struct {
	Title   *string `json:"title"`
	Content string  `json:"content"`
}

func (wr *WebRouter) getDiaryEntries(w http.ResponseWriter, r *http.Request) {
	memberID, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid member ID")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = parsed
	}

	entries, err := wr.storage.Diary.List(memberID, limit)
	if err != nil {
		slog.Error("error fetching diary entries", "error", err, "member_id", memberID)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (wr *WebRouter) createDiaryEntry(w http.ResponseWriter, r *http.Request) {
	memberID, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid member ID")
		return
	}
	member, err := wr.storage.Members.GetByID(memberID)
	if err != nil || member == nil {
		writeError(w, http.StatusNotFound, "Member not found")
		return
	}

	var req DiaryEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "Entry content is required")
		return
	}

	id, err := wr.storage.Diary.Add(memberID, req.Title, req.Content)
	if err != nil {
		slog.Error("error creating diary entry", "error", err, "member_id", memberID)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	entry, err := wr.storage.Diary.Get(id)
	if err != nil || entry == nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (wr *WebRouter) getDiaryEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid entry ID")
		return
	}
	entry, err := wr.storage.Diary.Get(id)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if entry == nil {
		writeError(w, http.StatusNotFound, "Entry not found")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (wr *WebRouter) updateDiaryEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid entry ID")
		return
	}
	existing, err := wr.storage.Diary.Get(id)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "Entry not found")
		return
	}

	var req struct {
		Title   *string `json:"title"`
		Content *string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	if err := wr.storage.Diary.Update(id, req.Title, req.Content); err != nil {
		slog.Error("error updating diary entry", "error", err, "entry_id", id)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	entry, err := wr.storage.Diary.Get(id)
	if err != nil || entry == nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (wr *WebRouter) deleteDiaryEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid entry ID")
		return
	}
	if err := wr.storage.Diary.Delete(id); err != nil {
		slog.Error("error deleting diary entry", "error", err, "entry_id", id)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (wr *WebRouter) searchDiary(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("q")
	if term == "" {
		writeError(w, http.StatusBadRequest, "Search term required")
		return
	}

	memberID := 0
	if raw := r.URL.Query().Get("member_id"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "Invalid member ID")
			return
		}
		memberID = parsed
	}

	entries, err := wr.storage.Diary.Search(term, memberID)
	if err != nil {
		slog.Error("error searching diary", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

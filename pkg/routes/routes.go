// Package routes exposes the local JSON API consumed by desktop frontends.
// Everything binds to loopback; there is no remote access surface.
package routes

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/pluralchat/pluralchat-server/pkg/avatar"
	"github.com/pluralchat/pluralchat-server/pkg/config"
	"github.com/pluralchat/pluralchat-server/pkg/models"
	"github.com/pluralchat/pluralchat-server/pkg/pluralkit"
	"github.com/pluralchat/pluralchat-server/pkg/proxy"
	"github.com/pluralchat/pluralchat-server/pkg/store"
)

type WebRouter struct {
	config   config.Configuration
	storage  store.Stores
	pipeline *avatar.Pipeline
	thumbs   *avatar.ThumbnailCache
	syncer   *pluralkit.Syncer
	sealKey  []byte
	Notifier *ProgressNotifier
}

func (wr *WebRouter) Initialize(config config.Configuration, store store.Stores, pipeline *avatar.Pipeline, thumbs *avatar.ThumbnailCache, syncer *pluralkit.Syncer, sealKey []byte) {
	wr.config = config
	wr.storage = store
	wr.pipeline = pipeline
	wr.thumbs = thumbs
	wr.syncer = syncer
	wr.sealKey = sealKey
	wr.Notifier = NewProgressNotifier()
}

// Handler builds the route table. The caller owns the http.Server.
func (wr *WebRouter) Handler() http.Handler {
	myRouter := mux.NewRouter().StrictSlash(true)

	myRouter.HandleFunc("/api/members", wr.getMembers).Methods("GET")
	myRouter.HandleFunc("/api/members", wr.createMember).Methods("POST")
	myRouter.HandleFunc("/api/members/{id}", wr.getMember).Methods("GET")
	myRouter.HandleFunc("/api/members/{id}", wr.updateMember).Methods("PUT")
	myRouter.HandleFunc("/api/members/{id}", wr.deleteMember).Methods("DELETE")
	myRouter.HandleFunc("/api/members/{id}/avatar", wr.getAvatar).Methods("GET")
	myRouter.HandleFunc("/api/members/{id}/avatar/refresh", wr.refreshAvatar).Methods("POST")
	myRouter.HandleFunc("/api/members/{id}/messages", wr.getMemberMessages).Methods("GET")
	myRouter.HandleFunc("/api/members/{id}/diary", wr.getDiaryEntries).Methods("GET")
	myRouter.HandleFunc("/api/members/{id}/diary", wr.createDiaryEntry).Methods("POST")
	myRouter.HandleFunc("/api/messages", wr.getMessages).Methods("GET")
	myRouter.HandleFunc("/api/messages", wr.postMessage).Methods("POST")
	myRouter.HandleFunc("/api/diary/search", wr.searchDiary).Methods("GET")
	myRouter.HandleFunc("/api/diary/{id}", wr.getDiaryEntry).Methods("GET")
	myRouter.HandleFunc("/api/diary/{id}", wr.updateDiaryEntry).Methods("PUT")
	myRouter.HandleFunc("/api/diary/{id}", wr.deleteDiaryEntry).Methods("DELETE")
	myRouter.HandleFunc("/api/settings", wr.getSettings).Methods("GET")
	myRouter.HandleFunc("/api/settings/{key}", wr.putSetting).Methods("PUT")
	myRouter.HandleFunc("/api/import", wr.importData).Methods("POST")
	myRouter.HandleFunc("/api/export", wr.exportData).Methods("GET")
	myRouter.HandleFunc("/api/tokens/pluralkit", wr.getTokenStatus).Methods("GET")
	myRouter.HandleFunc("/api/tokens/pluralkit", wr.putToken).Methods("PUT")
	myRouter.HandleFunc("/api/tokens/pluralkit", wr.deleteToken).Methods("DELETE")
	myRouter.HandleFunc("/api/sync/pluralkit", wr.startPluralKitSync).Methods("POST")
	myRouter.HandleFunc("/api/avatars/sync", wr.startAvatarSync).Methods("POST")
	myRouter.HandleFunc("/api/events", wr.eventsSSE).Methods("GET")

	myRouter.Use(RequestLogger)
	h := handlers.RecoveryHandler()
	return h(myRouter)
}

func RequestLogger(h http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		slog.Info("endpoint hit", "method", r.Method, "path", r.URL.Path, "remote_host", r.RemoteAddr)
		h.ServeHTTP(w, r)
	}
	return http.HandlerFunc(fn)
}

type ErrorResponse struct {
	Error      string `json:"error"`
	Suggestion string `json:"suggestion,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

func pathID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	return id, err == nil && id > 0
}

type MemberRequest struct {
	Name        string            `json:"name"`
	Pronouns    *string           `json:"pronouns"`
	AvatarPath  *string           `json:"avatar_path"`
	Color       *string           `json:"color"`
	Description *string           `json:"description"`
	ProxyTags   []models.ProxyTag `json:"proxy_tags"`
}

func (wr *WebRouter) getMembers(w http.ResponseWriter, r *http.Request) {
	members, err := wr.storage.Members.GetAll()
	if err != nil {
		slog.Error("error fetching members", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (wr *WebRouter) getMember(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid member ID")
		return
	}
	member, err := wr.storage.Members.GetByID(id)
	if err != nil {
		slog.Error("error fetching member", "error", err, "member_id", id)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if member == nil {
		writeError(w, http.StatusNotFound, "Member not found")
		return
	}
	writeJSON(w, http.StatusOK, member)
}

func (wr *WebRouter) createMember(w http.ResponseWriter, r *http.Request) {
	var req MemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Member name is required")
		return
	}

	member := models.Member{
		Name:        req.Name,
		Pronouns:    req.Pronouns,
		AvatarPath:  req.AvatarPath,
		Color:       req.Color,
		Description: req.Description,
		ProxyTags:   models.EncodeProxyTags(req.ProxyTags),
	}
	id, err := wr.storage.Members.Add(&member)
	if err != nil {
		if store.IsNameConflict(err) {
			writeError(w, http.StatusConflict, "A member with that name already exists")
			return
		}
		slog.Error("error creating member", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	created, err := wr.storage.Members.GetByID(id)
	if err != nil || created == nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (wr *WebRouter) updateMember(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid member ID")
		return
	}
	existing, err := wr.storage.Members.GetByID(id)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "Member not found")
		return
	}

	// Partial patch: only keys present in the body are updated.
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	fields := map[string]any{}
	for key, value := range raw {
		switch key {
		case "name":
			var name string
			if err := json.Unmarshal(value, &name); err != nil || name == "" {
				writeError(w, http.StatusBadRequest, "Invalid member name")
				return
			}
			fields["name"] = name
		case "pronouns", "avatar_path", "color", "description":
			var s *string
			if err := json.Unmarshal(value, &s); err != nil {
				writeError(w, http.StatusBadRequest, "Invalid value for "+key)
				return
			}
			fields[key] = s
		case "proxy_tags":
			var tags []models.ProxyTag
			if err := json.Unmarshal(value, &tags); err != nil {
				writeError(w, http.StatusBadRequest, "Invalid proxy tags")
				return
			}
			fields["proxy_tags"] = models.EncodeProxyTags(tags)
		}
	}

	if len(fields) > 0 {
		if err := wr.storage.Members.Update(id, fields); err != nil {
			if store.IsNameConflict(err) {
				writeError(w, http.StatusConflict, "A member with that name already exists")
				return
			}
			slog.Error("error updating member", "error", err, "member_id", id)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		if _, ok := fields["avatar_path"]; ok {
			wr.thumbs.Invalidate(id)
		}
	}

	updated, err := wr.storage.Members.GetByID(id)
	if err != nil || updated == nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (wr *WebRouter) deleteMember(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid member ID")
		return
	}
	if err := wr.storage.Members.Delete(id); err != nil {
		slog.Error("error deleting member", "error", err, "member_id", id)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	wr.thumbs.Invalidate(id)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (wr *WebRouter) getAvatar(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid member ID")
		return
	}
	member, err := wr.storage.Members.GetByID(id)
	if err != nil || member == nil {
		writeError(w, http.StatusNotFound, "Member not found")
		return
	}

	if data := wr.thumbs.Get(id); data != nil {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(data)
		return
	}

	if member.AvatarPath == nil || avatar.IsRemote(*member.AvatarPath) {
		writeError(w, http.StatusNotFound, "No local avatar")
		return
	}
	if err := wr.thumbs.Load(id, *member.AvatarPath); err != nil {
		writeError(w, http.StatusNotFound, "No local avatar")
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Write(wr.thumbs.Get(id))
}

type AvatarRefreshResponse struct {
	Outcome        string  `json:"outcome"`
	SavingsPercent float64 `json:"savings_percent,omitempty"`
	Error          string  `json:"error,omitempty"`
}

func (wr *WebRouter) refreshAvatar(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid member ID")
		return
	}
	member, err := wr.storage.Members.GetByID(id)
	if err != nil || member == nil {
		writeError(w, http.StatusNotFound, "Member not found")
		return
	}

	result := wr.pipeline.EnsureLocal(r.Context(), member)
	resp := AvatarRefreshResponse{
		Outcome:        result.Outcome.String(),
		SavingsPercent: result.SavingsPercent,
	}
	if result.Err != nil {
		resp.Error = result.Err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

type PostMessageRequest struct {
	Text string `json:"text"`
}

type PostMessageResponse struct {
	ID         int    `json:"id"`
	MemberID   int    `json:"member_id"`
	MemberName string `json:"member_name"`
	Message    string `json:"message"`
	Timestamp  string `json:"timestamp"`
}

// postMessage routes a raw input line through proxy matching. No matching
// tag yields 422 with an optional name suggestion; the client decides how
// to present it.
func (wr *WebRouter) postMessage(w http.ResponseWriter, r *http.Request) {
	var req PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	members, err := wr.storage.Members.GetAll()
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	member, clean := proxy.Match(req.Text, members)
	if member == nil {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:      "No proxy tag matched",
			Suggestion: proxy.Suggest(req.Text, members),
		})
		return
	}

	timestamp := time.Now().Format("15:04")
	id, err := wr.storage.Messages.Add(member.ID, clean, timestamp)
	if err != nil {
		slog.Error("error storing message", "error", err, "member_id", member.ID)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// Make sure the avatar is local before the frontend renders the
	// message. Runs off the request path.
	go func(m models.Member) {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		result := wr.pipeline.EnsureLocal(ctx, &m)
		if result.Outcome == avatar.OutcomeDownloaded {
			wr.Notifier.Publish(Event{Name: "avatar-update", Data: map[string]any{"member_id": m.ID}})
		}
	}(*member)

	wr.Notifier.Publish(Event{Name: "message", Data: map[string]any{"member_id": member.ID}})

	writeJSON(w, http.StatusCreated, PostMessageResponse{
		ID:         id,
		MemberID:   member.ID,
		MemberName: member.Name,
		Message:    clean,
		Timestamp:  timestamp,
	})
}

func (wr *WebRouter) getMessages(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = parsed
	}
	messages, err := wr.storage.Messages.Recent(limit)
	if err != nil {
		slog.Error("error fetching messages", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (wr *WebRouter) getMemberMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid member ID")
		return
	}
	messages, err := wr.storage.Messages.ForMember(id)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (wr *WebRouter) getSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := wr.storage.Settings.All()
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if settings == nil {
		settings = map[string]string{}
	}
	writeJSON(w, http.StatusOK, settings)
}

type SettingRequest struct {
	Value string `json:"value"`
}

func (wr *WebRouter) putSetting(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if key == "" {
		writeError(w, http.StatusBadRequest, "Setting key required")
		return
	}
	var req SettingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	if err := wr.storage.Settings.Set(key, req.Value); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

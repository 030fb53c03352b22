package routes

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/pluralchat/pluralchat-server/pkg/auth"
	"github.com/pluralchat/pluralchat-server/pkg/importer"
	"github.com/pluralchat/pluralchat-server/pkg/models"
	"github.com/pluralchat/pluralchat-server/pkg/pluralkit"
)

// Import files are small JSON documents; anything past this is rejected.
const maxImportBytes = 32 << 20

func (wr *WebRouter) importData(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}
	if len(raw) > maxImportBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "Import file too large")
		return
	}

	payload, err := importer.Parse(raw)
	if err != nil {
		if errors.Is(err, importer.ErrUnsupportedFormat) {
			writeError(w, http.StatusBadRequest, "Unsupported export format")
			return
		}
		writeError(w, http.StatusBadRequest, "Failed to parse export file: "+err.Error())
		return
	}

	reconciler := importer.NewReconciler(wr.storage.Members, wr.storage.Messages, wr.storage.SystemInfo, wr.storage.Settings)
	stats, err := reconciler.Merge(payload)
	if err != nil {
		slog.Error("import failed", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	wr.Notifier.Publish(Event{Name: "import-complete", Data: stats})
	writeJSON(w, http.StatusOK, stats)
}

func (wr *WebRouter) exportData(w http.ResponseWriter, r *http.Request) {
	doc, err := importer.BuildExport(wr.storage.Members, wr.storage.Messages, wr.storage.SystemInfo, wr.storage.Settings)
	if err != nil {
		slog.Error("export failed", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	raw, err := doc.Marshal()
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="system_export.json"`)
	w.Write(raw)
}

type TokenStatusResponse struct {
	Configured bool    `json:"configured"`
	LastSync   *string `json:"last_sync,omitempty"`
}

func (wr *WebRouter) getTokenStatus(w http.ResponseWriter, r *http.Request) {
	token, err := wr.storage.Tokens.Get("pluralkit")
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	resp := TokenStatusResponse{Configured: token != nil}
	if token != nil && token.LastSync != nil {
		formatted := token.LastSync.Format("2006-01-02 15:04:05")
		resp.LastSync = &formatted
	}
	writeJSON(w, http.StatusOK, resp)
}

type PutTokenRequest struct {
	Token string `json:"token"`
}

type PutTokenResponse struct {
	Success    bool   `json:"success"`
	SystemID   string `json:"system_id,omitempty"`
	SystemName string `json:"system_name,omitempty"`
}

// putToken verifies the supplied PluralKit token against the API and
// stores it sealed. The plaintext never reaches the database.
func (wr *WebRouter) putToken(w http.ResponseWriter, r *http.Request) {
	var req PutTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		writeError(w, http.StatusBadRequest, "Token required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	client := pluralkit.NewClient(req.Token)
	sys, err := client.TestConnection(ctx)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Token verification failed: "+err.Error())
		return
	}

	sealed, err := auth.Seal(wr.sealKey, req.Token)
	if err != nil {
		slog.Error("error sealing token", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if err := wr.storage.Tokens.Save(&models.APIToken{Service: "pluralkit", TokenData: sealed}); err != nil {
		slog.Error("error saving token", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, PutTokenResponse{
		Success:    true,
		SystemID:   sys.ID,
		SystemName: sys.Name,
	})
}

func (wr *WebRouter) deleteToken(w http.ResponseWriter, r *http.Request) {
	if err := wr.storage.Tokens.Remove("pluralkit"); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// startPluralKitSync kicks off a member sync in the background. Progress
// flows to SSE subscribers as sync-progress events.
func (wr *WebRouter) startPluralKitSync(w http.ResponseWriter, r *http.Request) {
	if wr.syncer.Running() {
		writeError(w, http.StatusConflict, "A sync is already in progress")
		return
	}

	token, err := wr.storage.Tokens.Get("pluralkit")
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if token == nil {
		writeError(w, http.StatusPreconditionFailed, "No PluralKit token configured")
		return
	}

	plaintext, err := auth.Open(wr.sealKey, token.TokenData)
	if err != nil {
		slog.Error("error unsealing token", "error", err)
		writeError(w, http.StatusPreconditionFailed, "Stored token is unreadable, set it again")
		return
	}

	client := pluralkit.NewClient(plaintext)
	go func() {
		progress := func(p pluralkit.Progress) {
			wr.Notifier.Publish(Event{Name: "sync-progress", Data: p})
		}
		if _, err := wr.syncer.SyncMembers(context.Background(), client, progress); err != nil {
			slog.Error("pluralkit sync failed", "error", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{"started": true})
}

type AvatarSyncProgress struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

// startAvatarSync runs the bulk avatar download as a background batch.
// Per-file progress and the final report flow to SSE subscribers.
func (wr *WebRouter) startAvatarSync(w http.ResponseWriter, r *http.Request) {
	members, err := wr.storage.Members.GetAll()
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	go func() {
		progress := func(done, total int) {
			wr.Notifier.Publish(Event{Name: "avatar-sync-progress", Data: AvatarSyncProgress{Done: done, Total: total}})
		}
		report := wr.pipeline.SyncAll(context.Background(), members, progress)
		wr.Notifier.Publish(Event{Name: "avatar-sync-complete", Data: report})
		slog.Info("bulk avatar sync finished",
			"candidates", report.Candidates,
			"downloaded", report.Downloaded,
			"blocked", report.Blocked,
			"failed", report.Failed)
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{"started": true})
}

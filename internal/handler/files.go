package handler

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/workbox-dev/workbox/internal/objstore"
	"github.com/workbox-dev/workbox/internal/vfs"
)

// FileEntry is one row of a directory listing. Directories report "-" as
// their size and no modification time; neither is tracked for them.
type FileEntry struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Type     string `json:"type"` // "directory" or "file"
	Size     string `json:"size"`
	Modified string `json:"modified"`
}

type filePathRequest struct {
	SessionID string `json:"sessionId"`
	Path      string `json:"path"`
}

// ListFiles returns the immediate children of a directory: directories from
// the store's delimited prefixes, files from direct objects. Sentinels and
// deeper descendants are excluded. Directories sort before files, each
// group lexicographically.
// GET /api/files?session=...&path=...
func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	sessionID := vfs.ResolveSessionID(r.URL.Query().Get("session"))
	dirPath := vfs.NormalizePath(r.URL.Query().Get("path"))
	prefix := vfs.DirectoryPrefix(sessionID, dirPath)

	listed, err := h.gateway.ListChildren(r.Context(), prefix)
	if err != nil {
		h.log.Error("list files failed", "session", sessionID, "path", dirPath, "error", err)
		h.Fail(w, http.StatusInternalServerError, "Failed to list files")
		return
	}

	entries := make([]FileEntry, 0, len(listed.DelimitedPrefixes)+len(listed.Objects))

	for _, dirPrefix := range listed.DelimitedPrefixes {
		name := strings.TrimSuffix(strings.TrimPrefix(dirPrefix, prefix), "/")
		entries = append(entries, FileEntry{
			Name: name,
			Path: childPath(dirPath, name),
			Type: "directory",
			Size: "-",
		})
	}

	expectedPrefix := dirPath
	if expectedPrefix != vfs.Root {
		expectedPrefix += "/"
	}
	for _, obj := range listed.Objects {
		entry, ok := vfs.DecodeKey(sessionID, obj.Key)
		if !ok {
			continue
		}
		// A delimited listing only returns direct objects, but guard
		// against stores that report deeper keys anyway.
		if strings.Contains(strings.TrimPrefix(entry.Path, expectedPrefix), "/") {
			continue
		}
		entries = append(entries, FileEntry{
			Name:     entry.Name,
			Path:     entry.Path,
			Type:     "file",
			Size:     strconv.FormatInt(obj.Size, 10),
			Modified: obj.Uploaded.UTC().Format(time.RFC3339),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Type != entries[j].Type {
			return entries[i].Type == "directory"
		}
		return entries[i].Name < entries[j].Name
	})

	h.JSON(w, http.StatusOK, map[string]any{"success": true, "files": entries})
}

func childPath(dirPath, name string) string {
	if dirPath == vfs.Root {
		return "/" + name
	}
	return dirPath + "/" + name
}

// ReadFile returns a file's content.
// GET /api/read?session=...&path=...
func (h *Handler) ReadFile(w http.ResponseWriter, r *http.Request) {
	rawPath := r.URL.Query().Get("path")
	if rawPath == "" {
		h.Fail(w, http.StatusBadRequest, "No path")
		return
	}
	sessionID := vfs.ResolveSessionID(r.URL.Query().Get("session"))

	key, err := vfs.FileKey(sessionID, vfs.NormalizePath(rawPath))
	if err != nil {
		h.Fail(w, http.StatusBadRequest, err.Error())
		return
	}

	data, err := h.gateway.Store().Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, objstore.ErrNotFound) {
			h.Fail(w, http.StatusNotFound, "File not found")
			return
		}
		h.log.Error("read file failed", "key", key, "error", err)
		h.Fail(w, http.StatusInternalServerError, "Failed to read file")
		return
	}

	h.JSON(w, http.StatusOK, map[string]any{"success": true, "content": string(data)})
}

// WriteFile stores a file's content, creating or overwriting it.
// POST /api/write {sessionId, path, content}
func (h *Handler) WriteFile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		filePathRequest
		Content string `json:"content"`
	}
	h.DecodeJSON(r, &req)

	if req.Path == "" {
		h.Fail(w, http.StatusBadRequest, "No path")
		return
	}
	sessionID := vfs.ResolveSessionID(req.SessionID)

	key, err := vfs.FileKey(sessionID, vfs.NormalizePath(req.Path))
	if err != nil {
		h.Fail(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.gateway.Store().Put(r.Context(), key, []byte(req.Content)); err != nil {
		h.log.Error("write file failed", "key", key, "error", err)
		h.Fail(w, http.StatusInternalServerError, "Failed to write file")
		return
	}

	h.JSON(w, http.StatusOK, map[string]any{"success": true})
}

// Mkdir creates a directory by writing its ".keep" sentinel. Creating the
// root is a successful no-op.
// POST /api/mkdir {sessionId, path}
func (h *Handler) Mkdir(w http.ResponseWriter, r *http.Request) {
	var req filePathRequest
	h.DecodeJSON(r, &req)

	if req.Path == "" {
		h.Fail(w, http.StatusBadRequest, "No path")
		return
	}
	sessionID := vfs.ResolveSessionID(req.SessionID)

	dirPath := vfs.NormalizePath(req.Path)
	if dirPath == vfs.Root {
		h.JSON(w, http.StatusOK, map[string]any{"success": true})
		return
	}

	key, err := vfs.FileKey(sessionID, dirPath)
	if err != nil {
		h.Fail(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.gateway.Store().Put(r.Context(), key+"/"+vfs.KeepSentinel, nil); err != nil {
		h.log.Error("mkdir failed", "key", key, "error", err)
		h.Fail(w, http.StatusInternalServerError, "Failed to create folder")
		return
	}

	h.JSON(w, http.StatusOK, map[string]any{"success": true})
}

// DeletePath removes a file or directory recursively: the direct key, its
// sentinel, and every descendant. Deleting something that does not exist
// still succeeds.
// POST /api/delete {sessionId, path}
func (h *Handler) DeletePath(w http.ResponseWriter, r *http.Request) {
	var req filePathRequest
	h.DecodeJSON(r, &req)

	if req.Path == "" {
		h.Fail(w, http.StatusBadRequest, "No path")
		return
	}
	sessionID := vfs.ResolveSessionID(req.SessionID)

	targetPath := vfs.NormalizePath(req.Path)
	if targetPath == vfs.Root {
		h.Fail(w, http.StatusBadRequest, "Cannot delete root path")
		return
	}

	baseKey, err := vfs.FileKey(sessionID, targetPath)
	if err != nil {
		h.Fail(w, http.StatusBadRequest, err.Error())
		return
	}

	keys := []string{baseKey, baseKey + "/" + vfs.KeepSentinel}
	nested, err := h.gateway.ListAllKeys(r.Context(), baseKey+"/")
	if err != nil {
		h.log.Error("delete listing failed", "key", baseKey, "error", err)
		h.Fail(w, http.StatusInternalServerError, "Failed to delete path")
		return
	}
	keys = append(keys, nested...)

	if err := h.gateway.DeleteMany(r.Context(), dedupe(keys)); err != nil {
		h.log.Error("delete failed", "key", baseKey, "error", err)
		h.Fail(w, http.StatusInternalServerError, "Failed to delete path")
		return
	}

	h.JSON(w, http.StatusOK, map[string]any{"success": true})
}

func dedupe(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	out := keys[:0]
	for _, key := range keys {
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, key)
	}
	return out
}

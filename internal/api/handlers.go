package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/codingsoft/community-hub/internal/auth"
	"github.com/codingsoft/community-hub/internal/config"
	"github.com/codingsoft/community-hub/internal/store"
)

// localUserKey identifies every unauthenticated requester on a local hub.
const localUserKey = "local-key"

type HubHandler struct {
	store   *store.SQLiteStore
	keyring *auth.Keyring
	mode    string
}

func NewHubHandler(s *store.SQLiteStore, keyring *auth.Keyring, mode string) *HubHandler {
	return &HubHandler{store: s, keyring: keyring, mode: mode}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError emits the uniform failure envelope.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

// ConnectionKeyMiddleware resolves the caller's connection key. On a remote
// hub a missing or invalid key is a 401; on a local hub the caller falls
// back to the shared local identity.
func (h *HubHandler) ConnectionKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := auth.FromRequest(r)
		user, valid := h.keyring.Validate(key)

		if h.mode == config.ModeRemote {
			if key == "" {
				writeError(w, http.StatusUnauthorized, "Connection key is required")
				return
			}
			if !valid {
				writeError(w, http.StatusUnauthorized, "Invalid connection key")
				return
			}
		}

		userKey := localUserKey
		if valid {
			userKey = key
		}
		ctx := context.WithValue(r.Context(), "userKey", userKey)
		if valid {
			ctx = context.WithValue(ctx, "hubUser", user)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type itemGroup struct {
	Items      []store.Item `json:"items"`
	HasMore    bool         `json:"hasMore"`
	TotalCount int          `json:"totalCount"`
}

// ExploreHandler returns every public item grouped by its plural type key.
// hasMore is always false: the catalog is small and unpaginated.
func (h *HubHandler) ExploreHandler(w http.ResponseWriter, r *http.Request) {
	result := map[string]any{"error": nil}
	for _, itemType := range store.ItemTypes {
		items, err := h.store.ListItems(itemType)
		if err != nil {
			log.Printf("Error listing %s items for explore: %v", itemType, err)
			writeError(w, http.StatusInternalServerError, "Failed to list items")
			return
		}
		public := []store.Item{}
		for _, item := range items {
			if item.Visibility != store.VisibilityPublic {
				continue
			}
			item.ImportID = store.ComputeImportID(item.ItemType, item.ID)
			public = append(public, item)
		}
		result[store.PluralTypeKey(itemType)] = itemGroup{
			Items:      public,
			HasMore:    false,
			TotalCount: len(public),
		}
	}
	writeJSON(w, http.StatusOK, result)
}

// PullHandler fetches one item by (itemType, id) and attaches its computed
// import id. Private items are indistinguishable from missing ones for
// requesters without a valid connection key.
func (h *HubHandler) PullHandler(w http.ResponseWriter, r *http.Request) {
	itemType := chi.URLParam(r, "itemType")
	id := chi.URLParam(r, "id")

	if !store.ValidItemType(itemType) {
		writeError(w, http.StatusBadRequest, "Invalid item type")
		return
	}
	item, err := h.store.GetItem(itemType, id)
	if err != nil {
		log.Printf("Error pulling item %s/%s: %v", itemType, id, err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch item")
		return
	}
	if item == nil {
		writeError(w, http.StatusNotFound, "Item not found")
		return
	}
	if item.Visibility == store.VisibilityPrivate && h.mode == config.ModeRemote {
		if _, valid := h.keyring.Validate(auth.FromRequest(r)); !valid {
			writeError(w, http.StatusNotFound, "Item not found")
			return
		}
	}

	item.ImportID = store.ComputeImportID(item.ItemType, item.ID)
	var url *string
	if store.IsBundleType(item.ItemType) {
		if u := item.BundleURL(); u != "" {
			url = &u
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"item":  item,
		"url":   url,
		"error": nil,
	})
}

type authRequest struct {
	ConnectionKey string `json:"connectionKey"`
}

// AuthHandler validates a connection key without granting anything else.
func (h *HubHandler) AuthHandler(w http.ResponseWriter, r *http.Request) {
	var req authRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	user, valid := h.keyring.Validate(req.ConnectionKey)
	if !valid {
		writeJSON(w, http.StatusOK, map[string]any{"valid": false, "error": "Invalid connection key"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"valid": true, "user": user, "error": nil})
}

// UserItemsHandler returns the caller's own items grouped by plural type
// key, plus team items. Ownership is the per-key user id, so keyholders on
// the same hub never see each other's private items here. A missing or
// invalid connection key yields the empty shape rather than an error.
func (h *HubHandler) UserItemsHandler(w http.ResponseWriter, r *http.Request) {
	key := auth.FromRequest(r)
	user, valid := h.keyring.Validate(key)
	if key == "" || !valid {
		writeJSON(w, http.StatusOK, map[string]any{
			"createdByMe": map[string]any{},
			"teamItems":   []any{},
			"error":       nil,
		})
		return
	}

	items, err := h.store.ListItemsByOwner(user.ID)
	if err != nil {
		log.Printf("Error listing items for user %s: %v", user.ID, err)
		writeError(w, http.StatusInternalServerError, "Failed to list user items")
		return
	}
	createdByMe := map[string]itemGroup{}
	for _, item := range items {
		item.ImportID = store.ComputeImportID(item.ItemType, item.ID)
		key := store.PluralTypeKey(item.ItemType)
		group := createdByMe[key]
		group.Items = append(group.Items, item)
		group.TotalCount = len(group.Items)
		createdByMe[key] = group
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"createdByMe": createdByMe,
		"teamItems":   []any{},
		"error":       nil,
	})
}

// CreateHandler publishes a new item of the path's type.
func (h *HubHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	itemType := chi.URLParam(r, "itemType")
	if !store.ValidItemType(itemType) {
		writeError(w, http.StatusBadRequest, "Invalid item type")
		return
	}

	var patch store.ItemPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	// Ownership is stamped from the validated key, never from the body
	if user, ok := r.Context().Value("hubUser").(*auth.User); ok {
		patch.OwnerID = user.ID
		if patch.Author == "" {
			patch.Author = user.Name
		}
	}

	item, err := h.store.CreateItem(itemType, patch)
	if err != nil {
		if errors.Is(err, store.ErrInvalidItemType) {
			writeError(w, http.StatusBadRequest, "Invalid item type")
			return
		}
		log.Printf("Error creating %s item: %v", itemType, err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	item.ImportID = store.ComputeImportID(item.ItemType, item.ID)
	writeJSON(w, http.StatusOK, map[string]any{"item": item, "error": nil})
}

// UpdateHandler merge-updates an existing item.
func (h *HubHandler) UpdateHandler(w http.ResponseWriter, r *http.Request) {
	itemType := chi.URLParam(r, "itemType")
	id := chi.URLParam(r, "id")

	if !store.ValidItemType(itemType) {
		writeError(w, http.StatusBadRequest, "Invalid item type")
		return
	}
	var patch store.ItemPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	item, err := h.store.UpdateItem(itemType, id, patch)
	if err != nil {
		log.Printf("Error updating item %s/%s: %v", itemType, id, err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if item == nil {
		writeError(w, http.StatusNotFound, "Item not found")
		return
	}
	item.ImportID = store.ComputeImportID(item.ItemType, item.ID)
	writeJSON(w, http.StatusOK, map[string]any{"item": item, "error": nil})
}

// DeleteHandler removes an item. Deleting twice yields a 404, not an error
// envelope with a 500.
func (h *HubHandler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	itemType := chi.URLParam(r, "itemType")
	id := chi.URLParam(r, "id")

	if !store.ValidItemType(itemType) {
		writeError(w, http.StatusBadRequest, "Invalid item type")
		return
	}
	deleted, err := h.store.DeleteItem(itemType, id)
	if err != nil {
		log.Printf("Error deleting item %s/%s: %v", itemType, id, err)
		writeError(w, http.StatusInternalServerError, "Failed to delete item")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "Item not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "error": nil})
}

type voteRequest struct {
	Vote int `json:"vote"`
}

// votedItem is an item response annotated with the requester's own vote.
type votedItem struct {
	store.Item
	UserVote int `json:"userVote"`
}

// CastVoteHandler records the pressed vote value. Toggle detection is
// server-side: repeating the recorded value retracts the vote.
func (h *HubHandler) CastVoteHandler(w http.ResponseWriter, r *http.Request) {
	itemType := chi.URLParam(r, "itemType")
	id := chi.URLParam(r, "id")
	userKey := r.Context().Value("userKey").(string)

	if !store.ValidItemType(itemType) {
		writeError(w, http.StatusBadRequest, "Invalid item type")
		return
	}
	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	result, err := h.store.Vote(itemType, id, userKey, req.Vote)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "Item not found")
		case errors.Is(err, store.ErrInvalidVote):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			log.Printf("Error voting on item %s/%s: %v", itemType, id, err)
			writeError(w, http.StatusInternalServerError, "Failed to record vote")
		}
		return
	}

	item, err := h.store.GetItem(itemType, id)
	if err != nil || item == nil {
		log.Printf("Error re-reading item %s/%s after vote: %v", itemType, id, err)
		writeError(w, http.StatusInternalServerError, "Failed to record vote")
		return
	}
	item.ImportID = store.ComputeImportID(item.ItemType, item.ID)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"item":    votedItem{Item: *item, UserVote: result.UserVote},
		"error":   nil,
	})
}

// GetVoteHandler reports the requester's recorded vote, 0 when none.
func (h *HubHandler) GetVoteHandler(w http.ResponseWriter, r *http.Request) {
	itemType := chi.URLParam(r, "itemType")
	id := chi.URLParam(r, "id")
	userKey := r.Context().Value("userKey").(string)

	if !store.ValidItemType(itemType) {
		writeError(w, http.StatusBadRequest, "Invalid item type")
		return
	}
	vote, err := h.store.UserVote(itemType, id, userKey)
	if err != nil {
		log.Printf("Error reading vote on item %s/%s: %v", itemType, id, err)
		writeError(w, http.StatusInternalServerError, "Failed to read vote")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "userVote": vote, "error": nil})
}

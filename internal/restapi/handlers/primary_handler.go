package handlers

import (
	"net/http"

	"go.uber.org/zap"
)

// PrimaryHandler serves the user, group, entity-type and entity
// primary-element relations: add, remove, contains and list.
type PrimaryHandler struct {
	engine Engine
	logger *zap.Logger
}

// NewPrimaryHandler returns a PrimaryHandler over engine.
func NewPrimaryHandler(engine Engine, logger *zap.Logger) *PrimaryHandler {
	return &PrimaryHandler{engine: engine, logger: logger}
}

// AddUser handles POST /users/{user}.
func (h *PrimaryHandler) AddUser(w http.ResponseWriter, r *http.Request) {
	user, err := pathParam(r, "user")
	if err != nil {
		writeBadRequest(w, h.logger, "invalid user path segment")
		return
	}
	if err := h.engine.AddUser(r.Context(), user); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, nil)
}

// RemoveUser handles DELETE /users/{user}.
func (h *PrimaryHandler) RemoveUser(w http.ResponseWriter, r *http.Request) {
	user, err := pathParam(r, "user")
	if err != nil {
		writeBadRequest(w, h.logger, "invalid user path segment")
		return
	}
	if err := h.engine.RemoveUser(r.Context(), user); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetUser handles GET /users/{user}, answering ContainsUser as a bool.
func (h *PrimaryHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := pathParam(r, "user")
	if err != nil {
		writeBadRequest(w, h.logger, "invalid user path segment")
		return
	}
	writeJSON(w, http.StatusOK, h.engine.ContainsUser(user))
}

// ListUsers handles GET /users.
func (h *PrimaryHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Users())
}

// AddGroup handles POST /groups/{group}.
func (h *PrimaryHandler) AddGroup(w http.ResponseWriter, r *http.Request) {
	group, err := pathParam(r, "group")
	if err != nil {
		writeBadRequest(w, h.logger, "invalid group path segment")
		return
	}
	if err := h.engine.AddGroup(r.Context(), group); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, nil)
}

// RemoveGroup handles DELETE /groups/{group}.
func (h *PrimaryHandler) RemoveGroup(w http.ResponseWriter, r *http.Request) {
	group, err := pathParam(r, "group")
	if err != nil {
		writeBadRequest(w, h.logger, "invalid group path segment")
		return
	}
	if err := h.engine.RemoveGroup(r.Context(), group); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetGroup handles GET /groups/{group}, answering ContainsGroup as a bool.
func (h *PrimaryHandler) GetGroup(w http.ResponseWriter, r *http.Request) {
	group, err := pathParam(r, "group")
	if err != nil {
		writeBadRequest(w, h.logger, "invalid group path segment")
		return
	}
	writeJSON(w, http.StatusOK, h.engine.ContainsGroup(group))
}

// ListGroups handles GET /groups.
func (h *PrimaryHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Groups())
}

// AddEntityType handles POST /entity-types/{entityType}.
func (h *PrimaryHandler) AddEntityType(w http.ResponseWriter, r *http.Request) {
	entityType, err := pathParam(r, "entityType")
	if err != nil {
		writeBadRequest(w, h.logger, "invalid entityType path segment")
		return
	}
	if err := h.engine.AddEntityType(r.Context(), entityType); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, nil)
}

// RemoveEntityType handles DELETE /entity-types/{entityType}.
func (h *PrimaryHandler) RemoveEntityType(w http.ResponseWriter, r *http.Request) {
	entityType, err := pathParam(r, "entityType")
	if err != nil {
		writeBadRequest(w, h.logger, "invalid entityType path segment")
		return
	}
	if err := h.engine.RemoveEntityType(r.Context(), entityType); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetEntityType handles GET /entity-types/{entityType}.
func (h *PrimaryHandler) GetEntityType(w http.ResponseWriter, r *http.Request) {
	entityType, err := pathParam(r, "entityType")
	if err != nil {
		writeBadRequest(w, h.logger, "invalid entityType path segment")
		return
	}
	writeJSON(w, http.StatusOK, h.engine.ContainsEntityType(entityType))
}

// ListEntityTypes handles GET /entity-types.
func (h *PrimaryHandler) ListEntityTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.EntityTypes())
}

// AddEntity handles POST /entity-types/{entityType}/entities/{entity}.
func (h *PrimaryHandler) AddEntity(w http.ResponseWriter, r *http.Request) {
	entityType, entity, err := entityTypeAndEntity(r)
	if err != nil {
		writeBadRequest(w, h.logger, err.Error())
		return
	}
	if err := h.engine.AddEntity(r.Context(), entityType, entity); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, nil)
}

// RemoveEntity handles DELETE /entity-types/{entityType}/entities/{entity}.
func (h *PrimaryHandler) RemoveEntity(w http.ResponseWriter, r *http.Request) {
	entityType, entity, err := entityTypeAndEntity(r)
	if err != nil {
		writeBadRequest(w, h.logger, err.Error())
		return
	}
	if err := h.engine.RemoveEntity(r.Context(), entityType, entity); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetEntity handles GET /entity-types/{entityType}/entities/{entity}.
func (h *PrimaryHandler) GetEntity(w http.ResponseWriter, r *http.Request) {
	entityType, entity, err := entityTypeAndEntity(r)
	if err != nil {
		writeBadRequest(w, h.logger, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.engine.ContainsEntity(entityType, entity))
}

// ListEntities handles GET /entity-types/{entityType}/entities.
func (h *PrimaryHandler) ListEntities(w http.ResponseWriter, r *http.Request) {
	entityType, err := pathParam(r, "entityType")
	if err != nil {
		writeBadRequest(w, h.logger, "invalid entityType path segment")
		return
	}
	writeJSON(w, http.StatusOK, h.engine.GetEntities(entityType))
}

func entityTypeAndEntity(r *http.Request) (string, string, error) {
	entityType, err := pathParam(r, "entityType")
	if err != nil {
		return "", "", errInvalidSegment("entityType")
	}
	entity, err := pathParam(r, "entity")
	if err != nil {
		return "", "", errInvalidSegment("entity")
	}
	return entityType, entity, nil
}

type errInvalidSegment string

func (e errInvalidSegment) Error() string { return "invalid " + string(e) + " path segment" }

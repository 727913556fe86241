package handlers

import (
	"net/http"

	"go.uber.org/zap"
)

// QueryHandler serves the read-only traversal and access-check endpoints:
// direct/transitive group mappings, accessible-component/entity listings,
// and the two HasAccessTo* boolean checks.
type QueryHandler struct {
	engine Engine
	logger *zap.Logger
}

// NewQueryHandler returns a QueryHandler over engine.
func NewQueryHandler(engine Engine, logger *zap.Logger) *QueryHandler {
	return &QueryHandler{engine: engine, logger: logger}
}

// GetUserGroups handles GET /users/{user}/groups?indirect=true.
func (h *QueryHandler) GetUserGroups(w http.ResponseWriter, r *http.Request) {
	user, err := pathParam(r, "user")
	if err != nil {
		writeBadRequest(w, h.logger, "invalid user path segment")
		return
	}
	writeJSON(w, http.StatusOK, h.engine.GetUserToGroupMappings(user, boolQueryParam(r, "indirect")))
}

// GetGroupUsers handles GET /groups/{group}/users.
func (h *QueryHandler) GetGroupUsers(w http.ResponseWriter, r *http.Request) {
	group, err := pathParam(r, "group")
	if err != nil {
		writeBadRequest(w, h.logger, "invalid group path segment")
		return
	}
	writeJSON(w, http.StatusOK, h.engine.GetGroupToUserMappings(group))
}

// GetGroupGroups handles GET /groups/{group}/groups?indirect=true.
func (h *QueryHandler) GetGroupGroups(w http.ResponseWriter, r *http.Request) {
	group, err := pathParam(r, "group")
	if err != nil {
		writeBadRequest(w, h.logger, "invalid group path segment")
		return
	}
	writeJSON(w, http.StatusOK, h.engine.GetGroupToGroupMappings(group, boolQueryParam(r, "indirect")))
}

// GetGroupParents handles GET /groups/{group}/groups/reverse.
func (h *QueryHandler) GetGroupParents(w http.ResponseWriter, r *http.Request) {
	group, err := pathParam(r, "group")
	if err != nil {
		writeBadRequest(w, h.logger, "invalid group path segment")
		return
	}
	writeJSON(w, http.StatusOK, h.engine.GetGroupToGroupReverseMappings(group))
}

// GetUserComponents handles GET /users/{user}/components.
func (h *QueryHandler) GetUserComponents(w http.ResponseWriter, r *http.Request) {
	user, err := pathParam(r, "user")
	if err != nil {
		writeBadRequest(w, h.logger, "invalid user path segment")
		return
	}
	writeJSON(w, http.StatusOK, componentAccessPairs(h.engine.GetUserToApplicationComponentAndAccessLevelMappings(user)))
}

// GetGroupComponents handles GET /groups/{group}/components.
func (h *QueryHandler) GetGroupComponents(w http.ResponseWriter, r *http.Request) {
	group, err := pathParam(r, "group")
	if err != nil {
		writeBadRequest(w, h.logger, "invalid group path segment")
		return
	}
	writeJSON(w, http.StatusOK, componentAccessPairs(h.engine.GetGroupToApplicationComponentAndAccessLevelMappings(group)))
}

// GetUserEntities handles GET /users/{user}/entities.
func (h *QueryHandler) GetUserEntities(w http.ResponseWriter, r *http.Request) {
	user, err := pathParam(r, "user")
	if err != nil {
		writeBadRequest(w, h.logger, "invalid user path segment")
		return
	}
	writeJSON(w, http.StatusOK, entityRefPairs(h.engine.GetUserToEntityMappings(user)))
}

// GetUserEntitiesForType handles GET /users/{user}/entity-types/{entityType}/entities.
func (h *QueryHandler) GetUserEntitiesForType(w http.ResponseWriter, r *http.Request) {
	user, entityType, err := pathParamPair(r, "user", "entityType")
	if err != nil {
		writeBadRequest(w, h.logger, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.engine.GetUserToEntityMappingsForType(user, entityType))
}

// GetGroupEntities handles GET /groups/{group}/entities.
func (h *QueryHandler) GetGroupEntities(w http.ResponseWriter, r *http.Request) {
	group, err := pathParam(r, "group")
	if err != nil {
		writeBadRequest(w, h.logger, "invalid group path segment")
		return
	}
	writeJSON(w, http.StatusOK, entityRefPairs(h.engine.GetGroupToEntityMappings(group)))
}

// GetGroupEntitiesForType handles GET /groups/{group}/entity-types/{entityType}/entities.
func (h *QueryHandler) GetGroupEntitiesForType(w http.ResponseWriter, r *http.Request) {
	group, entityType, err := pathParamPair(r, "group", "entityType")
	if err != nil {
		writeBadRequest(w, h.logger, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.engine.GetGroupToEntityMappingsForType(group, entityType))
}

// HasAccessToComponent handles GET /users/{user}/access/components/{component}/access/{access}.
func (h *QueryHandler) HasAccessToComponent(w http.ResponseWriter, r *http.Request) {
	user, component, access, err := userComponentAccess(r)
	if err != nil {
		writeBadRequest(w, h.logger, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.engine.HasAccessToApplicationComponent(user, component, access))
}

// HasAccessToEntity handles GET /users/{user}/access/entity-types/{entityType}/entities/{entity}.
func (h *QueryHandler) HasAccessToEntity(w http.ResponseWriter, r *http.Request) {
	user, entityType, entity, err := subjectEntityTypeEntity(r, "user")
	if err != nil {
		writeBadRequest(w, h.logger, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.engine.HasAccessToEntity(user, entityType, entity))
}

// GetAccessibleComponentsForUser handles GET /users/{user}/accessible-components.
func (h *QueryHandler) GetAccessibleComponentsForUser(w http.ResponseWriter, r *http.Request) {
	user, err := pathParam(r, "user")
	if err != nil {
		writeBadRequest(w, h.logger, "invalid user path segment")
		return
	}
	writeJSON(w, http.StatusOK, componentAccessPairs(h.engine.GetApplicationComponentsAccessibleByUser(user)))
}

// GetAccessibleComponentsForGroup handles GET /groups/{group}/accessible-components.
func (h *QueryHandler) GetAccessibleComponentsForGroup(w http.ResponseWriter, r *http.Request) {
	group, err := pathParam(r, "group")
	if err != nil {
		writeBadRequest(w, h.logger, "invalid group path segment")
		return
	}
	writeJSON(w, http.StatusOK, componentAccessPairs(h.engine.GetApplicationComponentsAccessibleByGroup(group)))
}

// GetAccessibleEntitiesForUser handles GET /users/{user}/accessible-entities.
func (h *QueryHandler) GetAccessibleEntitiesForUser(w http.ResponseWriter, r *http.Request) {
	user, err := pathParam(r, "user")
	if err != nil {
		writeBadRequest(w, h.logger, "invalid user path segment")
		return
	}
	writeJSON(w, http.StatusOK, entityRefPairs(h.engine.GetEntitiesAccessibleByUser(user)))
}

// GetAccessibleEntitiesForGroup handles GET /groups/{group}/accessible-entities.
func (h *QueryHandler) GetAccessibleEntitiesForGroup(w http.ResponseWriter, r *http.Request) {
	group, err := pathParam(r, "group")
	if err != nil {
		writeBadRequest(w, h.logger, "invalid group path segment")
		return
	}
	writeJSON(w, http.StatusOK, entityRefPairs(h.engine.GetEntitiesAccessibleByGroup(group)))
}

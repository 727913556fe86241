package handlers

import (
	"net/http"

	"go.uber.org/zap"
)

// MappingHandler serves add/remove for the six mapping relations:
// user->group, group->group, user/group->component, user/group->entity.
type MappingHandler struct {
	engine Engine
	logger *zap.Logger
}

// NewMappingHandler returns a MappingHandler over engine.
func NewMappingHandler(engine Engine, logger *zap.Logger) *MappingHandler {
	return &MappingHandler{engine: engine, logger: logger}
}

// ---- user -> group ----

// AddUserToGroup handles POST /users/{user}/groups/{group}.
func (h *MappingHandler) AddUserToGroup(w http.ResponseWriter, r *http.Request) {
	user, group, err := pathParamPair(r, "user", "group")
	if err != nil {
		writeBadRequest(w, h.logger, err.Error())
		return
	}
	if err := h.engine.AddUserToGroupMapping(r.Context(), user, group); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, nil)
}

// RemoveUserToGroup handles DELETE /users/{user}/groups/{group}.
func (h *MappingHandler) RemoveUserToGroup(w http.ResponseWriter, r *http.Request) {
	user, group, err := pathParamPair(r, "user", "group")
	if err != nil {
		writeBadRequest(w, h.logger, err.Error())
		return
	}
	if err := h.engine.RemoveUserToGroupMapping(r.Context(), user, group); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- group -> group ----

// AddGroupToGroup handles POST /groups/{from}/groups/{to}.
func (h *MappingHandler) AddGroupToGroup(w http.ResponseWriter, r *http.Request) {
	from, to, err := pathParamPair(r, "from", "to")
	if err != nil {
		writeBadRequest(w, h.logger, err.Error())
		return
	}
	if err := h.engine.AddGroupToGroupMapping(r.Context(), from, to); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, nil)
}

// RemoveGroupToGroup handles DELETE /groups/{from}/groups/{to}.
func (h *MappingHandler) RemoveGroupToGroup(w http.ResponseWriter, r *http.Request) {
	from, to, err := pathParamPair(r, "from", "to")
	if err != nil {
		writeBadRequest(w, h.logger, err.Error())
		return
	}
	if err := h.engine.RemoveGroupToGroupMapping(r.Context(), from, to); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- user -> component/access ----

// AddUserToComponent handles POST /users/{user}/components/{component}/access/{access}.
func (h *MappingHandler) AddUserToComponent(w http.ResponseWriter, r *http.Request) {
	user, component, access, err := userComponentAccess(r)
	if err != nil {
		writeBadRequest(w, h.logger, err.Error())
		return
	}
	if err := h.engine.AddUserToApplicationComponentAndAccessLevelMapping(r.Context(), user, component, access); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, nil)
}

// RemoveUserToComponent handles DELETE /users/{user}/components/{component}/access/{access}.
func (h *MappingHandler) RemoveUserToComponent(w http.ResponseWriter, r *http.Request) {
	user, component, access, err := userComponentAccess(r)
	if err != nil {
		writeBadRequest(w, h.logger, err.Error())
		return
	}
	if err := h.engine.RemoveUserToApplicationComponentAndAccessLevelMapping(r.Context(), user, component, access); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- group -> component/access ----

// AddGroupToComponent handles POST /groups/{group}/components/{component}/access/{access}.
func (h *MappingHandler) AddGroupToComponent(w http.ResponseWriter, r *http.Request) {
	group, component, access, err := groupComponentAccess(r)
	if err != nil {
		writeBadRequest(w, h.logger, err.Error())
		return
	}
	if err := h.engine.AddGroupToApplicationComponentAndAccessLevelMapping(r.Context(), group, component, access); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, nil)
}

// RemoveGroupToComponent handles DELETE /groups/{group}/components/{component}/access/{access}.
func (h *MappingHandler) RemoveGroupToComponent(w http.ResponseWriter, r *http.Request) {
	group, component, access, err := groupComponentAccess(r)
	if err != nil {
		writeBadRequest(w, h.logger, err.Error())
		return
	}
	if err := h.engine.RemoveGroupToApplicationComponentAndAccessLevelMapping(r.Context(), group, component, access); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- user -> entity ----

// AddUserToEntity handles POST /users/{user}/entity-types/{entityType}/entities/{entity}.
func (h *MappingHandler) AddUserToEntity(w http.ResponseWriter, r *http.Request) {
	user, entityType, entity, err := subjectEntityTypeEntity(r, "user")
	if err != nil {
		writeBadRequest(w, h.logger, err.Error())
		return
	}
	if err := h.engine.AddUserToEntityMapping(r.Context(), user, entityType, entity); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, nil)
}

// RemoveUserToEntity handles DELETE /users/{user}/entity-types/{entityType}/entities/{entity}.
func (h *MappingHandler) RemoveUserToEntity(w http.ResponseWriter, r *http.Request) {
	user, entityType, entity, err := subjectEntityTypeEntity(r, "user")
	if err != nil {
		writeBadRequest(w, h.logger, err.Error())
		return
	}
	if err := h.engine.RemoveUserToEntityMapping(r.Context(), user, entityType, entity); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- group -> entity ----

// AddGroupToEntity handles POST /groups/{group}/entity-types/{entityType}/entities/{entity}.
func (h *MappingHandler) AddGroupToEntity(w http.ResponseWriter, r *http.Request) {
	group, entityType, entity, err := subjectEntityTypeEntity(r, "group")
	if err != nil {
		writeBadRequest(w, h.logger, err.Error())
		return
	}
	if err := h.engine.AddGroupToEntityMapping(r.Context(), group, entityType, entity); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, nil)
}

// RemoveGroupToEntity handles DELETE /groups/{group}/entity-types/{entityType}/entities/{entity}.
func (h *MappingHandler) RemoveGroupToEntity(w http.ResponseWriter, r *http.Request) {
	group, entityType, entity, err := subjectEntityTypeEntity(r, "group")
	if err != nil {
		writeBadRequest(w, h.logger, err.Error())
		return
	}
	if err := h.engine.RemoveGroupToEntityMapping(r.Context(), group, entityType, entity); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathParamPair(r *http.Request, a, b string) (string, string, error) {
	av, err := pathParam(r, a)
	if err != nil {
		return "", "", errInvalidSegment(a)
	}
	bv, err := pathParam(r, b)
	if err != nil {
		return "", "", errInvalidSegment(b)
	}
	return av, bv, nil
}

func userComponentAccess(r *http.Request) (string, string, string, error) {
	return subjectComponentAccess(r, "user")
}

func groupComponentAccess(r *http.Request) (string, string, string, error) {
	return subjectComponentAccess(r, "group")
}

func subjectComponentAccess(r *http.Request, subjectParam string) (string, string, string, error) {
	subject, err := pathParam(r, subjectParam)
	if err != nil {
		return "", "", "", errInvalidSegment(subjectParam)
	}
	component, err := pathParam(r, "component")
	if err != nil {
		return "", "", "", errInvalidSegment("component")
	}
	access, err := pathParam(r, "access")
	if err != nil {
		return "", "", "", errInvalidSegment("access")
	}
	return subject, component, access, nil
}

func subjectEntityTypeEntity(r *http.Request, subjectParam string) (string, string, string, error) {
	subject, err := pathParam(r, subjectParam)
	if err != nil {
		return "", "", "", errInvalidSegment(subjectParam)
	}
	entityType, entity, err := entityTypeAndEntity(r)
	if err != nil {
		return "", "", "", err
	}
	return subject, entityType, entity, nil
}

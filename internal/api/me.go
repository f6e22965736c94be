package api

import (
	"context"
	"net/http"

	genapi "github.com/USSTM/asset-backend/api"
	"github.com/USSTM/asset-backend/internal/auth"
	"github.com/USSTM/asset-backend/internal/db"
	"github.com/USSTM/asset-backend/internal/middleware"
)

func (s *Server) GetMe(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	row, err := s.db.Queries().GetUserByID(r.Context(), user.ID)
	if err != nil {
		s.fail(w, r, "User", err)
		return
	}

	role := user.Subject.Role
	writeJSON(w, http.StatusOK, MeResponse{
		User:    toUserResponse(row),
		Role:    RoleSummary{ID: role.ID, Name: role.Name, Scope: role.Scope},
		IsAdmin: s.resolver.IsAdmin(user.Subject),
	})
}

func (s *Server) GetMyModules(ctx context.Context, request genapi.GetMyModulesRequestObject) (genapi.GetMyModulesResponseObject, error) {
	user, ok := auth.GetAuthenticatedUser(ctx)
	if !ok {
		return genapi.GetMyModules401JSONResponse{ErrorJSONResponse: apiError(Unauthorized("Authentication required"))}, nil
	}

	modules, err := s.resolver.AccessibleModules(ctx, user.Subject)
	if err != nil {
		middleware.GetLoggerFromContext(ctx).Error("Failed to resolve modules", "error", err)
		return genapi.GetMyModules500JSONResponse{ErrorJSONResponse: apiError(InternalError("An unexpected error occurred."))}, nil
	}

	resp := make(genapi.GetMyModules200JSONResponse, 0, len(modules))
	for _, m := range modules {
		sortOrder := int(m.SortOrder)
		resp = append(resp, genapi.Module{Code: &m.Code, Name: &m.Name, Path: &m.Path, SortOrder: &sortOrder})
	}
	return resp, nil
}

func (s *Server) GetMyPermissions(ctx context.Context, request genapi.GetMyPermissionsRequestObject) (genapi.GetMyPermissionsResponseObject, error) {
	user, ok := auth.GetAuthenticatedUser(ctx)
	if !ok {
		return genapi.GetMyPermissions401JSONResponse{ErrorJSONResponse: apiError(Unauthorized("Authentication required"))}, nil
	}

	perms, err := s.resolver.EffectivePermissions(ctx, user.Subject)
	if err != nil {
		middleware.GetLoggerFromContext(ctx).Error("Failed to resolve permissions", "error", err)
		return genapi.GetMyPermissions500JSONResponse{ErrorJSONResponse: apiError(InternalError("An unexpected error occurred."))}, nil
	}

	resp := make(genapi.GetMyPermissions200JSONResponse, len(perms))
	for module, actions := range perms {
		out := make([]genapi.Action, 0, len(actions))
		for _, a := range actions {
			out = append(out, genapi.Action(a))
		}
		resp[module] = out
	}
	return resp, nil
}

func (s *Server) GetNotificationSettings(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	settings, err := s.notifier.GetSettings(r.Context(), user.ID)
	if err != nil {
		s.fail(w, r, "Notification settings", err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingsResponse(settings))
}

// UpdateNotificationSettings replaces all four switches; omitted fields are
// taken from the current settings.
func (s *Server) UpdateNotificationSettings(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	current, err := s.notifier.GetSettings(r.Context(), user.ID)
	if err != nil {
		s.fail(w, r, "Notification settings", err)
		return
	}

	var req struct {
		EmailOnApproval  *bool `json:"emailOnApproval"`
		EmailOnRejection *bool `json:"emailOnRejection"`
		EmailOnReturn    *bool `json:"emailOnReturn"`
		EmailReminders   *bool `json:"emailReminders"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	next := db.NotificationSetting{
		UserID:           user.ID,
		EmailOnApproval:  pick(req.EmailOnApproval, current.EmailOnApproval),
		EmailOnRejection: pick(req.EmailOnRejection, current.EmailOnRejection),
		EmailOnReturn:    pick(req.EmailOnReturn, current.EmailOnReturn),
		EmailReminders:   pick(req.EmailReminders, current.EmailReminders),
	}

	saved, err := s.notifier.UpdateSettings(r.Context(), next)
	if err != nil {
		s.fail(w, r, "Notification settings", err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingsResponse(saved))
}

func pick(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}

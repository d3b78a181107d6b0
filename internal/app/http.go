package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"labdesk/api/internal/auth"
	"labdesk/api/internal/draft"
	"labdesk/api/internal/export"
	"labdesk/api/internal/rbac"
	"labdesk/api/internal/search"
	"labdesk/api/internal/stage"
	"labdesk/api/internal/store"
	"labdesk/api/internal/users"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
		}
		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}
		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/signin" {
		s.handleSignIn(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/session" {
		token := bearerToken(r)
		if token == "" {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "userName": nil})
			return
		}
		session, err := s.service.SessionFromToken(r.Context(), token)
		if err != nil {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "userName": nil})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"authenticated": true,
			"userName":      session.UserName,
			"userId":        session.UserID,
			"role":          session.Role,
		})
		return
	}

	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	segments := splitPath(r.URL.Path)
	if len(segments) < 2 || segments[0] != "api" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch segments[1] {
	case "search":
		s.handleSearch(w, r, session)
	case "articles":
		s.handleArticles(w, r, session, segments[2:])
	case "media":
		s.handleMedia(w, r, session)
	case "briefs":
		s.handleBriefs(w, r, session, segments[2:])
	case "users":
		s.handleUsers(w, r, session, segments[2:])
	case "teams":
		s.handleTeams(w, r, session, segments[2:])
	case "me":
		s.handleMe(w, r, session, segments[2:])
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	session, err := s.service.SignIn(r.Context(), body.Email, body.Password)
	if err != nil {
		if errors.Is(err, users.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "SIGNIN_FAILED", "Sign-in failed", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":     session.Token,
		"userName":  session.UserName,
		"userId":    session.UserID,
		"role":      session.Role,
		"expiresAt": session.ExpiresAt,
	})
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request, session Session) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}
	if !s.requireAction(w, session, rbac.ActionRead) {
		return
	}

	limit, ok := queryInt(w, r, "limit", 20)
	if !ok {
		return
	}
	offset, ok := queryInt(w, r, "offset", 0)
	if !ok {
		return
	}
	resp := s.service.Search(search.Query{
		Text:         strings.TrimSpace(r.URL.Query().Get("q")),
		FilterType:   search.ResultType(strings.TrimSpace(r.URL.Query().Get("type"))),
		FilterTeamID: strings.TrimSpace(r.URL.Query().Get("teamId")),
		Limit:        limit,
		Offset:       offset,
	})
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) handleArticles(w http.ResponseWriter, r *http.Request, session Session, rest []string) {
	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		if !s.requireAction(w, session, rbac.ActionRead) {
			return
		}
		limit, ok := queryInt(w, r, "limit", 50)
		if !ok {
			return
		}
		offset, ok := queryInt(w, r, "offset", 0)
		if !ok {
			return
		}
		list, err := s.service.ListArticles(r.Context(), session, store.ArticleFilter{
			Status:     strings.TrimSpace(r.URL.Query().Get("status")),
			Visibility: strings.TrimSpace(r.URL.Query().Get("visibility")),
			TeamID:     strings.TrimSpace(r.URL.Query().Get("teamId")),
			AuthorID:   strings.TrimSpace(r.URL.Query().Get("authorId")),
			Query:      strings.TrimSpace(r.URL.Query().Get("q")),
			Sort:       strings.TrimSpace(r.URL.Query().Get("sort")),
			Limit:      limit,
			Offset:     offset,
		})
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)

	case len(rest) == 0 && r.Method == http.MethodPost:
		if !s.requireAction(w, session, rbac.ActionWriteArticle) {
			return
		}
		var payload draft.Article
		if err := decodeBody(r, &payload); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if payload.Status == draft.StatusPublished && !s.service.Can(session.Role, rbac.ActionPublish) {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
			return
		}
		saved, err := s.service.SaveArticle(r.Context(), session, payload)
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, saved)

	case len(rest) == 1 && r.Method == http.MethodGet:
		if !s.requireAction(w, session, rbac.ActionRead) {
			return
		}
		payload, err := s.service.GetArticle(r.Context(), session, rest[0])
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case len(rest) == 2 && rest[1] == "history" && r.Method == http.MethodGet:
		if !s.requireAction(w, session, rbac.ActionRead) {
			return
		}
		limit, ok := queryInt(w, r, "limit", 50)
		if !ok {
			return
		}
		history, err := s.service.ArticleHistory(r.Context(), rest[0], limit)
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": history})

	case len(rest) == 3 && rest[1] == "revisions" && r.Method == http.MethodGet:
		if !s.requireAction(w, session, rbac.ActionRead) {
			return
		}
		payload, err := s.service.ArticleRevision(r.Context(), rest[0], rest[2])
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)

	case len(rest) == 4 && rest[1] == "revisions" && rest[3] == "diff" && r.Method == http.MethodGet:
		if !s.requireAction(w, session, rbac.ActionRead) {
			return
		}
		diff, err := s.service.ArticleRevisionDiff(r.Context(), rest[0], rest[2])
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, diff)

	case len(rest) == 2 && rest[1] == "export" && r.Method == http.MethodGet:
		if !s.requireAction(w, session, rbac.ActionRead) {
			return
		}
		format := export.Format(strings.TrimSpace(r.URL.Query().Get("format")))
		if format == "" {
			format = export.FormatPDF
		}
		result, err := s.service.ExportArticle(r.Context(), export.Request{
			ArticleID: rest[0],
			Version:   strings.TrimSpace(r.URL.Query().Get("version")),
			Format:    format,
		})
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		w.Header().Set("Content-Type", result.MimeType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(result.Data)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleMedia(w http.ResponseWriter, r *http.Request, session Session) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}
	if !s.requireAction(w, session, rbac.ActionWriteArticle) {
		return
	}
	var body struct {
		DataURI string `json:"dataUri"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	url, err := s.service.UploadMedia(r.Context(), body.DataURI)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"url": url})
}

func (s *HTTPServer) handleBriefs(w http.ResponseWriter, r *http.Request, session Session, rest []string) {
	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		if !s.requireAction(w, session, rbac.ActionRead) {
			return
		}
		limit, ok := queryInt(w, r, "limit", 50)
		if !ok {
			return
		}
		offset, ok := queryInt(w, r, "offset", 0)
		if !ok {
			return
		}
		list, err := s.service.ListBriefs(r.Context(), store.BriefFilter{
			Stage:      stage.Stage(strings.TrimSpace(r.URL.Query().Get("stage"))),
			AssigneeID: strings.TrimSpace(r.URL.Query().Get("assigneeId")),
			TeamID:     strings.TrimSpace(r.URL.Query().Get("teamId")),
			Query:      strings.TrimSpace(r.URL.Query().Get("q")),
			Sort:       strings.TrimSpace(r.URL.Query().Get("sort")),
			Limit:      limit,
			Offset:     offset,
		})
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)

	case len(rest) == 0 && r.Method == http.MethodPost:
		if !s.requireAction(w, session, rbac.ActionMoveStage) {
			return
		}
		var body struct {
			ClientName   string `json:"clientName"`
			Company      string `json:"company"`
			ContactEmail string `json:"contactEmail"`
			Service      string `json:"service"`
			Summary      string `json:"summary"`
			AssigneeID   string `json:"assigneeId"`
			TeamID       string `json:"teamId"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		view, err := s.service.CreateBrief(r.Context(), store.Brief{
			ClientName:   body.ClientName,
			Company:      body.Company,
			ContactEmail: body.ContactEmail,
			Service:      body.Service,
			Summary:      body.Summary,
			AssigneeID:   body.AssigneeID,
			TeamID:       body.TeamID,
		})
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, view)

	case len(rest) == 1 && r.Method == http.MethodGet:
		if !s.requireAction(w, session, rbac.ActionRead) {
			return
		}
		view, err := s.service.GetBrief(r.Context(), rest[0])
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)

	case len(rest) == 2 && rest[1] == "timeline" && r.Method == http.MethodGet:
		if !s.requireAction(w, session, rbac.ActionRead) {
			return
		}
		items, err := s.service.BriefTimeline(r.Context(), rest[0])
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})

	case len(rest) == 2 && rest[1] == "advance" && r.Method == http.MethodPost:
		s.handleBriefTransition(w, r, session, rest[0], "advance")

	case len(rest) == 2 && rest[1] == "revert" && r.Method == http.MethodPost:
		s.handleBriefTransition(w, r, session, rest[0], "revert")

	case len(rest) == 2 && rest[1] == "stage" && r.Method == http.MethodPost:
		s.handleBriefTransition(w, r, session, rest[0], "set")

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleBriefTransition(w http.ResponseWriter, r *http.Request, session Session, briefID, kind string) {
	if !s.requireAction(w, session, rbac.ActionMoveStage) {
		return
	}
	var body struct {
		Stage string `json:"stage"`
		Note  string `json:"note"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	var (
		view BriefView
		err  error
	)
	switch kind {
	case "advance":
		view, err = s.service.AdvanceBrief(r.Context(), session, briefID, body.Note)
	case "revert":
		view, err = s.service.RevertBrief(r.Context(), session, briefID, body.Note)
	default:
		view, err = s.service.SetBriefStage(r.Context(), session, briefID, stage.Stage(body.Stage), body.Note)
	}
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) handleUsers(w http.ResponseWriter, r *http.Request, session Session, rest []string) {
	if !s.requireAction(w, session, rbac.ActionManageUsers) {
		return
	}

	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		items, err := s.service.Users().List(r.Context())
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})

	case len(rest) == 0 && r.Method == http.MethodPost:
		var body struct {
			Email       string `json:"email"`
			Password    string `json:"password"`
			DisplayName string `json:"displayName"`
			Role        string `json:"role"`
			TeamID      string `json:"teamId"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		created, err := s.service.Users().Create(r.Context(), users.CreateRequest{
			Email:       body.Email,
			Password:    body.Password,
			DisplayName: body.DisplayName,
			Role:        body.Role,
			TeamID:      body.TeamID,
		})
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		created.PasswordHash = ""
		writeJSON(w, http.StatusCreated, created)

	case len(rest) == 2 && rest[1] == "role" && r.Method == http.MethodPost:
		var body struct {
			Role string `json:"role"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.Users().SetRole(r.Context(), rest[0], body.Role); err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case len(rest) == 2 && rest[1] == "team-roles" && r.Method == http.MethodGet:
		roles, err := s.service.TeamRoles(r.Context(), rest[0])
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": roles})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleTeams(w http.ResponseWriter, r *http.Request, session Session, rest []string) {
	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		if !s.requireAction(w, session, rbac.ActionRead) {
			return
		}
		teams, err := s.service.ListTeams(r.Context())
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": teams})

	case len(rest) == 2 && rest[1] == "roles" && r.Method == http.MethodPost:
		if !s.requireAction(w, session, rbac.ActionManageUsers) {
			return
		}
		var body struct {
			UserID string `json:"userId"`
			Role   string `json:"role"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.GrantTeamRole(r.Context(), store.TeamRole{
			UserID: body.UserID,
			TeamID: rest[0],
			Role:   body.Role,
		}); err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case len(rest) == 2 && rest[1] == "roles" && r.Method == http.MethodDelete:
		if !s.requireAction(w, session, rbac.ActionManageUsers) {
			return
		}
		userID := strings.TrimSpace(r.URL.Query().Get("userId"))
		if userID == "" {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "userId is required", nil)
			return
		}
		if err := s.service.RevokeTeamRole(r.Context(), userID, rest[0]); err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleMe(w http.ResponseWriter, r *http.Request, session Session, rest []string) {
	if len(rest) == 1 && rest[0] == "password" && r.Method == http.MethodPost {
		var body struct {
			CurrentPassword string `json:"currentPassword"`
			NewPassword     string `json:"newPassword"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.Users().UpdatePassword(r.Context(), session.UserID, body.CurrentPassword, body.NewPassword); err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}
	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	session, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) || errors.Is(err, auth.ErrInvalidToken) {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return Session{}, false
		}
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Session lookup failed", nil)
		return Session{}, false
	}
	return session, true
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func queryInt(w http.ResponseWriter, r *http.Request, name string, fallback int) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback, true
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", name+" must be an integer", nil)
		return 0, false
	}
	return parsed, true
}

package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"kmc/guildbook/account"
	"kmc/guildbook/directory"

	"github.com/go-chi/chi/v5"
	"github.com/mordilloSan/go-logger/logger"
)

// Form field names of the add-user form.
const (
	fieldUID             = "$uid"
	fieldGivenName       = "$givenname"
	fieldSurname         = "$surname"
	fieldPassword        = "$password"
	fieldPasswordConfirm = "$password_confirm"
	fieldBindUID         = "$bind_uid"
	fieldBindPassword    = "$bind_password"
)

type layoutData struct {
	Title    string
	Operator string
	Scripts  []string
	Styles   []string
	Content  any
}

// addUserForm carries only the fields that are safe to echo back.
type addUserForm struct {
	Error     string
	UID       string
	GivenName string
	Surname   string
	BindUID   string
}

type userPage struct {
	UID  string
	User *directory.User
}

type AccountResponse struct {
	ID         string              `json:"id"`
	UID        string              `json:"uid"`
	DN         string              `json:"dn"`
	UIDNumber  int                 `json:"uid_number"`
	SambaSID   string              `json:"samba_sid"`
	CreatedBy  string              `json:"created_by"`
	CreatedAt  string              `json:"created_at"`
	Attributes map[string][]string `json:"attributes"`
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// render executes page into a buffer first so a template failure never leaves
// a half-written response behind.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, page, title string, content any) {
	data := layoutData{
		Title:    title,
		Operator: operatorFromContext(r.Context()),
		Scripts:  s.manifest.Scripts("application"),
		Styles:   s.manifest.Styles("application"),
		Content:  content,
	}

	var buf bytes.Buffer
	if err := s.pages[page].ExecuteTemplate(&buf, "layout", data); err != nil {
		logger.Errorf("failed to render %s: %v", page, err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// Handlers

func (s *Server) handleAddUserForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "adduser.html", "Add user", addUserForm{
		BindUID: operatorFromContext(r.Context()),
	})
}

func (s *Server) handleAddUser(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.render(w, r, http.StatusBadRequest, "adduser.html", "Add user", addUserForm{
			Error:   "malformed form submission",
			BindUID: operatorFromContext(r.Context()),
		})
		return
	}

	req := account.NewAccountRequest{
		UID:             r.PostForm.Get(fieldUID),
		GivenName:       r.PostForm.Get(fieldGivenName),
		Surname:         r.PostForm.Get(fieldSurname),
		Password:        r.PostForm.Get(fieldPassword),
		PasswordConfirm: r.PostForm.Get(fieldPasswordConfirm),
		BindUID:         r.PostForm.Get(fieldBindUID),
		BindPassword:    r.PostForm.Get(fieldBindPassword),
	}

	entry, err := s.provisioner.Provision(r.Context(), req)
	s.metrics.ObserveResult(err)
	if err == nil {
		logger.InfoKV("account created", "uid", entry.UID, "uid_number", entry.UIDNumber, "by", req.BindUID)
		http.Redirect(w, r, "/"+url.PathEscape(entry.UID), http.StatusFound)
		return
	}

	status := http.StatusOK
	if account.IsInputError(err) {
		logger.WarnKV("account rejected", "uid", req.UID, "by", req.BindUID, "reason", err.Error())
	} else {
		status = http.StatusInternalServerError
		logger.Errorf("failed to create account %s (requested by %s): %v", req.UID, req.BindUID, err)
	}

	s.render(w, r, status, "adduser.html", "Add user", addUserForm{
		Error:     err.Error(),
		UID:       req.UID,
		GivenName: req.GivenName,
		Surname:   req.Surname,
		BindUID:   req.BindUID,
	})
}

func (s *Server) handleShowUser(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")

	user, err := s.users.GetUser(r.Context(), uid)
	switch {
	case errors.Is(err, directory.ErrNotFound):
		s.render(w, r, http.StatusNotFound, "user.html", uid, userPage{UID: uid})
		return
	case err != nil:
		logger.Errorf("failed to load user %s: %v", uid, err)
		http.Error(w, "failed to load user", http.StatusInternalServerError)
		return
	}

	s.render(w, r, http.StatusOK, "user.html", uid, userPage{UID: uid, User: user})
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	records, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		logger.Errorf("failed to list accounts: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to list accounts")
		return
	}

	accounts := make([]AccountResponse, 0, len(records))
	for _, record := range records {
		var attributes map[string][]string
		if err := json.Unmarshal(record.Attributes, &attributes); err != nil {
			logger.Warnf("skipping unreadable attributes of record %s: %v", record.RecordID, err)
		}
		accounts = append(accounts, AccountResponse{
			ID:         record.RecordID.String(),
			UID:        record.UID,
			DN:         record.DN,
			UIDNumber:  record.UIDNumber,
			SambaSID:   record.SambaSID,
			CreatedBy:  record.CreatedBy,
			CreatedAt:  record.CreatedAt.UTC().Format(time.RFC3339),
			Attributes: attributes,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"accounts": accounts, "limit": limit})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

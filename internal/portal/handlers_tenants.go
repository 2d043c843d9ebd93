package portal

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	mw "hcmnotify/pkg/middleware"
	"hcmnotify/pkg/tenants"
)

type tenantBody struct {
	Name         string `json:"name"`
	CompanyShort string `json:"company_short"`
	BaseURL      string `json:"base_url"`
	APIKey       string `json:"api_key"`
	Username     string `json:"username"`
	Password     string `json:"password"`
}

func (a *App) listTenants(w http.ResponseWriter, r *http.Request) {
	list, err := a.store.ListTenants(r.Context())
	if err != nil {
		http.Error(w, "db error", 500)
		return
	}
	out := make([]map[string]any, 0, len(list))
	for _, t := range list {
		out = append(out, tenantView(t))
	}
	writeJSON(w, out, 200)
}

func (a *App) getTenant(w http.ResponseWriter, r *http.Request) {
	t, err := a.store.GetTenant(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, tenants.ErrNotFound) {
			http.Error(w, "tenant not found", http.StatusNotFound)
			return
		}
		http.Error(w, "db error", 500)
		return
	}
	writeJSON(w, tenantView(t), 200)
}

func (a *App) createTenant(w http.ResponseWriter, r *http.Request) {
	var b tenantBody
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		http.Error(w, "bad json", 400)
		return
	}
	if b.Name == "" || b.CompanyShort == "" || b.BaseURL == "" ||
		b.APIKey == "" || b.Username == "" || b.Password == "" {
		http.Error(w, "missing required fields", 400)
		return
	}
	keyEnc, err := a.codec.Encrypt(b.APIKey)
	if err != nil {
		http.Error(w, "encryption failed", 500)
		return
	}
	pwEnc, err := a.codec.Encrypt(b.Password)
	if err != nil {
		http.Error(w, "encryption failed", 500)
		return
	}
	actor := mw.ActorFrom(r.Context())
	t := tenants.Tenant{
		ID:           uuid.NewString(),
		Name:         b.Name,
		CompanyShort: b.CompanyShort,
		BaseURL:      b.BaseURL,
		APIKeyEnc:    keyEnc,
		Username:     b.Username,
		PasswordEnc:  pwEnc,
		Status:       tenants.StatusPending,
		CreatedBy:    actor,
	}
	if err := a.store.CreateTenant(r.Context(), t); err != nil {
		http.Error(w, "db error", 500)
		return
	}
	a.appendActivity(r, t.ID, "tenant_created", b.Name, "success", 0)
	created, err := a.store.GetTenant(r.Context(), t.ID)
	if err != nil {
		http.Error(w, "db error", 500)
		return
	}
	writeJSON(w, tenantView(created), http.StatusCreated)
}

func (a *App) updateTenant(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var b struct {
		Name         *string `json:"name"`
		CompanyShort *string `json:"company_short"`
		BaseURL      *string `json:"base_url"`
		Username     *string `json:"username"`
		APIKey       *string `json:"api_key"`
		Password     *string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		http.Error(w, "bad json", 400)
		return
	}
	upd := tenants.TenantUpdate{
		Name:         b.Name,
		CompanyShort: b.CompanyShort,
		BaseURL:      b.BaseURL,
		Username:     b.Username,
	}
	credsChanged := false
	if b.APIKey != nil && strings.TrimSpace(*b.APIKey) != "" {
		enc, err := a.codec.Encrypt(*b.APIKey)
		if err != nil {
			http.Error(w, "encryption failed", 500)
			return
		}
		upd.APIKeyEnc = &enc
		credsChanged = true
	}
	if b.Password != nil && strings.TrimSpace(*b.Password) != "" {
		enc, err := a.codec.Encrypt(*b.Password)
		if err != nil {
			http.Error(w, "encryption failed", 500)
			return
		}
		upd.PasswordEnc = &enc
		credsChanged = true
	}
	if err := a.store.UpdateTenant(r.Context(), id, upd); err != nil {
		if errors.Is(err, tenants.ErrNotFound) {
			http.Error(w, "tenant not found", http.StatusNotFound)
			return
		}
		http.Error(w, "db error", 500)
		return
	}
	// Stale tokens would keep working against old credentials otherwise.
	if credsChanged || b.BaseURL != nil {
		a.cache.Invalidate(id)
	}
	a.appendActivity(r, id, "tenant_updated", "", "success", 0)
	t, err := a.store.GetTenant(r.Context(), id)
	if err != nil {
		http.Error(w, "db error", 500)
		return
	}
	writeJSON(w, tenantView(t), 200)
}

func (a *App) deleteTenant(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.store.Deactivate(r.Context(), id); err != nil {
		if errors.Is(err, tenants.ErrNotFound) {
			http.Error(w, "tenant not found", http.StatusNotFound)
			return
		}
		http.Error(w, "db error", 500)
		return
	}
	a.cache.Invalidate(id)
	a.appendActivity(r, id, "tenant_deactivated", "", "success", 0)
	writeJSON(w, map[string]any{"ok": true}, 200)
}

func (a *App) testAuth(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t, err := a.store.GetTenant(r.Context(), id)
	if err != nil {
		if errors.Is(err, tenants.ErrNotFound) {
			http.Error(w, "tenant not found", http.StatusNotFound)
			return
		}
		http.Error(w, "db error", 500)
		return
	}
	apiKey, err := a.codec.Decrypt(t.APIKeyEnc)
	if err != nil {
		a.log.Errorw("decrypt api key", "tenant", id, "err", err)
		http.Error(w, "credential decryption failed", 500)
		return
	}
	password, err := a.codec.Decrypt(t.PasswordEnc)
	if err != nil {
		a.log.Errorw("decrypt password", "tenant", id, "err", err)
		http.Error(w, "credential decryption failed", 500)
		return
	}

	res, err := a.auth.Authenticate(r.Context(), t.BaseURL, apiKey, t.Username, password, t.CompanyShort)
	if err != nil {
		msg := err.Error()
		if serr := a.store.SetAuthResult(r.Context(), id, false, "", msg); serr != nil {
			a.log.Errorw("record auth failure", "tenant", id, "err", serr)
		}
		a.appendActivity(r, id, "auth_test", msg, "error", callElapsedMs(err))
		writeJSON(w, map[string]any{"success": false, "error": msg}, 200)
		return
	}

	companyID := ""
	if res.Claims != nil {
		companyID = res.Claims.CompanyID
	}
	if serr := a.store.SetAuthResult(r.Context(), id, true, companyID, ""); serr != nil {
		http.Error(w, "db error", 500)
		return
	}
	ms := res.Elapsed.Milliseconds()
	a.appendActivity(r, id, "auth_test", "", "success", ms)
	writeJSON(w, map[string]any{"success": true, "company_id": companyID, "response_ms": ms}, 200)
}

func (a *App) discoverOIDC(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t, err := a.store.GetTenant(r.Context(), id)
	if err != nil {
		if errors.Is(err, tenants.ErrNotFound) {
			http.Error(w, "tenant not found", http.StatusNotFound)
			return
		}
		http.Error(w, "db error", 500)
		return
	}
	if t.CompanyID == "" {
		http.Error(w, "company id unknown; run test-auth first", 400)
		return
	}
	apiKey, err := a.codec.Decrypt(t.APIKeyEnc)
	if err != nil {
		http.Error(w, "credential decryption failed", 500)
		return
	}
	password, err := a.codec.Decrypt(t.PasswordEnc)
	if err != nil {
		http.Error(w, "credential decryption failed", 500)
		return
	}

	auth, err := a.auth.Authenticate(r.Context(), t.BaseURL, apiKey, t.Username, password, t.CompanyShort)
	if err != nil {
		a.appendActivity(r, id, "oidc_discovery", err.Error(), "error", callElapsedMs(err))
		writeJSON(w, map[string]any{"success": false, "error": err.Error()}, 200)
		return
	}
	disc, err := a.auth.Discover(r.Context(), t.BaseURL, t.CompanyID, auth.Token)
	if err != nil {
		a.appendActivity(r, id, "oidc_discovery", err.Error(), "error", callElapsedMs(err))
		writeJSON(w, map[string]any{"success": false, "error": err.Error()}, 200)
		return
	}
	if err := a.store.SetEndpoints(r.Context(), id, disc.Doc.AuthorizationEndpoint, disc.Doc.TokenEndpoint); err != nil {
		http.Error(w, "db error", 500)
		return
	}
	a.appendActivity(r, id, "oidc_discovery", "", "success", disc.Elapsed.Milliseconds())
	writeJSON(w, map[string]any{"success": true, "discovery": disc.Doc}, 200)
}

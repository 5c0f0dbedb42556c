package handlers

import "net/http"

type credentialRequest struct {
	APIKey string `json:"api_key"`
}

func (a *App) SetGeminiKey(w http.ResponseWriter, r *http.Request) {
	var req credentialRequest
	if !a.decode(w, r, &req) {
		return
	}
	if err := a.Credentials.SetGeminiAPIKey(r.Context(), req.APIKey); err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]bool{"configured": true})
}

func (a *App) GeminiKeyStatus(w http.ResponseWriter, r *http.Request) {
	key, err := a.Credentials.GeminiAPIKey(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]bool{"configured": key != ""})
}

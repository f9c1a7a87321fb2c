package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"mercator-hq/archivist/pkg/archival"
	"mercator-hq/archivist/pkg/archival/query"
	"mercator-hq/archivist/pkg/security/auth"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

type apiHandler struct {
	svc ArchivalService
}

// caller returns the identity stored by the identity middleware.
func caller(r *http.Request) auth.Identity {
	id, _ := auth.IdentityFrom(r.Context())
	return id
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return &archival.ValidationError{Field: "body", Message: err.Error()}
	}
	return nil
}

// POST /configuration
func (h *apiHandler) configurePolicy(w http.ResponseWriter, r *http.Request) {
	var policy archival.RetentionPolicy
	if err := decodeJSON(w, r, &policy); err != nil {
		writeError(w, r, err)
		return
	}

	saved, err := h.svc.ConfigurePolicy(r.Context(), caller(r), policy)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// GET /configuration
func (h *apiHandler) listPolicies(w http.ResponseWriter, r *http.Request) {
	policies, err := h.svc.ListPolicies(r.Context(), caller(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if policies == nil {
		policies = []archival.RetentionPolicy{}
	}
	writeJSON(w, http.StatusOK, policies)
}

// GET /configuration/{tableName}
func (h *apiHandler) getPolicy(w http.ResponseWriter, r *http.Request) {
	policy, err := h.svc.GetPolicy(r.Context(), caller(r), chi.URLParam(r, "tableName"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, policy)
}

// DELETE /configuration/{tableName}
func (h *apiHandler) deletePolicy(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeletePolicy(r.Context(), caller(r), chi.URLParam(r, "tableName")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /run-now
func (h *apiHandler) runNow(w http.ResponseWriter, r *http.Request) {
	runID, err := h.svc.TriggerSweep(r.Context(), caller(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, runNowResponse{
		Message: "Archival process triggered successfully.",
		RunID:   runID,
	})
}

// assignTablesRequest accepts tableNames as a JSON array or as a
// comma-separated string.
type assignTablesRequest struct {
	UserName   string          `json:"userName"`
	TableNames json.RawMessage `json:"tableNames"`
}

func (req *assignTablesRequest) grant() (archival.TableAccessGrant, error) {
	grant := archival.TableAccessGrant{Principal: req.UserName}

	raw := strings.TrimSpace(string(req.TableNames))
	switch {
	case raw == "" || raw == "null":
	case strings.HasPrefix(raw, "["):
		if err := json.Unmarshal(req.TableNames, &grant.Tables); err != nil {
			return grant, &archival.ValidationError{Field: "tableNames", Message: err.Error()}
		}
	case strings.HasPrefix(raw, `"`):
		var joined string
		if err := json.Unmarshal(req.TableNames, &joined); err != nil {
			return grant, &archival.ValidationError{Field: "tableNames", Message: err.Error()}
		}
		grant.Tables = archival.ParseTableList(joined)
	default:
		return grant, &archival.ValidationError{
			Field:   "tableNames",
			Message: fmt.Sprintf("must be an array or a comma-separated string, got %s", raw),
		}
	}
	return grant, nil
}

// PUT /assign-tables
func (h *apiHandler) assignTables(w http.ResponseWriter, r *http.Request) {
	var req assignTablesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	grant, err := req.grant()
	if err != nil {
		writeError(w, r, err)
		return
	}

	saved, err := h.svc.AssignTables(r.Context(), caller(r), grant)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// GET /assign-tables
func (h *apiHandler) listGrants(w http.ResponseWriter, r *http.Request) {
	grants, err := h.svc.ListGrants(r.Context(), caller(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if grants == nil {
		grants = []archival.TableAccessGrant{}
	}
	writeJSON(w, http.StatusOK, grants)
}

// GET /data/{tableName}?startDate&endDate&sort&page&size
func (h *apiHandler) queryArchive(w http.ResponseWriter, r *http.Request) {
	req, err := query.ParseRequest(chi.URLParam(r, "tableName"), r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}

	records, err := h.svc.QueryArchive(r.Context(), caller(r), *req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

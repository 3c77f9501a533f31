package server

import "net/http"

type endpointInfo struct {
	Path        string   `json:"path"`
	Methods     []string `json:"methods"`
	Description string   `json:"description"`
}

type discoveryResponse struct {
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description"`
	Endpoints   []endpointInfo `json:"endpoints"`
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, discoveryResponse{
		Name:        "vmbroker API",
		Version:     "v1",
		Description: "DAG-aware VM slot broker: simulate workflow runs and review their cost",
		Endpoints: []endpointInfo{
			{"/api/v1/runs", []string{"GET", "POST"}, "List stored runs, or submit a workflow to simulate"},
			{"/api/v1/runs/{id}", []string{"GET", "DELETE"}, "Single run with billing lines and dispatch history"},
			{"/api/v1/health", []string{"GET"}, "Server health and version"},
		},
	})
}

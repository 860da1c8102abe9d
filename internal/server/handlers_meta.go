package server

import (
	"net/http"

	"fstash/internal/api"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.store.StoreInfo(r.Context())
	if err != nil {
		s.writeErrorReq(w, r, http.StatusInternalServerError, storeFailure(err))
		return
	}

	quota := s.service.Quota()
	resp := api.InfoResponse{
		DBPath:        s.dbPath,
		SchemaVersion: info.SchemaVersion,
		FileCounts:    info.FileCounts,
		TotalFiles:    info.TotalFiles,
		Storage:       storageInfo(usageFor(info.UsedBytes, quota.MaxTotalBytes)),
	}

	s.writeJSON(w, http.StatusOK, resp)
}

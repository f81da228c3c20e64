package web

import (
	"net/http"

	"go.uber.org/zap"

	"cyoa/internal/game"
	"cyoa/internal/mapgen"
)

// GET /map
func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()
	e, err := s.player(ctx, w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	v := started(ctx, e)
	var ending game.EndingKind
	if v.Ending != nil {
		ending = v.Ending.Kind
	}
	current := e.Session().CurrentSceneID
	pdf, err := mapgen.Generate(mapgen.FromDiary(s.Doc, e.Diary(), current, ending))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="journey-map.pdf"`)
	if _, err := w.Write(pdf); err != nil {
		s.log().Debug("Map write failed", zap.Error(err))
	}
}

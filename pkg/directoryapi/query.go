package directoryapi

import (
	"encoding/json"
	"net/http"

	"github.com/menmos/menmos/pkg/protocol"
	"github.com/menmos/menmos/pkg/query"
	"github.com/menmos/menmos/pkg/types"
)

// handleQuery decodes a types.Query body, parses its string Expression
// with pkg/query's grammar, runs it scoped to the authenticated user,
// and returns the projected hits (and facets, if requested).
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())

	var q types.Query
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		writeError(w, protocol.NewError(protocol.BadRequest, "malformed query request", err))
		return
	}

	expr, err := parseExpression(q.Expression)
	if err != nil {
		writeError(w, protocol.NewError(protocol.BadRequest, "malformed query expression", err))
		return
	}

	resp, err := s.queryEng.Run(expr, claims.User, q.From, q.Size, q.Facets)
	if err != nil {
		writeError(w, protocol.NewError(protocol.Internal, "run query", err))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// parseExpression turns a types.Query.Expression into a query.Expr. A
// nil or empty-string expression matches every blob; anything else is
// parsed with pkg/query's grammar.
func parseExpression(expression any) (query.Expr, error) {
	if expression == nil {
		return query.Empty, nil
	}
	s, ok := expression.(string)
	if !ok {
		return nil, protocol.NewError(protocol.BadRequest, "expression must be a string", nil)
	}
	return query.Parse(s)
}

package handler

import (
	"net/http"

	"github.com/Rrens/docqa/internal/api/response"
	"github.com/Rrens/docqa/internal/domain"
	"github.com/Rrens/docqa/internal/turn"
)

// TurnResponse describes where a turn ended up
type TurnResponse struct {
	turn.Result
	Error string `json:"error,omitempty"`
}

func newTurnResponse(res turn.Result) TurnResponse {
	return TurnResponse{Result: res, Error: domain.UserMessage(res.Err)}
}

// writeTurn maps a turn outcome to a status. Failures keep the turn
// view in the error payload so clients can find the failed entry.
func writeTurn(w http.ResponseWriter, res turn.Result, okStatus int) {
	switch res.State {
	case turn.StateFailed:
		response.Error(w, response.StatusFor(res.Err), newTurnResponse(res))
	case turn.StateRejected:
		if res.Err != nil {
			response.FromError(w, res.Err)
			return
		}
		response.OK(w, newTurnResponse(res))
	case turn.StateSettled:
		response.JSON(w, okStatus, newTurnResponse(res))
	default:
		response.OK(w, newTurnResponse(res))
	}
}

// waitTurn blocks until t finishes or the request ends. A turn still
// running when the request ends is reported as accepted.
func waitTurn(w http.ResponseWriter, r *http.Request, t *turn.Turn, okStatus int) {
	res, _ := t.Wait(r.Context())
	if !res.State.Terminal() {
		response.JSON(w, http.StatusAccepted, newTurnResponse(res))
		return
	}
	writeTurn(w, res, okStatus)
}

package uiserver

import (
	"context"

	"stationfleet/internal/controlbus"
)

// dispatch publishes req on bus and shapes the aggregate into the
// {status, ...} response object spec.md §4.5/§4.6 describe: SUCCESS when
// every targeted station succeeded, FAILURE when every one failed
// (including the UIServer-local, zero-target case), and "PARTIAL"
// otherwise — the "other" status HTTP maps to 500.
func dispatch(ctx context.Context, bus *controlbus.Bus, req controlbus.Request) map[string]interface{} {
	agg, err := bus.Publish(ctx, req)
	if err != nil {
		return map[string]interface{}{
			"status":       controlbus.StatusFailure,
			"command":      req.Procedure,
			"errorMessage": err.Error(),
		}
	}

	out := map[string]interface{}{"uuid": agg.UUID}

	if len(agg.HashIdsSucceeded) == 0 && len(agg.HashIdsFailed) == 0 {
		// UIServer-local procedure (e.g. LIST_CHARGING_STATIONS): a single
		// outcome, not a per-station fan-out — Publish never populates
		// HashIdsSucceeded/HashIdsFailed for the zero-target case.
		if len(agg.ResponsesFailed) > 0 {
			out["status"] = controlbus.StatusFailure
			out["errorMessage"] = agg.ResponsesFailed[0].ErrorMessage
		} else {
			out["status"] = controlbus.StatusSuccess
			for k, v := range agg.Payload {
				out[k] = v
			}
		}
		return out
	}

	out["hashIdsSucceeded"] = orEmpty(agg.HashIdsSucceeded)
	out["hashIdsFailed"] = orEmpty(agg.HashIdsFailed)
	if len(agg.ResponsesFailed) > 0 {
		out["responsesFailed"] = agg.ResponsesFailed
	}

	switch {
	case len(agg.HashIdsFailed) == 0:
		out["status"] = controlbus.StatusSuccess
	case len(agg.HashIdsSucceeded) == 0:
		out["status"] = controlbus.StatusFailure
	default:
		out["status"] = "PARTIAL"
	}
	return out
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// statusCode maps a dispatch() result's status to the HTTP status code
// named in spec.md §4.6: SUCCESS → 200, FAILURE → 400, other → 500.
func statusCode(status string) int {
	switch status {
	case controlbus.StatusSuccess:
		return 200
	case controlbus.StatusFailure:
		return 400
	default:
		return 500
	}
}

package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/seekworks/autoapply/internal/interfaces"
)

// RepairIntegrity closes out matches that a crash left open: a terminal
// submission log whose match is still unprocessed means the process died
// between the click and the flag flip under the old two-write scheme, or
// storage was restored from a partial backup. The log is authoritative.
func (c *Controller) RepairIntegrity(ctx context.Context) (int, error) {
	logs, err := c.deps.Storage.SubmissionStorage().ListTerminalLogs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list terminal submission logs: %w", err)
	}

	repaired := 0
	for _, log := range logs {
		if err := ctx.Err(); err != nil {
			return repaired, err
		}

		err := c.deps.Storage.MatchStorage().MarkMatchProcessed(ctx, log.MatchID, log.Status)
		switch {
		case err == nil:
			repaired++
			c.logger.Warn().
				Str("match_id", log.MatchID).
				Str("outcome", string(log.Status)).
				Msg("Closed match with an orphaned terminal log")
		case errors.Is(err, interfaces.ErrAlreadyProcessed):
			// Consistent state, nothing to do
		case errors.Is(err, interfaces.ErrNotFound):
			// Match removed by a soft-delete cascade; the log stays as history
		default:
			return repaired, fmt.Errorf("failed to repair match %s: %w", log.MatchID, err)
		}
	}
	return repaired, nil
}

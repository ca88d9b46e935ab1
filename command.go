package blink

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/fronzbot/blinkgo/observability"
)

const (
	// DefaultPollInterval is the delay between command status polls.
	DefaultPollInterval = 1 * time.Second

	// DefaultPollAttempts is the attempt budget before a command is
	// reported as timed out.
	DefaultPollAttempts = 15
)

// Command is an in-flight asynchronous server-side operation. It exists only
// for the duration of its poll loop and is discarded afterwards.
type Command struct {
	ID        int
	NetworkID int
	Kind      string
}

// WaitForCommand polls a command's status until the server reports
// completion, the attempt budget runs out (ErrCommandTimeout), or ctx is
// canceled. A completed command with a failure status yields
// ErrCommandFailed carrying the server's message. A poll response without
// the completion field is a protocol violation and yields ErrBadResponse
// rather than being treated as pending.
func WaitForCommand(ctx context.Context, b *Blink, cmd Command) error {
	if cmd.ID == 0 {
		return errors.Wrapf(ErrBadResponse, "command %s has no id", cmd.Kind)
	}

	for attempt := 0; attempt < b.pollAttempts; attempt++ {
		status, err := RequestCommandStatus(ctx, b, cmd.NetworkID, cmd.ID)
		if err != nil {
			return errors.Wrapf(err, "failed to poll command %d (%s)", cmd.ID, cmd.Kind)
		}

		b.metrics.RecordCommandPoll(cmd.Kind, attempt+1)

		if status.Complete == nil {
			return errors.Wrapf(ErrBadResponse,
				"command %d (%s) status response missing completion field", cmd.ID, cmd.Kind)
		}

		if *status.Complete {
			if status.Status != 0 {
				return errors.Wrapf(ErrCommandFailed, "command %d (%s): %s",
					cmd.ID, cmd.Kind, status.StatusMsg)
			}

			b.logger.Debug("command complete",
				observability.Field{Key: "command_id", Value: cmd.ID},
				observability.Field{Key: "kind", Value: cmd.Kind},
				observability.Field{Key: "attempts", Value: attempt + 1},
			)

			return nil
		}

		if attempt == b.pollAttempts-1 {
			break
		}

		timer := time.NewTimer(b.pollInterval)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()

			return errors.Wrapf(ctx.Err(), "canceled while polling command %d (%s)", cmd.ID, cmd.Kind)
		}
	}

	return errors.Wrapf(ErrCommandTimeout, "command %d (%s) did not complete after %d attempts",
		cmd.ID, cmd.Kind, b.pollAttempts)
}

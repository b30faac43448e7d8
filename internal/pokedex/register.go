package pokedex

import (
	"fmt"

	"github.com/lucasdpassos/pokedex-assistant/internal/log"
	"github.com/lucasdpassos/pokedex-assistant/internal/tools"
)

// Register wires both pokedex tools into the executor.
func Register(exec *tools.Executor, client *Client, logger log.Logger) error {
	if exec == nil {
		return fmt.Errorf("executor cannot be nil")
	}

	info, err := NewInfoTool(client, logger)
	if err != nil {
		return fmt.Errorf("creating %s: %w", InfoToolName, err)
	}
	if err := exec.Register(info.Definition(), info); err != nil {
		return fmt.Errorf("registering %s: %w", InfoToolName, err)
	}

	team, err := NewTeamTool(client, logger)
	if err != nil {
		return fmt.Errorf("creating %s: %w", TeamToolName, err)
	}
	if err := exec.Register(team.Definition(), team); err != nil {
		return fmt.Errorf("registering %s: %w", TeamToolName, err)
	}
	return nil
}

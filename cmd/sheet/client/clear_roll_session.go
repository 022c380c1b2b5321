package client

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	apiv1alpha1 "github.com/KirkDiggler/rpg-api-protos/gen/go/clients/api/v1alpha1"
)

var clearRollSessionCmd = &cobra.Command{
	Use:   "clear [entity-id] [context]",
	Short: "Clear an entity's roll history",
	Args:  cobra.ExactArgs(2),
	RunE:  clearRollSession,
}

func clearRollSession(_ *cobra.Command, args []string) error {
	client, cleanup, err := createDiceClient()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	resp, err := client.ClearRollSession(ctx, &apiv1alpha1.ClearRollSessionRequest{
		EntityId: args[0],
		Context:  args[1],
	})
	if err != nil {
		return describe("clear roll session", err)
	}

	fmt.Printf("%s (%d roll(s))\n", resp.Message, resp.RollsCleared)
	return nil
}

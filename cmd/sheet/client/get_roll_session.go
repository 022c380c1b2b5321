package client

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	apiv1alpha1 "github.com/KirkDiggler/rpg-api-protos/gen/go/clients/api/v1alpha1"
)

var getRollSessionCmd = &cobra.Command{
	Use:   "history [entity-id] [context]",
	Short: "Show the rolls recorded for an entity, newest first",
	Args:  cobra.ExactArgs(2),
	RunE:  getRollSession,
}

func getRollSession(_ *cobra.Command, args []string) error {
	client, cleanup, err := createDiceClient()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	resp, err := client.GetRollSession(ctx, &apiv1alpha1.GetRollSessionRequest{
		EntityId: args[0],
		Context:  args[1],
	})
	if err != nil {
		return describe("get roll session", err)
	}

	fmt.Printf("Created: %s\n", time.Unix(resp.CreatedAt, 0).Format("2006-01-02 15:04:05"))
	fmt.Printf("Expires: %s\n", time.Unix(resp.ExpiresAt, 0).Format("2006-01-02 15:04:05"))
	printRolls(resp.Rolls)

	return nil
}

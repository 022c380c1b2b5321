package client

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	apiv1alpha1 "github.com/KirkDiggler/rpg-api-protos/gen/go/clients/api/v1alpha1"
)

var rollDescription string

var rollDiceCmd = &cobra.Command{
	Use:   "roll [expression] [entity-id] [context]",
	Short: "Evaluate a dice expression on the server",
	Long: `Evaluate an expression and record it in the entity's session. Examples:

  roll "2d6 + 3" char-123 attack
  roll "d20 + 5" char-456 initiative
  roll "(1d8 + 2) * 2" char-789 damage`,
	Args: cobra.ExactArgs(3),
	RunE: rollDice,
}

func init() {
	rollDiceCmd.Flags().StringVar(&rollDescription, "description", "", "label stored with the roll")
}

func rollDice(_ *cobra.Command, args []string) error {
	client, cleanup, err := createDiceClient()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	resp, err := client.RollDice(ctx, &apiv1alpha1.RollDiceRequest{
		EntityId:            args[1],
		Context:             args[2],
		Notation:            args[0],
		ModifierDescription: rollDescription,
	})
	if err != nil {
		return describe("roll dice", err)
	}

	if len(resp.Rolls) > 0 {
		fmt.Println(resp.Rolls[0].Description)
	}
	fmt.Printf("Session expires at %s\n", time.Unix(resp.ExpiresAt, 0).Format("15:04:05"))

	return nil
}

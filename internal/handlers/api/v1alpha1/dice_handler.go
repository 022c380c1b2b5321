// Package v1alpha1 handles the generic API grpc service interface
package v1alpha1

import (
	"context"
	"math"

	apiv1alpha1 "github.com/KirkDiggler/rpg-api-protos/gen/go/clients/api/v1alpha1"

	"github.com/KirkDiggler/rpg-sheet/internal/errors"
	"github.com/KirkDiggler/rpg-sheet/internal/orchestrators/dice"
	dicesession "github.com/KirkDiggler/rpg-sheet/internal/repositories/dice_session"
)

// DiceHandlerConfig holds dependencies for the dice handler
type DiceHandlerConfig struct {
	DiceService dice.Service
}

// Validate ensures all required dependencies are present
func (c *DiceHandlerConfig) Validate() error {
	if c.DiceService == nil {
		return errors.InvalidArgument("dice service is required")
	}
	return nil
}

// DiceHandler implements the generic dice gRPC service
type DiceHandler struct {
	apiv1alpha1.UnimplementedDiceServiceServer
	diceService dice.Service
}

// NewDiceHandler creates a new dice handler with the given configuration
func NewDiceHandler(cfg *DiceHandlerConfig) (*DiceHandler, error) {
	if cfg == nil {
		return nil, errors.InvalidArgument("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &DiceHandler{
		diceService: cfg.DiceService,
	}, nil
}

// RollDice evaluates a dice expression such as "2d6+3" and returns the session history,
// most recent roll first
func (h *DiceHandler) RollDice(
	ctx context.Context,
	req *apiv1alpha1.RollDiceRequest,
) (*apiv1alpha1.RollDiceResponse, error) {
	if req.EntityId == "" {
		return nil, errors.ToGRPCError(errors.InvalidArgument("entity_id is required"))
	}
	if req.Context == "" {
		return nil, errors.ToGRPCError(errors.InvalidArgument("context is required"))
	}
	if req.Notation == "" {
		return nil, errors.ToGRPCError(errors.InvalidArgument("notation is required"))
	}

	output, err := h.diceService.RollExpression(ctx, &dice.RollExpressionInput{
		EntityID:     req.EntityId,
		Context:      req.Context,
		Expression:   req.Notation,
		Description:  req.ModifierDescription,
		MaxMagnitude: math.MaxInt32,
	})
	if err != nil {
		return nil, errors.ToGRPCError(err)
	}

	rolls, err := toProtoRolls(output.Session.Rolls)
	if err != nil {
		return nil, errors.ToGRPCError(err)
	}

	return &apiv1alpha1.RollDiceResponse{
		Rolls:     rolls,
		ExpiresAt: output.Session.ExpiresAt.Unix(),
	}, nil
}

// GetRollSession retrieves an existing dice roll session
func (h *DiceHandler) GetRollSession(
	ctx context.Context,
	req *apiv1alpha1.GetRollSessionRequest,
) (*apiv1alpha1.GetRollSessionResponse, error) {
	if req.EntityId == "" {
		return nil, errors.ToGRPCError(errors.InvalidArgument("entity_id is required"))
	}
	if req.Context == "" {
		return nil, errors.ToGRPCError(errors.InvalidArgument("context is required"))
	}

	output, err := h.diceService.GetRollSession(ctx, &dice.GetRollSessionInput{
		EntityID: req.EntityId,
		Context:  req.Context,
	})
	if err != nil {
		return nil, errors.ToGRPCError(err)
	}

	rolls, err := toProtoRolls(output.Session.Rolls)
	if err != nil {
		return nil, errors.ToGRPCError(err)
	}

	return &apiv1alpha1.GetRollSessionResponse{
		Rolls:     rolls,
		ExpiresAt: output.Session.ExpiresAt.Unix(),
		CreatedAt: output.Session.CreatedAt.Unix(),
	}, nil
}

// ClearRollSession removes a dice roll session
func (h *DiceHandler) ClearRollSession(
	ctx context.Context,
	req *apiv1alpha1.ClearRollSessionRequest,
) (*apiv1alpha1.ClearRollSessionResponse, error) {
	if req.EntityId == "" {
		return nil, errors.ToGRPCError(errors.InvalidArgument("entity_id is required"))
	}
	if req.Context == "" {
		return nil, errors.ToGRPCError(errors.InvalidArgument("context is required"))
	}

	output, err := h.diceService.ClearRollSession(ctx, &dice.ClearRollSessionInput{
		EntityID: req.EntityId,
		Context:  req.Context,
	})
	if err != nil {
		return nil, errors.ToGRPCError(err)
	}

	return &apiv1alpha1.ClearRollSessionResponse{
		Message:      "Roll session cleared successfully",
		RollsCleared: output.RollsDeleted,
	}, nil
}

// toProtoRolls maps stored rolls to the wire type. The wire total is an int32, so the
// result is rounded half away from zero and the breakdown travels in Description.
// Results that do not fit are reported as out of range rather than truncated.
func toProtoRolls(rolls []dicesession.DiceRoll) ([]*apiv1alpha1.DiceRoll, error) {
	out := make([]*apiv1alpha1.DiceRoll, 0, len(rolls))
	for _, r := range rolls {
		rounded := math.Round(r.Result)
		if math.IsNaN(rounded) || rounded > math.MaxInt32 || rounded < math.MinInt32 {
			return nil, errors.OutOfRangef("roll %s result %g does not fit the response", r.RollID, r.Result).
				WithKind(errors.KindArithmetic).
				WithMeta("roll_id", r.RollID)
		}
		total := int32(rounded)
		description := r.Breakdown
		if r.Description != "" {
			description = r.Description + ": " + r.Breakdown
		}
		out = append(out, &apiv1alpha1.DiceRoll{
			RollId:      r.RollID,
			Notation:    r.Expression,
			Dice:        r.Dice,
			Total:       total,
			Dropped:     r.Dropped,
			Description: description,
			DiceTotal:   r.DiceTotal,
			Modifier:    total - r.DiceTotal,
		})
	}
	return out, nil
}

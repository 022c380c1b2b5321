package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/KirkDiggler/rpg-sheet/internal/dice/expression"
	"github.com/KirkDiggler/rpg-sheet/internal/errors"
	dicesvc "github.com/KirkDiggler/rpg-sheet/internal/orchestrators/dice"
	"github.com/KirkDiggler/rpg-sheet/internal/pkg/clock"
	dicesession "github.com/KirkDiggler/rpg-sheet/internal/repositories/dice_session"
)

var (
	interactive     bool
	noAnimate       bool
	rollEntity      string
	rollContext     string
	rollDescription string
)

var rollCmd = &cobra.Command{
	Use:   "roll [expression]",
	Short: "Roll a dice expression",
	Long: `Roll a dice expression and print the breakdown. Examples:

  roll 2d6+3
  roll "(1d20 + 5) / 2"
  roll -i            start an interactive roller with history`,
	Args: func(cmd *cobra.Command, args []string) error {
		if interactive {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.MinimumNArgs(1)(cmd, args)
	},
	RunE: runRoll,
}

func init() {
	rollCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "read expressions from stdin until quit")
	rollCmd.Flags().BoolVar(&noAnimate, "no-animate", false, "print results without the countdown")
	rollCmd.Flags().StringVar(&rollEntity, "entity", "local", "entity the rolls belong to")
	rollCmd.Flags().StringVar(&rollContext, "context", "repl", "context the rolls are grouped under")
	rollCmd.Flags().StringVar(&rollDescription, "description", "", "label stored with the roll")
}

func runRoll(_ *cobra.Command, args []string) error {
	roller, err := newRoller()
	if err != nil {
		return err
	}
	service, err := newDiceService(dicesession.NewInMemory(clock.New()), roller, nil)
	if err != nil {
		return err
	}

	session := &rollSession{
		service:  service,
		out:      os.Stdout,
		entityID: rollEntity,
		context:  rollContext,
		animate:  cfg.Animate && !noAnimate,
		steps:    cfg.CountdownSteps,
		interval: cfg.CountdownInterval,
	}
	if s, ok := roller.(interface{ StirTime(time.Time) }); ok {
		session.stir = s.StirTime
	}

	ctx := context.Background()
	if interactive {
		return session.repl(ctx, os.Stdin)
	}
	return session.roll(ctx, strings.Join(args, " "), rollDescription)
}

// rollSession rolls expressions for one entity and context and prints the results
type rollSession struct {
	service  dicesvc.Service
	out      io.Writer
	entityID string
	context  string

	// stir, when set, receives input timing as extra entropy
	stir func(time.Time)

	animate  bool
	steps    int
	interval time.Duration
}

// roll evaluates expr, then plays the countdown and prints the breakdown. The result is
// stored before the countdown starts, so interrupting it only skips the animation.
func (s *rollSession) roll(ctx context.Context, expr, description string) error {
	out, err := s.service.RollExpression(ctx, &dicesvc.RollExpressionInput{
		EntityID:    s.entityID,
		Context:     s.context,
		Expression:  expr,
		Description: description,
	})
	if err != nil {
		fmt.Fprintf(s.out, "%s\n", describeError(err))
		return err
	}

	if s.animate {
		animCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		countdown(animCtx, s.out, s.steps, s.interval)
		stop()
	}

	fmt.Fprintf(s.out, "%s\n", out.Roll.Breakdown)
	return nil
}

// repl reads one expression per line until EOF or quit. Errors are printed and the loop
// continues.
func (s *rollSession) repl(ctx context.Context, in io.Reader) error {
	fmt.Fprintln(s.out, `Enter a dice expression, "history", "clear", "help" or "quit".`)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(s.out, "roll> ")
		if !scanner.Scan() {
			fmt.Fprintln(s.out)
			return scanner.Err()
		}
		if s.stir != nil {
			s.stir(time.Now())
		}

		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "quit", "exit":
			return nil
		case "help":
			fmt.Fprintln(s.out, "Expressions use NdM dice with + - * / and parentheses, e.g. 2d6+3 or (1d20+5)/2.")
			continue
		case "history":
			s.printHistory(ctx)
			continue
		case "clear":
			cleared, err := s.service.ClearRollSession(ctx, &dicesvc.ClearRollSessionInput{EntityID: s.entityID, Context: s.context})
			if err != nil {
				fmt.Fprintf(s.out, "%s\n", describeError(err))
				continue
			}
			fmt.Fprintf(s.out, "cleared %d roll(s)\n", cleared.RollsDeleted)
			continue
		}

		// errors are already printed
		_ = s.roll(ctx, line, "") // nolint:errcheck
	}
}

func (s *rollSession) printHistory(ctx context.Context) {
	got, err := s.service.GetRollSession(ctx, &dicesvc.GetRollSessionInput{EntityID: s.entityID, Context: s.context})
	if errors.IsNotFound(err) {
		fmt.Fprintln(s.out, "no rolls yet")
		return
	}
	if err != nil {
		fmt.Fprintf(s.out, "%s\n", describeError(err))
		return
	}
	for i, r := range got.Session.Rolls {
		fmt.Fprintf(s.out, "%2d. %s\n", i+1, r.Breakdown)
	}
}

// countdown prints steps..1 one interval apart. It returns false when ctx ends first.
func countdown(ctx context.Context, w io.Writer, steps int, interval time.Duration) bool {
	if steps <= 0 {
		return true
	}
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for i := steps; i > 0; i-- {
		fmt.Fprintf(w, "%d... ", i)
		select {
		case <-ctx.Done():
			fmt.Fprintln(w)
			return false
		case <-timer.C:
			timer.Reset(interval)
		}
	}
	fmt.Fprintln(w)
	return true
}

// describeError renders evaluation errors the way a player wants to read them
func describeError(err error) string {
	switch {
	case expression.IsParseError(err):
		return "invalid expression: " + errors.GetMessage(err)
	case expression.IsArithmeticError(err):
		return "math error: " + errors.GetMessage(err)
	case errors.IsAborted(err):
		return "a roll is already in progress"
	default:
		return "error: " + errors.GetMessage(err)
	}
}

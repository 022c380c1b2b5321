package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/KirkDiggler/rpg-toolkit/events"
	"github.com/spf13/cobra"

	entity "github.com/KirkDiggler/rpg-sheet/internal/entities/sheet"
	sheetsvc "github.com/KirkDiggler/rpg-sheet/internal/orchestrators/sheet"
)

var sheetCmd = &cobra.Command{
	Use:   "sheet",
	Short: "Manage character sheets",
	Long:  `Create and edit character sheets kept in the local store.`,
}

var (
	createClass string
	createLevel int
	createMaxHP int

	itemQuantity int
	itemNotes    string

	abilityCooldown    int
	abilityDescription string

	debuffTurns  int
	debuffEffect string

	tempHP int

	exportFormat    string
	importFormat    string
	importOverwrite bool

	rollMethod string
)

// withSheets opens the store for the duration of fn. Turn and ability events are printed
// to stdout as they are published.
func withSheets(fn func(ctx context.Context, svc sheetsvc.Service) error) error {
	bus := events.NewBus()
	subscribeSheetEvents(bus, os.Stdout)

	svc, closeStore, err := openSheetService(bus)
	if err != nil {
		return err
	}
	defer closeStore()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return fn(ctx, svc)
}

func init() {
	createCmd := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a sheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return withSheets(func(ctx context.Context, svc sheetsvc.Service) error {
				out, err := svc.CreateSheet(ctx, &sheetsvc.CreateSheetInput{
					Name:  args[0],
					Class: createClass,
					Level: createLevel,
					MaxHP: createMaxHP,
				})
				if err != nil {
					return err
				}
				printSheet(os.Stdout, out.Sheet)
				return nil
			})
		},
	}
	createCmd.Flags().StringVar(&createClass, "class", "", "character class")
	createCmd.Flags().IntVar(&createLevel, "level", 1, "character level")
	createCmd.Flags().IntVar(&createMaxHP, "hp", 10, "maximum hit points")

	showCmd := &cobra.Command{
		Use:   "show [sheet-id]",
		Short: "Show a sheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return withSheets(func(ctx context.Context, svc sheetsvc.Service) error {
				out, err := svc.GetSheet(ctx, &sheetsvc.GetSheetInput{SheetID: args[0]})
				if err != nil {
					return err
				}
				printSheet(os.Stdout, out.Sheet)
				return nil
			})
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List sheets",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return withSheets(func(ctx context.Context, svc sheetsvc.Service) error {
				out, err := svc.ListSheets(ctx, &sheetsvc.ListSheetsInput{})
				if err != nil {
					return err
				}
				if len(out.Sheets) == 0 {
					fmt.Println("No sheets yet. Create one with: rpg-sheet sheet create <name>")
					return nil
				}
				for _, c := range out.Sheets {
					fmt.Printf("%s  %s (level %d %s) HP %d/%d  turn %d\n",
						c.ID, c.Name, c.Level, c.Class, c.HP.Current, c.HP.Max, c.Turn)
				}
				return nil
			})
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete [sheet-id]",
		Short: "Delete a sheet and its backups",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return withSheets(func(ctx context.Context, svc sheetsvc.Service) error {
				out, err := svc.DeleteSheet(ctx, &sheetsvc.DeleteSheetInput{SheetID: args[0]})
				if err != nil {
					return err
				}
				fmt.Printf("Deleted %s (%d backup(s) removed)\n", args[0], out.BackupsDeleted)
				return nil
			})
		},
	}

	setStatCmd := &cobra.Command{
		Use:   "set-stat [sheet-id] [stat] [score]",
		Short: "Set one ability score (1-30)",
		Args:  cobra.ExactArgs(3),
		RunE: func(_ *cobra.Command, args []string) error {
			score, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("score must be a whole number: %s", args[2])
			}
			return withSheets(func(ctx context.Context, svc sheetsvc.Service) error {
				out, err := svc.SetStat(ctx, &sheetsvc.SetStatInput{SheetID: args[0], Stat: args[1], Score: score})
				if err != nil {
					return err
				}
				printStats(os.Stdout, out.Sheet)
				return nil
			})
		},
	}

	rollStatsCmd := &cobra.Command{
		Use:   "roll-stats [sheet-id]",
		Short: "Roll all six ability scores onto a sheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return withSheets(func(ctx context.Context, svc sheetsvc.Service) error {
				out, err := svc.RollStats(ctx, &sheetsvc.RollStatsInput{SheetID: args[0], Method: rollMethod})
				if err != nil {
					return err
				}
				for i, r := range out.Rolls {
					fmt.Printf("%s: %s\n", entity.AllStats[i], r.Breakdown)
				}
				printStats(os.Stdout, out.Sheet)
				return nil
			})
		},
	}
	rollStatsCmd.Flags().StringVar(&rollMethod, "method", "4d6_drop_lowest", "rolling method (4d6_drop_lowest, 3d6)")

	hpCmd := &cobra.Command{
		Use:   "hp [sheet-id] [delta]",
		Short: "Heal (positive) or damage (negative) a sheet",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			delta, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("delta must be a whole number: %s", args[1])
			}
			return withSheets(func(ctx context.Context, svc sheetsvc.Service) error {
				out, err := svc.AdjustHP(ctx, &sheetsvc.AdjustHPInput{SheetID: args[0], Delta: delta, GrantTemp: tempHP})
				if err != nil {
					return err
				}
				fmt.Printf("HP %d/%d (temp %d)\n", out.Sheet.HP.Current, out.Sheet.HP.Max, out.Sheet.HP.Temp)
				return nil
			})
		},
	}
	hpCmd.Flags().IntVar(&tempHP, "temp", 0, "grant temporary hit points before applying delta")

	sheetCmd.AddCommand(createCmd, showCmd, listCmd, deleteCmd, setStatCmd, rollStatsCmd, hpCmd)
	sheetCmd.AddCommand(itemCommand(), abilityCommand(), debuffCommand())
	sheetCmd.AddCommand(turnCommands()...)
	sheetCmd.AddCommand(transferCommands()...)
}

func itemCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "item", Short: "Manage inventory"}

	add := &cobra.Command{
		Use:   "add [sheet-id] [name]",
		Short: "Add an item, merging with an existing stack",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return withSheets(func(ctx context.Context, svc sheetsvc.Service) error {
				out, err := svc.AddItem(ctx, &sheetsvc.AddItemInput{
					SheetID: args[0], Name: args[1], Quantity: itemQuantity, Notes: itemNotes,
				})
				if err != nil {
					return err
				}
				fmt.Printf("%s x%d\n", out.Item.Name, out.Item.Quantity)
				return nil
			})
		},
	}
	add.Flags().IntVar(&itemQuantity, "quantity", 1, "how many to add")
	add.Flags().StringVar(&itemNotes, "notes", "", "notes for the item")

	remove := &cobra.Command{
		Use:   "remove [sheet-id] [name]",
		Short: "Remove an item (all of it unless --quantity is set)",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return withSheets(func(ctx context.Context, svc sheetsvc.Service) error {
				out, err := svc.RemoveItem(ctx, &sheetsvc.RemoveItemInput{
					SheetID: args[0], Name: args[1], Quantity: itemQuantity,
				})
				if err != nil {
					return err
				}
				fmt.Printf("%s x%d left\n", out.Item.Name, out.Item.Quantity)
				return nil
			})
		},
	}
	remove.Flags().IntVar(&itemQuantity, "quantity", 0, "how many to remove")

	cmd.AddCommand(add, remove)
	return cmd
}

func abilityCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "ability", Short: "Manage abilities and cooldowns"}

	add := &cobra.Command{
		Use:   "add [sheet-id] [name]",
		Short: "Add an ability",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return withSheets(func(ctx context.Context, svc sheetsvc.Service) error {
				out, err := svc.AddAbility(ctx, &sheetsvc.AddAbilityInput{
					SheetID: args[0], Name: args[1], Cooldown: abilityCooldown, Description: abilityDescription,
				})
				if err != nil {
					return err
				}
				fmt.Printf("%s (cooldown %d)\n", out.Ability.Name, out.Ability.Cooldown)
				return nil
			})
		},
	}
	add.Flags().IntVar(&abilityCooldown, "cooldown", 0, "turns before the ability can be used again")
	add.Flags().StringVar(&abilityDescription, "description", "", "what the ability does")

	use := &cobra.Command{
		Use:   "use [sheet-id] [name]",
		Short: "Use an ability and start its cooldown",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return withSheets(func(ctx context.Context, svc sheetsvc.Service) error {
				_, err := svc.UseAbility(ctx, &sheetsvc.UseAbilityInput{SheetID: args[0], Name: args[1]})
				return err
			})
		},
	}

	remove := &cobra.Command{
		Use:   "remove [sheet-id] [name]",
		Short: "Remove an ability",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return withSheets(func(ctx context.Context, svc sheetsvc.Service) error {
				_, err := svc.RemoveAbility(ctx, &sheetsvc.RemoveAbilityInput{SheetID: args[0], Name: args[1]})
				return err
			})
		},
	}

	cmd.AddCommand(add, use, remove)
	return cmd
}

func debuffCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "debuff", Short: "Manage debuffs"}

	add := &cobra.Command{
		Use:   "add [sheet-id] [name]",
		Short: "Apply a debuff, refreshing it if already present",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return withSheets(func(ctx context.Context, svc sheetsvc.Service) error {
				out, err := svc.AddDebuff(ctx, &sheetsvc.AddDebuffInput{
					SheetID: args[0], Name: args[1], Turns: debuffTurns, Effect: debuffEffect,
				})
				if err != nil {
					return err
				}
				fmt.Printf("%s for %d turn(s)\n", out.Debuff.Name, out.Debuff.Remaining)
				return nil
			})
		},
	}
	add.Flags().IntVar(&debuffTurns, "turns", 1, "how many turns the debuff lasts")
	add.Flags().StringVar(&debuffEffect, "effect", "", "what the debuff does")

	remove := &cobra.Command{
		Use:   "remove [sheet-id] [name]",
		Short: "Clear a debuff early",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return withSheets(func(ctx context.Context, svc sheetsvc.Service) error {
				_, err := svc.RemoveDebuff(ctx, &sheetsvc.RemoveDebuffInput{SheetID: args[0], Name: args[1]})
				return err
			})
		},
	}

	cmd.AddCommand(add, remove)
	return cmd
}

func turnCommands() []*cobra.Command {
	turn := &cobra.Command{
		Use:   "turn [sheet-id]",
		Short: "Advance the turn counter, ticking cooldowns and debuffs",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return withSheets(func(ctx context.Context, svc sheetsvc.Service) error {
				_, err := svc.AdvanceTurn(ctx, &sheetsvc.AdvanceTurnInput{SheetID: args[0]})
				return err
			})
		},
	}

	reset := &cobra.Command{
		Use:   "reset-turns [sheet-id]",
		Short: "Reset the turn counter and every cooldown",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return withSheets(func(ctx context.Context, svc sheetsvc.Service) error {
				_, err := svc.ResetTurns(ctx, &sheetsvc.ResetTurnsInput{SheetID: args[0]})
				return err
			})
		},
	}

	return []*cobra.Command{turn, reset}
}

func transferCommands() []*cobra.Command {
	export := &cobra.Command{
		Use:   "export [sheet-id]",
		Short: "Write a sheet to stdout as JSON or YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return withSheets(func(ctx context.Context, svc sheetsvc.Service) error {
				out, err := svc.Export(ctx, &sheetsvc.ExportInput{SheetID: args[0], Format: exportFormat})
				if err != nil {
					return err
				}
				_, err = os.Stdout.Write(out.Data)
				return err
			})
		},
	}
	export.Flags().StringVar(&exportFormat, "format", sheetsvc.FormatJSON, "json or yaml")

	importCmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import a sheet from a file, or stdin when the file is -",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			data, err := readInput(args[0])
			if err != nil {
				return err
			}
			return withSheets(func(ctx context.Context, svc sheetsvc.Service) error {
				out, err := svc.Import(ctx, &sheetsvc.ImportInput{Data: data, Format: importFormat, Overwrite: importOverwrite})
				if err != nil {
					return err
				}
				verb := "Imported"
				if out.Replaced {
					verb = "Replaced"
				}
				fmt.Printf("%s %s (%s)\n", verb, out.Sheet.ID, out.Sheet.Name)
				return nil
			})
		},
	}
	importCmd.Flags().StringVar(&importFormat, "format", "", "json or yaml (detected when empty)")
	importCmd.Flags().BoolVar(&importOverwrite, "overwrite", false, "replace a sheet with the same ID")

	backup := &cobra.Command{
		Use:   "backup [sheet-id]",
		Short: "Snapshot a sheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return withSheets(func(ctx context.Context, svc sheetsvc.Service) error {
				out, err := svc.Backup(ctx, &sheetsvc.BackupInput{SheetID: args[0]})
				if err != nil {
					return err
				}
				fmt.Println(out.Backup.Key)
				return nil
			})
		},
	}

	backups := &cobra.Command{
		Use:   "backups [sheet-id]",
		Short: "List backups, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			sheetID := ""
			if len(args) == 1 {
				sheetID = args[0]
			}
			return withSheets(func(ctx context.Context, svc sheetsvc.Service) error {
				out, err := svc.ListBackups(ctx, &sheetsvc.ListBackupsInput{SheetID: sheetID})
				if err != nil {
					return err
				}
				for _, b := range out.Backups {
					fmt.Printf("%s  %s\n", b.CreatedAt.Local().Format("2006-01-02 15:04:05"), b.Key)
				}
				return nil
			})
		},
	}

	restore := &cobra.Command{
		Use:   "restore [sheet-id] [backup-key]",
		Short: "Restore a backup (the newest when no key is given)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(_ *cobra.Command, args []string) error {
			input := &sheetsvc.RestoreBackupInput{SheetID: args[0]}
			if len(args) == 2 {
				input.BackupKey = args[1]
			}
			return withSheets(func(ctx context.Context, svc sheetsvc.Service) error {
				out, err := svc.RestoreBackup(ctx, input)
				if err != nil {
					return err
				}
				printSheet(os.Stdout, out.Sheet)
				return nil
			})
		},
	}

	doctor := &cobra.Command{
		Use:   "doctor",
		Short: "Check the store and every sheet for problems",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return withSheets(func(ctx context.Context, svc sheetsvc.Service) error {
				report, err := svc.Diagnose(ctx, &sheetsvc.DiagnoseInput{})
				if err != nil {
					return err
				}
				printReport(os.Stdout, report)
				if !report.Healthy() {
					return fmt.Errorf("problems found")
				}
				return nil
			})
		},
	}

	return []*cobra.Command{export, importCmd, backup, backups, restore, doctor}
}

func readInput(name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(name) // nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}

func printSheet(w io.Writer, c *entity.Character) {
	fmt.Fprintf(w, "%s  [%s]\n", c.Name, c.ID)
	if c.Class != "" {
		fmt.Fprintf(w, "Level %d %s\n", c.Level, c.Class)
	} else {
		fmt.Fprintf(w, "Level %d\n", c.Level)
	}
	fmt.Fprintf(w, "HP %d/%d", c.HP.Current, c.HP.Max)
	if c.HP.Temp > 0 {
		fmt.Fprintf(w, " (+%d temp)", c.HP.Temp)
	}
	fmt.Fprintf(w, "  Turn %d\n", c.Turn)
	printStats(w, c)

	if len(c.Inventory) > 0 {
		fmt.Fprintln(w, "Inventory:")
		for _, item := range c.Inventory {
			fmt.Fprintf(w, "  %s x%d", item.Name, item.Quantity)
			if item.Notes != "" {
				fmt.Fprintf(w, " (%s)", item.Notes)
			}
			fmt.Fprintln(w)
		}
	}
	if len(c.Abilities) > 0 {
		fmt.Fprintln(w, "Abilities:")
		for _, a := range c.Abilities {
			state := "ready"
			if !a.Ready() {
				state = fmt.Sprintf("%d turn(s)", a.Remaining)
			}
			fmt.Fprintf(w, "  %s [%s]\n", a.Name, state)
		}
	}
	if len(c.Debuffs) > 0 {
		fmt.Fprintln(w, "Debuffs:")
		for _, d := range c.Debuffs {
			fmt.Fprintf(w, "  %s (%d turn(s))\n", d.Name, d.Remaining)
		}
	}
}

func printStats(w io.Writer, c *entity.Character) {
	parts := make([]string, 0, len(entity.AllStats))
	for _, s := range entity.AllStats {
		score := c.Stats[s]
		parts = append(parts, fmt.Sprintf("%s %d (%+d)", s, score, entity.Modifier(score)))
	}
	fmt.Fprintln(w, strings.Join(parts, "  "))
}

func printReport(w io.Writer, r *sheetsvc.DiagnoseOutput) {
	if !r.StoreReachable {
		fmt.Fprintf(w, "store: unreachable (%s)\n", r.StoreError)
		return
	}
	fmt.Fprintln(w, "store: ok")
	fmt.Fprintf(w, "sheets: %d  backups: %d\n", r.SheetCount, r.BackupCount)
	for key, issues := range r.Issues {
		for _, issue := range issues {
			fmt.Fprintf(w, "  %s: %s\n", key, issue)
		}
	}
}

// subscribeSheetEvents prints turn reports and ability uses to w
func subscribeSheetEvents(bus events.EventBus, w io.Writer) {
	bus.SubscribeFunc(sheetsvc.EventTurnAdvanced, 0, func(_ context.Context, e events.Event) error {
		v, _ := e.Context().Get(sheetsvc.EventKeyReport)
		if report, ok := v.(entity.TurnReport); ok {
			printTurn(w, report)
		}
		return nil
	})
	bus.SubscribeFunc(sheetsvc.EventAbilityUsed, 0, func(_ context.Context, e events.Event) error {
		v, _ := e.Context().Get(sheetsvc.EventKeyAbility)
		if ability, ok := v.(entity.Ability); ok {
			fmt.Fprintf(w, "Used %s, ready again in %d turn(s)\n", ability.Name, ability.Remaining)
		}
		return nil
	})
}

func printTurn(w io.Writer, r entity.TurnReport) {
	fmt.Fprintf(w, "Turn %d\n", r.Turn)
	for _, name := range r.Ready {
		fmt.Fprintf(w, "  %s is ready\n", name)
	}
	for _, d := range r.Expired {
		fmt.Fprintf(w, "  %s wore off\n", d.Name)
	}
}

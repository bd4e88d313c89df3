package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/compound/plan"
	"github.com/rustyeddy/compound/store"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Create, inspect and edit the compounding plan",
	Long: `Manage the plan document of the configured user.

Subcommands:
  init     - Create a plan from the config (or flags)
  show     - Print the summary and the day calendar
  outcome  - Record the signed result of a day
  clear    - Remove the result of a day
  resize   - Change tenure, capital or target keeping journal content
  logic    - Set the trade logic note of a day
  rule     - Toggle a checklist item of a day
  hide     - Hide or show an instrument

Examples:
  compound plan init --capital 50000 --target 100000 --tenure 66
  compound plan outcome 3 +440
  compound plan outcome 4 -- -120
  compound plan show --month 1`,
}

var planInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a new plan",
	Args:  cobra.NoArgs,
	RunE:  runPlanInit,
}

var planShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the plan summary and calendar",
	Args:  cobra.NoArgs,
	RunE:  runPlanShow,
}

var planOutcomeCmd = &cobra.Command{
	Use:   "outcome <day> <signed-amount>",
	Short: "Record a day's profit (+) or loss (-)",
	Args:  cobra.ExactArgs(2),
	RunE:  runPlanOutcome,
}

var planClearCmd = &cobra.Command{
	Use:   "clear <day>",
	Short: "Clear a day's recorded outcome",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlanClear,
}

var planResizeCmd = &cobra.Command{
	Use:   "resize",
	Short: "Change tenure, initial capital or final target",
	Args:  cobra.NoArgs,
	RunE:  runPlanResize,
}

var planLogicCmd = &cobra.Command{
	Use:   "logic <day> <text>",
	Short: "Set the logic note of a day",
	Args:  cobra.ExactArgs(2),
	RunE:  runPlanLogic,
}

var planRuleCmd = &cobra.Command{
	Use:   "rule <day> <index>",
	Short: "Toggle a checklist rule of a day",
	Args:  cobra.ExactArgs(2),
	RunE:  runPlanRule,
}

var planHideCmd = &cobra.Command{
	Use:   "hide <instrument>",
	Short: "Hide an instrument from the feed (use --show to undo)",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlanHide,
}

var (
	planCapital float64
	planTarget  float64
	planTenure  int
	planForce   bool
	planMonth   int
	planUnhide  bool
)

func init() {
	rootCmd.AddCommand(planCmd)
	planCmd.AddCommand(planInitCmd, planShowCmd, planOutcomeCmd, planClearCmd,
		planResizeCmd, planLogicCmd, planRuleCmd, planHideCmd)

	for _, c := range []*cobra.Command{planInitCmd, planResizeCmd} {
		c.Flags().Float64Var(&planCapital, "capital", 0, "initial capital")
		c.Flags().Float64Var(&planTarget, "target", 0, "final target")
		c.Flags().IntVar(&planTenure, "tenure", 0, "number of trading days")
	}
	planInitCmd.Flags().BoolVarP(&planForce, "force", "f", false, "replace an existing plan")
	planShowCmd.Flags().IntVarP(&planMonth, "month", "m", 0, "only show this month (1-based)")
	planHideCmd.Flags().BoolVar(&planUnhide, "show", false, "show the instrument again")
}

// editPlan loads the user's plan, applies fn and saves the result.
func editPlan(fn func(doc *plan.Document) (plan.Summary, error)) error {
	ctx := context.Background()
	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	doc, found, err := loadPlan(ctx, st, cfg)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("no plan for %q, run 'compound plan init' first", cfg.Store.User)
	}
	anchor, _ := cfg.Plan.Anchor()
	for _, f := range doc.Normalize(anchor).Fallbacks {
		log.WithComponent("plan").WithError(f).Warn("plan repaired")
	}

	sum, err := fn(doc)
	if err != nil {
		return err
	}
	if err := savePlan(ctx, st, cfg.Store.User, doc); err != nil {
		return err
	}
	fmt.Println(sum)
	return nil
}

func runPlanInit(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	pc := cfg.Plan.Config()
	if planCapital > 0 {
		pc.InitialCapital = planCapital
	}
	if planTarget > 0 {
		pc.FinalTarget = planTarget
	}
	if planTenure > 0 {
		pc.Tenure = planTenure
	}
	anchor, err := cfg.Plan.Anchor()
	if err != nil {
		return err
	}

	doc, sum := plan.New(pc, anchor)
	for _, f := range sum.Fallbacks {
		log.WithComponent("plan").WithError(f).Warn("plan config repaired")
	}

	existing, err := st.Load(ctx, cfg.Store.User)
	switch {
	case err == nil && !planForce:
		return fmt.Errorf("plan for %q already exists (use --force to replace)", cfg.Store.User)
	case err == nil:
		doc.Version = existing.Version
	case !errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("load plan: %w", err)
	}

	if err := savePlan(ctx, st, cfg.Store.User, doc); err != nil {
		return err
	}
	fmt.Printf("✓ Created plan for %s\n", cfg.Store.User)
	fmt.Println(sum)
	return nil
}

func runPlanShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	doc, found, err := loadPlan(ctx, st, cfg)
	if err != nil {
		return err
	}
	anchor, _ := cfg.Plan.Anchor()
	sum := doc.Normalize(anchor)
	if !found {
		fmt.Println("(no stored plan, showing the configured defaults)")
	}
	fmt.Println(sum)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	defer w.Flush()
	for i, m := range doc.Months {
		if planMonth > 0 && planMonth != i+1 {
			continue
		}
		fmt.Fprintf(w, "\n%s\t\t\t\t\t\t\t\n", m.MonthName)
		fmt.Fprintln(w, "Day\tDate\tCapital\tTarget\tProfit\tRate %\tActual\tW/L\t")
		for _, d := range m.Days {
			actual := "-"
			if d.Actual != "" {
				actual = d.PnlSign + string(d.Actual)
			}
			mark := ""
			if d.Achieved {
				mark = " ✓"
			}
			fmt.Fprintf(w, "%d\t%s\t%.2f\t%.2f\t%.2f\t%.3f\t%s%s\t%d/%d\t\n",
				d.Day, d.Date, d.Capital, d.Target, d.Profit, d.DailyRate*100,
				actual, mark, d.WinningTrades, d.LosingTrades)
		}
	}
	return nil
}

func parseDay(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("day must be a number: %q", s)
	}
	return n, nil
}

func runPlanOutcome(cmd *cobra.Command, args []string) error {
	day, err := parseDay(args[0])
	if err != nil {
		return err
	}
	amount, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	return editPlan(func(doc *plan.Document) (plan.Summary, error) {
		return doc.SetOutcome(day, amount)
	})
}

func runPlanClear(cmd *cobra.Command, args []string) error {
	day, err := parseDay(args[0])
	if err != nil {
		return err
	}
	return editPlan(func(doc *plan.Document) (plan.Summary, error) {
		return doc.ClearOutcome(day)
	})
}

func runPlanResize(cmd *cobra.Command, args []string) error {
	anchor, err := cfg.Plan.Anchor()
	if err != nil {
		return err
	}
	return editPlan(func(doc *plan.Document) (plan.Summary, error) {
		capital, target := doc.InitialCapital, doc.FinalTarget
		if planCapital > 0 {
			capital = planCapital
		}
		if planTarget > 0 {
			target = planTarget
		}
		sum := doc.SetTargets(capital, target)
		if planTenure > 0 && planTenure != doc.Tenure {
			return doc.Resize(anchor, planTenure)
		}
		return sum, nil
	})
}

func runPlanLogic(cmd *cobra.Command, args []string) error {
	day, err := parseDay(args[0])
	if err != nil {
		return err
	}
	return editPlan(func(doc *plan.Document) (plan.Summary, error) {
		if err := doc.SetLogic(day, args[1]); err != nil {
			return plan.Summary{}, err
		}
		return doc.Recalculate(), nil
	})
}

func runPlanRule(cmd *cobra.Command, args []string) error {
	day, err := parseDay(args[0])
	if err != nil {
		return err
	}
	idx, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("rule index must be a number: %q", args[1])
	}
	return editPlan(func(doc *plan.Document) (plan.Summary, error) {
		checked, err := doc.ToggleRule(day, idx)
		if err != nil {
			return plan.Summary{}, err
		}
		d, _ := doc.Day(day)
		fmt.Printf("Day %d: [%s] %s\n", day, checkbox(checked), d.Rules[idx].Text)
		return doc.Recalculate(), nil
	})
}

func checkbox(b bool) string {
	if b {
		return "X"
	}
	return " "
}

func runPlanHide(cmd *cobra.Command, args []string) error {
	return editPlan(func(doc *plan.Document) (plan.Summary, error) {
		doc.SetHidden(args[0], !planUnhide)
		fmt.Printf("Hidden: %v\n", doc.HiddenSymbols)
		return doc.Recalculate(), nil
	})
}

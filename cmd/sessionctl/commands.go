package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"bursa/internal/session/export"
	"bursa/internal/session/importer"
	"bursa/internal/session/models"
	"bursa/internal/session/store"
)

var (
	successColor = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
)

var importCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Import a candidate list",
	Long: `Import parses a candidate CSV, detects whether it is a structured
commission sheet or a flat export, classifies duplicate application
numbers and loads the result into the session database.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closer, err := openService()
		if err != nil {
			return err
		}
		defer closer()
		ctx := cmd.Context()

		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		canonical, err := svc.CanonicalPrograms(ctx)
		if err != nil {
			return err
		}

		policy := importer.Policy{}
		for _, c := range cfg.DropDuplicates {
			policy[importer.Classification(c)] = importer.ActionDropSecond
		}

		imp := importer.New(importer.Options{CanonicalPrograms: canonical, Policy: policy})
		result, err := imp.Parse(f)
		if err != nil {
			return fmt.Errorf("parse %s: %w", args[0], err)
		}

		n, err := svc.LoadCandidates(ctx, result.Candidates)
		if err != nil {
			return err
		}

		successColor.Printf("imported %d candidates (%s form, batch %s)\n", n, result.Form, result.BatchID)
		if result.Report.Skipped > 0 {
			warnColor.Printf("skipped %d unparseable rows\n", result.Report.Skipped)
		}
		if result.Report.Dropped > 0 {
			warnColor.Printf("dropped %d duplicate rows per policy\n", result.Report.Dropped)
		}
		for _, d := range result.Report.Duplicates {
			action := "kept"
			if d.Dropped {
				action = "dropped second"
			}
			warnColor.Printf("duplicate %s: %s (%s)\n", d.ExternalID, d.Classification, action)
		}
		for _, msg := range result.Report.NeedsReview {
			warnColor.Printf("needs review: %s\n", msg)
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show session decision counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closer, err := openService()
		if err != nil {
			return err
		}
		defer closer()
		ctx := cmd.Context()

		status, err := svc.Status(ctx)
		if err != nil {
			return err
		}
		stats, err := svc.Stats(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("session: %s\n", status)
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Total", "Decided", "Favorable", "Unfavorable", "Alternate", "Pending"})
		table.Append([]string{
			strconv.Itoa(stats.Total),
			strconv.Itoa(stats.Decided),
			strconv.Itoa(stats.Favorable),
			strconv.Itoa(stats.Unfavorable),
			strconv.Itoa(stats.Alternate),
			strconv.Itoa(stats.Pending),
		})
		table.Render()
		return nil
	},
}

var searchField string

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find candidates by number, external id or name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closer, err := openService()
		if err != nil {
			return err
		}
		defer closer()

		matches, err := svc.Search(cmd.Context(), store.SearchField(searchField), args[0])
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			warnColor.Println("no matches")
			return nil
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Request", "No", "Name", "Level", "Program", "Decision"})
		for _, c := range matches {
			table.Append([]string{
				c.RequestID,
				strconv.Itoa(c.ApplicationNumber),
				c.Name,
				string(c.Level),
				c.Program,
				string(c.Decision),
			})
		}
		table.Render()
		return nil
	},
}

var decideCmd = &cobra.Command{
	Use:   "decide <request-id> <decision>",
	Short: "Record a decision for a candidate",
	Long: `Decide sets a candidate's decision. Favorable decisions are gated by
the bucket's remaining quota; the command fails when no seats remain.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closer, err := openService()
		if err != nil {
			return err
		}
		defer closer()

		decision := models.ParseDecision(args[1])
		if err := svc.ApplyDecision(cmd.Context(), args[0], decision); err != nil {
			return err
		}
		successColor.Printf("%s -> %s\n", args[0], decision)
		return nil
	},
}

var quotasCmd = &cobra.Command{
	Use:   "quotas",
	Short: "Inspect and manage seat quotas",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closer, err := openService()
		if err != nil {
			return err
		}
		defer closer()

		statuses, err := svc.QuotaStatuses(cmd.Context())
		if err != nil {
			return err
		}
		return export.QuotaSheetText(os.Stdout, statuses)
	},
}

var quotasLoadCmd = &cobra.Command{
	Use:   "load [plan.json]",
	Short: "Load the capacity plan into the quota table",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closer, err := openService()
		if err != nil {
			return err
		}
		defer closer()

		path := cfg.CapacityPlanPath
		if len(args) == 1 {
			path = args[0]
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		var plan models.CapacityPlan
		if err := json.Unmarshal(raw, &plan); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}

		n, err := svc.LoadCapacityPlan(cmd.Context(), plan)
		if err != nil {
			return err
		}
		successColor.Printf("loaded %d quota buckets from %s\n", n, path)
		return nil
	},
}

var (
	transferFromLevel string
	transferToLevel   string
	transferAmount    int
)

var quotasTransferCmd = &cobra.Command{
	Use:   "transfer <from-program> <to-program>",
	Short: "Move seats between two programs",
	Long: `Transfer moves seats from one bucket to another. Only seats not yet
consumed by favorable decisions can leave the source bucket.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closer, err := openService()
		if err != nil {
			return err
		}
		defer closer()

		from := models.Bucket{Level: models.ParseLevel(transferFromLevel), Program: args[0]}
		to := models.Bucket{Level: models.ParseLevel(transferToLevel), Program: args[1]}

		result, err := svc.TransferCapacity(cmd.Context(), from, to, transferAmount)
		if err != nil {
			return err
		}
		successColor.Printf("moved %d seats: %s now %d, %s now %d\n",
			result.Amount, result.From, result.FromCapacity, result.To, result.ToCapacity)
		return nil
	},
}

var exportFormat string

var exportCmd = &cobra.Command{
	Use:   "export <decisions|quotas>",
	Short: "Render the published session documents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closer, err := openService()
		if err != nil {
			return err
		}
		defer closer()
		ctx := cmd.Context()

		switch args[0] {
		case "decisions":
			candidates, err := svc.Candidates(ctx)
			if err != nil {
				return err
			}
			if exportFormat == "csv" {
				return export.DecisionListCSV(os.Stdout, candidates)
			}
			return export.DecisionListText(os.Stdout, candidates)
		case "quotas":
			statuses, err := svc.QuotaStatuses(ctx)
			if err != nil {
				return err
			}
			if exportFormat == "csv" {
				return export.QuotaSheetCSV(os.Stdout, statuses)
			}
			return export.QuotaSheetText(os.Stdout, statuses)
		default:
			return fmt.Errorf("unknown document %q (want decisions or quotas)", args[0])
		}
	},
}

var resetForce bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete all candidates and quotas",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !resetForce {
			return fmt.Errorf("refusing to wipe the session without --force")
		}
		svc, closer, err := openService()
		if err != nil {
			return err
		}
		defer closer()

		if err := svc.Reset(cmd.Context()); err != nil {
			return err
		}
		successColor.Println("session cleared")
		return nil
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchField, "field", "number", "search field: number, external_id or name")

	quotasCmd.AddCommand(quotasLoadCmd)
	quotasCmd.AddCommand(quotasTransferCmd)
	quotasTransferCmd.Flags().StringVar(&transferFromLevel, "from-level", "Undergraduate", "source bucket level")
	quotasTransferCmd.Flags().StringVar(&transferToLevel, "to-level", "Undergraduate", "destination bucket level")
	quotasTransferCmd.Flags().IntVar(&transferAmount, "amount", 1, "seats to move")

	exportCmd.Flags().StringVar(&exportFormat, "format", "text", "output format: text or csv")

	resetCmd.Flags().BoolVar(&resetForce, "force", false, "confirm wiping the session")
}

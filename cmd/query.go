package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/flourish-retail/gapcore/internal/export"
	"github.com/flourish-retail/gapcore/internal/format"
	"github.com/flourish-retail/gapcore/internal/insight"
)

// outputOpts controls how a query result is printed. JSON is the default;
// --say prints the single-line spoken rendering instead.
type outputOpts struct {
	Say      bool
	Detailed bool
}

func (o outputOpts) level() format.DetailLevel {
	if o.Detailed {
		return format.DetailDetailed
	}
	return format.DetailHigh
}

func addOutputFlags(cmd *cobra.Command, o *outputOpts) {
	cmd.Flags().BoolVar(&o.Say, "say", false, "print the spoken response instead of JSON")
	cmd.Flags().BoolVar(&o.Detailed, "detailed", false, "include details in the spoken response")
}

func printResult(w io.Writer, o outputOpts, data any, resp format.Response) error {
	if o.Say {
		_, err := fmt.Fprintln(w, resp.Text())
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(data), "encode result")
}

// withService opens the environment for a read-only query.
func withService(cmd *cobra.Command, fn func(ctx context.Context, svc *insight.Service) error) error {
	ctx := cmd.Context()
	env, err := initEnv(ctx, "query")
	if err != nil {
		return err
	}
	defer env.Close()
	return fn(ctx, env.Service)
}

// --- resolve ---

type resolveOpts struct {
	outputOpts
	City  string
	Limit int
}

var resolveFlags resolveOpts

var resolveCmd = &cobra.Command{
	Use:   "resolve <name>",
	Short: "Rank stored locations against a spoken name",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, svc *insight.Service) error {
			return runResolve(ctx, svc, cmd.OutOrStdout(), strings.Join(args, " "), resolveFlags)
		})
	},
}

func runResolve(ctx context.Context, svc *insight.Service, w io.Writer, name string, o resolveOpts) error {
	matches, err := svc.ResolveLocationName(ctx, name, o.City, o.Limit)
	if err != nil {
		return err
	}
	return printResult(w, o.outputOpts, matches, format.Matches(name, matches, o.level()))
}

// --- gaps ---

type gapsOpts struct {
	outputOpts
	Competitors []string
	City        string
	ByID        bool
	Brands      bool
}

var gapsFlags gapsOpts

var gapsCmd = &cobra.Command{
	Use:   "gaps <target>",
	Short: "Compare a location's tenant mix with its competitors",
	Long: `Compare a location's tenant mix with its competitors.

Without --competitor the target's nearby shopping centres and retail parks
are used as the competitor set.

Examples:
  gapcore gaps "trafford centre" --competitor "manchester arndale" --say
  gapcore gaps trafford --by-id --competitor arndale --detailed`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, svc *insight.Service) error {
			return runGaps(ctx, svc, cmd.OutOrStdout(), strings.Join(args, " "), gapsFlags)
		})
	},
}

func runGaps(ctx context.Context, svc *insight.Service, w io.Writer, target string, o gapsOpts) error {
	if o.ByID {
		if len(o.Competitors) == 0 {
			return eris.New("gaps: --by-id needs at least one --competitor")
		}
		res, err := svc.AnalyzeGaps(ctx, target, o.Competitors, o.Brands)
		if err != nil {
			return err
		}
		return printResult(w, o.outputOpts, res, format.GapAnalysis(res, o.level()))
	}
	res, err := svc.AnalyzeGapsByName(ctx, target, o.Competitors, o.City, o.Brands)
	if err != nil {
		return err
	}
	return printResult(w, o.outputOpts, res, format.GapAnalysis(res, o.level()))
}

// --- score ---

type locationOpts struct {
	outputOpts
	City string
	ByID bool
}

var scoreFlags locationOpts

var scoreCmd = &cobra.Command{
	Use:   "score <location>",
	Short: "Score a location's data completeness",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, svc *insight.Service) error {
			return runScore(ctx, svc, cmd.OutOrStdout(), strings.Join(args, " "), scoreFlags)
		})
	},
}

// locationID resolves name unless it is already an id.
func locationID(ctx context.Context, svc *insight.Service, name string, o locationOpts) (string, error) {
	if o.ByID {
		return name, nil
	}
	m, err := svc.ResolveOne(ctx, name, o.City)
	if err != nil {
		return "", err
	}
	return m.LocationID, nil
}

func runScore(ctx context.Context, svc *insight.Service, w io.Writer, name string, o locationOpts) error {
	id, err := locationID(ctx, svc, name, o)
	if err != nil {
		return err
	}
	res, err := svc.ScoreLocation(ctx, id)
	if err != nil {
		return err
	}
	return printResult(w, o.outputOpts, res, format.Completeness(res.Location.Name, res.Result, o.level()))
}

// --- nearby ---

type nearbyOpts struct {
	locationOpts
	RadiusKm  float64
	MinStores int
}

var nearbyFlags nearbyOpts

var nearbyCmd = &cobra.Command{
	Use:   "nearby <location>",
	Short: "List shopping centres and retail parks near a location",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, svc *insight.Service) error {
			return runNearby(ctx, svc, cmd.OutOrStdout(), strings.Join(args, " "), nearbyFlags)
		})
	},
}

func runNearby(ctx context.Context, svc *insight.Service, w io.Writer, name string, o nearbyOpts) error {
	id, err := locationID(ctx, svc, name, o.locationOpts)
	if err != nil {
		return err
	}
	res, err := svc.FindNearbyCompetitors(ctx, id, o.RadiusKm, o.MinStores)
	if err != nil {
		return err
	}
	return printResult(w, o.outputOpts, res, format.Nearby(res.Origin.Name, res.Competitors, o.level()))
}

// --- priorities ---

type prioritiesOpts struct {
	Limit int
	XLSX  string
}

var prioritiesFlags prioritiesOpts

var prioritiesCmd = &cobra.Command{
	Use:   "priorities",
	Short: "List the locations most in need of data enrichment",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, svc *insight.Service) error {
			return runPriorities(ctx, svc, cmd.OutOrStdout(), prioritiesFlags)
		})
	},
}

func runPriorities(ctx context.Context, svc *insight.Service, w io.Writer, o prioritiesOpts) error {
	targets, err := svc.PrioritizeEnrichment(ctx, o.Limit)
	if err != nil {
		return err
	}
	if o.XLSX != "" {
		return writeFile(o.XLSX, func(f io.Writer) error {
			return export.WritePrioritiesXLSX(f, targets)
		})
	}
	return printResult(w, outputOpts{}, targets, format.Response{})
}

// --- audit ---

var auditXLSX string

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Report field coverage across all locations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, svc *insight.Service) error {
			return runAudit(ctx, svc, cmd.OutOrStdout(), auditXLSX)
		})
	},
}

func runAudit(ctx context.Context, svc *insight.Service, w io.Writer, xlsxPath string) error {
	report, err := svc.AuditFields(ctx)
	if err != nil {
		return err
	}
	if xlsxPath != "" {
		return writeFile(xlsxPath, func(f io.Writer) error {
			return export.WriteAuditXLSX(f, report)
		})
	}
	return printResult(w, outputOpts{}, report, format.Response{})
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}
	if err := fn(f); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return eris.Wrapf(f.Close(), "close %s", path)
}

func init() {
	resolveCmd.Flags().StringVar(&resolveFlags.City, "city", "", "city or county hint")
	resolveCmd.Flags().IntVar(&resolveFlags.Limit, "limit", 0, "maximum matches (default from config)")
	addOutputFlags(resolveCmd, &resolveFlags.outputOpts)

	gapsCmd.Flags().StringArrayVar(&gapsFlags.Competitors, "competitor", nil, "competitor name or id (repeatable)")
	gapsCmd.Flags().StringVar(&gapsFlags.City, "city", "", "city or county hint for the target")
	gapsCmd.Flags().BoolVar(&gapsFlags.ByID, "by-id", false, "treat the target and competitors as location ids")
	gapsCmd.Flags().BoolVar(&gapsFlags.Brands, "brands", true, "list brands missing from the target")
	addOutputFlags(gapsCmd, &gapsFlags.outputOpts)

	scoreCmd.Flags().StringVar(&scoreFlags.City, "city", "", "city or county hint")
	scoreCmd.Flags().BoolVar(&scoreFlags.ByID, "by-id", false, "treat the argument as a location id")
	addOutputFlags(scoreCmd, &scoreFlags.outputOpts)

	nearbyCmd.Flags().StringVar(&nearbyFlags.City, "city", "", "city or county hint")
	nearbyCmd.Flags().BoolVar(&nearbyFlags.ByID, "by-id", false, "treat the argument as a location id")
	nearbyCmd.Flags().Float64Var(&nearbyFlags.RadiusKm, "radius", 0, "search radius in km (default from config)")
	nearbyCmd.Flags().IntVar(&nearbyFlags.MinStores, "min-stores", 0, "minimum reported store count")
	addOutputFlags(nearbyCmd, &nearbyFlags.outputOpts)

	prioritiesCmd.Flags().IntVar(&prioritiesFlags.Limit, "limit", 0, "maximum locations (0 = all)")
	prioritiesCmd.Flags().StringVar(&prioritiesFlags.XLSX, "xlsx", "", "write a spreadsheet to this path instead of JSON")

	auditCmd.Flags().StringVar(&auditXLSX, "xlsx", "", "write a spreadsheet to this path instead of JSON")

	rootCmd.AddCommand(resolveCmd, gapsCmd, scoreCmd, nearbyCmd, prioritiesCmd, auditCmd)
}

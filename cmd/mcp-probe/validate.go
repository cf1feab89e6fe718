package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/conikeec/mcp-probe/internal/protocol"
	"github.com/conikeec/mcp-probe/internal/validate"
)

var (
	validateTotalTimeout time.Duration
	validateTestTimeout  time.Duration
	validateFailFast     bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Run the conformance suite against a profile's server",
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().DurationVar(&validateTotalTimeout, "timeout", 60*time.Second, "Bound on the whole run (0 = unbounded)")
	validateCmd.Flags().DurationVar(&validateTestTimeout, "test-timeout", 10*time.Second, "Per-check budget")
	validateCmd.Flags().BoolVar(&validateFailFast, "fail-fast", false, "Stop after the first critical failure")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	p, err := resolveProfile(profileID)
	if err != nil {
		return err
	}
	t, err := buildTransport(p)
	if err != nil {
		return err
	}

	suite := &validate.Suite{
		Transport:  t,
		ClientInfo: protocol.Implementation{Name: "mcp-probe", Version: version},
		Options: validate.Options{
			TotalTimeout: validateTotalTimeout,
			TestTimeout:  validateTestTimeout,
			FailFast:     validateFailFast,
		},
	}

	report, err := suite.Run(cmd.Context())
	if err != nil {
		return err
	}

	if report.ServerName != "" {
		fmt.Println(styleHeading.Render(fmt.Sprintf("Conformance report: %s", report.ServerName)))
	} else {
		fmt.Println(styleHeading.Render("Conformance report"))
	}
	for _, r := range report.Results {
		fmt.Printf("  [%s] %-14s %-24s %s\n", statusGlyph(r.Status), r.Category, r.TestName, r.Message)
	}
	fmt.Printf("\n%.1f%% compliant (%d checks)\n", report.CompliancePercentage, len(report.Results))
	return nil
}

func statusGlyph(s validate.Status) string {
	switch s {
	case validate.StatusPass:
		return styleOK.Render("PASS")
	case validate.StatusInfo:
		return styleDim.Render("INFO")
	case validate.StatusWarning:
		return styleWarn.Render("WARN")
	case validate.StatusSkipped:
		return styleDim.Render("SKIP")
	default:
		return styleErr.Render(string(s))
	}
}

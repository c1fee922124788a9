package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wojtekgalaj/projen/pkg/config"
	"github.com/wojtekgalaj/projen/pkg/emit"
	"github.com/wojtekgalaj/projen/pkg/logger"
	"github.com/wojtekgalaj/projen/pkg/tasks"
	"github.com/wojtekgalaj/projen/pkg/validation"
)

func newGenerateCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate release workflows and the task graph",
		Long: `Load the release configuration, synthesize one workflow per release
branch plus the local task graph, and write everything below the project root.
A configuration error produces no files at all.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(dryRun)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "synthesize but do not write any files")

	return cmd
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the release configuration",
		Long:  `Check the configuration for errors and warnings without generating anything.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate()
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("projen v%s\n", version)
		},
	}
}

func runGenerate(dryRun bool) error {
	log := logger.CreateLogger(verbosity)

	manager := config.NewManager()
	cfg, err := manager.LoadConfig(getConfigPath())
	if err != nil {
		return err
	}

	rel, err := manager.Build(cfg, log)
	if err != nil {
		return err
	}

	syn, err := rel.Synthesize()
	if err != nil {
		return err
	}

	emitter := emit.New(projectRoot, log)
	for _, wf := range syn.Workflows {
		data, err := wf.Encode()
		if err != nil {
			return err
		}
		if err := emitter.Stage(wf.FileName(), data); err != nil {
			return err
		}
	}

	taskData, err := syn.Tasks.Encode()
	if err != nil {
		return err
	}
	if err := emitter.Stage(tasks.GraphFileName, taskData); err != nil {
		return err
	}

	if dryRun {
		for _, f := range emitter.Staged() {
			printInfo("would write " + f.Path)
		}
		return nil
	}

	manifest, err := emitter.Write()
	if err != nil {
		return err
	}

	if len(syn.Workflows) == 0 {
		printInfo("release trigger is manual, no workflows generated")
	}
	printSuccess(fmt.Sprintf("generated %d files (run %s)", len(manifest.Files), manifest.RunID))
	return nil
}

func runValidate() error {
	manager := config.NewManager()
	cfg, err := manager.LoadConfig(getConfigPath())
	if err != nil {
		return err
	}

	result := validation.NewReleaseValidator().Validate(cfg)
	for _, e := range result.Errors {
		switch e.Level {
		case validation.ValidationLevelWarning:
			printWarning(e.Error())
		default:
			printError(e.Error())
		}
	}

	if !result.Valid {
		return fmt.Errorf("configuration is invalid")
	}

	printSuccess("configuration is valid")
	return nil
}

// Command bud is the thin CLI front door for the ISOD build engine: it
// wires kong's subcommands onto isod.RunBuild and leaves every actual
// engine decision to pkg/isod, pkg/taskgraph, and pkg/globtask.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"
	goerrors "github.com/go-errors/errors"

	"bud/pkg/buildconfig"
	"bud/pkg/globtask"
	"bud/pkg/isod"
	"bud/pkg/shelltask"
)

// CLI mirrors the teacher's top-level command structure: a global
// parallelism flag shared by every subcommand, plus one subcommand per
// verb.
type CLI struct {
	Version  bool     `short:"v" help:"Show version information"`
	Parallel int      `short:"j" help:"Number of parallel workers for task execution" default:"0"`
	Plan     PlanCmd  `cmd:"" help:"Print the tasks a build would run, without running them"`
	Build    BuildCmd `cmd:"" help:"Execute the configured build tasks"`
}

// PlanCmd prints the declared task graph without touching the
// filesystem's output side.
type PlanCmd struct {
	Directory string `arg:"" optional:"" help:"Directory to plan (defaults to current directory)"`
}

// BuildCmd executes the configured build tasks.
type BuildCmd struct {
	Directory string `arg:"" optional:"" help:"Directory to build (defaults to current directory)"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli)

	var err error
	switch ctx.Command() {
	case "plan <directory>", "plan":
		err = runPlan(cli.Plan.Directory)
	case "build <directory>", "build":
		err = runBuild(cli.Build.Directory, cli.Parallel)
	default:
		if cli.Version {
			fmt.Println("bud version 1.0.0")
			return
		}
		fmt.Println("Hello, World!")
		return
	}

	if err != nil {
		reportError(err)
		os.Exit(1)
	}
}

// reportError prints the error's stable message plus a captured stack
// trace, the only place in this repo that wraps errors with go-errors:
// every other layer returns *isod.BuildError directly so its literal
// message text stays intact.
func reportError(err error) {
	wrapped := goerrors.Wrap(err, 1)
	fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
	fmt.Fprintln(os.Stderr, wrapped.ErrorStack())
}

func loadTasks(absDir string) ([]isod.BuildTask, error) {
	cfg, err := buildconfig.Load(absDir)
	if err != nil {
		return nil, err
	}

	tasks := make([]isod.BuildTask, 0, len(cfg.Tasks))
	for _, spec := range cfg.Tasks {
		command := shelltask.Command(spec.Command, spec.Args...)
		tasks = append(tasks, globtask.Build(command, spec.SourceDir, spec.SourceExt, spec.OutputDir, spec.OutputExt))
	}
	return tasks, nil
}

func runPlan(directory string) error {
	absDir, err := resolveDir(directory)
	if err != nil {
		return err
	}

	tasks, err := loadTasks(absDir)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Println("No tasks configured. Add a .bud.json with a \"tasks\" list.")
		return nil
	}

	fmt.Printf("Planning directory: %s\n", absDir)
	for _, task := range tasks {
		fmt.Printf("  - %s\n", color.YellowString(task.Name()))
	}
	return nil
}

func runBuild(directory string, parallel int) error {
	absDir, err := resolveDir(directory)
	if err != nil {
		return err
	}

	tasks, err := loadTasks(absDir)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Println("No tasks configured. Add a .bud.json with a \"tasks\" list.")
		return nil
	}

	if parallel > 0 {
		os.Setenv("BUD_PARALLELISM", strconv.Itoa(parallel))
	}
	return isod.RunBuild(tasks, os.Stdout, absDir)
}

func resolveDir(directory string) (string, error) {
	if directory == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("determining working directory: %w", err)
		}
		directory = wd
	}
	return filepath.Abs(directory)
}

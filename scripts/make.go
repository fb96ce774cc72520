package main

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"
)

const LebMainPackagePath = "github.com/varbit/leb128/cmd/leb"

var Verbose bool
var TestRegex string

func NewMakeCommands() *cobra.Command {
	RootCommand := &cobra.Command{
		Use:   "make.go",
		Short: "make script for leb.",
	}

	RootCommand.AddCommand(&cobra.Command{
		Use:   "build",
		Short: "Build leb",
		Run: func(cmd *cobra.Command, args []string) {
			execute("go", "build", buildFlags(), LebMainPackagePath)
		},
	})

	RootCommand.AddCommand(&cobra.Command{
		Use:   "install",
		Short: "Installs leb",
		Run: func(cmd *cobra.Command, args []string) {
			execute("go", "install", buildFlags(), LebMainPackagePath)
		},
	})

	RootCommand.AddCommand(&cobra.Command{
		Use:   "uninstall",
		Short: "Uninstalls leb",
		Run: func(cmd *cobra.Command, args []string) {
			execute("go", "clean", "-i", LebMainPackagePath)
		},
	})

	test := &cobra.Command{
		Use:   "test",
		Short: "Tests leb",
		Run:   testCmd,
	}
	test.PersistentFlags().BoolVarP(&Verbose, "verbose", "v", false, "Verbose tests")
	test.PersistentFlags().StringVarP(&TestRegex, "test-run", "r", "", "Only runs the tests matching the specified regex.")
	RootCommand.AddCommand(test)

	RootCommand.AddCommand(&cobra.Command{
		Use:   "usage-docs",
		Short: "Regenerates the command line usage documentation",
		Run: func(cmd *cobra.Command, args []string) {
			execute("go", "run", "scripts/gen-usage-docs.go")
		},
	})

	return RootCommand
}

func main() {
	NewMakeCommands().Execute()
}

func testCmd(cmd *cobra.Command, args []string) {
	executeq("go", "test", testFlags(), "./...")
}

func testFlags() []string {
	testFlags := []string{"-count", "1"}
	if Verbose {
		testFlags = append(testFlags, "-v")
	}
	if TestRegex != "" {
		testFlags = append(testFlags, "-run", TestRegex)
	}
	return testFlags
}

func strflatten(v []interface{}) []string {
	r := []string{}
	for _, s := range v {
		switch s := s.(type) {
		case []string:
			r = append(r, s...)
		case string:
			if s != "" {
				r = append(r, s)
			}
		}
	}
	return r
}

func executeq(cmd string, args ...interface{}) {
	x := exec.Command(cmd, strflatten(args)...)
	x.Stdout = os.Stdout
	x.Stderr = os.Stderr
	x.Env = os.Environ()
	err := x.Run()
	if x.ProcessState != nil && !x.ProcessState.Success() {
		os.Exit(1)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func execute(cmd string, args ...interface{}) {
	fmt.Printf("%s %s\n", cmd, strings.Join(quotemaybe(strflatten(args)), " "))
	executeq(cmd, args...)
}

func quotemaybe(args []string) []string {
	for i := range args {
		if strings.Index(args[i], " ") >= 0 {
			args[i] = fmt.Sprintf("%q", args[i])
		}
	}
	return args
}

func buildFlags() []string {
	buildSHA, err := exec.Command("git", "rev-parse", "HEAD").CombinedOutput()
	if err != nil {
		log.Fatal(err)
	}
	return []string{fmt.Sprintf("-ldflags=-X main.Build=%s", strings.TrimSpace(string(buildSHA)))}
}

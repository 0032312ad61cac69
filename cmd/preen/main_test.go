package main

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/rogpeppe/go-internal/testscript"

	"github.com/avolkau/preen/cmd/preen/cmd"
)

func TestMain(m *testing.M) {
	testscript.Main(m, map[string]func(){
		"preen": func() {
			if err := cmd.Execute(); err != nil {
				if !cmd.IsSilent(err) {
					fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				}
				os.Exit(cmd.ExitCode(err))
			}
		},
	})
}

func TestScript(t *testing.T) {
	testscript.Run(t, testscript.Params{
		Dir:                 filepath.Join("testdata", "script"),
		RequireExplicitExec: true,
	})
}

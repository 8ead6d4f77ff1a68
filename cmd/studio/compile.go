package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/brand-studio/internal/brief"
	"github.com/fpang/brand-studio/internal/logging"
	"github.com/fpang/brand-studio/internal/prompt"
	"github.com/fpang/brand-studio/internal/refassets"
)

var (
	personaNameFlag string
	personaDescFlag string
	themeNameFlag   string
	themeDescFlag   string
	refCapFlag      int
)

var compileCmd = &cobra.Command{
	Use:   "compile [brief.json|-]",
	Short: "Print the prompt a brief compiles to",
	Long: `Compile validates a creative brief and prints the exact prompt that would be
sent to the image model. No credits are used and no network calls are made.

Persona and theme context normally come from the store; pass them with flags
to preview a brief that references them.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runCompile,
}

func init() {
	compileCmd.Flags().StringVar(&personaNameFlag, "persona-name", "", "Persona name to include")
	compileCmd.Flags().StringVar(&personaDescFlag, "persona-description", "", "Persona description to include")
	compileCmd.Flags().StringVar(&themeNameFlag, "theme-name", "", "Theme name to include")
	compileCmd.Flags().StringVar(&themeDescFlag, "theme-description", "", "Theme description to include")
	compileCmd.Flags().IntVar(&refCapFlag, "reference-cap", refassets.DefaultCap, "Maximum reference images admitted")
	rootCmd.AddCommand(compileCmd)
}

func runCompile(cmd *cobra.Command, args []string) {
	logging.Init(logLevelFlag, "console")

	var r io.Reader = os.Stdin
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			log.Fatal().Err(err).Str("path", args[0]).Msg("Failed to open brief")
		}
		defer f.Close()
		r = f
	}

	var b brief.CreativeBrief
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&b); err != nil {
		log.Fatal().Err(err).Msg("Failed to parse brief JSON")
	}

	out, err := compileBrief(b)
	if err != nil {
		log.Fatal().Err(err).Msg("Brief is invalid")
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
}

func compileBrief(b brief.CreativeBrief) (string, error) {
	nb, err := brief.Validate(b)
	if err != nil {
		return "", err
	}
	if personaNameFlag != "" {
		nb.Persona = &brief.EntityContext{Name: personaNameFlag, Description: personaDescFlag}
	}
	if themeNameFlag != "" {
		nb.Theme = &brief.EntityContext{Name: themeNameFlag, Description: themeDescFlag}
	}
	admitted := refassets.Admit(nb.ReferenceAssets, refCapFlag)
	return prompt.Compile(nb, admitted.Counts()), nil
}

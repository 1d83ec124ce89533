package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bjaus/apimda/gen"
	"github.com/bjaus/apimda/openapi"
	"github.com/bjaus/apimda/validation"
)

func newOpenAPICmd(g *globals) *cobra.Command {
	var (
		out    string
		format string
	)

	cmd := &cobra.Command{
		Use:   "openapi [packages...]",
		Short: "Write the OpenAPI document",
		Long: `Scan the packages, validate their controllers and write the OpenAPI 3.1
document. Packages default to those listed in the configuration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.config()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("format") {
				cfg.OpenAPI.Format = format
			}
			if err := cfg.OpenAPI.Validate(); err != nil {
				return fmt.Errorf("invalid openapi options: %w", err)
			}

			app, err := g.extractValid(cmd.Context(), cfg, args)
			if err != nil {
				return err
			}
			opts, err := cfg.OpenAPI.Options()
			if err != nil {
				return err
			}
			doc, err := openapi.Generate(app, opts)
			if err != nil {
				return err
			}

			w, done, err := output(cmd, out)
			if err != nil {
				return err
			}
			if cfg.OpenAPI.Format == "yaml" {
				err = openapi.WriteYAML(w, doc)
			} else {
				err = openapi.WriteJSON(w, doc)
			}
			if err != nil {
				return err
			}
			return done()
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default stdout)")
	cmd.Flags().StringVar(&format, "format", "json", "Output format (json, yaml); overrides the configuration")
	return cmd
}

func newValidateCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [packages...]",
		Short: "Check controller declarations",
		Long:  `Scan the packages and report every declaration the runtime cannot serve.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.config()
			if err != nil {
				return err
			}
			app, err := g.extract(cmd.Context(), cfg, args)
			if err != nil {
				return err
			}

			res := validation.Validate(app)
			for _, v := range res.Violations {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", v.Code, v.Message)
			}
			if !res.Valid() {
				return fmt.Errorf("%d violations found: %w", len(res.Violations), validation.ErrInvalid)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d controllers, %d routes: ok\n", len(app.Controllers), len(app.Routes()))
			return nil
		},
	}
}

func newManifestCmd(g *globals) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "manifest [packages...]",
		Short: "Write the runtime manifest",
		Long:  `Scan and validate the packages and write the JSON manifest the runtime serves.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.config()
			if err != nil {
				return err
			}
			app, err := g.extractValid(cmd.Context(), cfg, args)
			if err != nil {
				return err
			}

			w, done, err := output(cmd, out)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			if err := enc.Encode(app.Runtime()); err != nil {
				return err
			}
			return done()
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default stdout)")
	return cmd
}

func newGenerateCmd(g *globals) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "generate [packages...]",
		Short: "Generate serving glue next to each controller package",
		Long: `Scan and validate the packages, then write ` + gen.GoFile + ` and ` + gen.ManifestFile + `
into every package that declares controllers.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.config()
			if err != nil {
				return err
			}
			app, err := g.extractValid(cmd.Context(), cfg, args)
			if err != nil {
				return err
			}

			planned, err := gen.Write(app, gen.Options{DryRun: dryRun, Logger: g.log})
			if err != nil {
				return err
			}
			for _, p := range planned {
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%d bytes)\n", p.Path, p.Size)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List the files without writing them")
	return cmd
}

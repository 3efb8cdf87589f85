package main

import (
	"fmt"

	"github.com/hbomb79/Reel/internal"
	"github.com/spf13/cobra"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	var match bool

	cmd := &cobra.Command{
		Use:   "import <path>...",
		Short: "Import video files as new scenes",
		Long: `Import each of the video files provided as a new scene.

With --match, the actors, labels, movies and studio of each scene are
inferred from its path using the matching configuration.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := ctx.loadConfig()
			if err != nil {
				return err
			}

			reel := internal.New(*config)
			if err := reel.Connect(); err != nil {
				return err
			}
			defer reel.Close()

			failed := 0
			out := cmd.OutOrStdout()
			for _, result := range reel.Importer().ImportMany(cmd.Context(), args, match) {
				if result.Err != nil {
					failed++
					fmt.Fprintf(out, "FAILED   %s: %v\n", result.Path, result.Err)
					continue
				}

				sc := result.Scene
				studio := "-"
				if sc.Studio != nil {
					studio = sc.Studio.String()
				}
				fmt.Fprintf(out, "IMPORTED %s as %s (actors=%d labels=%d movies=%d studio=%s)\n",
					result.Path, sc.ID, len(sc.Actors), len(sc.Labels), len(sc.Movies), studio)
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d imports failed", failed, len(args))
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&match, "match", false, "Infer scene relationships from the file path")
	return cmd
}

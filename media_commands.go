package main

import (
	"fmt"

	"github.com/nijaru/mcp-video/validation"
	"github.com/spf13/cobra"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "process <url>",
		Short: "Download a video's audio and print its transcription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validation.ValidateURL(args[0]); err != nil {
				return err
			}
			service, err := ctx.service(cmd)
			if err != nil {
				return err
			}

			text, err := service.ProcessVideo(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
}

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "download <url>",
		Short: "Download a video and print the saved path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validation.ValidateURL(args[0]); err != nil {
				return err
			}
			service, err := ctx.service(cmd)
			if err != nil {
				return err
			}

			result, err := service.DownloadVideo(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !result.Found() {
				return fmt.Errorf("no video file produced for %s", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Artifact.Path)
			return nil
		},
	}
}

func newDownloadAudioCommand(ctx *commandContext) *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "download-audio <url>",
		Short: "Extract a video's audio track and print the saved path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validation.ValidateURL(args[0]); err != nil {
				return err
			}
			service, err := ctx.service(cmd)
			if err != nil {
				return err
			}

			result, err := service.DownloadAudio(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !result.Found() {
				return fmt.Errorf("no audio track for %s", args[0])
			}

			dir := outDir
			if dir == "" {
				dir = service.TempDir()
			}
			path, err := result.Artifact.Keep(dir)
			if err != nil {
				result.Artifact.Release()
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Directory to keep the audio file in (defaults to the temp directory)")
	return cmd
}

func newExtractTextCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "extract-text <path>",
		Short: "Transcribe a local audio file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := ctx.service(cmd)
			if err != nil {
				return err
			}

			text, err := service.Transcribe(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
}

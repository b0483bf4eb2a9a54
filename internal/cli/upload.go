package cli

import (
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/graphkit/graph"
	"github.com/custodia-labs/graphkit/upload"
)

var uploadConflict string

var uploadCmd = &cobra.Command{
	Use:   "upload <file> <drive-path>",
	Short: "Upload a file to OneDrive with a resumable session",
	Long: `Upload creates an upload session for the given drive path and streams
the file in 320 KiB-aligned chunks, printing progress per chunk.

Example:
  graphctl upload ./report.pdf /Documents/report.pdf`,
	Args: cobra.ExactArgs(2),
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().StringVar(&uploadConflict, "conflict", "fail", "conflict behavior: fail, replace, or rename")
	rootCmd.AddCommand(uploadCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	client, _, err := newClient()
	if err != nil {
		return err
	}

	src, total, err := upload.FromFile(args[0])
	if err != nil {
		return err
	}
	if closer, ok := src.(io.Closer); ok {
		defer closer.Close()
	}

	drivePath := strings.TrimPrefix(args[1], "/")
	if drivePath == "" {
		drivePath = path.Base(args[0])
	}
	rc := graph.NewResource("driveItem.createUploadSession",
		"/me/drive/root:/{id}:/createUploadSession").WithIDs(drivePath)

	props := map[string]any{
		"item": map[string]any{
			"@microsoft.graph.conflictBehavior": uploadConflict,
			"name":                              path.Base(drivePath),
		},
	}

	session, err := upload.Create(cmd.Context(), client, rc, props, src, total)
	if err != nil {
		return err
	}

	for res := range session.Channel(cmd.Context()) {
		if res.Err != nil {
			// Best-effort server-side cleanup before reporting.
			_ = session.Cancel(cmd.Context())
			return res.Err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "uploaded bytes %d-%d of %d\n", res.Chunk.Start, res.Chunk.End, total)
		if res.Chunk.Done {
			fmt.Fprintln(cmd.OutOrStdout(), "upload complete")
		}
	}
	return nil
}

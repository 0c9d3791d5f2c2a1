package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the conversation log as JSON",
		Run:   runExport,
	}

	cmd.Flags().StringP("session", "s", "", "Export only this session")

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	sessionID, _ := cmd.Flags().GetString("session")

	cfg, err := loadConfig()
	if err != nil {
		exitErr("load config", err)
	}
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open session store", err)
	}
	defer s.Close()

	turns, err := s.ExportAll(cmd.Context(), sessionID)
	if err != nil {
		exitErr("export", err)
	}
	b, _ := json.MarshalIndent(turns, "", "  ")
	fmt.Println(string(b))
}

package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List conversation sessions",
		Run:   runSessions,
	}

	rename := &cobra.Command{
		Use:   "rename [id] [name]",
		Short: "Set a display name on a session",
		Args:  cobra.ExactArgs(2),
		Run:   runSessionsRename,
	}
	clear := &cobra.Command{
		Use:   "clear [id]",
		Short: "Delete a session and its turns",
		Args:  cobra.ExactArgs(1),
		Run:   runSessionsClear,
	}

	cmd.AddCommand(rename, clear)
	RootCmd.AddCommand(cmd)
}

func runSessions(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		exitErr("load config", err)
	}
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open session store", err)
	}
	defer s.Close()

	sessions, err := s.Sessions(cmd.Context())
	if err != nil {
		exitErr("list sessions", err)
	}
	if len(sessions) == 0 {
		fmt.Println("[]")
		return
	}
	b, _ := json.MarshalIndent(sessions, "", "  ")
	fmt.Println(string(b))
}

func runSessionsRename(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		exitErr("load config", err)
	}
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open session store", err)
	}
	defer s.Close()

	if err := s.Rename(cmd.Context(), args[0], args[1]); err != nil {
		exitErr("rename session", err)
	}
	fmt.Printf("renamed %s\n", args[0])
}

func runSessionsClear(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		exitErr("load config", err)
	}
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open session store", err)
	}
	defer s.Close()

	if err := s.Clear(cmd.Context(), args[0]); err != nil {
		exitErr("clear session", err)
	}
	fmt.Printf("cleared %s\n", args[0])
}

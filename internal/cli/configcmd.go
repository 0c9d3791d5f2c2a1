package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"docrouter/internal/config"
)

func init() {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Run:   runConfigShow,
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Run:   runConfigInit,
	})
	RootCmd.AddCommand(cmd)
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		exitErr("load config", err)
	}
	b, _ := yaml.Marshal(cfg)
	fmt.Print(string(b))
}

func runConfigInit(cmd *cobra.Command, args []string) {
	path := configPath
	if path == "" {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, ".docrouter", "config.yaml")
	}
	if _, err := os.Stat(path); err == nil {
		exitErr("config init", fmt.Errorf("%s already exists", path))
	}
	if err := config.Save(path, config.Default()); err != nil {
		exitErr("write config", err)
	}
	fmt.Printf("wrote %s\n", path)
}

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nutetra/doser/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query a running controller for its status",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	addr := cfg.API.Address
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	req, err := http.NewRequest(http.MethodGet, "http://"+addr+"/api/dosing/status", nil)
	if err != nil {
		return err
	}
	if cfg.API.Token != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.API.Token)
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("query status: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("status request failed: %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var pretty any
	if err := json.NewDecoder(resp.Body).Decode(&pretty); err != nil {
		return fmt.Errorf("decode status: %w", err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(pretty)
}

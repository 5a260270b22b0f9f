package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"production-report/internal/config"
)

var printConfig bool // Print the effective configuration

// validateCmd represents the validate command.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "驗證設定檔",
	Long:  "載入並驗證設定檔，檢查格式、必填欄位、數值範圍與寄送方式的相依設定。",
	Run:   runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().BoolVar(&printConfig, "print", false, "輸出生效中的設定（密碼已遮蔽）")
}

// runValidate executes the validate command logic.
func runValidate(cmd *cobra.Command, args []string) {
	configPath := GetConfigFile()

	// Load and validate configuration (Load internally calls Validate)
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ 設定驗證失敗: %v\n", err)
		os.Exit(exitFatal)
	}

	fmt.Printf("✅ 設定檔驗證通過: %s\n", configPath)

	if printConfig {
		out, err := config.Dump(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ 輸出設定失敗: %v\n", err)
			os.Exit(exitFatal)
		}
		fmt.Println()
		fmt.Print(string(out))
	}
}

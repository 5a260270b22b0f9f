// Package cmd provides CLI commands for the production report.
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version information, set by main.
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Exit codes.
const (
	exitOK       = 0
	exitFatal    = 1
	exitDelivery = 3
)

// Global flags
var (
	cfgFile  string // Config file path
	logLevel string // Log level
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "report",
	Short: "生產狀態日報 - 每日開機狀態郵件",
	Long: `生產狀態日報會觸發活頁簿的重新計算，擷取 Dashboard 區塊與
停機設備清單，套用格式與醒目提示規則，並將組合好的 HTML 郵件寄出。

流程: 重新計算 → 等待 → 儲存 → 擷取圖表 → 讀取工作表 → 篩選 → 排版 → 寄送

主要功能:
  - 透過外部試算表引擎執行 refresh_dashboard 巨集
  - 將 Chart 工作表的指定範圍擷取為圖片
  - 產生 Dashboard、停機總數量、大噸數機台開機狀況三個表格
  - 以 SMTP 或 Microsoft Graph 寄出郵件`,
	Version: Version,
	// Run displays help when called without any subcommands
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(exitFatal)
	}
}

// init initializes the root command and its flags.
func init() {
	cobra.OnInitialize(loadDotEnv)

	// Global flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "設定檔路徑")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "日誌等級 (debug, info, warn, error)")

	// Customize version template
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

// loadDotEnv loads .env from the working directory; a missing file is fine.
func loadDotEnv() {
	if err := loadDotEnvFile(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "⚠️ 載入 .env 失敗: %v\n", err)
	}
}

// loadDotEnvFile overrides the environment from path. Only a missing file is ignored.
func loadDotEnvFile(path string) error {
	if err := godotenv.Overload(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// SetVersionInfo records build information injected into main.
func SetVersionInfo(version, buildTime, gitCommit string) {
	Version = version
	BuildTime = buildTime
	GitCommit = gitCommit
	rootCmd.Version = version
}

// GetConfigFile returns the config file path from command line flag.
func GetConfigFile() string {
	return cfgFile
}

// GetLogLevel returns the log level from command line flag.
func GetLogLevel() string {
	return logLevel
}

// GetVersionInfo returns formatted version information.
func GetVersionInfo() string {
	return Version + "\n" +
		"Build Time: " + BuildTime + "\n" +
		"Git Commit: " + GitCommit + "\n" +
		"Go Version: " + runtime.Version() + "\n" +
		"OS/Arch: " + runtime.GOOS + "/" + runtime.GOARCH
}

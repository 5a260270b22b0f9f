package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"production-report/internal/selector"
	"production-report/internal/service"
)

var runFlags pipelineFlags

// runCmd represents the run command.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "執行一次日報流程",
	Long: `執行完整的日報流程，包括：
1. 開啟活頁簿並執行重新計算巨集
2. 等待重新計算完成（以 recalc.settle_duration 為上限）
3. 儲存並關閉活頁簿
4. 將圖表範圍擷取為 PNG 圖片
5. 讀取 Dashboard 與 raw_data 工作表
6. 篩選停機設備與大噸數機台
7. 套用格式與顏色規則，組合 HTML 郵件
8. 寄出郵件

結束代碼: 0 成功，1 設定/資料/引擎錯誤，3 報表已產生但寄送失敗

示例:
  # 使用預設設定執行
  report run -c config.yaml

  # 活頁簿已由其他排程更新，僅讀取並寄送
  report run -c config.yaml --skip-recalc --skip-capture

  # 試跑：產生預覽檔案，不寄送郵件
  report run -c config.yaml --dry-run`,
	Run: runReport,
}

func init() {
	rootCmd.AddCommand(runCmd)
	addPipelineFlags(runCmd, &runFlags)
}

func addPipelineFlags(cmd *cobra.Command, flags *pipelineFlags) {
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "產生預覽檔案至 report.output_dir，不寄送郵件")
	cmd.Flags().BoolVar(&flags.skipRecalc, "skip-recalc", false, "略過重新計算")
	cmd.Flags().BoolVar(&flags.skipCapture, "skip-capture", false, "略過圖表擷取")
}

// runReport executes the report pipeline once.
func runReport(cmd *cobra.Command, args []string) {
	printBanner()

	cfg, logger := loadConfig()
	printPlan(cfg, runFlags)

	reporter, err := buildReporter(cfg, logger, runFlags)
	if err != nil {
		logger.Error().Err(err).Msg("failed to build pipeline")
		fmt.Fprintf(os.Stderr, "❌ 初始化失敗: %v\n", err)
		os.Exit(exitFatal)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := reporter.Run(ctx)
	if result != nil {
		fmt.Println("\n📊 日報完成！")
		printResult(result)
	}

	code := exitCode(err)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %s: %v\n", failureLabel(err), err)
	}
	if code != exitOK {
		stop()
		os.Exit(code)
	}
}

// exitCode maps a pipeline error to the process exit code.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, service.ErrDelivery):
		return exitDelivery
	default:
		return exitFatal
	}
}

// failureLabel names the failed stage for the operator.
func failureLabel(err error) string {
	switch {
	case errors.Is(err, service.ErrDelivery):
		return "郵件寄送失敗"
	case errors.Is(err, service.ErrOrchestration):
		return "試算表引擎作業失敗"
	case errors.Is(err, selector.ErrSchemaMismatch):
		return "工作表欄位不符"
	default:
		return "日報執行失敗"
	}
}

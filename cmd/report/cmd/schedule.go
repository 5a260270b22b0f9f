package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"production-report/internal/service"
)

var scheduleFlags pipelineFlags

// scheduleCmd represents the schedule command.
var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "每日定時執行日報",
	Long: `在 report.schedule_at 指定的時間（report.timezone 時區）每日執行一次日報，
直到收到中斷訊號為止。單次執行失敗只會記錄，不會中止排程；執行不會重疊。`,
	Run: runSchedule,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
	addPipelineFlags(scheduleCmd, &scheduleFlags)
}

// runSchedule runs the pipeline daily until interrupted.
func runSchedule(cmd *cobra.Command, args []string) {
	printBanner()

	cfg, logger := loadConfig()
	printPlan(cfg, scheduleFlags)

	reporter, err := buildReporter(cfg, logger, scheduleFlags)
	if err != nil {
		logger.Error().Err(err).Msg("failed to build pipeline")
		fmt.Fprintf(os.Stderr, "❌ 初始化失敗: %v\n", err)
		os.Exit(exitFatal)
	}

	job := func(ctx context.Context) error {
		result, err := reporter.Run(ctx)
		if result != nil {
			printResult(result)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ %s: %v\n", failureLabel(err), err)
		}
		return err
	}

	scheduler, err := service.NewScheduler(cfg.Report.ScheduleAt, cfg.Location(), job, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ 排程設定錯誤: %v\n", err)
		os.Exit(exitFatal)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("⏰ 每日 %s (%s) 執行，按 Ctrl+C 結束\n", cfg.Report.ScheduleAt, cfg.Location())
	scheduler.Start(ctx)
	fmt.Println("👋 排程已停止")
}

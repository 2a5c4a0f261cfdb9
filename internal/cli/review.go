package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"paper-review/internal/config"
	"paper-review/internal/db"
	"paper-review/internal/logging"
	"paper-review/internal/metrics"
	"paper-review/internal/service"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

const (
	formatJSON     = "json"
	formatMarkdown = "markdown"
)

type reviewOptions struct {
	format string
	title  string
	memory bool
}

// reviewCmd 同步评审单个文本文件并输出报告
func reviewCmd(configPath *string) *cobra.Command {
	opts := reviewOptions{}
	cmd := &cobra.Command{
		Use:   "review <file>",
		Short: "同步评审一篇论文（纯文本）",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.format != formatJSON && opts.format != formatMarkdown {
				return fmt.Errorf("不支持的输出格式: %s", opts.format)
			}
			return runReview(cmd.Context(), *configPath, args[0], opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&opts.format, "format", "f", formatMarkdown, "输出格式: json|markdown")
	cmd.Flags().StringVar(&opts.title, "title", "", "论文标题（默认取文件名）")
	cmd.Flags().BoolVar(&opts.memory, "memory", false, "使用内存 sqlite，不写入配置的数据库")
	return cmd
}

func runReview(ctx context.Context, configPath, file string, opts reviewOptions, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	raw, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("读取文件失败: %w", err)
	}

	var conn *gorm.DB
	if opts.memory {
		conn, err = db.OpenMemory()
	} else {
		conn, err = db.Open(cfg.Database)
	}
	if err != nil {
		return err
	}

	svc, err := service.NewServiceContext(ctx, cfg, conn, logger, metrics.Default())
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close(context.Background()) }()

	ingest, err := svc.PaperService.Ingest(ctx, opts.title, filepath.Base(file), string(raw))
	if err != nil {
		return err
	}
	paper, err := svc.PaperService.LoadPaper(ctx, ingest.Paper.ID)
	if err != nil {
		return err
	}

	result, err := svc.Runner.Run(ctx, paper)
	if err != nil {
		return err
	}

	if opts.format == formatJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	view, err := svc.ReviewStore.Latest(ctx, paper.ID)
	if err != nil {
		return err
	}
	_, err = io.WriteString(out, service.RenderReviewMarkdown(ingest.Paper.Title, view))
	return err
}

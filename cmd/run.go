package cmd

import (
	"context"
	stderrors "errors"
	"io"

	"llm-batch-call/config"
	"llm-batch-call/pkg/db"
	"llm-batch-call/pkg/logger"
	"llm-batch-call/pkg/prompt"
	"llm-batch-call/pkg/provider"
	"llm-batch-call/pkg/reader"
	"llm-batch-call/pkg/service"
	"llm-batch-call/pkg/signals"
	"llm-batch-call/pkg/sink"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type runOptions struct {
	configFilePath string
	fields         string
	startPos       int
	endPos         int
	provider       string
}

// request 校验位置参数并解析列选择
func (o *runOptions) request(inputPath, promptPath string) (service.Request, error) {
	if o.startPos < 1 {
		return service.Request{}, errors.Errorf("--start-pos 必须大于等于 1: %d", o.startPos)
	}
	if o.endPos < 0 {
		return service.Request{}, errors.Errorf("--end-pos 不能为负数: %d", o.endPos)
	}
	if o.endPos > 0 && o.endPos < o.startPos {
		return service.Request{}, errors.Errorf("--end-pos (%d) 不能小于 --start-pos (%d)", o.endPos, o.startPos)
	}
	sel, err := reader.ParseSelector(o.fields)
	if err != nil {
		return service.Request{}, err
	}
	spec, err := prompt.Load(promptPath)
	if err != nil {
		return service.Request{}, errors.Wrapf(err, "加载提示词文件失败: %s", promptPath)
	}
	return service.Request{
		InputPath: inputPath,
		Prompt:    spec,
		Selector:  sel,
		StartPos:  o.startPos,
		EndPos:    o.endPos,
	}, nil
}

func NewRunCommand() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run <input_path> <prompt_file>",
		Short: "批量调用大模型处理表格数据",
		Long:  "逐批读取 CSV / JSONL / XLSX 文件（或目录下的全部文件），并发调用大模型，结果按成功、原始响应、失败分别写出，支持中断后续跑",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.TryLoadFromDisk(opts.configFilePath)
			if err != nil {
				return errors.Wrap(err, "读取本地配置文件错误")
			}
			if errs := cfg.Validate(); len(errs) > 0 {
				return errors.Errorf("本地配置文件验证错误:%s", stderrors.Join(errs...))
			}

			lg, err := logger.New(cfg.Logging)
			if err != nil {
				return err
			}
			defer lg.Sync()
			undo := zap.ReplaceGlobals(lg.Zap())
			defer undo()
			log := lg.Sugar()

			req, err := opts.request(args[0], args[1])
			if err != nil {
				return err
			}

			providerCfg, err := cfg.Provider(opts.provider)
			if err != nil {
				return err
			}
			client, err := provider.New(providerCfg, cfg.Process, log)
			if err != nil {
				return errors.Wrap(err, "初始化 API 提供商失败")
			}

			mirrors, closers, err := openMirrors(cfg, log)
			defer func() {
				for _, c := range closers {
					if err := c.Close(); err != nil {
						log.Warnf("关闭镜像失败: %v", err)
					}
				}
			}()
			if err != nil {
				return err
			}

			ctx := signals.SetupSignalHandler()
			return execute(ctx, service.NewBatchService(cfg, client, lg, service.WithMirrors(mirrors...)), req, log)
		},
	}

	cmd.Flags().StringVarP(&opts.configFilePath, "config", "c", "./etc/config.yaml", "配置文件路径")
	cmd.Flags().StringVarP(&opts.fields, "fields", "f", "", "要使用的列，从 1 开始，如 1,2,3 或 1-5")
	cmd.Flags().IntVar(&opts.startPos, "start-pos", 1, "起始行号（从 1 开始，不含表头）")
	cmd.Flags().IntVar(&opts.endPos, "end-pos", 0, "结束行号（包含），0 表示处理到文件末尾")
	cmd.Flags().StringVarP(&opts.provider, "provider", "p", "", "API 提供商名称，默认使用 defaultProvider")
	return cmd
}

func execute(ctx context.Context, svc *service.BatchService, req service.Request, log *zap.SugaredLogger) error {
	summary, err := svc.Run(ctx, req)
	if err != nil {
		return err
	}
	if summary.Interrupted {
		log.Warnf("运行 %s 已中断，重新执行相同命令即可从检查点继续", summary.RunID)
	}
	if summary.FailedFiles > 0 {
		return errors.Errorf("%d 个文件处理失败", summary.FailedFiles)
	}
	return nil
}

// openMirrors 按配置打开可选的结果镜像，返回的 closers 需要调用方关闭
func openMirrors(cfg *config.GlobalConfig, log *zap.SugaredLogger) ([]sink.Mirror, []io.Closer, error) {
	var mirrors []sink.Mirror
	var closers []io.Closer
	if cfg.DuckDBConfig != nil && cfg.DuckDBConfig.DBPath != "" {
		m, err := db.OpenDuckDB(cfg.DuckDBConfig, log)
		if err != nil {
			return mirrors, closers, errors.Wrap(err, "DuckDB 连接错误")
		}
		mirrors = append(mirrors, m)
		closers = append(closers, m)
	}
	if cfg.MySQLConfig != nil && cfg.MySQLConfig.DSN != "" {
		m, err := db.OpenMySQL(cfg.MySQLConfig, log)
		if err != nil {
			return mirrors, closers, errors.Wrap(err, "MySQL 数据库连接错误")
		}
		mirrors = append(mirrors, m)
		closers = append(closers, m)
	}
	return mirrors, closers, nil
}

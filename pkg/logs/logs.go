package logs

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger 全局应用日志器（Init 前使用默认配置）
var Logger = newDefault()

// Options 日志初始化参数
type Options struct {
	Level  string // trace|debug|info|warning|error|fatal
	Format string // text|json
}

func newDefault() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetLevel(logrus.InfoLevel)
	return l
}

// Init 按配置重建全局日志器
func Init(opts Options) {
	l := logrus.New()
	l.SetOutput(os.Stdout)

	switch opts.Level {
	case "trace":
		l.SetLevel(logrus.TraceLevel)
	case "debug":
		l.SetLevel(logrus.DebugLevel)
	case "warning", "warn":
		l.SetLevel(logrus.WarnLevel)
	case "error":
		l.SetLevel(logrus.ErrorLevel)
	case "fatal":
		l.SetLevel(logrus.FatalLevel)
	default:
		l.SetLevel(logrus.InfoLevel)
	}

	if opts.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	}

	Logger = l
}

// Package logging 基于 zerolog 的日志构建
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

const permission = 0o664

// LogBuild 日志构建器
type LogBuild struct {
	writer  io.Writer
	path    string
	level   string
	console bool
	service string
}

// LogData 构建结果，LogFile 非空时需要 Close
type LogData struct {
	LogFile *os.File
	Logger  zerolog.Logger
}

// New 创建构建器，默认输出到 stdout
func New() *LogBuild {
	return &LogBuild{writer: os.Stdout, level: "info"}
}

// FromPath appends to a log file instead of the writer.
func (build *LogBuild) FromPath(path string) *LogBuild {
	build.path = path
	return build
}

// FromBuffer 输出到指定 writer
func (build *LogBuild) FromBuffer(w io.Writer) *LogBuild {
	build.writer = w
	return build
}

// WithLevel 日志级别（debug / info / warn / error），无法解析时使用 info
func (build *LogBuild) WithLevel(level string) *LogBuild {
	build.level = level
	return build
}

// Console 开发环境使用可读格式
func (build *LogBuild) Console(enabled bool) *LogBuild {
	build.console = enabled
	return build
}

// Service 在每条日志上附加 service 字段
func (build *LogBuild) Service(name string) *LogBuild {
	build.service = name
	return build
}

// Make 构建 logger
func (build *LogBuild) Make() (*LogData, error) {
	logData := new(LogData)
	writer := build.writer
	if build.path != "" {
		f, err := os.OpenFile(build.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, permission)
		if err != nil {
			return nil, err
		}
		logData.LogFile = f
		writer = zerolog.SyncWriter(f)
	} else if build.console {
		writer = zerolog.ConsoleWriter{Out: writer, TimeFormat: "15:04:05"}
	}

	ctx := zerolog.New(writer).Level(ParseLevel(build.level)).With().Timestamp()
	if build.service != "" {
		ctx = ctx.Str("service", build.service)
	}
	logData.Logger = ctx.Logger()
	return logData, nil
}

// Close 关闭日志文件
func (d *LogData) Close() error {
	if d.LogFile == nil {
		return nil
	}
	return d.LogFile.Close()
}

// ParseLevel 解析日志级别
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

package model

import (
	"path/filepath"
	"strings"
	"time"
)

const backupTimeLayout = "20060102_150405"

// OutputFileSet 由输入文件路径和输出目录确定
type OutputFileSet struct {
	Success    string // <stem>_output.<ext>
	Raw        string // <stem>_raw.json
	Failure    string // <stem>_error.<ext>
	Progress   string // <stem>_progress.json
	ProcessLog string // <stem>_process.log
	BackupDir  string // backup/<stem>_<时间戳>
}

// NewOutputFileSet 推导输出文件路径，outDir 为空时与输入文件同目录
func NewOutputFileSet(inputPath, outDir string, now time.Time) OutputFileSet {
	if outDir == "" {
		outDir = filepath.Dir(inputPath)
	}
	base := filepath.Base(inputPath)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return OutputFileSet{
		Success:    filepath.Join(outDir, stem+"_output"+ext),
		Raw:        filepath.Join(outDir, stem+"_raw.json"),
		Failure:    filepath.Join(outDir, stem+"_error"+ext),
		Progress:   filepath.Join(outDir, stem+"_progress.json"),
		ProcessLog: filepath.Join(outDir, stem+"_process.log"),
		BackupDir:  filepath.Join(outDir, "backup", stem+"_"+now.Format(backupTimeLayout)),
	}
}

// Appendable 返回备份时需要复制的文件
func (o OutputFileSet) Appendable() []string {
	return []string{o.Success, o.Raw, o.Failure, o.Progress}
}

package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCommandFlags(t *testing.T) {
	cmd := NewRunCommand()
	require.NoError(t, cmd.ParseFlags([]string{"-c", "my.yaml", "-f", "1-3", "--start-pos", "4", "--end-pos", "9", "-p", "bailian"}))

	for name, want := range map[string]string{
		"config":    "my.yaml",
		"fields":    "1-3",
		"start-pos": "4",
		"end-pos":   "9",
		"provider":  "bailian",
	} {
		assert.Equal(t, want, cmd.Flags().Lookup(name).Value.String(), name)
	}
	assert.Equal(t, "./etc/config.yaml", NewRunCommand().Flags().Lookup("config").DefValue)
}

func TestRunOptionsRequest(t *testing.T) {
	promptPath := filepath.Join(t.TempDir(), "prompt.txt")
	require.NoError(t, os.WriteFile(promptPath, []byte("[系统]\n助手\n[任务]\n分类\n[输出格式]\n{\"label\": \"string\"}\n"), 0644))

	opts := &runOptions{fields: "2,1", startPos: 3, endPos: 10}
	req, err := opts.request("in.csv", promptPath)
	require.NoError(t, err)
	assert.Equal(t, "in.csv", req.InputPath)
	assert.Equal(t, "助手", req.Prompt.System)
	assert.Equal(t, 3, req.StartPos)
	assert.Equal(t, 10, req.EndPos)
	assert.Equal(t, "1,2", req.Selector.String())

	bad := []*runOptions{
		{startPos: 0},
		{startPos: 1, endPos: -1},
		{startPos: 5, endPos: 2},
		{startPos: 1, fields: "x"},
	}
	for _, o := range bad {
		_, err := o.request("in.csv", promptPath)
		assert.Error(t, err)
	}

	_, err = (&runOptions{startPos: 1}).request("in.csv", filepath.Join(t.TempDir(), "none.txt"))
	assert.Error(t, err)
}

func TestRunRequiresTwoArgs(t *testing.T) {
	root := NewRootCommand()
	root.SetArgs([]string{"run", "only-one"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	assert.Error(t, root.Execute())
}

func TestRunFailsOnMissingConfig(t *testing.T) {
	root := NewRootCommand()
	root.SetArgs([]string{"run", "in.csv", "prompt.txt", "-c", filepath.Join(t.TempDir(), "none.yaml")})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "读取本地配置文件错误")
}

func TestVersionCommand(t *testing.T) {
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "v0.0.0-dev")
}

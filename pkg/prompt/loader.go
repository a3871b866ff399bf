package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"llm-batch-call/pkg/model"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var ErrMissingSection = errors.New("提示词缺少必要部分")

const (
	sectionSystem = "system"
	sectionTask   = "task"
	sectionOutput = "output"
)

// 中英文两套节标题，大小写不敏感
var headerPattern = regexp.MustCompile(`(?i)\[(系统|system|任务|task|输出格式|output format|output)\]`)

func sectionOf(label string) string {
	switch strings.ToLower(label) {
	case "系统", "system":
		return sectionSystem
	case "任务", "task":
		return sectionTask
	default:
		return sectionOutput
	}
}

// Load 读取提示词文件，.json / .yaml / .yml 按结构化格式解析，其余按分节文本解析
func Load(path string) (model.PromptSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.PromptSpec{}, errors.Wrapf(err, "读取提示词文件失败: %s", path)
	}
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json", ".yaml", ".yml":
		spec, err := parseStructured(data, ext == ".json")
		if err != nil {
			return model.PromptSpec{}, errors.Wrapf(err, "解析结构化提示词失败: %s", path)
		}
		return spec, nil
	default:
		spec, err := parseSectioned(string(data))
		if err != nil {
			return model.PromptSpec{}, errors.Wrapf(err, "解析分节提示词失败: %s", path)
		}
		return spec, nil
	}
}

// parseSectioned 每节内容持续到下一个可识别的节标题，同类节以第一次出现为准
func parseSectioned(content string) (model.PromptSpec, error) {
	locs := headerPattern.FindAllStringSubmatchIndex(content, -1)
	sections := make(map[string]string, 3)
	for i, loc := range locs {
		name := sectionOf(content[loc[2]:loc[3]])
		if _, seen := sections[name]; seen {
			continue
		}
		end := len(content)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		sections[name] = strings.TrimSpace(content[loc[1]:end])
	}

	var missing []string
	for _, name := range []string{sectionSystem, sectionTask, sectionOutput} {
		if _, ok := sections[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return model.PromptSpec{}, errors.Wrapf(ErrMissingSection, "缺少: %s", strings.Join(missing, ", "))
	}
	return model.PromptSpec{
		System:       sections[sectionSystem],
		Task:         sections[sectionTask],
		OutputSchema: sections[sectionOutput],
	}, nil
}

// parseStructured 解析含 system / task / output 的文档，
// output 为对象时按原键顺序格式化为缩进 JSON
func parseStructured(data []byte, isJSON bool) (model.PromptSpec, error) {
	doc, err := decodeDocument(data, isJSON)
	if err != nil {
		return model.PromptSpec{}, err
	}

	var missing []string
	for _, name := range []string{sectionSystem, sectionTask, sectionOutput} {
		if _, ok := doc.Get(name); !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return model.PromptSpec{}, errors.Wrapf(ErrMissingSection, "缺少: %s", strings.Join(missing, ", "))
	}

	systemValue, _ := doc.Get(sectionSystem)
	taskValue, _ := doc.Get(sectionTask)
	outputValue, _ := doc.Get(sectionOutput)
	system := model.Stringify(systemValue)
	task := model.Stringify(taskValue)
	output, err := indentJSON(outputValue)
	if err != nil {
		return model.PromptSpec{}, errors.Wrap(err, "格式化 output 失败")
	}

	if vars, ok := doc.Get("variables"); ok {
		if fields, ok := vars.(*model.Fields); ok {
			for _, key := range fields.Keys() {
				value, _ := fields.Get(key)
				placeholder := "{" + key + "}"
				v := model.Stringify(value)
				system = strings.ReplaceAll(system, placeholder, v)
				task = strings.ReplaceAll(task, placeholder, v)
			}
		}
	}

	if examples, ok := doc.Get("examples"); ok {
		if items, ok := examples.([]interface{}); ok && len(items) > 0 {
			var b strings.Builder
			b.WriteString("\n\n示例：\n")
			for i, item := range items {
				fmt.Fprintf(&b, "%d. %s\n", i+1, model.Stringify(item))
			}
			task += b.String()
		}
	}

	return model.PromptSpec{System: system, Task: task, OutputSchema: output}, nil
}

func decodeDocument(data []byte, isJSON bool) (*model.Fields, error) {
	if isJSON {
		doc := model.NewFields()
		if err := json.Unmarshal(data, doc); err != nil {
			return nil, err
		}
		return doc, nil
	}
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	v, err := nodeValue(&root)
	if err != nil {
		return nil, err
	}
	doc, ok := v.(*model.Fields)
	if !ok {
		return nil, errors.New("提示词文档必须是对象")
	}
	return doc, nil
}

// indentJSON 字符串原样返回，对象和数组输出为两空格缩进的 JSON
func indentJSON(v interface{}) (string, error) {
	switch v.(type) {
	case *model.Fields, []interface{}:
	default:
		return model.Stringify(v), nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// nodeValue 将 yaml.Node 转为保持键顺序的值
func nodeValue(n *yaml.Node) (interface{}, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return nodeValue(n.Content[0])
	case yaml.AliasNode:
		return nodeValue(n.Alias)
	case yaml.MappingNode:
		fields := model.NewFields()
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := nodeValue(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			fields.Set(n.Content[i].Value, v)
		}
		return fields, nil
	case yaml.SequenceNode:
		items := make([]interface{}, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := nodeValue(c)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		return items, nil
	default:
		var v interface{}
		if err := n.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	}
}

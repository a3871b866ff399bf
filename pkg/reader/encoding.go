package reader

import (
	"bytes"
	"os"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
)

var ErrUnreadableEncoding = errors.New("无法识别文件编码")

type textEncoding struct {
	name string
	enc  encoding.Encoding
}

// 按顺序尝试，第一个能完整解码的编码胜出
var candidateEncodings = []textEncoding{
	{name: "utf-8-sig", enc: unicode.UTF8BOM},
	{name: "gbk", enc: simplifiedchinese.GBK},
	{name: "gb18030", enc: simplifiedchinese.GB18030},
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func detectEncoding(data []byte) (textEncoding, error) {
	for _, c := range candidateEncodings {
		if decodes(c, data) {
			return c, nil
		}
	}
	return textEncoding{}, ErrUnreadableEncoding
}

func decodes(c textEncoding, data []byte) bool {
	if c.name == "utf-8-sig" {
		return utf8.Valid(bytes.TrimPrefix(data, utf8BOM))
	}
	out, err := c.enc.NewDecoder().Bytes(data)
	if err != nil {
		return false
	}
	// 非法字节序列会被替换为 U+FFFD
	return !bytes.ContainsRune(out, utf8.RuneError)
}

type cachedEncoding struct {
	size    int64
	modTime time.Time
	enc     textEncoding
}

// encodingFor 检测并缓存文件编码，文件变化后重新检测
func (r *Reader) encodingFor(path string) (textEncoding, error) {
	info, err := os.Stat(path)
	if err != nil {
		return textEncoding{}, errors.Wrapf(err, "读取文件信息失败: %s", path)
	}

	r.mu.Lock()
	c, ok := r.encodings[path]
	r.mu.Unlock()
	if ok && c.size == info.Size() && c.modTime.Equal(info.ModTime()) {
		return c.enc, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return textEncoding{}, errors.Wrapf(err, "读取文件失败: %s", path)
	}
	enc, err := detectEncoding(data)
	if err != nil {
		return textEncoding{}, errors.Wrapf(err, "%s", path)
	}
	r.log.Debugf("文件 %s 使用编码 %s", path, enc.name)

	r.mu.Lock()
	r.encodings[path] = cachedEncoding{size: info.Size(), modTime: info.ModTime(), enc: enc}
	r.mu.Unlock()
	return enc, nil
}

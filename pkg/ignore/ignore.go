package ignore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// FileName 是 store 根目录下用户自定义忽略规则的文件名
const FileName = ".fontignore"

// defaultRules 是强制生效的系统规则
// store 里只有 *.woff2 才算资产；隐藏文件 (包括 .tmp-* 临时文件) 一律跳过
var defaultRules = []string{
	"*",
	"!*.woff2",
	".*", // 放在 !*.woff2 之后：".tmp-x.woff2" 也要被忽略
}

// Matcher 封装了忽略逻辑
// 它负责判断 store 中的一个文件名是否应该被当作资产
type Matcher struct {
	ignorer *gitignore.GitIgnore
}

// NewMatcher 初始化忽略匹配器
// rootPath: store 根目录（用于查找 .fontignore 文件）
func NewMatcher(rootPath string) (*Matcher, error) {
	ignoreFilePath := filepath.Join(rootPath, FileName)

	if _, errStat := os.Stat(ignoreFilePath); errStat != nil {
		// 没有 .fontignore (或根目录还不存在)：仅使用默认规则
		return NewDefaultMatcher(), nil
	}

	data, err := os.ReadFile(ignoreFilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", FileName, err)
	}

	// 用户规则必须排在默认规则之后才能生效 (最后匹配的规则说了算)
	// 所以这里不用 CompileIgnoreFileAndLines，它会把文件内容放在前面
	return NewDefaultMatcher(strings.Split(string(data), "\n")...), nil
}

// NewDefaultMatcher 只使用系统规则 (对象存储等没有 .fontignore 的后端)
func NewDefaultMatcher(extra ...string) *Matcher {
	rules := append(append([]string{}, defaultRules...), extra...)
	return &Matcher{ignorer: gitignore.CompileIgnoreLines(rules...)}
}

// Matches 检查给定的文件名是否匹配忽略规则
// 返回: true 表示应该忽略 (Skip), false 表示是资产 (Keep)
func (m *Matcher) Matches(name string) bool {
	if m == nil || m.ignorer == nil {
		return false
	}
	return m.ignorer.MatchesPath(name)
}

// pkg/types/common.go
package types

import (
	"fmt"
	"path/filepath"
	"strings"
)

// AssetExt 是 store 里每个资产文件的统一后缀
const AssetExt = ".woff2"

// AssetID 代表一个逻辑字体资产 (family + weight)
// 这是一个“值对象”，store 中每个 AssetID 对应且仅对应一个文件。
type AssetID struct {
	Family string `mapstructure:"family"` // 如 "Roboto Slab"
	Weight string `mapstructure:"weight"` // 如 "400" 或可变字体的 "100..900"
	// File 可选：显式指定落盘文件名 (历史文件名兼容)
	// 为空时由 Family/Weight 推导
	File string `mapstructure:"file"`
}

// Key 返回唯一的逻辑键，用于去重
func (id AssetID) Key() string {
	return Slug(id.Family) + ":" + strings.TrimSpace(id.Weight)
}

// FileName 返回该资产在 store 中的文件名 (确定性映射)
// Example: {"Roboto Slab", "700"} -> "roboto-slab-700.woff2"
func (id AssetID) FileName() string {
	if id.File != "" {
		return id.File
	}
	return Slug(id.Family) + "-" + Slug(id.Weight) + AssetExt
}

func (id AssetID) String() string {
	return fmt.Sprintf("%s %s", strings.ReplaceAll(id.Family, "+", " "), id.Weight)
}

// Validate 检查 AssetID 是否能安全映射为一个扁平文件名
func (id AssetID) Validate() error {
	if strings.TrimSpace(id.Family) == "" {
		return fmt.Errorf("asset family is empty")
	}
	if strings.TrimSpace(id.Weight) == "" {
		return fmt.Errorf("asset %q: weight is empty", id.Family)
	}
	return ValidateFileName(id.FileName())
}

// ValidateFileName 拒绝任何会逃逸 store 根目录的文件名
// 规则：必须是扁平的 base name，不能是隐藏文件，且以 .woff2 结尾
func ValidateFileName(name string) error {
	switch {
	case name == "" || name == "." || name == "..":
		return fmt.Errorf("invalid asset file name %q", name)
	case filepath.Base(name) != name || strings.ContainsAny(name, `/\`):
		return fmt.Errorf("asset file name %q must not contain a path", name)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("asset file name %q must not be hidden", name)
	case !strings.HasSuffix(strings.ToLower(name), AssetExt):
		return fmt.Errorf("asset file name %q must end with %s", name, AssetExt)
	}
	return nil
}

// Slug 把 family/weight 规整为小写、短横线分隔的片段
// "Roboto+Slab" -> "roboto-slab", "100..900" -> "100-900"
func Slug(s string) string {
	var b strings.Builder
	lastDash := true // 吞掉开头的分隔符
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// Hash 代表文件内容的 SHA-256 Hex String
type Hash string

func (h Hash) String() string { return string(h) }

func (h Hash) IsZero() bool  { return h == "" }
func (h Hash) IsValid() bool { return len(h) == 64 } // 简单的长度检查

// Short 返回前 8 位，用于终端输出
func (h Hash) Short() string {
	if len(h) < 8 {
		return string(h)
	}
	return string(h[:8])
}

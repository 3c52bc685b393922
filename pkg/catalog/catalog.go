package catalog

import (
	"fmt"
	"strings"

	"fontguard/pkg/types"

	"github.com/spf13/viper"
)

// Group 是配置文件中 "fonts" 列表的一项
//
//	fonts:
//	  - family: Roboto
//	    weights: [300, 400, 500, 700]
//	    files: {"400": roboto.woff2}
//	  - family: Roboto Slab
//	    weight: 100..900
//	    file: roboto-slab-variable.woff2
type Group struct {
	Family  string            `mapstructure:"family"`
	Weight  string            `mapstructure:"weight"`
	Weights []string          `mapstructure:"weights"`
	File    string            `mapstructure:"file"`  // 仅与 weight 搭配
	Files   map[string]string `mapstructure:"files"` // weight -> 文件名
}

// Default 返回内置的字体清单
func Default() []types.AssetID {
	ids := []types.AssetID{
		{Family: "Roboto", Weight: "300", File: "roboto-300.woff2"},
		{Family: "Roboto", Weight: "400", File: "roboto.woff2"},
		{Family: "Roboto", Weight: "500", File: "roboto-500.woff2"},
		{Family: "Roboto", Weight: "700", File: "roboto-700.woff2"},
	}
	for _, w := range []string{"300", "400", "500", "700"} {
		ids = append(ids, types.AssetID{Family: "Roboto Slab", Weight: w})
	}
	// 可变字体：一个文件覆盖全部字重
	ids = append(ids, types.AssetID{Family: "Roboto Slab", Weight: "100..900", File: "roboto-slab-variable.woff2"})
	return ids
}

// Load 从 viper 的 "fonts" 读取清单；未配置时使用 Default
func Load() ([]types.AssetID, error) {
	if !viper.IsSet("fonts") {
		return Default(), nil
	}
	var groups []Group
	if err := viper.UnmarshalKey("fonts", &groups); err != nil {
		return nil, fmt.Errorf("invalid fonts config: %w", err)
	}
	if len(groups) == 0 {
		return nil, fmt.Errorf("fonts config is empty")
	}
	return Expand(groups)
}

// Expand 把配置分组展开为资产列表，并拒绝重复的键或文件名
func Expand(groups []Group) ([]types.AssetID, error) {
	var ids []types.AssetID
	for i, g := range groups {
		if strings.TrimSpace(g.Family) == "" {
			return nil, fmt.Errorf("fonts[%d]: family is required", i)
		}
		weights := g.Weights
		if g.Weight != "" {
			weights = append([]string{g.Weight}, weights...)
		}
		if len(weights) == 0 {
			return nil, fmt.Errorf("fonts[%d] %s: no weights", i, g.Family)
		}
		if g.File != "" && len(weights) != 1 {
			return nil, fmt.Errorf("fonts[%d] %s: file needs exactly one weight, use files", i, g.Family)
		}

		for _, w := range weights {
			w = strings.TrimSpace(w)
			file := g.Files[w]
			if g.File != "" {
				file = g.File
			}
			ids = append(ids, types.AssetID{Family: strings.TrimSpace(g.Family), Weight: w, File: file})
		}
	}
	if err := check(ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func check(ids []types.AssetID) error {
	keys := make(map[string]types.AssetID, len(ids))
	files := make(map[string]types.AssetID, len(ids))
	for _, id := range ids {
		if err := id.Validate(); err != nil {
			return err
		}
		if prev, ok := keys[id.Key()]; ok {
			return fmt.Errorf("font %s is listed twice (also %s)", id, prev)
		}
		name := strings.ToLower(id.FileName())
		if prev, ok := files[name]; ok {
			return fmt.Errorf("fonts %s and %s both map to %s", prev, id, id.FileName())
		}
		keys[id.Key()] = id
		files[name] = id
	}
	return nil
}

// Select 按选择器挑出子集，保持清单顺序
// 选择器可以是 "Roboto:400"、"Roboto Slab" 或文件名 "roboto.woff2"
// 没有选择器时返回全部
func Select(all []types.AssetID, selectors []string) ([]types.AssetID, error) {
	if len(selectors) == 0 {
		return all, nil
	}
	picked := make([]bool, len(all))
	for _, sel := range selectors {
		matched := false
		for i, id := range all {
			if matches(id, sel) {
				picked[i] = true
				matched = true
			}
		}
		if !matched {
			return nil, fmt.Errorf("no font matches %q", sel)
		}
	}

	var out []types.AssetID
	for i, id := range all {
		if picked[i] {
			out = append(out, id)
		}
	}
	return out, nil
}

func matches(id types.AssetID, sel string) bool {
	sel = strings.TrimSpace(sel)
	if strings.EqualFold(sel, id.FileName()) {
		return true
	}
	family, weight, hasWeight := strings.Cut(sel, ":")
	if types.Slug(family) != types.Slug(id.Family) {
		return false
	}
	return !hasWeight || strings.TrimSpace(weight) == id.Weight
}

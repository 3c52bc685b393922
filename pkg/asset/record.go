package asset

import (
	"bytes"
	"fmt"

	"fontguard/pkg/types"
	"fontguard/pkg/woff2"
)

// Record 是一个已经通过校验的资产
// 字段不导出：唯一的构造路径是 New，所以 store 永远拿不到未校验的 Record。
type Record struct {
	id      types.AssetID
	data    []byte
	verdict woff2.Verdict
}

// New 校验 data，仅在 Valid 时返回 Record
// 校验失败时返回 Verdict 供调用方上报，error 为 *woff2.ValidationError
func New(id types.AssetID, data []byte) (*Record, woff2.Verdict, error) {
	v := woff2.Validate(data)
	if !v.OK() {
		return nil, v, fmt.Errorf("asset %s: %w", id.FileName(), v.Err())
	}
	return &Record{id: id, data: bytes.Clone(data), verdict: v}, v, nil
}

func (r *Record) ID() types.AssetID      { return r.id }
func (r *Record) FileName() string       { return r.id.FileName() }
func (r *Record) Bytes() []byte          { return r.data }
func (r *Record) Size() int64            { return int64(len(r.data)) }
func (r *Record) Verdict() woff2.Verdict { return r.verdict }
func (r *Record) Validated() bool        { return r.verdict.OK() }

package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"maps"
	"slices"
	"time"

	"fontguard/pkg/types"

	"github.com/fxamacker/cbor/v2"
)

// ManifestName 是备份位置里清单文件的名字
// 它不以 .woff2 结尾，所以不会被当作资产列出
const ManifestName = "MANIFEST.cbor"

const manifestVersion = 1

// BackupEntry 描述备份中的一个文件
type BackupEntry struct {
	Name    string     `cbor:"n"`
	Size    int64      `cbor:"s"`
	Hash    types.Hash `cbor:"h"` // SHA-256
	ModTime int64      `cbor:"m"` // Unix 秒
}

// BackupSet 是一次运行开始时 store 内容的快照
// 创建后不可变：所有访问器都返回副本。
type BackupSet struct {
	location  string
	createdAt time.Time
	entries   map[string]BackupEntry
	skipped   []string
}

// NewBackupSet 构造一个快照
// skipped: 备份过程中消失的文件 (已上报，但没有备份)
func NewBackupSet(location string, createdAt time.Time, entries []BackupEntry, skipped []string) *BackupSet {
	m := make(map[string]BackupEntry, len(entries))
	for _, e := range entries {
		m[e.Name] = e
	}
	return &BackupSet{
		location:  location,
		createdAt: createdAt.UTC(),
		entries:   m,
		skipped:   slices.Clone(skipped),
	}
}

func (b *BackupSet) Location() string     { return b.location }
func (b *BackupSet) CreatedAt() time.Time { return b.createdAt }
func (b *BackupSet) Len() int             { return len(b.entries) }

// Entry 按文件名查找
func (b *BackupSet) Entry(name string) (BackupEntry, bool) {
	e, ok := b.entries[name]
	return e, ok
}

// Names 返回排序后的文件名
func (b *BackupSet) Names() []string {
	return slices.Sorted(maps.Keys(b.entries))
}

// Skipped 返回备份时消失的文件
func (b *BackupSet) Skipped() []string { return slices.Clone(b.skipped) }

// -----------------------------------------------------------------------------
// Manifest (CBOR)
// -----------------------------------------------------------------------------

type manifest struct {
	Version   int           `cbor:"v"`
	CreatedAt int64         `cbor:"t"`
	Entries   []BackupEntry `cbor:"e"`
	Skipped   []string      `cbor:"x"`
}

// 规范化编码：相同的快照产生相同的字节
var encOptions = cbor.EncOptions{
	Sort:        cbor.SortCanonical,
	Time:        cbor.TimeUnix,
	TimeTag:     cbor.EncTagNone,
	IndefLength: cbor.IndefLengthForbidden,
}

var em, _ = encOptions.EncMode()

// 限制容器大小，防止损坏的清单耗尽内存
var decOptions = cbor.DecOptions{
	MaxArrayElements: 100000,
	MaxMapPairs:      1000,
	MaxNestedLevels:  16,
	IndefLength:      cbor.IndefLengthForbidden,
	DupMapKey:        cbor.DupMapKeyEnforcedAPF,
}

var dm, _ = decOptions.DecMode()

// EncodeManifest 把快照序列化为 CBOR 清单
func (b *BackupSet) EncodeManifest() ([]byte, error) {
	m := manifest{
		Version:   manifestVersion,
		CreatedAt: b.createdAt.Unix(),
		Skipped:   b.skipped,
	}
	for _, name := range b.Names() {
		m.Entries = append(m.Entries, b.entries[name])
	}
	data, err := em.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal manifest: %w", err)
	}
	return data, nil
}

// DecodeManifest 从 CBOR 清单还原快照
func DecodeManifest(location string, data []byte) (*BackupSet, error) {
	var m manifest
	if err := dm.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("corrupted backup manifest: %w", err)
	}
	if m.Version != manifestVersion {
		return nil, fmt.Errorf("unsupported backup manifest version %d", m.Version)
	}
	return NewBackupSet(location, time.Unix(m.CreatedAt, 0), m.Entries, m.Skipped), nil
}

// HashBytes 计算内容的 SHA-256
func HashBytes(data []byte) types.Hash {
	sum := sha256.Sum256(data)
	return types.Hash(hex.EncodeToString(sum[:]))
}

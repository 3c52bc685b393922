// Package woff2 对 WOFF2 容器做结构性检查。
//
// 只检查 48 字节固定头部里的 signature 和 flavor 字段，不解析表目录，
// 也不做 Brotli 解压。头部合法但内部损坏的文件会被放行。
package woff2

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
)

// HeaderSize 是 WOFF2 固定头部长度
const HeaderSize = 48

// Signature 是 WOFF2 的魔数 0x774F4632 ("wOF2")
var Signature = []byte("wOF2")

// Flavor 是容器包裹的原始字体格式 (sfntVersion)
type Flavor string

const (
	FlavorTrueType    Flavor = "TrueType"     // 00 01 00 00
	FlavorCFF         Flavor = "CFF"          // "OTTO"
	FlavorTrueTypeAlt Flavor = "TrueType-alt" // "true" (Apple)
)

var flavors = []struct {
	tag    []byte
	flavor Flavor
}{
	{[]byte{0x00, 0x01, 0x00, 0x00}, FlavorTrueType},
	{[]byte("OTTO"), FlavorCFF},
	{[]byte("true"), FlavorTrueTypeAlt},
}

// AcceptedFlavors 返回所有合法 flavor 标签的副本
func AcceptedFlavors() [][]byte {
	out := make([][]byte, 0, len(flavors))
	for _, f := range flavors {
		out = append(out, bytes.Clone(f.tag))
	}
	return out
}

// Kind 是校验结论的标签
type Kind int

const (
	Valid Kind = iota
	TooSmall
	BadMagic
	BadFlavor
	IOError
)

func (k Kind) String() string {
	switch k {
	case Valid:
		return "Valid"
	case TooSmall:
		return "TooSmall"
	case BadMagic:
		return "BadMagic"
	case BadFlavor:
		return "BadFlavor"
	case IOError:
		return "IOError"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Verdict 是一次校验的完整结论
// 除了 Kind，还带着诊断所需的上下文 (实际字节、期望集合、底层错误)
type Verdict struct {
	Kind     Kind
	Size     int      // 输入长度
	Flavor   Flavor   // 仅 Valid 时有值
	Got      []byte   // BadMagic/BadFlavor 时的实际 4 字节
	Expected [][]byte // 期望的取值集合
	Cause    error    // 仅 IOError
}

// OK 报告是否为 Valid
func (v Verdict) OK() bool { return v.Kind == Valid }

// GotHex 返回出错字段的十六进制渲染，如 "00 00 00 00"
func (v Verdict) GotHex() string { return Hex(v.Got) }

// Diagnostic 返回面向运维人员的一行说明
func (v Verdict) Diagnostic() string {
	switch v.Kind {
	case Valid:
		return fmt.Sprintf("Valid WOFF2 (%s, %d bytes)", v.Flavor, v.Size)
	case TooSmall:
		return fmt.Sprintf("File too small: %d bytes (header needs %d)", v.Size, HeaderSize)
	case BadMagic:
		return fmt.Sprintf("Invalid magic number: %s (expected %s)", v.GotHex(), strings.ToUpper(Hex(Signature)))
	case BadFlavor:
		expected := make([]string, 0, len(v.Expected))
		for _, e := range v.Expected {
			expected = append(expected, Hex(e))
		}
		return fmt.Sprintf("Invalid flavor: %s (expected one of %s)", v.GotHex(), strings.Join(expected, " | "))
	case IOError:
		return fmt.Sprintf("Read error: %v", v.Cause)
	default:
		return v.Kind.String()
	}
}

// Err 把非 Valid 的结论转换为 error；Valid 返回 nil
func (v Verdict) Err() error {
	if v.OK() {
		return nil
	}
	return &ValidationError{Verdict: v}
}

// Validate 检查 data 是否是一个头部合法的 WOFF2 容器
// 纯函数：无副作用，相同输入必然得到相同结论。
func Validate(data []byte) Verdict {
	v := Verdict{Size: len(data)}

	// 1. 长度下限：不足 48 字节就不可能有完整头部，先于任何字段读取
	if len(data) < HeaderSize {
		v.Kind = TooSmall
		return v
	}

	// 2. 魔数
	if !bytes.Equal(data[0:4], Signature) {
		v.Kind = BadMagic
		v.Got = bytes.Clone(data[0:4])
		v.Expected = [][]byte{bytes.Clone(Signature)}
		return v
	}

	// 3. flavor
	tag := data[4:8]
	for _, f := range flavors {
		if bytes.Equal(tag, f.tag) {
			v.Kind = Valid
			v.Flavor = f.flavor
			return v
		}
	}
	v.Kind = BadFlavor
	v.Got = bytes.Clone(tag)
	v.Expected = AcceptedFlavors()
	return v
}

// ValidateReader 读取 r 的全部内容后校验，读取失败映射为 IOError
func ValidateReader(r io.Reader) Verdict {
	data, err := io.ReadAll(r)
	if err != nil {
		return Verdict{Kind: IOError, Size: len(data), Cause: err}
	}
	return Validate(data)
}

// Hex 把字节渲染为空格分隔的小写十六进制对
func Hex(b []byte) string {
	parts := make([]string, len(b))
	for i, c := range b {
		parts[i] = fmt.Sprintf("%02x", c)
	}
	return strings.Join(parts, " ")
}

var (
	ErrTooSmall  = errors.New("woff2: file too small")
	ErrBadMagic  = errors.New("woff2: invalid magic number")
	ErrBadFlavor = errors.New("woff2: invalid flavor")
	ErrIO        = errors.New("woff2: read error")
)

// ValidationError 包装一个非 Valid 的 Verdict
// 支持 errors.Is(err, ErrBadMagic) 这类判断
type ValidationError struct {
	Verdict Verdict
}

func (e *ValidationError) Error() string { return e.Verdict.Diagnostic() }

func (e *ValidationError) Is(target error) bool {
	switch target {
	case ErrTooSmall:
		return e.Verdict.Kind == TooSmall
	case ErrBadMagic:
		return e.Verdict.Kind == BadMagic
	case ErrBadFlavor:
		return e.Verdict.Kind == BadFlavor
	case ErrIO:
		return e.Verdict.Kind == IOError
	}
	return false
}

func (e *ValidationError) Unwrap() error { return e.Verdict.Cause }

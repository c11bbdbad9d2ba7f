// Package signature 通过文件头部的魔数（magic bytes）识别真实类型，不看文件名。
package signature

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/John-Robertt/sigsort/internal/domain"
)

// HeaderSize 是识别所需读取的最少字节数（所有规则的 Offset+len(Magic) 都不超过它）。
const HeaderSize = 16

// Type 是识别结果的类型标签。
type Type string

const (
	Unknown  Type = "unknown"
	MP3      Type = "mp3"
	M4A      Type = "m4a"
	MP4      Type = "mp4"
	MOV      Type = "mov"
	HEIC     Type = "heic"
	Matroska Type = "matroska"
	AVI      Type = "avi"
	WAV      Type = "wav"
	OGG      Type = "ogg"
	FLAC     Type = "flac"
	JPEG     Type = "jpeg"
	PNG      Type = "png"
	GIF      Type = "gif"
	WEBP     Type = "webp"
	PDF      Type = "pdf"
	ZIP      Type = "zip"
	GZIP     Type = "gzip"
	SevenZip Type = "7z"
	RAR      Type = "rar"
)

// Rule 表示“在 Offset 处出现 Magic 即判定为 Type”。
type Rule struct {
	Type   Type
	Offset int
	Magic  []byte
}

// Rules 是按声明顺序求值的识别表，第一个命中者胜出。
//
// 已知重叠（显式记录，不依赖“碰巧”的顺序）：
//   - ISO-BMFF：品牌规则（ftypM4A /ftypqt  /ftypheic/ftypmif1 @4）必须排在通用 ftyp@4 之前，
//     否则 m4a/mov/heic 都会被判成 mp4。
//   - 00 00 00 18 ftyp / 00 00 00 20 ftyp 是 ftyp@4 的子集，保留它们只为与旧表一致，结论相同。
//   - ftypMSNV/ftypisom@0 是历史规则（box size 缺失的畸形文件），与 @4 规则不冲突。
//   - RIFF 容器只按 @8 的 form type（WAVE/AVI /WEBP）区分；"RIFF" 本身不是规则。
//   - MP3 帧同步 FF FB/FF F3/FF F2 与 JPEG 的 FF D8 FF 第二字节不同，互不覆盖。
var Rules = []Rule{
	// MP3
	{Type: MP3, Offset: 0, Magic: []byte{0xFF, 0xFB}}, // MPEG-1 Layer 3
	{Type: MP3, Offset: 0, Magic: []byte{0xFF, 0xF3}}, // MPEG-2 Layer 3
	{Type: MP3, Offset: 0, Magic: []byte{0xFF, 0xF2}}, // MPEG-2.5 Layer 3
	{Type: MP3, Offset: 0, Magic: []byte("ID3")},

	// ISO-BMFF 品牌
	{Type: M4A, Offset: 4, Magic: []byte("ftypM4A ")},
	{Type: MOV, Offset: 4, Magic: []byte("ftypqt  ")},
	{Type: HEIC, Offset: 4, Magic: []byte("ftypheic")},
	{Type: HEIC, Offset: 4, Magic: []byte("ftypmif1")},

	// MP4
	{Type: MP4, Offset: 0, Magic: []byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p'}},
	{Type: MP4, Offset: 0, Magic: []byte{0x00, 0x00, 0x00, 0x20, 'f', 't', 'y', 'p'}},
	{Type: MP4, Offset: 0, Magic: []byte("ftypMSNV")},
	{Type: MP4, Offset: 0, Magic: []byte("ftypisom")},
	{Type: MP4, Offset: 4, Magic: []byte("ftyp")},

	// 其他容器
	{Type: Matroska, Offset: 0, Magic: []byte{0x1A, 0x45, 0xDF, 0xA3}},
	{Type: AVI, Offset: 8, Magic: []byte("AVI ")},
	{Type: WAV, Offset: 8, Magic: []byte("WAVE")},
	{Type: WEBP, Offset: 8, Magic: []byte("WEBP")},
	{Type: OGG, Offset: 0, Magic: []byte("OggS")},
	{Type: FLAC, Offset: 0, Magic: []byte("fLaC")},

	// 图片
	{Type: JPEG, Offset: 0, Magic: []byte{0xFF, 0xD8, 0xFF}},
	{Type: PNG, Offset: 0, Magic: []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}},
	{Type: GIF, Offset: 0, Magic: []byte("GIF87a")},
	{Type: GIF, Offset: 0, Magic: []byte("GIF89a")},

	// 文档/归档
	{Type: PDF, Offset: 0, Magic: []byte("%PDF-")},
	{Type: ZIP, Offset: 0, Magic: []byte{'P', 'K', 0x03, 0x04}},
	{Type: GZIP, Offset: 0, Magic: []byte{0x1F, 0x8B}},
	{Type: SevenZip, Offset: 0, Magic: []byte{'7', 'z', 0xBC, 0xAF, 0x27, 0x1C}},
	{Type: RAR, Offset: 0, Magic: []byte{'R', 'a', 'r', '!', 0x1A, 0x07}},
}

// Info 描述某个类型的声明分类与可接受的扩展名（Extensions[0] 为规范扩展名）。
type Info struct {
	Type       Type
	Category   domain.Category
	Extensions []string
}

// Canonical 返回规范扩展名（不带点）。
func (i Info) Canonical() string {
	if len(i.Extensions) == 0 {
		return ""
	}
	return i.Extensions[0]
}

// Accepts 判断 ext（小写、不带点）是否是该类型的合法扩展名。
//
// 例如 zip 容器接受 docx/xlsx/jar：这些文件不应被“纠正”成 .zip。
func (i Info) Accepts(ext string) bool {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	for _, e := range i.Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

var infos = map[Type]Info{
	MP3:      {Type: MP3, Category: domain.CategoryAudio, Extensions: []string{"mp3"}},
	M4A:      {Type: M4A, Category: domain.CategoryAudio, Extensions: []string{"m4a", "m4b", "aac"}},
	WAV:      {Type: WAV, Category: domain.CategoryAudio, Extensions: []string{"wav"}},
	OGG:      {Type: OGG, Category: domain.CategoryAudio, Extensions: []string{"ogg", "oga", "opus", "ogv"}},
	FLAC:     {Type: FLAC, Category: domain.CategoryAudio, Extensions: []string{"flac"}},
	MP4:      {Type: MP4, Category: domain.CategoryVideo, Extensions: []string{"mp4", "m4v", "3gp", "3g2", "f4v", "m4a"}},
	MOV:      {Type: MOV, Category: domain.CategoryVideo, Extensions: []string{"mov", "qt"}},
	Matroska: {Type: Matroska, Category: domain.CategoryVideo, Extensions: []string{"mkv", "webm", "mka", "mk3d"}},
	AVI:      {Type: AVI, Category: domain.CategoryVideo, Extensions: []string{"avi"}},
	HEIC:     {Type: HEIC, Category: domain.CategoryImages, Extensions: []string{"heic", "heif", "avif"}},
	JPEG:     {Type: JPEG, Category: domain.CategoryImages, Extensions: []string{"jpg", "jpeg", "jpe", "jfif"}},
	PNG:      {Type: PNG, Category: domain.CategoryImages, Extensions: []string{"png"}},
	GIF:      {Type: GIF, Category: domain.CategoryImages, Extensions: []string{"gif"}},
	WEBP:     {Type: WEBP, Category: domain.CategoryImages, Extensions: []string{"webp"}},
	PDF:      {Type: PDF, Category: domain.CategoryDocuments, Extensions: []string{"pdf", "ai"}},
	ZIP: {Type: ZIP, Category: domain.CategoryArchives, Extensions: []string{
		"zip", "docx", "xlsx", "pptx", "odt", "ods", "odp", "epub", "jar", "apk", "ipa", "xpi", "cbz",
	}},
	GZIP:     {Type: GZIP, Category: domain.CategoryArchives, Extensions: []string{"gz", "tgz"}},
	SevenZip: {Type: SevenZip, Category: domain.CategoryArchives, Extensions: []string{"7z"}},
	RAR:      {Type: RAR, Category: domain.CategoryArchives, Extensions: []string{"rar", "cbr"}},
}

// Lookup 返回类型的声明信息；Unknown 或未登记类型返回 false。
func Lookup(t Type) (Info, bool) {
	i, ok := infos[t]
	return i, ok
}

// Match 在给定的字节前缀上按表求值；无命中返回 Unknown。
func Match(header []byte) Type {
	for _, r := range Rules {
		end := r.Offset + len(r.Magic)
		if end > len(header) {
			continue
		}
		if bytes.Equal(header[r.Offset:end], r.Magic) {
			return r.Type
		}
	}
	return Unknown
}

// ReadHeader 读取文件的前 HeaderSize 个字节；文件更短时返回实际内容。
func ReadHeader(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, HeaderSize)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:n], nil
}

// Detect 读取文件头并识别类型。
//
// 读取失败（权限/文件消失）时返回 Unknown 与原始错误：调用方据此记录 skipped，而不是中断批处理。
func Detect(path string) (Type, error) {
	h, err := ReadHeader(path)
	if err != nil {
		return Unknown, err
	}
	return Match(h), nil
}

package domain

// Category 是文件最终归入的分类（同时决定输出子目录名）。
//
// 内置分类见下方常量；用户的分类覆盖文件可以引入任意新名字，所以这里用 string 而不是封闭枚举。
type Category string

const (
	CategoryAudio     Category = "Audio"
	CategoryVideo     Category = "Video"
	CategoryDocuments Category = "Documents"
	CategoryImages    Category = "Images"
	CategoryArchives  Category = "Archives"
	CategoryCode      Category = "Code"
	CategoryMisc      Category = "Misc"
	CategoryUnknown   Category = "Unknown"
)

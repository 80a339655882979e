package utils

import "strings"

// 图片尺寸
const (
	ImageSizeProfile  = "w185"
	ImageSizePoster   = "w500"
	ImageSizeOriginal = "original"
)

// ImageURL 拼接图片地址，path 为空时返回空串
func ImageURL(baseURL string, path *string, size string) string {
	if path == nil || *path == "" {
		return ""
	}
	if size == "" {
		size = ImageSizeOriginal
	}
	p := *path
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return strings.TrimRight(baseURL, "/") + "/" + size + p
}

func PosterURL(baseURL string, path *string) string {
	return ImageURL(baseURL, path, ImageSizePoster)
}

func BackdropURL(baseURL string, path *string) string {
	return ImageURL(baseURL, path, ImageSizeOriginal)
}

func ProfileURL(baseURL string, path *string) string {
	return ImageURL(baseURL, path, ImageSizeProfile)
}

package util

import (
	"net/http"
	"path/filepath"
	"strings"
)

// ImageTypes lists the screenshot formats accepted for analysis, keyed by MIME
// type with the canonical file extension.
var ImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/heic": ".heic",
}

// DetectImageType sniffs the content and falls back to the file extension for
// formats net/http does not recognise (HEIC). ok is false for anything that is
// not an accepted image type.
func DetectImageType(data []byte, fileName string) (mimeType string, ok bool) {
	sniffed := http.DetectContentType(data)
	if _, known := ImageTypes[sniffed]; known {
		return sniffed, true
	}
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".heic", ".heif":
		if isHEIC(data) {
			return "image/heic", true
		}
	}
	return sniffed, false
}

// isHEIC checks the ISO base media "ftyp" box for a HEIF brand.
func isHEIC(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "hevc", "heim", "heis", "mif1", "msf1":
		return true
	}
	return false
}

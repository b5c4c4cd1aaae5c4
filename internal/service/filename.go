package service

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

var unsafeFilenameChars = strings.NewReplacer("/", "_", "\\", "_", "\x00", "_")

// ProvinceFilename maps a province to the base name of its output file.
//
// The name is NFC-normalized and path separators and NUL are replaced with
// "_", so every province lands in a file directly inside the output
// directory. With raw set the province is used verbatim.
func ProvinceFilename(province string, raw bool) string {
	if raw {
		return province + ".csv"
	}
	name := unsafeFilenameChars.Replace(norm.NFC.String(province))
	if name == "" || name == "." || name == ".." {
		name = strings.Repeat("_", max(len(name), 1))
	}
	return name + ".csv"
}

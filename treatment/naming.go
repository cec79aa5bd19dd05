package treatment

import (
	"path/filepath"
	"strings"
)

// illegalPathChars are removed from every path component.
const illegalPathChars = `/\:*?"<>|`

// Sanitize removes characters that are illegal in file names and keeps every
// other character in order.
func Sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(illegalPathChars, r) {
			return -1
		}
		return r
	}, s)
}

// FolderKey derives the per-client folder name "{name} - {id}".
func FolderKey(name, id string) string {
	return Sanitize(name) + " - " + Sanitize(id)
}

// ParseRecordTitle splits a record group title such as "06/08/2023 HRT LABS"
// into a YYYY-MM-DD date token and the remaining record name.
//
// A leading token that is not an M/D/Y triple is kept with "/" replaced by "-".
func ParseRecordTitle(title string) (date, name string) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "unknown-date", ""
	}
	token, rest, _ := strings.Cut(title, " ")
	rest = strings.TrimSpace(rest)

	parts := strings.Split(token, "/")
	if len(parts) != 3 {
		return strings.ReplaceAll(token, "/", "-"), rest
	}
	month, day, year := pad2(parts[0]), pad2(parts[1]), parts[2]
	return year + "-" + month + "-" + day, rest
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

// ExportFileName returns the deterministic PDF name for one document:
// "{date}_{record} {entry}_Treatment_Records_{client}.pdf".
func ExportFileName(recordTitle, entryName, clientName string) string {
	date, record := ParseRecordTitle(recordTitle)
	return date + "_" + Sanitize(record) + " " + Sanitize(entryName) +
		"_Treatment_Records_" + Sanitize(clientName) + ".pdf"
}

// TargetPath joins the client folder and ExportFileName.
func TargetPath(destFolder, recordTitle, entryName, clientName string) string {
	return filepath.Join(destFolder, ExportFileName(recordTitle, entryName, clientName))
}

package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"regexp"
	"strings"
)

// odsContentPath is the path to the main content inside an .ods zip (OpenDocument Spreadsheet).
const odsContentPath = "content.xml"

var (
	odsRow  = regexp.MustCompile(`(?s)<table:table-row[^>]*>(.*?)</table:table-row>`)
	odsCell = regexp.MustCompile(`(?s)<table:table-cell[^>]*?(?:/>|>(.*?)</table:table-cell>)`)
	odsPara = regexp.MustCompile(`(?s)<text:p[^>]*>(.*?)</text:p>`)
	xmlTag  = regexp.MustCompile(`<[^>]*>`)
)

// extractODS reads rows of every table in content.xml and keeps the first two cells of each.
func extractODS(content []byte) (string, error) {
	contentXML, err := readZipEntry(content, odsContentPath, "ODS")
	if err != nil {
		return "", err
	}
	var lines []string
	for _, row := range odsRow.FindAllStringSubmatch(string(contentXML), -1) {
		var cells []string
		for _, cell := range odsCell.FindAllStringSubmatch(row[1], -1) {
			var paras []string
			for _, p := range odsPara.FindAllStringSubmatch(cell[1], -1) {
				paras = append(paras, xmlText(p[1]))
			}
			cells = append(cells, strings.Join(paras, " "))
		}
		lines = append(lines, rowLine(cells))
	}
	return joinLines(lines), nil
}

// xmlText strips markup and decodes entities.
func xmlText(s string) string {
	return strings.TrimSpace(html.UnescapeString(xmlTag.ReplaceAllString(s, "")))
}

func readZipEntry(content []byte, name, format string) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("extract %s: not a zip: %w", format, err)
	}
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("extract %s: open %s: %w", format, f.Name, err)
		}
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(rc); err != nil {
			_ = rc.Close()
			return nil, fmt.Errorf("extract %s: read %s: %w", format, f.Name, err)
		}
		_ = rc.Close()
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("extract %s: %s not found", format, name)
}

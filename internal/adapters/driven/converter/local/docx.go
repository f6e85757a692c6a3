package local

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

type documentXML struct {
	Body struct {
		Paragraphs []paragraph `xml:"p"`
	} `xml:"body"`
}

type paragraph struct {
	Props struct {
		Style struct {
			Val string `xml:"val,attr"`
		} `xml:"pStyle"`
	} `xml:"pPr"`
	Runs []run `xml:"r"`
}

type run struct {
	Text []struct {
		Content string `xml:",chardata"`
	} `xml:"t"`
}

type coreXML struct {
	Title string `xml:"title"`
}

// convertDOCX extracts paragraphs from a DOCX archive. Heading styles
// ("Heading1".."Heading6", "Title") become markdown headings.
func convertDOCX(data []byte) (text, title string, err error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", "", fmt.Errorf("open archive: %w", err)
	}

	body, err := readZipFile(zr, "word/document.xml")
	if err != nil {
		return "", "", err
	}
	var doc documentXML
	if err := xml.Unmarshal(body, &doc); err != nil {
		return "", "", fmt.Errorf("decode document.xml: %w", err)
	}

	paras := make([]string, 0, len(doc.Body.Paragraphs))
	for _, p := range doc.Body.Paragraphs {
		var sb strings.Builder
		for _, r := range p.Runs {
			for _, t := range r.Text {
				sb.WriteString(t.Content)
			}
		}
		line := strings.TrimSpace(sb.String())
		if line == "" {
			continue
		}
		if level := headingLevel(p.Props.Style.Val); level > 0 {
			line = strings.Repeat("#", level) + " " + line
		}
		paras = append(paras, line)
	}

	if core, err := readZipFile(zr, "docProps/core.xml"); err == nil {
		var c coreXML
		if xml.Unmarshal(core, &c) == nil {
			title = strings.TrimSpace(c.Title)
		}
	}
	return strings.Join(paras, "\n\n"), title, nil
}

func headingLevel(style string) int {
	s := strings.ToLower(style)
	if s == "title" {
		return 1
	}
	if strings.HasPrefix(s, "heading") && len(s) == len("heading")+1 {
		if d := s[len(s)-1]; d >= '1' && d <= '6' {
			return int(d - '0')
		}
	}
	return 0
}

func readZipFile(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()
		return io.ReadAll(io.LimitReader(rc, MaxDocumentBytes))
	}
	return nil, fmt.Errorf("missing %s", name)
}

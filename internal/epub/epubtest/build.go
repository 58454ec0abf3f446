// Package epubtest builds small EPUB archives in memory for tests.
package epubtest

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"
)

// Chapter is one spine document.
type Chapter struct {
	Name string
	Body string
}

// Options describes the archive to build.
type Options struct {
	Title    string
	Author   string
	Cover    []byte
	Chapters []Chapter
}

// Build returns the bytes of an EPUB 3 archive with its package document
// under OEBPS/.
func Build(opts Options) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	write := func(name, content string) {
		f, err := w.Create(name)
		if err != nil {
			panic(err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			panic(err)
		}
	}

	write("mimetype", "application/epub+zip")
	write("META-INF/container.xml", `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`)

	var manifest, spine, metadata strings.Builder
	if opts.Title != "" {
		fmt.Fprintf(&metadata, "<dc:title>%s</dc:title>\n", opts.Title)
	}
	if opts.Author != "" {
		fmt.Fprintf(&metadata, "<dc:creator>%s</dc:creator>\n", opts.Author)
	}
	for i, ch := range opts.Chapters {
		id := fmt.Sprintf("ch%d", i+1)
		fmt.Fprintf(&manifest, `<item id="%s" href="%s" media-type="application/xhtml+xml"/>`+"\n", id, ch.Name)
		fmt.Fprintf(&spine, `<itemref idref="%s"/>`+"\n", id)
		write("OEBPS/"+ch.Name, `<?xml version="1.0" encoding="utf-8"?>
<html xmlns="http://www.w3.org/1999/xhtml"><head><title>x</title><style>p{}</style></head><body>`+ch.Body+`</body></html>`)
	}
	if len(opts.Cover) > 0 {
		manifest.WriteString(`<item id="cover" href="images/cover.png" media-type="image/png" properties="cover-image"/>` + "\n")
		f, err := w.Create("OEBPS/images/cover.png")
		if err != nil {
			panic(err)
		}
		if _, err := f.Write(opts.Cover); err != nil {
			panic(err)
		}
	}

	write("OEBPS/content.opf", `<?xml version="1.0" encoding="utf-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="uid">
<metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
`+metadata.String()+`</metadata>
<manifest>
`+manifest.String()+`</manifest>
<spine>
`+spine.String()+`</spine>
</package>`)

	if err := w.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

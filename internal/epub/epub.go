// Package epub reads the few things the library needs from an EPUB archive:
// the package metadata, the cover image and the plain text of the spine.
// It is not a renderer and does not validate the publication.
package epub

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

var (
	ErrNotArchive  = errors.New("not a zip archive")
	ErrNoContainer = errors.New("missing META-INF/container.xml")
	ErrNoPackage   = errors.New("missing package document")
)

// Book is what was read from the archive.
type Book struct {
	Title          string
	Author         string
	Description    string
	Language       string
	Cover          []byte
	CoverMediaType string

	archive     *zip.Reader
	packagePath string
	spine       []string
}

type container struct {
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

type opfPackage struct {
	Metadata struct {
		Titles       []string `xml:"title"`
		Creators     []string `xml:"creator"`
		Descriptions []string `xml:"description"`
		Languages    []string `xml:"language"`
		Meta         []struct {
			Name    string `xml:"name,attr"`
			Content string `xml:"content,attr"`
		} `xml:"meta"`
	} `xml:"metadata"`
	Manifest []opfItem `xml:"manifest>item"`
	Spine    []struct {
		IDRef string `xml:"idref,attr"`
	} `xml:"spine>itemref"`
}

type opfItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr"`
}

// Read opens an EPUB held in memory.
func Read(data []byte) (*Book, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotArchive, err)
	}

	raw, err := readFile(archive, "META-INF/container.xml")
	if err != nil {
		return nil, ErrNoContainer
	}
	var c container
	if err := xml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse container: %w", err)
	}
	if len(c.Rootfiles) == 0 || c.Rootfiles[0].FullPath == "" {
		return nil, ErrNoPackage
	}
	packagePath := c.Rootfiles[0].FullPath

	raw, err = readFile(archive, packagePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoPackage, packagePath)
	}
	var pkg opfPackage
	if err := xml.Unmarshal(raw, &pkg); err != nil {
		return nil, fmt.Errorf("parse package document: %w", err)
	}

	book := &Book{
		Title:       first(pkg.Metadata.Titles),
		Author:      first(pkg.Metadata.Creators),
		Description: first(pkg.Metadata.Descriptions),
		Language:    first(pkg.Metadata.Languages),
		archive:     archive,
		packagePath: packagePath,
	}

	items := make(map[string]opfItem, len(pkg.Manifest))
	for _, item := range pkg.Manifest {
		items[item.ID] = item
	}
	for _, ref := range pkg.Spine {
		if item, ok := items[ref.IDRef]; ok {
			book.spine = append(book.spine, book.resolve(item.Href))
		}
	}

	if item, ok := coverItem(pkg, items); ok {
		cover, err := readFile(archive, book.resolve(item.Href))
		if err == nil {
			book.Cover = cover
			book.CoverMediaType = item.MediaType
		}
	}

	return book, nil
}

// coverItem finds the cover image through the EPUB 3 manifest property or
// the EPUB 2 <meta name="cover"> convention.
func coverItem(pkg opfPackage, items map[string]opfItem) (opfItem, bool) {
	for _, item := range pkg.Manifest {
		for _, prop := range strings.Fields(item.Properties) {
			if prop == "cover-image" {
				return item, true
			}
		}
	}
	for _, meta := range pkg.Metadata.Meta {
		if meta.Name == "cover" {
			if item, ok := items[meta.Content]; ok && strings.HasPrefix(item.MediaType, "image/") {
				return item, true
			}
		}
	}
	return opfItem{}, false
}

func (b *Book) resolve(href string) string {
	return path.Join(path.Dir(b.packagePath), href)
}

func readFile(archive *zip.Reader, name string) ([]byte, error) {
	f, err := archive.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func first(values []string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

package pptx

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/unidoc/unioffice"
	"github.com/unidoc/unioffice/schema/soo/pkg/relationships"
	"github.com/unidoc/unioffice/schema/soo/pml"
	"github.com/unidoc/unioffice/zippkg"
)

type media struct {
	data   []byte
	format string
}

type mediaIndex struct {
	slides   []map[string]media // per slide, keyed by relationship id
	unstable []string
}

// indexMedia resolves each slide's image relationships against the package
// bytes. The codec extracts media to scratch files without exposing slide
// relationships, so picture bytes are looked up here instead.
func indexMedia(data []byte, x *pml.Presentation) (mediaIndex, error) {
	var idx mediaIndex

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return idx, err
	}
	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	root, err := readRels(files, "")
	if err != nil {
		return idx, err
	}
	presPath := ""
	for _, rel := range root {
		if rel.TypeAttr == unioffice.OfficeDocumentType {
			presPath = resolvePart("", rel.TargetAttr)
			break
		}
	}
	if presPath == "" {
		return idx, fmt.Errorf("package has no presentation part")
	}
	presRels, err := readRels(files, presPath)
	if err != nil {
		return idx, err
	}

	seen := make(map[string]bool)
	for i, sid := range x.SldIdLst.SldId {
		slidePath := ""
		for _, rel := range presRels {
			if rel.IdAttr == sid.RIdAttr {
				slidePath = resolvePart(presPath, rel.TargetAttr)
				break
			}
		}
		if slidePath == "" {
			return idx, fmt.Errorf("slide %d references missing relationship %s", i+1, sid.RIdAttr)
		}

		slideRels, err := readRels(files, slidePath)
		if err != nil {
			return idx, err
		}
		m := make(map[string]media)
		for _, rel := range slideRels {
			if rel.TypeAttr != unioffice.ImageType {
				continue
			}
			mediaPath := resolvePart(slidePath, rel.TargetAttr)
			f, ok := files[mediaPath]
			if !ok {
				continue
			}
			b, err := readPart(f)
			if err != nil {
				return idx, err
			}
			format := formatFromPath(mediaPath)
			m[rel.IdAttr] = media{data: b, format: format}
			if format != "png" && !seen[mediaPath] {
				seen[mediaPath] = true
				idx.unstable = append(idx.unstable, mediaPath)
			}
		}
		idx.slides = append(idx.slides, m)
	}
	return idx, nil
}

func readRels(files map[string]*zip.File, part string) ([]*relationships.Relationship, error) {
	relsPath := unioffice.BaseRelsFilename
	if part != "" {
		relsPath = zippkg.RelationsPathFor(part)
	}
	f, ok := files[relsPath]
	if !ok {
		return nil, nil
	}
	rels := relationships.NewRelationships()
	if err := zippkg.Decode(f, rels); err != nil {
		return nil, err
	}
	return rels.Relationship, nil
}

func readPart(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open part %s: %w", f.Name, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// resolvePart resolves a relationship target against the part that owns it.
func resolvePart(source, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return path.Clean(path.Join(path.Dir(source), target))
}

func formatFromPath(p string) string {
	switch ext := strings.ToLower(path.Ext(p)); ext {
	case ".jpg", ".jpeg":
		return "jpeg"
	default:
		return strings.TrimPrefix(ext, ".")
	}
}

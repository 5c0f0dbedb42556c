// Package gallery holds the curated starting images users can pick instead
// of uploading their own.
package gallery

import (
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed gallery.yaml
var defaultCatalog []byte

// ErrUnknownImage is returned for references that match no gallery entry.
var ErrUnknownImage = errors.New("unknown gallery image")

// RefPrefix marks an image reference that points into the gallery.
const RefPrefix = "gallery:"

type Image struct {
	ID  int    `yaml:"id" json:"id"`
	Src string `yaml:"src" json:"src"`
	Alt string `yaml:"alt" json:"alt"`
}

// Catalog is an immutable, id-ordered set of gallery images.
type Catalog struct {
	images []Image
	byID   map[int]Image
}

// Parse decodes a YAML list of images. Ids must be unique and sources must
// be absolute http(s) URLs.
func Parse(data []byte) (*Catalog, error) {
	var images []Image
	if err := yaml.Unmarshal(data, &images); err != nil {
		return nil, fmt.Errorf("parse gallery: %w", err)
	}
	c := &Catalog{byID: make(map[int]Image, len(images))}
	for _, img := range images {
		if _, dup := c.byID[img.ID]; dup {
			return nil, fmt.Errorf("gallery: duplicate id %d", img.ID)
		}
		u, err := url.Parse(img.Src)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return nil, fmt.Errorf("gallery: image %d has invalid src %q", img.ID, img.Src)
		}
		c.byID[img.ID] = img
		c.images = append(c.images, img)
	}
	sort.Slice(c.images, func(i, j int) bool { return c.images[i].ID < c.images[j].ID })
	return c, nil
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(err)
	}
	return c
}

// Load reads a catalog from path, or returns the built-in one when path is
// empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read gallery: %w", err)
	}
	return Parse(data)
}

func (c *Catalog) List() []Image {
	return append([]Image(nil), c.images...)
}

func (c *Catalog) Get(id int) (Image, bool) {
	img, ok := c.byID[id]
	return img, ok
}

// Resolve turns "gallery:<id>" into the image's source URL. Other
// references are returned unchanged.
func (c *Catalog) Resolve(ref string) (string, error) {
	rest, ok := strings.CutPrefix(ref, RefPrefix)
	if !ok {
		return ref, nil
	}
	id, err := strconv.Atoi(rest)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnknownImage, ref)
	}
	img, found := c.Get(id)
	if !found {
		return "", fmt.Errorf("%w: %d", ErrUnknownImage, id)
	}
	return img.Src, nil
}

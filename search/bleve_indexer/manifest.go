package bleve_indexer

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Manifest is the subset of module.json describing the packs of a package.
type Manifest struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"` // older manifests only carry a name
	Title string         `json:"title"`
	Packs []PackManifest `json:"packs"`
}

type PackManifest struct {
	Name         string `json:"name"`
	Label        string `json:"label"`
	Path         string `json:"path"`
	Type         string `json:"type"`
	Entity       string `json:"entity"`
	DocumentName string `json:"documentName"`
	Private      bool   `json:"private"`
}

// PackageID returns the package id, falling back to the older name field.
func (m Manifest) PackageID() string {
	if m.ID != "" {
		return m.ID
	}
	return m.Name
}

func (p PackManifest) documentName() string {
	for _, v := range []string{p.Type, p.DocumentName, p.Entity} {
		if v != "" {
			return v
		}
	}
	return ""
}

func readManifest(root string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(filepath.Join(root, manifestFile))
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("parsing %s: %w", manifestFile, err)
	}
	if m.PackageID() == "" {
		return m, fmt.Errorf("%s: missing package id", manifestFile)
	}
	return m, nil
}

// record is one line of a NeDB database file.
type record struct {
	ID      string `json:"_id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Img     string `json:"img"`
	Thumb   string `json:"thumb"`
	Deleted bool   `json:"$$deleted"`
	Flags   struct {
		Babele struct {
			OriginalName string `json:"originalName"`
		} `json:"babele"`
	} `json:"flags"`

	raw []byte
}

// readDB reads a NeDB file. Later lines replace earlier ones with the same id
// and deletion markers drop the document; first appearance keeps the order.
func readDB(path string) ([]record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var order []string
	listed := map[string]bool{}
	byID := map[string]record{}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Bytes()
		if len(text) == 0 {
			continue
		}
		var r record
		if err := json.Unmarshal(text, &r); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		if r.ID == "" {
			continue
		}
		if r.Deleted {
			delete(byID, r.ID)
			continue
		}
		r.raw = append([]byte(nil), text...)
		if !listed[r.ID] {
			listed[r.ID] = true
			order = append(order, r.ID)
		}
		byID[r.ID] = r
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	records := make([]record, 0, len(byID))
	for _, id := range order {
		if r, ok := byID[id]; ok {
			records = append(records, r)
		}
	}
	return records, nil
}

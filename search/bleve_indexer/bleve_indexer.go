package bleve_indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/noelzubin/compendium_search/search"
	"github.com/samber/lo"
)

const (
	manifestFile = "module.json"
	worldDir     = "data"
	dbExt        = ".db"
)

// worldFiles maps searchable world collections to their database files.
var worldFiles = map[string]string{
	"actors":  "actors.db",
	"cards":   "cards.db",
	"items":   "items.db",
	"tables":  "tables.db",
	"scenes":  "scenes.db",
	"journal": "journal.db",
}

// Store is the document registry backed by a package data directory. The pack
// indexes live in memory; full documents are cached in a bleve index keyed by
// uuid so they can be resolved.
type Store struct {
	root      string
	gm        bool
	indexPath string

	mu        sync.RWMutex
	manifest  Manifest
	packs     []search.Pack
	world     map[string][]search.Entry
	packTypes map[string]string // "<package>.<pack>" -> document name
	sources   map[string]source // file path -> source

	indexMu sync.Mutex
	index   bleve.Index
	indexed []FileInfo
}

// source describes where the documents of one database file belong.
type source struct {
	file         string
	pack         string // "<package>.<pack>", empty for world files
	documentName string
	uuidPrefix   string
}

func (s source) uuid(id string) string {
	return s.uuidPrefix + "." + id
}

type Options struct {
	// IndexPath is where the document cache lives, empty keeps it in memory.
	IndexPath string
	// GM makes private packs visible.
	GM bool
}

// DefaultIndexPath returns where the document cache is stored on disk.
func DefaultIndexPath() string {
	dir, _ := os.UserCacheDir()
	return path.Join(dir, "/compendium_search/index.bleve")
}

// NewStore opens the document cache and loads the data directory.
func NewStore(root string, opts Options) (*Store, error) {
	index, created, err := GetIndex(opts.IndexPath)
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}

	s := &Store{root: root, gm: opts.GM, indexPath: opts.IndexPath, index: index}
	// a new index holds nothing, whatever the last run recorded
	if opts.IndexPath != "" && !created {
		s.indexed, err = readFileInfos(s.fileInfosPath())
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Printf("reading %s: %v", s.fileInfosPath(), err)
		}
	}

	if err := s.Reload(); err != nil {
		index.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) fileInfosPath() string {
	return filepath.Join(filepath.Dir(s.indexPath), "fileinfos.json")
}

func (s *Store) Close() error {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	return s.index.Close()
}

// Reload re-reads the manifest and every database file, then brings the
// document cache up to date.
func (s *Store) Reload() error {
	manifest, err := readManifest(s.root)
	if err != nil {
		return err
	}

	packTypes := map[string]string{}
	sources := map[string]source{}
	var packs []search.Pack
	for _, pm := range manifest.Packs {
		collection := manifest.PackageID() + "." + pm.Name
		src := source{
			file:         filepath.Join(s.root, pm.Path),
			pack:         collection,
			documentName: pm.documentName(),
			uuidPrefix:   "Compendium." + collection,
		}
		records, err := readDB(src.file)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("reading pack %s: %w", collection, err)
		}
		packTypes[collection] = src.documentName
		sources[src.file] = src
		packs = append(packs, search.Pack{
			Package:      manifest.PackageID(),
			Name:         pm.Name,
			Title:        pm.Label,
			DocumentName: src.documentName,
			Visible:      !pm.Private || s.gm,
			Index:        toEntries(src, records),
		})
	}

	world := map[string][]search.Entry{}
	for _, wc := range search.WorldCollections {
		src := source{
			file:         filepath.Join(s.root, worldDir, worldFiles[wc.Collection]),
			documentName: wc.DocumentName,
			uuidPrefix:   wc.DocumentName,
		}
		records, err := readDB(src.file)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("reading world %s: %w", wc.Collection, err)
		}
		sources[src.file] = src
		world[wc.Collection] = toEntries(src, records)
	}

	s.mu.Lock()
	s.manifest = manifest
	s.packs = packs
	s.world = world
	s.packTypes = packTypes
	s.sources = sources
	s.mu.Unlock()

	return s.IndexDocuments()
}

func toEntries(src source, records []record) []search.Entry {
	return lo.Map(records, func(r record, _ int) search.Entry {
		return search.Entry{
			ID:           r.ID,
			Name:         r.Name,
			Type:         r.Type,
			Img:          r.Img,
			Thumb:        r.Thumb,
			UUID:         src.uuid(r.ID),
			OriginalName: r.Flags.Babele.OriginalName,
		}
	})
}

func (s *Store) Manifest() Manifest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.manifest
}

func (s *Store) Packs() []search.Pack {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.packs
}

func (s *Store) World(collection string) []search.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.world[collection]
}

func (s *Store) packType(collection string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.packTypes[collection]
}

// ParseUUID parses uuid, looking up pack document types for older compendium uuids.
func (s *Store) ParseUUID(uuid string) (search.ParsedUUID, error) {
	return search.ParseUUID(uuid, s.packType)
}

// FromUUID resolves a document from the cache.
func (s *Store) FromUUID(ctx context.Context, uuid string) (*search.Document, error) {
	req := bleve.NewSearchRequest(bleve.NewDocIDQuery([]string{uuid}))
	req.Fields = []string{"*"}

	s.indexMu.Lock()
	res, err := s.index.SearchInContext(ctx, req)
	s.indexMu.Unlock()
	if err != nil {
		return nil, err
	}
	if len(res.Hits) == 0 {
		return nil, fmt.Errorf("%s: %w", uuid, search.ErrNotFound)
	}

	field := func(name string) string {
		v, _ := res.Hits[0].Fields[name].(string)
		return v
	}
	return &search.Document{
		UUID:         res.Hits[0].ID,
		ID:           field("ID"),
		Name:         field("Name"),
		DocumentName: field("DocumentName"),
		Pack:         field("Pack"),
		Source:       []byte(field("Source")),
	}, nil
}

// Document is what the cache stores per uuid.
type Document struct {
	ID           string
	Name         string
	DocumentName string
	Pack         string
	File         string
	Source       string
}

// IndexDocuments syncs the document cache with the database files.
//
// It compares the database files with the file infos recorded by the last run.
// New or modified files are (re)indexed, documents of deleted files are removed.
func (s *Store) IndexDocuments() error {
	s.mu.RLock()
	sources := s.sources
	s.mu.RUnlock()

	current := []FileInfo{}
	for file := range sources {
		if fi, err := getFileInfoForFile(file); err == nil {
			current = append(current, fi)
		}
	}

	s.indexMu.Lock()
	defer s.indexMu.Unlock()

	deleted, modified, created := compareFileInfos(s.indexed, current)
	toIndex := append(modified, created...)

	var wg sync.WaitGroup
	errs := make([]error, len(deleted)+len(toIndex))

	wg.Add(len(deleted) + len(toIndex))

	for i, fi := range deleted {
		go func(i int, fi FileInfo) {
			defer wg.Done()
			errs[i] = s.deleteFile(fi.Path)
		}(i, fi)
	}

	for i, fi := range toIndex {
		go func(i int, fi FileInfo) {
			defer wg.Done()
			errs[len(deleted)+i] = s.indexFile(sources[fi.Path])
		}(i, fi)
	}

	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return err
	}

	s.indexed = current
	if s.indexPath != "" {
		return StoreFileInfos(s.fileInfosPath(), current)
	}
	return nil
}

func (s *Store) indexFile(src source) error {
	if err := s.deleteFile(src.file); err != nil {
		return err
	}

	records, err := readDB(src.file)
	if err != nil {
		return err
	}

	batch := s.index.NewBatch()
	for _, r := range records {
		doc := Document{
			ID:           r.ID,
			Name:         r.Name,
			DocumentName: src.documentName,
			Pack:         src.pack,
			File:         src.file,
			Source:       string(r.raw),
		}
		if err := batch.Index(src.uuid(r.ID), doc); err != nil {
			return err
		}
	}
	return s.index.Batch(batch)
}

// deleteFile removes every cached document that came from file.
func (s *Store) deleteFile(file string) error {
	q := bleve.NewTermQuery(file)
	q.SetField("File")

	for {
		req := bleve.NewSearchRequestOptions(q, 500, 0, false)
		res, err := s.index.Search(req)
		if err != nil {
			return err
		}
		if len(res.Hits) == 0 {
			return nil
		}
		batch := s.index.NewBatch()
		for _, hit := range res.Hits {
			batch.Delete(hit.ID)
		}
		if err := s.index.Batch(batch); err != nil {
			return err
		}
	}
}

func newMapping() mapping.IndexMapping {
	kw := bleve.NewTextFieldMapping()
	kw.Analyzer = keyword.Name

	source := bleve.NewTextFieldMapping()
	source.Index = false
	source.IncludeInAll = false

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("ID", kw)
	doc.AddFieldMappingsAt("DocumentName", kw)
	doc.AddFieldMappingsAt("Pack", kw)
	doc.AddFieldMappingsAt("File", kw)
	doc.AddFieldMappingsAt("Name", bleve.NewTextFieldMapping())
	doc.AddFieldMappingsAt("Source", source)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	return m
}

// GetIndex returns the index if it exists or creates a new one if it doesn't.
// An empty path gives an in-memory index. created reports whether the index
// is new and therefore empty.
func GetIndex(path string) (index bleve.Index, created bool, err error) {
	if path == "" {
		index, err = bleve.NewMemOnly(newMapping())
		return index, true, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, false, err
	}

	index, err = bleve.Open(path)
	if err == nil {
		return index, false, nil
	}
	if err != bleve.ErrorIndexPathDoesNotExist {
		log.Printf("recreating index %s: %v", path, err)
		if err := os.RemoveAll(path); err != nil {
			return nil, false, err
		}
	}
	index, err = bleve.New(path, newMapping())
	return index, true, err
}

// FileInfo contains the path and the last modified time of a file
// This is what is stored in the metadata file
type FileInfo struct {
	Path    string    // Path to the file
	ModTime time.Time // Last modified time
}

// GetFileInfoForFile returns the FileInfo for the given file
func getFileInfoForFile(path string) (fi FileInfo, err error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileInfo{}, err
	}
	return FileInfo{Path: path, ModTime: info.ModTime()}, nil
}

// StoreFileInfos stores the given FileInfos in the given path
func StoreFileInfos(path string, fi []FileInfo) error {
	data, err := json.Marshal(fi)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// readFileInfos reads the FileInfos from the given path
func readFileInfos(path string) (fi []FileInfo, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &fi); err != nil {
		return nil, err
	}
	return fi, nil
}

// compareFileInfos compares the old and current FileInfos and returns the deleted, modified and created FileInfos
func compareFileInfos(old, current []FileInfo) (deleted, modified, created []FileInfo) {
	deleted = make([]FileInfo, 0)
	created = make([]FileInfo, 0)
	modified = make([]FileInfo, 0)

	for _, f1 := range old {
		f2, found := lo.Find(current, func(f FileInfo) bool { return f.Path == f1.Path })
		if !found {
			deleted = append(deleted, f1)
		} else if !f1.ModTime.Equal(f2.ModTime) {
			modified = append(modified, f2)
		}
	}

	for _, f2 := range current {
		if !lo.ContainsBy(old, func(f FileInfo) bool { return f.Path == f2.Path }) {
			created = append(created, f2)
		}
	}

	return deleted, modified, created
}

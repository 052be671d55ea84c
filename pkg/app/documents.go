package app

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ilkoid/tripmate/pkg/retrieval"
	"github.com/ilkoid/tripmate/pkg/s3storage"
	"github.com/ilkoid/tripmate/pkg/utils"
)

// textExtensions: файлы, которые индексируются как текст. CSV разбирается
// построчно, остальные читаются целиком.
var textExtensions = map[string]bool{".txt": true, ".md": true, ".csv": true}

func isTextFile(name string) bool {
	return textExtensions[strings.ToLower(path.Ext(name))]
}

func isCSV(name string) bool {
	return strings.EqualFold(path.Ext(name), ".csv")
}

// utf8BOM пишут выгрузки из Excel.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// parseDocuments превращает содержимое файла в документы: CSV даёт по
// документу на строку данных, прочие форматы один документ на файл.
func parseDocuments(source string, data []byte) ([]retrieval.Document, error) {
	if !isCSV(source) {
		return []retrieval.Document{{Source: source, Text: string(data)}}, nil
	}
	return csvDocuments(source, data)
}

// csvDocuments пропускает строку заголовка и склеивает непустые ячейки
// каждой строки через пробел. Source получает суффикс #row N (с единицы,
// без учёта заголовка).
func csvDocuments(source string, data []byte) ([]retrieval.Document, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	if _, err := r.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read csv header %s: %w", source, err)
	}

	var (
		docs []retrieval.Document
		row  int
	)
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv %s: %w", source, err)
		}
		row++

		cells := make([]string, 0, len(record))
		for _, cell := range record {
			if cell = strings.TrimSpace(cell); cell != "" {
				cells = append(cells, cell)
			}
		}
		if len(cells) == 0 {
			continue
		}
		docs = append(docs, retrieval.Document{
			Source: fmt.Sprintf("%s#row %d", source, row),
			Text:   strings.Join(cells, " "),
		})
	}
	return docs, nil
}

// LoadDocuments читает документы для индексации. Источник: файл, каталог
// (берутся .txt, .md и .csv рекурсивно) или ссылка s3://bucket/prefix.
func (c *Components) LoadDocuments(ctx context.Context, sources []string) ([]retrieval.Document, error) {
	var docs []retrieval.Document
	for _, src := range sources {
		var (
			found []retrieval.Document
			err   error
		)
		if s3storage.IsURI(src) {
			if c.S3 == nil {
				return nil, fmt.Errorf("s3 is not configured, cannot read %s", src)
			}
			loc, perr := s3storage.ParseURI(src)
			if perr != nil {
				return nil, perr
			}
			found, err = loadS3Documents(ctx, c.S3.ForBucket(loc.Bucket), loc.Bucket, loc.Key)
		} else {
			found, err = loadLocalDocuments(src)
		}
		if err != nil {
			return nil, err
		}
		docs = append(docs, found...)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("no .txt, .md or .csv documents in %v", sources)
	}
	return docs, nil
}

func loadLocalDocuments(root string) ([]retrieval.Document, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		data, err := os.ReadFile(root)
		if err != nil {
			return nil, err
		}
		return parseDocuments(root, data)
	}

	var docs []retrieval.Document
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isTextFile(p) {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		found, err := parseDocuments(p, data)
		if err != nil {
			return err
		}
		docs = append(docs, found...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return docs, nil
}

func loadS3Documents(ctx context.Context, store s3storage.ObjectStore, bucket, prefix string) ([]retrieval.Document, error) {
	objects, err := store.ListFiles(ctx, prefix)
	if err != nil {
		return nil, err
	}

	var docs []retrieval.Document
	for _, obj := range objects {
		if !isTextFile(obj.Key) {
			utils.Debug("Skipping non-text object", "key", obj.Key)
			continue
		}
		data, err := store.DownloadFile(ctx, obj.Key)
		if err != nil {
			return nil, err
		}
		found, err := parseDocuments(s3storage.Scheme+bucket+"/"+obj.Key, data)
		if err != nil {
			return nil, err
		}
		docs = append(docs, found...)
	}
	return docs, nil
}

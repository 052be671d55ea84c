package retrieval

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Chunk: проиндексированный фрагмент текста.
type Chunk struct {
	ID         int64
	Collection string
	Source     string
	Content    string
	Embedding  []float32
	CreatedAt  time.Time
}

// Match: фрагмент и его косинусное сходство с запросом.
type Match struct {
	Chunk
	Score float64
}

// Store: векторное хранилище фрагментов в SQLite.
//
// Векторы хранятся BLOB-ом (little-endian float32), сходство считается
// в Go по всем фрагментам коллекции.
type Store struct {
	db   *sql.DB
	path string
}

// OpenStore открывает (или создаёт) базу по пути. ":memory:": база в памяти.
func OpenStore(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// У каждого соединения ":memory:" своя база.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close закрывает соединение.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path возвращает путь к базе.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS chunks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		collection TEXT NOT NULL,
		source TEXT NOT NULL,
		content TEXT NOT NULL,
		embedding BLOB NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_collection ON chunks(collection);
	`)
	return err
}

// Add сохраняет фрагменты коллекции в одной транзакции, в порядке среза.
func (s *Store) Add(ctx context.Context, collection string, chunks []Chunk) error {
	if collection == "" {
		return fmt.Errorf("collection name is required")
	}
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (collection, source, content, embedding, created_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i, c := range chunks {
		if len(c.Embedding) == 0 {
			return fmt.Errorf("chunk %d has no embedding", i)
		}
		if _, err := stmt.ExecContext(ctx, collection, c.Source, c.Content, encodeEmbedding(c.Embedding), now); err != nil {
			return fmt.Errorf("insert chunk %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Search возвращает k самых похожих на query фрагментов коллекции,
// по убыванию сходства. При равном сходстве раньше идёт более ранний фрагмент.
func (s *Store) Search(ctx context.Context, collection string, query []float32, k int) ([]Match, error) {
	if k <= 0 {
		k = 4
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, content, embedding, created_at FROM chunks WHERE collection = ? ORDER BY id`,
		collection)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var (
			c    Chunk
			blob []byte
		)
		if err := rows.Scan(&c.ID, &c.Source, &c.Content, &blob, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		c.Collection = collection
		c.Embedding = decodeEmbedding(blob)

		score, err := CosineSimilarity(query, c.Embedding)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", c.ID, err)
		}
		matches = append(matches, Match{Chunk: c, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Count возвращает количество фрагментов коллекции.
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks WHERE collection = ?`, collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

// DeleteCollection удаляет все фрагменты коллекции и возвращает их количество.
func (s *Store) DeleteCollection(ctx context.Context, collection string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE collection = ?`, collection)
	if err != nil {
		return 0, fmt.Errorf("delete collection: %w", err)
	}
	return res.RowsAffected()
}

// CosineSimilarity: косинусное сходство двух векторов одной размерности.
// Для нулевого вектора возвращает 0.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vectors must have the same length: %d != %d", len(a), len(b))
	}

	var dot, aMag, bMag float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		aMag += float64(a[i]) * float64(a[i])
		bMag += float64(b[i]) * float64(b[i])
	}
	if aMag == 0 || bMag == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(aMag) * math.Sqrt(bMag)), nil
}

func encodeEmbedding(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeEmbedding(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}

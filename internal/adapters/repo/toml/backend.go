package toml

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bnema/pathfinder/internal/ports"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	LocalPathKey    = "local.path"
	dataFileMode    = 0o600
	dataDirMode     = 0o700
	dataConfigDir   = ".pathfinder"
	dataFile        = "data.toml"
	tempFilePattern = ".data-*.toml.tmp"
)

// Backend is a single-file stand-in for the remote data service. It
// implements both ports.DataService and ports.AuthProvider so the CLI works
// offline.
type Backend struct {
	path   string
	mu     *sync.RWMutex
	clock  ports.Clock
	logger *slog.Logger

	listenersMu sync.Mutex
	listeners   map[int]func(ports.AuthEvent)
	nextID      int
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

var (
	_ ports.DataService  = (*Backend)(nil)
	_ ports.AuthProvider = (*Backend)(nil)
)

// NewBackend opens the data file named by local.path, defaulting to
// ~/.pathfinder/data.toml. The file is created on first write.
func NewBackend(cfg *viper.Viper, clock ports.Clock, logger *slog.Logger) (*Backend, error) {
	if cfg == nil {
		cfg = viper.New()
	}
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}
	cfg.SetDefault(LocalPathKey, filepath.Join(homeDir, dataConfigDir, dataFile))

	path := cfg.GetString(LocalPathKey)
	if path == "" {
		return nil, errors.New("local data path is empty")
	}
	path, err = normalizeDataPath(path)
	if err != nil {
		return nil, err
	}

	return &Backend{
		path:      path,
		mu:        lockForPath(path),
		clock:     clock,
		logger:    logger,
		listeners: map[int]func(ports.AuthEvent){},
	}, nil
}

func (b *Backend) Path() string {
	return b.path
}

func (b *Backend) view(ctx context.Context, fn func(file *fileSchema) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	file, err := b.readSchema()
	if err != nil {
		return err
	}
	return fn(&file)
}

// update runs fn on the current file and writes the result back when fn
// succeeds.
func (b *Backend) update(ctx context.Context, fn func(file *fileSchema) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	file, err := b.readSchema()
	if err != nil {
		return err
	}
	if err := fn(&file); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return b.writeSchema(file)
}

func (b *Backend) readSchema() (fileSchema, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			file := fileSchema{}
			file.applyDefaults()
			return file, nil
		}
		return fileSchema{}, fmt.Errorf("read data file: %w", err)
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return fileSchema{}, fmt.Errorf("decode data file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return fileSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func normalizeDataPath(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve data path: %w", err)
	}

	return filepath.Clean(absPath), nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}

func (b *Backend) writeSchema(file fileSchema) error {
	file.applyDefaults()

	if err := os.MkdirAll(filepath.Dir(b.path), dataDirMode); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode data file: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(b.path), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp data file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp data file: %w", err)
	}

	if err := tempFile.Chmod(dataFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp data file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp data file: %w", err)
	}

	if err := os.Rename(tempName, b.path); err != nil {
		return fmt.Errorf("replace data file: %w", err)
	}

	cleanup = false
	return nil
}

func (b *Backend) now() string {
	return b.clock.Now().UTC().Format(time.RFC3339Nano)
}

package categorizer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"dario.cat/mergo"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/insightdelivered/statement-categorizer/internal/models"
	"github.com/insightdelivered/statement-categorizer/internal/textnorm"
)

var (
	ErrNotFound          = errors.New("category not found")
	ErrDefaultCategory   = errors.New("default categories cannot be deleted")
	ErrDuplicateCategory = errors.New("category already exists")
)

// ValidationError reports an invalid category definition.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// IsValidationError reports whether err is a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

const defaultColor = "#9E9E9E"

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// fileFormat is the on-disk layout of the categories file.
type fileFormat struct {
	Categories []models.Category `yaml:"categories"`
}

// Store holds the mutable category list, optionally backed by a YAML file.
// It is safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	path       string
	categories []models.Category
	snapshot   *Config
	log        zerolog.Logger
}

// NewStore loads categories from path. An empty path or a missing file
// starts from the built-in table; the file is written on the first change.
func NewStore(path string, log zerolog.Logger) (*Store, error) {
	s := &Store{path: path, log: log}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Snapshot returns the current immutable classification config.
func (s *Store) Snapshot() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// List returns the categories in priority order.
func (s *Store) List() []models.Category {
	return s.Snapshot().Categories()
}

// Get returns the category with the given id.
func (s *Store) Get(id string) (models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.indexOf(id); i >= 0 {
		return cloneCategories(s.categories[i : i+1])[0], nil
	}
	return models.Category{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Add appends a new category. Its id is derived from the name.
func (s *Store) Add(cat models.Category) (models.Category, error) {
	cat.ID = models.CategoryID(cat.Name)
	cat.Default = false
	if err := normalize(&cat); err != nil {
		return models.Category{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(cat.ID) >= 0 {
		return models.Category{}, fmt.Errorf("%w: %s", ErrDuplicateCategory, cat.ID)
	}
	next := append(cloneCategories(s.categories), cat)
	if err := s.commit(next); err != nil {
		return models.Category{}, err
	}
	s.log.Info().Str("category", cat.ID).Msg("category added")
	return cat, nil
}

// Update replaces the editable fields of category id. The id and the
// default flag never change.
func (s *Store) Update(id string, cat models.Category) (models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return models.Category{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	cat.ID = id
	cat.Default = s.categories[i].Default
	if cat.Default {
		// A default must stay the fallback of its direction.
		cat.ApplicableFor = s.categories[i].ApplicableFor
	}
	if err := normalize(&cat); err != nil {
		return models.Category{}, err
	}

	next := cloneCategories(s.categories)
	next[i] = cat
	if err := s.commit(next); err != nil {
		return models.Category{}, err
	}
	s.log.Info().Str("category", id).Msg("category updated")
	return cat, nil
}

// Delete removes a non-default category.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if s.categories[i].Default {
		return fmt.Errorf("%w: %s", ErrDefaultCategory, id)
	}

	next := cloneCategories(s.categories)
	next = append(next[:i], next[i+1:]...)
	if err := s.commit(next); err != nil {
		return err
	}
	s.log.Info().Str("category", id).Msg("category deleted")
	return nil
}

// Reload re-reads the backing file and swaps in a new snapshot. A store
// without a file only loads once. The write lock spans the read so a
// concurrent change cannot be replaced by an older copy of the file.
func (s *Store) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" && s.snapshot != nil {
		return nil
	}
	cats, err := s.load()
	if err != nil {
		return err
	}
	s.categories = cats
	s.snapshot = NewConfig(cats)
	s.log.Debug().Int("categories", len(cats)).Str("path", s.path).Msg("categories loaded")
	return nil
}

// ScheduleReload starts a cron job that reloads the store on spec, e.g.
// "@every 5m". The caller stops the returned scheduler.
func (s *Store) ScheduleReload(spec string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if err := s.Reload(); err != nil {
			s.log.Error().Err(err).Msg("scheduled category reload failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid reload schedule %q: %w", spec, err)
	}
	c.Start()
	return c, nil
}

func (s *Store) indexOf(id string) int {
	for i, c := range s.categories {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// commit persists next and publishes it. Callers hold the write lock.
func (s *Store) commit(next []models.Category) error {
	if err := s.save(next); err != nil {
		return err
	}
	s.categories = next
	s.snapshot = NewConfig(next)
	return nil
}

func (s *Store) load() ([]models.Category, error) {
	if s.path == "" {
		return DefaultCategories(), nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.log.Warn().Str("path", s.path).Msg("categories file not found, using built-in categories")
			return DefaultCategories(), nil
		}
		return nil, fmt.Errorf("reading categories: %w", err)
	}

	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing categories: %w", err)
	}
	cats, err := withDefaults(f.Categories)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]bool, len(cats))
	for i := range cats {
		if err := normalize(&cats[i]); err != nil {
			return nil, fmt.Errorf("categories file %s: %w", s.path, err)
		}
		// Entries without an id get one from their name, so this also
		// catches two entries with the same name.
		if ids[cats[i].ID] {
			return nil, fmt.Errorf("categories file %s: %w: %s", s.path, ErrDuplicateCategory, cats[i].ID)
		}
		ids[cats[i].ID] = true
	}
	return cats, nil
}

func (s *Store) save(cats []models.Category) error {
	if s.path == "" {
		return nil
	}
	data, err := yaml.Marshal(fileFormat{Categories: cats})
	if err != nil {
		return fmt.Errorf("marshaling categories: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating categories dir: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing categories: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("writing categories: %w", err)
	}
	return nil
}

// withDefaults makes sure both built-in defaults are present. A default
// listed in the file keeps its own fields; anything it leaves empty is
// filled from the built-in definition.
func withDefaults(cats []models.Category) ([]models.Category, error) {
	for _, builtin := range DefaultCategories() {
		if !builtin.Default {
			continue
		}
		found := false
		for i := range cats {
			if cats[i].ID != builtin.ID && models.CategoryID(cats[i].Name) != builtin.ID {
				continue
			}
			if err := mergo.Merge(&cats[i], builtin); err != nil {
				return nil, fmt.Errorf("merging default category %s: %w", builtin.ID, err)
			}
			cats[i].Default = true
			cats[i].ApplicableFor = builtin.ApplicableFor
			found = true
			break
		}
		if !found {
			cats = append(cats, builtin)
		}
	}
	return cats, nil
}

// normalize validates cat and canonicalises its keywords: folded to
// uppercase and de-duplicated with order kept. Surrounding spaces are kept
// since "VIR " must not match inside "VIRGIN".
func normalize(cat *models.Category) error {
	cat.Name = strings.TrimSpace(cat.Name)
	if cat.Name == "" {
		return &ValidationError{Msg: "category name is required"}
	}
	if cat.ID == "" {
		cat.ID = models.CategoryID(cat.Name)
	}
	if cat.Color == "" {
		cat.Color = defaultColor
	}
	if !colorPattern.MatchString(cat.Color) {
		return &ValidationError{Msg: fmt.Sprintf("invalid color %q for category %s", cat.Color, cat.ID)}
	}
	for _, d := range cat.ApplicableFor {
		if !d.Valid() {
			return &ValidationError{Msg: fmt.Sprintf("invalid direction %q for category %s", d, cat.ID)}
		}
	}

	seen := make(map[string]bool, len(cat.Keywords))
	keywords := make([]string, 0, len(cat.Keywords))
	for _, kw := range cat.Keywords {
		kw = textnorm.Upper(kw)
		if strings.TrimSpace(kw) == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		keywords = append(keywords, kw)
	}
	cat.Keywords = keywords
	return nil
}
